package serialutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEnsureSerialDefaultsFillsZeroValues(t *testing.T) {
	sp := SerialParams{Address: "/dev/ttyUSB0"}
	EnsureSerialDefaults(&sp)

	assert.Equal(t, 9600, sp.BaudRate)
	assert.Equal(t, 8, sp.DataBits)
	assert.Equal(t, 1, sp.StopBits)
	assert.Equal(t, "N", sp.Parity)
	assert.Equal(t, 10*time.Second, sp.Timeout)
}

func TestEnsureSerialDefaultsPreservesExplicitValues(t *testing.T) {
	sp := SerialParams{
		Address:  "/dev/ttyUSB0",
		BaudRate: 115200,
		DataBits: 7,
		StopBits: 2,
		Parity:   "E",
		Timeout:  5 * time.Second,
	}
	EnsureSerialDefaults(&sp)

	assert.Equal(t, 115200, sp.BaudRate)
	assert.Equal(t, 7, sp.DataBits)
	assert.Equal(t, 2, sp.StopBits)
	assert.Equal(t, "E", sp.Parity)
	assert.Equal(t, 5*time.Second, sp.Timeout)
}

func TestBuildSocatPairCmdWiresLinkAndPeerPaths(t *testing.T) {
	cmd := BuildSocatPairCmd(context.Background(), SocatPair{Link: "/tmp/link0", Peer: "/tmp/peer0"})

	assert.Equal(t, "socat", cmd.Args[0])
	assert.Contains(t, cmd.Args, "pty,raw,echo=0,link=/tmp/link0")
	assert.Contains(t, cmd.Args, "pty,raw,echo=0,link=/tmp/peer0")
}
