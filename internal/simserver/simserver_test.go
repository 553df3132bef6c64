package simserver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roastworks/roaster-gateway/internal/catalog"
	"github.com/roastworks/roaster-gateway/internal/modbus"
	"github.com/roastworks/roaster-gateway/internal/thermal"
)

func TestChannelValueRecognizesKnownAliases(t *testing.T) {
	state := thermal.State{Burner: 80, Airflow: 40, Drum: 60, ET: 200, BT: 190}

	v, ok := channelValue("Burner", state)
	require.True(t, ok)
	assert.Equal(t, 80.0, v)

	v, ok = channelValue("airflow", state)
	require.True(t, ok)
	assert.Equal(t, 40.0, v)

	v, ok = channelValue("Drum", state)
	require.True(t, ok)
	assert.Equal(t, 60.0, v)
}

func TestChannelValueRejectsUnknownName(t *testing.T) {
	_, ok := channelValue("humidity", thermal.State{})
	assert.False(t, ok)
}

func testModel(t *testing.T, addr string) catalog.Model {
	t.Helper()
	m, err := catalog.New(catalog.Model{
		ID:                 "sim-1",
		Name:               "Sim Roaster",
		Protocol:           catalog.ProtocolModbusTCP,
		SamplingIntervalMS: 500,
		Connection: catalog.ConnectionConfig{
			TCP: &catalog.TCPConnectionConfig{Host: "127.0.0.1", Port: 0},
		},
		ET: &catalog.ChannelConfig{
			DisplayName: "ET",
			Modbus:      &catalog.ModbusRegisterConfig{Address: 0, FunctionCode: 4, Divisor: 1},
		},
		BT: &catalog.ChannelConfig{
			DisplayName: "BT",
			Modbus:      &catalog.ModbusRegisterConfig{Address: 1, FunctionCode: 4, Divisor: 1},
		},
		Controls: []catalog.ControlConfig{
			{DisplayName: "Burner", ChannelID: "burner", CommandTemplate: "writeSingle(1,100,{})", Min: 0, Max: 100},
		},
	})
	require.NoError(t, err)
	return m
}

func TestServerStartSeedsRegistersAndStopsCleanly(t *testing.T) {
	model := testModel(t, "127.0.0.1:0")
	srv := New(model, "127.0.0.1:0", 1)
	require.NoError(t, srv.Start())
	defer srv.Stop()

	et, err := modbus.GetInputRegister(srv.mb, 0)
	require.NoError(t, err)
	assert.Equal(t, uint16(250), et) // 25C seeded at divisor index 1
}

func TestServerTickAdvancesTemperatureWhenBurnerIsOn(t *testing.T) {
	model := testModel(t, "127.0.0.1:0")
	srv := New(model, "127.0.0.1:0", 2)
	require.NoError(t, srv.Start())
	defer srv.Stop()

	require.NoError(t, srv.mb.SetHoldingRegister(100, 100))

	srv.tick(1.0)
	time.Sleep(10 * time.Millisecond)

	et, err := modbus.GetInputRegister(srv.mb, 0)
	require.NoError(t, err)
	assert.Greater(t, et, uint16(250)) // seeded at 25C (250); a full-burner 1s step adds ~8C
}
