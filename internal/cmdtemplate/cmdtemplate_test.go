package cmdtemplate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingExecutor struct {
	singleWrites []singleWrite
	maskWrites   []maskWrite
	failOn       int
}

type singleWrite struct {
	deviceID int
	address  uint16
	value    uint16
}

type maskWrite struct {
	deviceID        int
	address         uint16
	orMask, andMask uint16
}

func (r *recordingExecutor) WriteSingleRegister(ctx context.Context, deviceID int, address uint16, value uint16) error {
	if r.failOn == 1 {
		return errors.New("write failed")
	}
	r.singleWrites = append(r.singleWrites, singleWrite{deviceID, address, value})
	return nil
}

func (r *recordingExecutor) MaskWriteRegister(ctx context.Context, deviceID int, address uint16, orMask, andMask uint16) error {
	if r.failOn == 2 {
		return errors.New("mask write failed")
	}
	r.maskWrites = append(r.maskWrites, maskWrite{deviceID, address, orMask, andMask})
	return nil
}

func TestParseSingleWriteSingleCall(t *testing.T) {
	prog, err := Parse("writeSingle(1,12290,{})")
	require.NoError(t, err)

	exec := &recordingExecutor{}
	require.NoError(t, prog.Execute(context.Background(), exec, 500))
	require.Len(t, exec.singleWrites, 1)
	assert.Equal(t, singleWrite{deviceID: 1, address: 12290, value: 500}, exec.singleWrites[0])
}

func TestParseCompoundTemplate(t *testing.T) {
	prog, err := Parse("writeSingle(1,12290,{});mwrite(1,12318,65531,4)")
	require.NoError(t, err)

	exec := &recordingExecutor{}
	require.NoError(t, prog.Execute(context.Background(), exec, 700))
	require.Len(t, exec.singleWrites, 1)
	assert.Equal(t, uint16(700), exec.singleWrites[0].value)
	require.Len(t, exec.maskWrites, 1)
	assert.Equal(t, maskWrite{deviceID: 1, address: 12318, orMask: 65531, andMask: 4}, exec.maskWrites[0])
}

func TestParseLiteralWriteSingleIgnoresValueArgument(t *testing.T) {
	prog, err := Parse("writeSingle(1,100,42)")
	require.NoError(t, err)

	exec := &recordingExecutor{}
	require.NoError(t, prog.Execute(context.Background(), exec, 999))
	require.Len(t, exec.singleWrites, 1)
	assert.Equal(t, uint16(42), exec.singleWrites[0].value)
}

func TestParseRejectsMalformedCalls(t *testing.T) {
	cases := []string{
		"",
		"writeSingle(1,2)",
		"mwrite(1,2,3)",
		"unknownFn(1,2,3)",
		"writeSingle(a,b,c)",
		"notacall",
	}
	for _, tc := range cases {
		_, err := Parse(tc)
		assert.Error(t, err, "template %q should fail to parse", tc)
		assert.ErrorIs(t, err, ErrMalformedTemplate)
	}
}

func TestExecuteStopsOnFirstError(t *testing.T) {
	prog, err := Parse("writeSingle(1,100,{});mwrite(1,200,1,2)")
	require.NoError(t, err)

	exec := &recordingExecutor{failOn: 1}
	err = prog.Execute(context.Background(), exec, 5)
	assert.Error(t, err)
	assert.Empty(t, exec.maskWrites)
}
