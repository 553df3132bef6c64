package simlifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roastworks/roaster-gateway/internal/catalog"
)

func testModel() catalog.Model {
	m, err := catalog.New(catalog.Model{
		ID:                 "bench-1",
		Name:               "Bench Roaster",
		Protocol:           catalog.ProtocolModbusTCP,
		SamplingIntervalMS: 1000,
		Connection: catalog.ConnectionConfig{
			TCP: &catalog.TCPConnectionConfig{Host: "127.0.0.1", Port: 502},
		},
		ET: &catalog.ChannelConfig{
			DisplayName: "ET",
			Modbus:      &catalog.ModbusRegisterConfig{Address: 0, FunctionCode: 4, Divisor: 1},
		},
	})
	if err != nil {
		panic(err)
	}
	return m
}

func TestStartAutoAllocatesPortAndStop(t *testing.T) {
	l := New()
	model := testModel()

	info, saved, err := l.Start(model, "acme", "", 0, 1)
	require.NoError(t, err)
	assert.NotZero(t, info.Port)
	assert.Equal(t, "127.0.0.1", info.Host)
	assert.Equal(t, model.ID, info.CatalogID)
	require.NotNil(t, saved.Connection.TCP)
	assert.Equal(t, info.Port, saved.Connection.TCP.Port)

	got, ok := l.Get(saved.ID)
	require.True(t, ok)
	assert.Equal(t, info, got)

	require.NoError(t, l.Stop(saved.ID))
	_, ok = l.Get(saved.ID)
	assert.False(t, ok)
}

func TestStartRefusesSecondSimulatorForSameModel(t *testing.T) {
	l := New()
	model := testModel()

	_, saved, err := l.Start(model, "acme", "", 0, 1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Stop(saved.ID) })

	_, _, err = l.Start(model, "acme", "", 0, 1)
	assert.Error(t, err)
}

func TestStopIsNoOpForUnknownMachine(t *testing.T) {
	l := New()
	assert.NoError(t, l.Stop("does-not-exist"))
}

func TestStopAllTearsDownEverySimulator(t *testing.T) {
	l := New()
	model1 := testModel()
	model2 := testModel()
	model2.ID = "bench-2"

	_, s1, err := l.Start(model1, "acme", "", 0, 1)
	require.NoError(t, err)
	_, s2, err := l.Start(model2, "acme", "", 0, 2)
	require.NoError(t, err)

	assert.Len(t, l.ListRunning(), 2)

	l.StopAll()
	assert.Empty(t, l.ListRunning())

	_, ok := l.Get(s1.ID)
	assert.False(t, ok)
	_, ok = l.Get(s2.ID)
	assert.False(t, ok)
}
