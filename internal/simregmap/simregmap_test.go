package simregmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roastworks/roaster-gateway/internal/catalog"
	"github.com/roastworks/roaster-gateway/internal/modbus"
)

func TestParseControlAddressExtractsDeviceAndAddress(t *testing.T) {
	dev, addr, ok := ParseControlAddress("writeSingle(1,12290,{})")
	require.True(t, ok)
	assert.Equal(t, 1, dev)
	assert.Equal(t, uint16(12290), addr)
}

func TestParseControlAddressHandlesArrayDeviceSyntax(t *testing.T) {
	dev, addr, ok := ParseControlAddress("writeSingle([1,100,{}])")
	require.True(t, ok)
	assert.Equal(t, 1, dev)
	assert.Equal(t, uint16(100), addr)
}

func TestParseControlAddressFailsForNonWriteSingleFirstCall(t *testing.T) {
	_, _, ok := ParseControlAddress("mwrite(1,100,1,2)")
	assert.False(t, ok)
}

func TestParseControlAddressFailsForEmptyTemplate(t *testing.T) {
	_, _, ok := ParseControlAddress("")
	assert.False(t, ok)
}

func modelWithETBTAndBurner() catalog.Model {
	m, err := catalog.New(catalog.Model{
		ID:                 "m1",
		Name:               "Test Model",
		Protocol:           catalog.ProtocolModbusTCP,
		SamplingIntervalMS: 1000,
		Connection: catalog.ConnectionConfig{
			TCP: &catalog.TCPConnectionConfig{Host: "h", Port: 502},
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
	if err != nil {
		panic(err)
	}
	return m
}

func TestBuildSeedsTemperatureAndControlRegisters(t *testing.T) {
	store := modbus.NewServer()
	model := modelWithETBTAndBurner()

	regmap, err := Build(store, model, 25.0, 25.0)
	require.NoError(t, err)

	require.Len(t, regmap.Controls, 1)
	assert.Equal(t, "burner", regmap.Controls[0].ChannelID)
	assert.Equal(t, uint16(100), regmap.Controls[0].Address)

	et, err := modbus.GetInputRegister(store, 0)
	require.NoError(t, err)
	assert.Equal(t, uint16(250), et) // 25.0C at divisor index 1 (x10)

	burnerReg, err := modbus.GetHoldingRegister(store, 100)
	require.NoError(t, err)
	assert.Equal(t, uint16(0), burnerReg)
}

func TestBuildSkipsControlsWithoutAWriteSingleFirstCall(t *testing.T) {
	store := modbus.NewServer()
	model, err := catalog.New(catalog.Model{
		ID:                 "m2",
		Name:               "No addressable control",
		Protocol:           catalog.ProtocolModbusTCP,
		SamplingIntervalMS: 1000,
		Connection: catalog.ConnectionConfig{
			TCP: &catalog.TCPConnectionConfig{Host: "h", Port: 502},
		},
		Controls: []catalog.ControlConfig{
			{DisplayName: "Odd", ChannelID: "odd", CommandTemplate: "mwrite(1,100,1,2)", Min: 0, Max: 100},
		},
	})
	require.NoError(t, err)

	regmap, err := Build(store, model, 25.0, 25.0)
	require.NoError(t, err)
	assert.Empty(t, regmap.Controls)
}
