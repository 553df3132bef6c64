// Package simregmap builds an initial Modbus register datastore from
// a catalog.Model, so the simulator server can be pre-seeded with
// register values a real driver would expect to read.
package simregmap

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/roastworks/roaster-gateway/internal/catalog"
	"github.com/roastworks/roaster-gateway/internal/regcodec"
)

// RegisterStore is the write surface simregmap needs. internal/modbus.Server
// satisfies it directly.
type RegisterStore interface {
	SetHoldingRegister(address uint16, value uint16) error
	SetInputRegister(address uint16, value uint16) error
}

// ControlAddress is a control channel's resolved writeSingle target,
// extracted from the first call of its command template.
type ControlAddress struct {
	ChannelID string
	DeviceID  int
	Address   uint16
}

// Map is the result of building a register map: the control addresses
// discovered, for the simulator server's tick loop to read back.
type Map struct {
	Controls []ControlAddress
}

var firstWriteSingle = regexp.MustCompile(`writeSingle\(\s*\[?\s*(\d+)\s*,\s*(\d+)\s*,`)

// ParseControlAddress extracts (deviceID, address) from the first call
// of a control's command template, when that first call is a
// writeSingle. Controls whose first call is something else (e.g. a
// bare mwrite) have no single register to seed and return false.
func ParseControlAddress(commandTemplate string) (deviceID int, address uint16, ok bool) {
	m := firstWriteSingle.FindStringSubmatch(commandTemplate)
	if m == nil {
		return 0, 0, false
	}
	dev, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, 0, false
	}
	addr, err := strconv.Atoi(m[2])
	if err != nil {
		return 0, 0, false
	}
	return dev, uint16(addr), true
}

// Build seeds store with the catalog model's initial register layout:
// BT/ET at their configured initial Celsius values, extra channels at
// zero, and every control's resolved write address zeroed so it reads
// back sensibly before the first operator write.
func Build(store RegisterStore, model catalog.Model, initialET, initialBT float64) (Map, error) {
	if model.ET != nil && model.ET.Modbus != nil {
		if err := seedChannel(store, *model.ET.Modbus, initialET); err != nil {
			return Map{}, fmt.Errorf("simregmap: seed ET: %w", err)
		}
	}
	if model.BT != nil && model.BT.Modbus != nil {
		if err := seedChannel(store, *model.BT.Modbus, initialBT); err != nil {
			return Map{}, fmt.Errorf("simregmap: seed BT: %w", err)
		}
	}
	for _, ch := range model.ExtraChannels {
		if ch.Modbus == nil {
			continue
		}
		if err := seedChannel(store, *ch.Modbus, 0); err != nil {
			return Map{}, fmt.Errorf("simregmap: seed channel %q: %w", ch.DisplayName, err)
		}
	}

	var controls []ControlAddress
	for _, c := range model.Controls {
		dev, addr, ok := ParseControlAddress(c.CommandTemplate)
		if !ok {
			continue
		}
		if err := store.SetHoldingRegister(addr, 0); err != nil {
			return Map{}, fmt.Errorf("simregmap: seed control %q: %w", c.ChannelID, err)
		}
		controls = append(controls, ControlAddress{ChannelID: c.ChannelID, DeviceID: dev, Address: addr})
	}

	return Map{Controls: controls}, nil
}

func seedChannel(store RegisterStore, cfg catalog.ModbusRegisterConfig, value float64) error {
	regs, err := regcodec.Encode(value, cfg)
	if err != nil {
		return err
	}
	for i, v := range regs {
		addr := cfg.Address + uint16(i)
		var setErr error
		switch cfg.FunctionCode {
		case 3:
			setErr = store.SetHoldingRegister(addr, v)
		case 4:
			setErr = store.SetInputRegister(addr, v)
		default:
			setErr = fmt.Errorf("unsupported function code %d", cfg.FunctionCode)
		}
		if setErr != nil {
			return setErr
		}
	}
	return nil
}
