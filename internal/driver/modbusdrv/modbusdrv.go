// Package modbusdrv implements driver.BaseDriver over Modbus TCP and
// RTU, using github.com/goburrow/modbus as the wire client.
package modbusdrv

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	mb "github.com/goburrow/modbus"

	"github.com/roastworks/roaster-gateway/internal/catalog"
	"github.com/roastworks/roaster-gateway/internal/cmdtemplate"
	"github.com/roastworks/roaster-gateway/internal/driver"
	"github.com/roastworks/roaster-gateway/internal/machine"
	"github.com/roastworks/roaster-gateway/internal/regcodec"
)

// handlerWithConn abstracts over the TCP/RTU client handlers goburrow/modbus
// exposes, both of which carry Connect/Close beyond the shared mb.ClientHandler.
type handlerWithConn interface {
	mb.ClientHandler
	Connect() error
	Close() error
}

// Driver drives a single SavedMachine over Modbus TCP or RTU.
type Driver struct {
	m machine.SavedMachine

	mu      sync.Mutex
	handler handlerWithConn
	client  mb.Client
	state   driver.ConnectionState

	controls map[string]parsedControl
}

type parsedControl struct {
	cfg     catalog.ControlConfig
	program cmdtemplate.Program
}

// New builds a driver for a Modbus machine. It does not connect.
func New(m machine.SavedMachine) (*Driver, error) {
	if m.Protocol != catalog.ProtocolModbusTCP && m.Protocol != catalog.ProtocolModbusRTU {
		return nil, fmt.Errorf("modbusdrv: requires modbus_tcp or modbus_rtu, got %q", m.Protocol)
	}

	controls := make(map[string]parsedControl, len(m.Controls))
	for _, c := range m.Controls {
		prog, err := cmdtemplate.Parse(c.CommandTemplate)
		if err != nil {
			return nil, fmt.Errorf("modbusdrv: control %q: %w", c.ChannelID, err)
		}
		controls[c.ChannelID] = parsedControl{cfg: c, program: prog}
	}

	return &Driver{
		m:        m,
		state:    driver.StateDisconnected,
		controls: controls,
	}, nil
}

// Connect dials the configured TCP or RTU endpoint. Mirrors the
// protocol-tag dispatch used to build collector client handlers.
func (d *Driver) Connect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state == driver.StateConnected {
		return nil
	}
	d.state = driver.StateConnecting

	h, err := d.newHandler()
	if err != nil {
		d.state = driver.StateError
		return err
	}
	if err := h.Connect(); err != nil {
		d.state = driver.StateError
		return fmt.Errorf("modbusdrv: connect: %w", err)
	}

	d.handler = h
	d.client = mb.NewClient(h)
	d.state = driver.StateConnected
	return nil
}

func (d *Driver) newHandler() (handlerWithConn, error) {
	switch d.m.Protocol {
	case catalog.ProtocolModbusTCP:
		conn := d.m.Connection.TCP
		if conn == nil {
			return nil, fmt.Errorf("modbusdrv: machine %q has no TCP connection", d.m.Name)
		}
		h := mb.NewTCPClientHandler(fmt.Sprintf("%s:%d", conn.Host, conn.Port))
		h.Timeout = 5 * time.Second
		h.SlaveId = byte(conn.DeviceID)
		return h, nil
	case catalog.ProtocolModbusRTU:
		conn := d.m.Connection.Serial
		if conn == nil {
			return nil, fmt.Errorf("modbusdrv: machine %q has no serial connection", d.m.Name)
		}
		h := mb.NewRTUClientHandler(conn.Port)
		if conn.BaudRate > 0 {
			h.BaudRate = conn.BaudRate
		}
		if conn.DataBits > 0 {
			h.DataBits = conn.DataBits
		}
		if conn.StopBits > 0 {
			h.StopBits = conn.StopBits
		}
		if conn.Parity != "" {
			h.Parity = conn.Parity
		}
		h.Timeout = 5 * time.Second
		h.SlaveId = byte(conn.DeviceID)
		return h, nil
	default:
		return nil, driver.ErrProtocolNotImplemented
	}
}

// Disconnect closes the underlying handler.
func (d *Driver) Disconnect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.handler != nil {
		_ = d.handler.Close()
		d.handler = nil
		d.client = nil
	}
	d.state = driver.StateDisconnected
	return nil
}

// ReadTemperatures reads ET and BT. A failed read of either channel
// puts the driver in the error state and is returned at once; there is
// no retry and no reconnect.
func (d *Driver) ReadTemperatures(ctx context.Context) (driver.TemperatureReading, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != driver.StateConnected || d.client == nil {
		return driver.TemperatureReading{}, driver.ErrNotConnected
	}

	var et, bt float64
	var err error
	if d.m.ET != nil && d.m.ET.Modbus != nil {
		et, err = d.readChannelLocked(*d.m.ET.Modbus)
		if err != nil {
			d.state = driver.StateError
			return driver.TemperatureReading{}, fmt.Errorf("modbusdrv: read ET: %w", err)
		}
	}
	if d.m.BT != nil && d.m.BT.Modbus != nil {
		bt, err = d.readChannelLocked(*d.m.BT.Modbus)
		if err != nil {
			d.state = driver.StateError
			return driver.TemperatureReading{}, fmt.Errorf("modbusdrv: read BT: %w", err)
		}
	}
	return driver.TemperatureReading{ET: et, BT: bt}, nil
}

// ReadExtraChannels reads every configured extra channel. A channel
// whose read fails is reported as 0; the failure itself is neither
// returned nor logged, and it does not change the driver's state.
func (d *Driver) ReadExtraChannels(ctx context.Context) (map[string]float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != driver.StateConnected || d.client == nil {
		return nil, driver.ErrNotConnected
	}

	result := make(map[string]float64, len(d.m.ExtraChannels))
	for _, ch := range d.m.ExtraChannels {
		if ch.Modbus == nil {
			continue
		}
		v, err := d.readChannelLocked(*ch.Modbus)
		if err != nil {
			result[ch.DisplayName] = 0
			continue
		}
		result[ch.DisplayName] = v
	}
	return result, nil
}

func (d *Driver) readChannelLocked(cfg catalog.ModbusRegisterConfig) (float64, error) {
	count := uint16(regcodec.RegisterCount(cfg))

	var data []byte
	var err error
	switch cfg.FunctionCode {
	case 3:
		data, err = d.client.ReadHoldingRegisters(cfg.Address, count)
	case 4:
		data, err = d.client.ReadInputRegisters(cfg.Address, count)
	default:
		return 0, fmt.Errorf("modbusdrv: unsupported function code %d", cfg.FunctionCode)
	}
	if err != nil {
		return 0, err
	}

	regs := make([]uint16, count)
	for i := range regs {
		regs[i] = uint16(data[i*2])<<8 | uint16(data[i*2+1])
	}
	return regcodec.Decode(regs, cfg)
}

// WriteControl executes the named control's command template against
// this driver's own Modbus client, with value rounded to the nearest
// integer for the {} placeholder.
func (d *Driver) WriteControl(ctx context.Context, channel string, value float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != driver.StateConnected || d.client == nil {
		return driver.ErrNotConnected
	}
	pc, ok := d.controls[channel]
	if !ok {
		return fmt.Errorf("modbusdrv: control %q not configured for %s", channel, d.m.Name)
	}
	return pc.program.Execute(ctx, (*executor)(d), uint16(math.Round(value)))
}

func (d *Driver) Info() driver.Info {
	name := "Modbus TCP"
	if d.m.Protocol == catalog.ProtocolModbusRTU {
		name = "Modbus RTU"
	}
	manufacturer := "Custom"
	if d.m.CatalogManufacturerID != nil {
		manufacturer = *d.m.CatalogManufacturerID
	}
	return driver.Info{
		Name:         name,
		Manufacturer: manufacturer,
		Model:        d.m.Name,
		Protocol:     string(d.m.Protocol),
	}
}

func (d *Driver) State() driver.ConnectionState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// executor adapts *Driver to cmdtemplate.CommandExecutor. Device IDs
// in templates are honored by setting SlaveId per call, since
// goburrow/modbus handlers carry a single slave id per handler.
type executor Driver

func (e *executor) WriteSingleRegister(ctx context.Context, deviceID int, address uint16, value uint16) error {
	d := (*Driver)(e)
	d.setSlaveIDLocked(deviceID)
	_, err := d.client.WriteSingleRegister(address, value)
	return err
}

func (e *executor) MaskWriteRegister(ctx context.Context, deviceID int, address uint16, orMask, andMask uint16) error {
	d := (*Driver)(e)
	d.setSlaveIDLocked(deviceID)
	_, err := d.client.MaskWriteRegister(address, andMask, orMask)
	return err
}

func (d *Driver) setSlaveIDLocked(deviceID int) {
	switch h := d.handler.(type) {
	case *mb.TCPClientHandler:
		h.SlaveId = byte(deviceID)
	case *mb.RTUClientHandler:
		h.SlaveId = byte(deviceID)
	}
}
