// Package catalog holds the read-only machine archetypes the gateway
// knows how to drive: protocol, channel layout, and control templates.
package catalog

import "fmt"

// ProtocolType identifies the fieldbus protocol a machine speaks.
type ProtocolType string

const (
	ProtocolModbusRTU ProtocolType = "modbus_rtu"
	ProtocolModbusTCP ProtocolType = "modbus_tcp"
	ProtocolSerial    ProtocolType = "serial"
	ProtocolS7        ProtocolType = "s7"
)

func (p ProtocolType) valid() bool {
	switch p {
	case ProtocolModbusRTU, ProtocolModbusTCP, ProtocolSerial, ProtocolS7:
		return true
	}
	return false
}

// TCPConnectionConfig addresses a Modbus TCP endpoint.
type TCPConnectionConfig struct {
	Host     string
	Port     int
	DeviceID int // unit/slave id
}

// SerialConnectionConfig addresses an RTU/serial endpoint.
type SerialConnectionConfig struct {
	Port     string
	BaudRate int
	DataBits int
	StopBits int
	Parity   string
	DeviceID int
}

// ConnectionConfig is a discriminated union keyed by the owning
// CatalogModel's Protocol field. Exactly one of TCP/Serial is set for
// modbus_tcp/modbus_rtu protocols respectively.
type ConnectionConfig struct {
	TCP    *TCPConnectionConfig
	Serial *SerialConnectionConfig
}

// Divisor indices map to these multipliers.
var divisorMultipliers = [4]float64{1, 10, 100, 1000}

// DivisorMultiplier returns the multiplier for a divisor index (0-3).
func DivisorMultiplier(index int) (float64, error) {
	if index < 0 || index > 3 {
		return 0, fmt.Errorf("catalog: divisor index %d out of range [0,3]", index)
	}
	return divisorMultipliers[index], nil
}

// ModbusRegisterConfig describes how to decode/encode one Modbus field.
type ModbusRegisterConfig struct {
	Address         uint16
	FunctionCode    int // 3 (holding) or 4 (input)
	DeviceID        int // 0-247
	Divisor         int // 0-3, see DivisorMultiplier
	Mode            string // "C", "F", or ""
	IsFloat         bool
	IsBCD           bool
	WordOrderLittle bool // only meaningful when IsFloat
}

func (c ModbusRegisterConfig) Validate() error {
	if c.FunctionCode != 3 && c.FunctionCode != 4 {
		return fmt.Errorf("catalog: function code %d must be 3 or 4", c.FunctionCode)
	}
	if c.DeviceID < 0 || c.DeviceID > 247 {
		return fmt.Errorf("catalog: device id %d out of range [0,247]", c.DeviceID)
	}
	if c.Divisor < 0 || c.Divisor > 3 {
		return fmt.Errorf("catalog: divisor %d out of range [0,3]", c.Divisor)
	}
	switch c.Mode {
	case "", "C", "F":
	default:
		return fmt.Errorf("catalog: mode %q must be C, F, or empty", c.Mode)
	}
	if c.IsFloat && c.IsBCD {
		return fmt.Errorf("catalog: register cannot be both float and BCD")
	}
	return nil
}

// S7DataBlockConfig addresses an S7 data-block field. The S7 driver is
// not implemented (spec Non-goal for this core), but the catalog shape
// still needs to exist so configurations can name the intent.
type S7DataBlockConfig struct {
	DataBlock int
	Offset    int
	DataType  string
}

// ChannelConfig is one sensor field: exactly one of Modbus/S7 is set.
type ChannelConfig struct {
	DisplayName string
	Modbus      *ModbusRegisterConfig
	S7          *S7DataBlockConfig
}

func (c ChannelConfig) Validate() error {
	if c.Modbus == nil && c.S7 == nil {
		return fmt.Errorf("catalog: channel %q has no register descriptor", c.DisplayName)
	}
	if c.Modbus != nil && c.S7 != nil {
		return fmt.Errorf("catalog: channel %q has both modbus and s7 descriptors", c.DisplayName)
	}
	if c.Modbus != nil {
		return c.Modbus.Validate()
	}
	return nil
}

// ControlConfig is one operator-facing setpoint slider.
type ControlConfig struct {
	DisplayName     string
	ChannelID       string
	CommandTemplate string
	Min, Max, Step  float64
	Unit            string
}

func (c ControlConfig) Validate() error {
	if c.ChannelID == "" {
		return fmt.Errorf("catalog: control %q missing channel id", c.DisplayName)
	}
	if c.CommandTemplate == "" {
		return fmt.Errorf("catalog: control %q missing command template", c.DisplayName)
	}
	if c.Max < c.Min {
		return fmt.Errorf("catalog: control %q has max < min", c.DisplayName)
	}
	return nil
}

// Model is a machine archetype: stable identity, protocol, channel
// layout, and control templates. Immutable once constructed — callers
// must not mutate a Model after New returns it.
type Model struct {
	ID                 string
	Name               string
	Protocol           ProtocolType
	SamplingIntervalMS int
	Connection         ConnectionConfig
	ET, BT             *ChannelConfig
	ExtraChannels      []ChannelConfig
	Controls           []ControlConfig
}

// New validates and returns a Model, or an error describing the first
// invariant violation found.
func New(m Model) (Model, error) {
	if m.ID == "" {
		return Model{}, fmt.Errorf("catalog: model id must not be empty")
	}
	if !m.Protocol.valid() {
		return Model{}, fmt.Errorf("catalog: unknown protocol %q", m.Protocol)
	}
	if m.SamplingIntervalMS < 500 || m.SamplingIntervalMS > 10000 {
		return Model{}, fmt.Errorf("catalog: sampling interval %dms out of range [500,10000]", m.SamplingIntervalMS)
	}
	switch m.Protocol {
	case ProtocolModbusTCP:
		if m.Connection.TCP == nil {
			return Model{}, fmt.Errorf("catalog: modbus_tcp model requires a TCP connection")
		}
	case ProtocolModbusRTU:
		if m.Connection.Serial == nil {
			return Model{}, fmt.Errorf("catalog: modbus_rtu model requires a serial connection")
		}
	}
	if m.ET != nil {
		if err := m.ET.Validate(); err != nil {
			return Model{}, err
		}
	}
	if m.BT != nil {
		if err := m.BT.Validate(); err != nil {
			return Model{}, err
		}
	}
	for i, ch := range m.ExtraChannels {
		if err := ch.Validate(); err != nil {
			return Model{}, fmt.Errorf("catalog: extra channel %d: %w", i, err)
		}
	}
	for i, c := range m.Controls {
		if err := c.Validate(); err != nil {
			return Model{}, fmt.Errorf("catalog: control %d: %w", i, err)
		}
	}
	return m, nil
}
