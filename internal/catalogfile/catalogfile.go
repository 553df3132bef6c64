// Package catalogfile is a minimal, static JSON reader for the
// machine catalog — enough to boot cmd/gatewayd or cmd/mockserial with
// a handful of known machines. It implements catalog.Provider but is
// deliberately not a general catalog management system: hot reload,
// writes, and a database-backed registry remain external concerns
// that catalog.Provider only defines the seam for.
package catalogfile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/roastworks/roaster-gateway/internal/catalog"
)

type document struct {
	Version       int              `json:"version"`
	Manufacturers []manufacturerDoc `json:"manufacturers"`
}

type manufacturerDoc struct {
	ID      string     `json:"id"`
	Name    string     `json:"name"`
	Country string     `json:"country"`
	Models  []modelDoc `json:"models"`
}

type modelDoc struct {
	ID                 string        `json:"id"`
	Name               string        `json:"name"`
	Protocol           string        `json:"protocol"`
	SamplingIntervalMS int           `json:"sampling_interval_ms"`
	Connection         connectionDoc `json:"connection"`
	ET                 *channelDoc   `json:"et"`
	BT                 *channelDoc   `json:"bt"`
	ExtraChannels      []channelDoc  `json:"extra_channels"`
	Controls           []controlDoc  `json:"controls"`
}

type connectionDoc struct {
	Type            string `json:"type"`
	Host            string `json:"host"`
	Port            int    `json:"port"`
	ComPort         string `json:"comport"`
	BaudRate        int    `json:"baudrate"`
	ByteSize        int    `json:"bytesize"`
	Parity          string `json:"parity"`
	StopBits        int    `json:"stopbits"`
	DeviceID        int    `json:"device_id"`
	WordOrderLittle bool   `json:"word_order_little"`
}

type channelDoc struct {
	Name   string        `json:"name"`
	Modbus *modbusRegDoc `json:"modbus"`
}

type modbusRegDoc struct {
	Address  int    `json:"address"`
	Code     int    `json:"code"`
	DeviceID int    `json:"device_id"`
	Divisor  int    `json:"divisor"`
	Mode     string `json:"mode"`
	IsFloat  bool   `json:"is_float"`
	IsBCD    bool   `json:"is_bcd"`
}

type controlDoc struct {
	Name    string  `json:"name"`
	Channel string  `json:"channel"`
	Command string  `json:"command"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Step    float64 `json:"step"`
	Unit    string  `json:"unit"`
}

// Provider implements catalog.Provider by reading a static JSON
// document once at load time. It additionally tracks which
// manufacturer each model came from, since catalog.Model itself has
// no manufacturer field — that association only matters to whoever is
// minting a machine.SavedMachine from an archetype.
type Provider struct {
	mu             sync.RWMutex
	models         map[string]catalog.Model
	manufacturerOf map[string]string
}

// Load reads and validates every model in the catalog document at
// path, building an in-memory Provider.
func Load(path string) (*Provider, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalogfile: read %s: %w", path, err)
	}

	var doc document
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("catalogfile: parse %s: %w", path, err)
	}

	p := &Provider{
		models:         make(map[string]catalog.Model),
		manufacturerOf: make(map[string]string),
	}
	for _, mfr := range doc.Manufacturers {
		for _, md := range mfr.Models {
			model, err := convertModel(md)
			if err != nil {
				return nil, fmt.Errorf("catalogfile: model %s/%s: %w", mfr.ID, md.ID, err)
			}
			p.models[model.ID] = model
			p.manufacturerOf[model.ID] = mfr.ID
		}
	}
	return p, nil
}

func (p *Provider) Models(ctx context.Context) ([]catalog.Model, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]catalog.Model, 0, len(p.models))
	for _, m := range p.models {
		out = append(out, m)
	}
	return out, nil
}

func (p *Provider) Model(ctx context.Context, id string) (catalog.Model, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	m, ok := p.models[id]
	if !ok {
		return catalog.Model{}, fmt.Errorf("catalogfile: unknown catalog model %q", id)
	}
	return m, nil
}

// ManufacturerID returns which manufacturer a catalog model belongs
// to, needed when minting a SavedMachine from that archetype.
func (p *Provider) ManufacturerID(modelID string) string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.manufacturerOf[modelID]
}

func convertModel(md modelDoc) (catalog.Model, error) {
	var protocol catalog.ProtocolType
	switch md.Protocol {
	case "modbus_rtu":
		protocol = catalog.ProtocolModbusRTU
	case "modbus_tcp":
		protocol = catalog.ProtocolModbusTCP
	case "serial":
		protocol = catalog.ProtocolSerial
	case "s7":
		protocol = catalog.ProtocolS7
	default:
		return catalog.Model{}, fmt.Errorf("unknown protocol %q", md.Protocol)
	}

	conn, err := convertConnection(md.Connection)
	if err != nil {
		return catalog.Model{}, err
	}

	var et, bt *catalog.ChannelConfig
	if md.ET != nil {
		ch, err := convertChannel(*md.ET)
		if err != nil {
			return catalog.Model{}, fmt.Errorf("et channel: %w", err)
		}
		et = &ch
	}
	if md.BT != nil {
		ch, err := convertChannel(*md.BT)
		if err != nil {
			return catalog.Model{}, fmt.Errorf("bt channel: %w", err)
		}
		bt = &ch
	}

	extra := make([]catalog.ChannelConfig, 0, len(md.ExtraChannels))
	for i, ch := range md.ExtraChannels {
		converted, err := convertChannel(ch)
		if err != nil {
			return catalog.Model{}, fmt.Errorf("extra channel %d: %w", i, err)
		}
		extra = append(extra, converted)
	}

	controls := make([]catalog.ControlConfig, 0, len(md.Controls))
	for _, c := range md.Controls {
		controls = append(controls, catalog.ControlConfig{
			DisplayName:     c.Name,
			ChannelID:       c.Channel,
			CommandTemplate: c.Command,
			Min:             c.Min,
			Max:             c.Max,
			Step:            c.Step,
			Unit:            c.Unit,
		})
	}

	return catalog.New(catalog.Model{
		ID:                 md.ID,
		Name:               md.Name,
		Protocol:           protocol,
		SamplingIntervalMS: md.SamplingIntervalMS,
		Connection:         conn,
		ET:                 et,
		BT:                 bt,
		ExtraChannels:      extra,
		Controls:           controls,
	})
}

func convertConnection(cd connectionDoc) (catalog.ConnectionConfig, error) {
	switch cd.Type {
	case "modbus_tcp":
		return catalog.ConnectionConfig{TCP: &catalog.TCPConnectionConfig{
			Host:     cd.Host,
			Port:     cd.Port,
			DeviceID: cd.DeviceID,
		}}, nil
	case "modbus_rtu":
		// The wire format reuses the TCP connection's "host" field to
		// carry the serial device path for RTU transport, matching
		// the upstream schema where one connection type covers both
		// modbus transports.
		return catalog.ConnectionConfig{Serial: &catalog.SerialConnectionConfig{
			Port:     cd.Host,
			BaudRate: cd.BaudRate,
			DataBits: cd.ByteSize,
			StopBits: cd.StopBits,
			Parity:   cd.Parity,
			DeviceID: cd.DeviceID,
		}}, nil
	case "serial":
		return catalog.ConnectionConfig{Serial: &catalog.SerialConnectionConfig{
			Port:     cd.ComPort,
			BaudRate: cd.BaudRate,
			DataBits: cd.ByteSize,
			StopBits: cd.StopBits,
			Parity:   cd.Parity,
			DeviceID: cd.DeviceID,
		}}, nil
	default:
		return catalog.ConnectionConfig{}, fmt.Errorf("unknown connection type %q", cd.Type)
	}
}

func convertChannel(cd channelDoc) (catalog.ChannelConfig, error) {
	ch := catalog.ChannelConfig{DisplayName: cd.Name}
	if cd.Modbus != nil {
		ch.Modbus = &catalog.ModbusRegisterConfig{
			Address:         uint16(cd.Modbus.Address),
			FunctionCode:    cd.Modbus.Code,
			DeviceID:        cd.Modbus.DeviceID,
			Divisor:         cd.Modbus.Divisor,
			Mode:            cd.Modbus.Mode,
			IsFloat:         cd.Modbus.IsFloat,
			IsBCD:           cd.Modbus.IsBCD,
			WordOrderLittle: true,
		}
	}
	return ch, nil
}
