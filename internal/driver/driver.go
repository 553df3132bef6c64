// Package driver defines the protocol-agnostic contract every
// roaster driver implements, so the rest of the gateway never needs
// to know whether it's talking to Modbus RTU, Modbus TCP, or (once
// implemented) S7 or plain serial.
package driver

import (
	"context"
	"errors"
)

// ConnectionState is a driver's current connection lifecycle state.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateError        ConnectionState = "error"
)

// ErrNotConnected is returned by any read/write operation attempted
// while the driver is not in StateConnected.
var ErrNotConnected = errors.New("driver: not connected")

// ErrProtocolNotImplemented is returned by the driver factory for
// protocols the catalog can name but no driver yet implements.
var ErrProtocolNotImplemented = errors.New("driver: protocol not implemented")

// TemperatureReading is one ET/BT sample. Drivers leave TimestampMS at
// 0; the machine manager does not fill it in either, and instead puts
// the elapsed time on the stream frame it builds from the reading.
type TemperatureReading struct {
	ET, BT      float64
	TimestampMS float64
}

// Info describes a driver implementation for display purposes.
type Info struct {
	Name         string
	Manufacturer string
	Model        string
	Protocol     string
}

// BaseDriver is the contract every roaster driver implements.
type BaseDriver interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	ReadTemperatures(ctx context.Context) (TemperatureReading, error)

	// ReadExtraChannels returns a channel-name to value map for any
	// sensor fields beyond ET/BT. Drivers with no extra channels
	// return an empty map, not an error.
	ReadExtraChannels(ctx context.Context) (map[string]float64, error)

	// WriteControl writes a native-unit setpoint to a named control
	// channel. Drivers that don't support control output return
	// ErrProtocolNotImplemented.
	WriteControl(ctx context.Context, channel string, value float64) error

	Info() Info
	State() ConnectionState
}
