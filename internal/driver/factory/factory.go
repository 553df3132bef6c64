// Package factory dispatches a SavedMachine's protocol tag to the
// concrete driver implementation that speaks it.
package factory

import (
	"fmt"

	"github.com/roastworks/roaster-gateway/internal/catalog"
	"github.com/roastworks/roaster-gateway/internal/driver"
	"github.com/roastworks/roaster-gateway/internal/driver/modbusdrv"
	"github.com/roastworks/roaster-gateway/internal/machine"
)

// Create builds the appropriate driver for a saved machine
// configuration. S7 and plain serial are named in the catalog but not
// yet implemented by any driver.
func Create(m machine.SavedMachine) (driver.BaseDriver, error) {
	switch m.Protocol {
	case catalog.ProtocolModbusRTU, catalog.ProtocolModbusTCP:
		return modbusdrv.New(m)
	case catalog.ProtocolS7:
		return nil, fmt.Errorf("%w: s7 driver", driver.ErrProtocolNotImplemented)
	case catalog.ProtocolSerial:
		return nil, fmt.Errorf("%w: serial driver", driver.ErrProtocolNotImplemented)
	default:
		return nil, fmt.Errorf("%w: unknown protocol %q", driver.ErrProtocolNotImplemented, m.Protocol)
	}
}
