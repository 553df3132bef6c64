// Package roasterapi re-exports the gateway's internal runtime types
// as a small, stable surface for external callers — a CLI, an HTTP
// API, a future UI backend — without exposing internal/manager's or
// internal/session's full internals.
package roasterapi

import (
	"fmt"

	"github.com/roastworks/roaster-gateway/internal/driver"
	"github.com/roastworks/roaster-gateway/internal/manager"
	"github.com/roastworks/roaster-gateway/internal/session"
)

// Profile is the exported snapshot of a finished roast session.
type Profile = session.Profile

// TemperaturePoint is one recorded reading in a Profile.
type TemperaturePoint = session.TemperaturePoint

// Event is one recorded roast event in a Profile.
type Event = session.Event

// MachineSnapshot is a point-in-time view of one connected machine,
// suitable for a status listing or a one-shot CLI dump.
type MachineSnapshot struct {
	MachineID     string
	MachineName   string
	DriverInfo    driver.Info
	DriverState   driver.ConnectionState
	SessionState  string
	DataPoints    int
	ObserverCount int
}

// Snapshot builds a MachineSnapshot for a currently connected machine.
func Snapshot(m *manager.Manager, machineID string) (MachineSnapshot, error) {
	mi, ok := m.GetInstance(machineID)
	if !ok {
		return MachineSnapshot{}, fmt.Errorf("roasterapi: machine %q not connected", machineID)
	}
	return MachineSnapshot{
		MachineID:     machineID,
		MachineName:   mi.Machine.Name,
		DriverInfo:    mi.Driver().Info(),
		DriverState:   mi.Driver().State(),
		SessionState:  string(mi.Session().State()),
		DataPoints:    mi.Session().DataPoints(),
		ObserverCount: mi.Hub().ObserverCount(),
	}, nil
}

// Snapshots builds a MachineSnapshot for every currently connected
// machine.
func Snapshots(m *manager.Manager) []MachineSnapshot {
	ids := m.ActiveMachines()
	out := make([]MachineSnapshot, 0, len(ids))
	for _, id := range ids {
		snap, err := Snapshot(m, id)
		if err != nil {
			continue
		}
		out = append(out, snap)
	}
	return out
}

// ExportProfile finalizes the named export of a connected machine's
// current session. The session must have at least one recorded
// temperature point (session.ToProfile's own requirement).
func ExportProfile(m *manager.Manager, machineID, profileName string) (Profile, error) {
	mi, ok := m.GetInstance(machineID)
	if !ok {
		return Profile{}, fmt.Errorf("roasterapi: machine %q not connected", machineID)
	}
	return mi.Session().ToProfile(profileName)
}
