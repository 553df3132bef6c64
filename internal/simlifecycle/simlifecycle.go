// Package simlifecycle manages running in-process simulator instances:
// each one serves a Modbus TCP endpoint for a catalog machine, and this
// package tracks which catalog models are currently simulated so a
// caller can connect a manager.Manager to them like any real machine.
package simlifecycle

import (
	"fmt"
	"net"
	"sync"

	"github.com/roastworks/roaster-gateway/internal/catalog"
	"github.com/roastworks/roaster-gateway/internal/machine"
	"github.com/roastworks/roaster-gateway/internal/simserver"
)

// Info describes a running simulator instance.
type Info struct {
	MachineID      string
	CatalogID      string
	ManufacturerID string
	Name           string
	Host           string
	Port           int
}

// Lifecycle owns every running simulator instance. Construct one per
// process (cmd/gatewayd wires it explicitly into the rest of the
// daemon) — never use a package-level singleton.
type Lifecycle struct {
	mu        sync.Mutex
	instances map[string]*simserver.Server
	info      map[string]Info
}

// New builds an empty lifecycle manager.
func New() *Lifecycle {
	return &Lifecycle{
		instances: make(map[string]*simserver.Server),
		info:      make(map[string]Info),
	}
}

// Start launches a simulator for model, binding host:port (port 0
// auto-allocates a free TCP port), and returns the Info plus a
// SavedMachine already pointed at the simulator's bound address. It
// refuses to start a second simulator for a catalog model that
// already has one running.
func (l *Lifecycle) Start(model catalog.Model, manufacturerID, host string, port int, seed int64) (Info, machine.SavedMachine, error) {
	l.mu.Lock()
	for _, info := range l.info {
		if info.CatalogID == model.ID {
			l.mu.Unlock()
			return Info{}, machine.SavedMachine{}, fmt.Errorf("simlifecycle: simulator already running for %s on port %d", model.ID, info.Port)
		}
	}
	l.mu.Unlock()

	if host == "" {
		host = "127.0.0.1"
	}
	if port == 0 {
		p, err := findFreePort(host)
		if err != nil {
			return Info{}, machine.SavedMachine{}, fmt.Errorf("simlifecycle: allocate port: %w", err)
		}
		port = p
	}

	addr := fmt.Sprintf("%s:%d", host, port)
	srv := simserver.New(model, addr, seed)
	if err := srv.Start(); err != nil {
		return Info{}, machine.SavedMachine{}, fmt.Errorf("simlifecycle: start simulator for %s: %w", model.ID, err)
	}

	connection := model.Connection
	if connection.TCP != nil {
		mirrored := *connection.TCP
		mirrored.Host = host
		mirrored.Port = port
		connection.TCP = &mirrored
	}

	saved, err := machine.FromCatalog(model.Name+" (Simulator)", manufacturerID, model, connection)
	if err != nil {
		srv.Stop()
		return Info{}, machine.SavedMachine{}, fmt.Errorf("simlifecycle: build saved machine: %w", err)
	}

	info := Info{
		MachineID:      saved.ID,
		CatalogID:      model.ID,
		ManufacturerID: manufacturerID,
		Name:           saved.Name,
		Host:           host,
		Port:           port,
	}

	l.mu.Lock()
	l.instances[saved.ID] = srv
	l.info[saved.ID] = info
	l.mu.Unlock()

	return info, saved, nil
}

// Stop tears a running simulator down. A no-op if machineID has no
// running simulator.
func (l *Lifecycle) Stop(machineID string) error {
	l.mu.Lock()
	srv, ok := l.instances[machineID]
	if ok {
		delete(l.instances, machineID)
		delete(l.info, machineID)
	}
	l.mu.Unlock()
	if !ok {
		return nil
	}
	srv.Stop()
	return nil
}

// StopAll tears every running simulator down, continuing past any
// individual failure (there is no real failure mode for Stop today,
// but this mirrors the all-or-nothing shutdown sweep a caller needs).
func (l *Lifecycle) StopAll() {
	l.mu.Lock()
	ids := make([]string, 0, len(l.instances))
	for id := range l.instances {
		ids = append(ids, id)
	}
	l.mu.Unlock()

	for _, id := range ids {
		_ = l.Stop(id)
	}
}

// ListRunning returns Info for every currently running simulator.
func (l *Lifecycle) ListRunning() []Info {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Info, 0, len(l.info))
	for _, info := range l.info {
		out = append(out, info)
	}
	return out
}

// Get returns Info for one running simulator.
func (l *Lifecycle) Get(machineID string) (Info, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	info, ok := l.info[machineID]
	return info, ok
}

func findFreePort(host string) (int, error) {
	l, err := net.Listen("tcp", host+":0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
