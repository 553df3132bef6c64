// Package manager orchestrates connected machine instances: it builds
// a driver per machine, runs its sampling loop, feeds readings into a
// roast session, and fans broadcast frames out through a per-machine
// stream.Hub. This is the central runtime component tying the catalog,
// driver, session, and stream layers together.
package manager

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/roastworks/roaster-gateway/internal/catalog"
	"github.com/roastworks/roaster-gateway/internal/driver"
	"github.com/roastworks/roaster-gateway/internal/driver/factory"
	"github.com/roastworks/roaster-gateway/internal/machine"
	"github.com/roastworks/roaster-gateway/internal/session"
	"github.com/roastworks/roaster-gateway/internal/stream"
)

// ringBufferSize bounds how many temperature frames are retained for
// reconnect sync: ~60s of history at a 500ms sampling interval.
const ringBufferSize = 120

// maxConsecutiveErrors is how many back-to-back read failures a
// sampling loop tolerates before giving up on the driver.
const maxConsecutiveErrors = 5

// ErrNotConnected is returned by operations targeting a machine with
// no active instance.
var ErrNotConnected = errors.New("manager: machine not connected")

// MachineInstance is the runtime state of one connected machine.
type MachineInstance struct {
	Machine machine.SavedMachine
	driver  driver.BaseDriver
	session *session.Session
	hub     *stream.Hub

	cancel context.CancelFunc
	done   chan struct{}

	mu                sync.Mutex
	ringBuffer        []stream.TemperatureMessage
	startTime         time.Time
	prevET, prevBT    *float64
	consecutiveErrors int
	controlEnabled    map[string]bool

	// sessionMu serializes access to session, which is itself not
	// safe for concurrent use: the sampling loop and the observer
	// command handlers run on different goroutines.
	sessionMu sync.Mutex
}

// Session returns the instance's roast session.
func (mi *MachineInstance) Session() *session.Session { return mi.session }

// Driver returns the instance's connected driver.
func (mi *MachineInstance) Driver() driver.BaseDriver { return mi.driver }

// Hub returns the instance's broadcast hub, for attaching observers.
func (mi *MachineInstance) Hub() *stream.Hub { return mi.hub }

func (mi *MachineInstance) syncMessages(sinceMS float64) []stream.TemperatureMessage {
	mi.mu.Lock()
	defer mi.mu.Unlock()
	var out []stream.TemperatureMessage
	for _, msg := range mi.ringBuffer {
		if msg.TimestampMS > sinceMS {
			out = append(out, msg)
		}
	}
	return out
}

// Manager owns every currently connected machine instance.
type Manager struct {
	mu        sync.Mutex
	instances map[string]*MachineInstance
}

// New builds an empty manager.
func New() *Manager {
	return &Manager{instances: make(map[string]*MachineInstance)}
}

// ActiveMachines lists the IDs of all currently connected machines.
func (m *Manager) ActiveMachines() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.instances))
	for id := range m.instances {
		ids = append(ids, id)
	}
	return ids
}

// GetInstance returns the runtime instance for a connected machine.
func (m *Manager) GetInstance(machineID string) (*MachineInstance, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mi, ok := m.instances[machineID]
	return mi, ok
}

// Connect builds a driver for mach, connects it, and starts its
// sampling loop. A no-op if the machine is already connected.
func (m *Manager) Connect(ctx context.Context, mach machine.SavedMachine) error {
	m.mu.Lock()
	if _, ok := m.instances[mach.ID]; ok {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	drv, err := factory.Create(mach)
	if err != nil {
		return fmt.Errorf("manager: create driver for %s: %w", mach.ID, err)
	}
	if err := drv.Connect(ctx); err != nil {
		return fmt.Errorf("manager: connect driver for %s: %w", mach.ID, err)
	}

	instCtx, cancel := context.WithCancel(context.Background())
	mi := &MachineInstance{
		Machine:        mach,
		driver:         drv,
		session:        session.New(mach.Name),
		hub:            stream.NewHub(),
		cancel:         cancel,
		done:           make(chan struct{}),
		startTime:      time.Now(),
		controlEnabled: make(map[string]bool),
	}

	m.mu.Lock()
	m.instances[mach.ID] = mi
	m.mu.Unlock()

	go mi.hub.Run(instCtx)
	go m.samplingLoop(instCtx, mach.ID, mi)

	return nil
}

// Disconnect stops the sampling loop, disconnects the driver, and
// drops the instance. A no-op if the machine isn't connected.
func (m *Manager) Disconnect(ctx context.Context, machineID string) error {
	m.mu.Lock()
	mi, ok := m.instances[machineID]
	if ok {
		delete(m.instances, machineID)
	}
	m.mu.Unlock()
	if !ok {
		return nil
	}

	mi.cancel()
	<-mi.done

	if err := mi.driver.Disconnect(ctx); err != nil {
		m.broadcast(mi, stream.NewErrorMessage("DRIVER_DISCONNECT_FAILED", err.Error(), false))
	}
	m.broadcast(mi, stream.NewConnectionMessage(stream.DriverDisconnected, mi.driver.Info().Name, "Disconnected"))

	return nil
}

// Attach registers a WebSocket connection as an observer of machineID
// and returns the Observer handle, so the caller can run its own read
// pump against conn and unregister on exit.
func (m *Manager) Attach(machineID string, observerID string, conn *websocket.Conn) (*stream.Observer, error) {
	mi, ok := m.GetInstance(machineID)
	if !ok {
		return nil, ErrNotConnected
	}
	return mi.hub.Register(observerID, conn), nil
}

// Detach removes a previously attached observer.
func (m *Manager) Detach(machineID string, o *stream.Observer) {
	if mi, ok := m.GetInstance(machineID); ok {
		mi.hub.Unregister(o)
	}
}

// HandleControl scales a normalized 0-1 control value to the target
// channel's native range and forwards it to the driver. When enabled
// is false the driver receives 0 regardless of the requested value.
func (m *Manager) HandleControl(ctx context.Context, machineID, channel string, valueNormalized float64, enabled bool) stream.ControlAckMessage {
	mi, ok := m.GetInstance(machineID)
	if !ok {
		return stream.NewControlAck(channel, valueNormalized, false, enabled, "Machine not connected")
	}

	control, ok := findControl(mi.Machine, channel)
	if !ok {
		return stream.NewControlAck(channel, valueNormalized, false, enabled, fmt.Sprintf("Unknown control channel: %s", channel))
	}

	mi.mu.Lock()
	mi.controlEnabled[channel] = enabled
	mi.mu.Unlock()

	writeValue := valueNormalized
	if !enabled {
		writeValue = 0
	}
	nativeValue := scaleToNative(control, writeValue)

	if err := mi.driver.WriteControl(ctx, channel, nativeValue); err != nil {
		return stream.NewControlAck(channel, valueNormalized, false, enabled, err.Error())
	}

	elapsedMS := mi.elapsedMS()
	mi.sessionMu.Lock()
	mi.session.AddControlChange(elapsedMS, channel, nativeValue)
	mi.sessionMu.Unlock()

	return stream.NewControlAck(channel, valueNormalized, true, enabled, "")
}

// HandleSessionCommand applies a session lifecycle action and returns
// either a stream.StateMessage on success or a stream.ErrorMessage on
// failure. Both encode through their json struct tags, so the caller
// can encode whichever comes back directly onto the wire.
func (m *Manager) HandleSessionCommand(machineID, action, eventType string) any {
	mi, ok := m.GetInstance(machineID)
	if !ok {
		return stream.NewErrorMessage("MACHINE_NOT_FOUND", fmt.Sprintf("Machine '%s' not connected", machineID), false)
	}

	mi.sessionMu.Lock()
	defer mi.sessionMu.Unlock()

	s := mi.session
	prevState := string(s.State())

	var err error
	switch action {
	case stream.ActionStartMonitoring:
		if err = s.StartMonitoring(); err == nil {
			mi.resetClock()
		}
	case stream.ActionStopMonitoring:
		err = s.StopMonitoring()
	case stream.ActionStartRecording:
		if err = s.StartRecording(); err == nil {
			mi.resetClock()
		}
	case stream.ActionStopRecording:
		err = s.StopRecording()
	case stream.ActionMarkEvent:
		if eventType == "" {
			return stream.NewErrorMessage("INVALID_MESSAGE", "event_type required for mark_event", true)
		}
		if err = s.AddEvent(eventType, mi.elapsedMS(), false); err != nil {
			break
		}
		return stream.NewStateMessage(prevState, prevState)
	case stream.ActionReset:
		mi.session = session.New(mi.Machine.Name)
		mi.resetClock()
		return stream.NewStateMessage(string(session.StateIdle), prevState)
	default:
		return stream.NewErrorMessage("INVALID_MESSAGE", fmt.Sprintf("Unknown action: %s", action), true)
	}

	if err != nil {
		return stream.NewErrorMessage("INVALID_STATE_TRANSITION", err.Error(), true)
	}
	return stream.NewStateMessage(string(mi.session.State()), prevState)
}

// GetSyncMessages returns buffered temperature frames with a
// timestamp strictly greater than sinceMS, for reconnect replay.
func (m *Manager) GetSyncMessages(machineID string, sinceMS float64) []stream.TemperatureMessage {
	mi, ok := m.GetInstance(machineID)
	if !ok {
		return nil
	}
	return mi.syncMessages(sinceMS)
}

func (mi *MachineInstance) resetClock() {
	mi.mu.Lock()
	mi.startTime = time.Now()
	mi.prevET = nil
	mi.prevBT = nil
	mi.ringBuffer = nil
	mi.mu.Unlock()
}

func (mi *MachineInstance) elapsedMS() float64 {
	mi.mu.Lock()
	defer mi.mu.Unlock()
	return float64(time.Since(mi.startTime).Milliseconds())
}

func (m *Manager) samplingLoop(ctx context.Context, machineID string, mi *MachineInstance) {
	defer close(mi.done)

	interval := time.Duration(mi.Machine.SamplingIntervalMS) * time.Millisecond
	intervalS := float64(mi.Machine.SamplingIntervalMS) / 1000.0
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !m.sample(ctx, machineID, mi, intervalS) {
				return
			}
		}
	}
}

// sample reads one round of temperatures, feeds the session and ring
// buffer, and broadcasts. It returns false when the sampling loop
// should stop (driver gave up after too many consecutive errors).
func (m *Manager) sample(ctx context.Context, machineID string, mi *MachineInstance, intervalS float64) bool {
	reading, err := mi.driver.ReadTemperatures(ctx)
	if err != nil {
		return m.handleSampleError(mi, err)
	}
	extra, err := mi.driver.ReadExtraChannels(ctx)
	if err != nil {
		return m.handleSampleError(mi, err)
	}

	elapsedMS := mi.elapsedMS()

	mi.mu.Lock()
	etRoR := computeRoR(reading.ET, mi.prevET, intervalS)
	btRoR := computeRoR(reading.BT, mi.prevBT, intervalS)
	mi.prevET = &reading.ET
	mi.prevBT = &reading.BT
	mi.mu.Unlock()

	temp := stream.NewTemperatureMessage(elapsedMS, reading.ET, reading.BT, etRoR, btRoR, extra)

	mi.sessionMu.Lock()
	mi.session.AddReading(elapsedMS, reading.ET, reading.BT)
	mi.sessionMu.Unlock()

	mi.mu.Lock()
	mi.ringBuffer = append(mi.ringBuffer, temp)
	if len(mi.ringBuffer) > ringBufferSize {
		mi.ringBuffer = mi.ringBuffer[len(mi.ringBuffer)-ringBufferSize:]
	}
	mi.consecutiveErrors = 0
	mi.mu.Unlock()

	m.broadcast(mi, temp)
	return true
}

func (m *Manager) handleSampleError(mi *MachineInstance, err error) bool {
	mi.mu.Lock()
	mi.consecutiveErrors++
	n := mi.consecutiveErrors
	mi.mu.Unlock()

	if n >= maxConsecutiveErrors {
		m.broadcast(mi, stream.NewConnectionMessage(stream.DriverError, mi.driver.Info().Name,
			fmt.Sprintf("Lost connection after %d errors", maxConsecutiveErrors)))
		return false
	}

	m.broadcast(mi, stream.NewErrorMessage("DRIVER_READ_FAILED", err.Error(), true))
	return true
}

func (m *Manager) broadcast(mi *MachineInstance, msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	mi.hub.Broadcast(data)
}

func computeRoR(current float64, previous *float64, intervalS float64) float64 {
	if previous == nil || intervalS <= 0 {
		return 0
	}
	return (current - *previous) / (intervalS / 60.0)
}

func findControl(m machine.SavedMachine, channel string) (catalog.ControlConfig, bool) {
	for _, c := range m.Controls {
		if c.ChannelID == channel {
			return c, true
		}
	}
	return catalog.ControlConfig{}, false
}

func scaleToNative(c catalog.ControlConfig, normalized float64) float64 {
	return c.Min + normalized*(c.Max-c.Min)
}
