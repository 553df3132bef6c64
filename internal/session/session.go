// Package session implements the roast lifecycle state machine:
// idle -> monitoring -> recording -> finished, plus the BT-break and
// turning-point auto-detection algorithms used to flag roast events.
package session

import "fmt"

// State is a roast session's lifecycle phase.
type State string

const (
	StateIdle       State = "idle"
	StateMonitoring State = "monitoring"
	StateRecording  State = "recording"
	StateFinished   State = "finished"
)

// ErrInvalidTransition is returned by any state-changing method called
// from a phase that doesn't permit it.
var ErrInvalidTransition = fmt.Errorf("session: invalid transition")

// TemperaturePoint is one recorded reading, elapsed-time-stamped from
// the start of recording.
type TemperaturePoint struct {
	TimestampMS float64
	ET, BT      float64
}

// Event is a roast event (CHARGE, DRY, FCs, FCe, SCs, DROP, COOL, ...).
type Event struct {
	EventType    string
	TimestampMS  float64
	AutoDetected bool
}

// ControlPoint is one recorded control-value change.
type ControlPoint struct {
	TimestampMS float64
	Value       float64
}

// Profile is the exported snapshot of a finished session.
type Profile struct {
	Name     string
	Machine  string
	Temperatures []TemperaturePoint
	Events       []Event
	Controls     map[string][]ControlPoint
}

// Session tracks one roast's lifecycle.
type Session struct {
	machineName string
	state       State

	data     []TemperaturePoint
	events   []Event
	controls map[string][]ControlPoint
}

// New creates an idle session for the named machine.
func New(machineName string) *Session {
	return &Session{
		machineName: machineName,
		state:       StateIdle,
		controls:    make(map[string][]ControlPoint),
	}
}

func (s *Session) State() State { return s.state }

// DataPoints returns the number of recorded temperature points.
func (s *Session) DataPoints() int { return len(s.data) }

// StartMonitoring begins reading temperatures without recording them.
// Valid from Idle or Finished.
func (s *Session) StartMonitoring() error {
	if s.state != StateIdle && s.state != StateFinished {
		return fmt.Errorf("%w: cannot start monitoring from %s", ErrInvalidTransition, s.state)
	}
	s.state = StateMonitoring
	return nil
}

// StartRecording begins recording a roast, clearing any prior session
// data. Valid only from Monitoring.
func (s *Session) StartRecording() error {
	if s.state != StateMonitoring {
		return fmt.Errorf("%w: cannot start recording from %s", ErrInvalidTransition, s.state)
	}
	s.state = StateRecording
	s.data = nil
	s.events = nil
	s.controls = make(map[string][]ControlPoint)
	return nil
}

// StopMonitoring returns to Idle. Valid only from Monitoring.
func (s *Session) StopMonitoring() error {
	if s.state != StateMonitoring {
		return fmt.Errorf("%w: cannot stop monitoring from %s", ErrInvalidTransition, s.state)
	}
	s.state = StateIdle
	return nil
}

// StopRecording finalizes the roast. Valid only from Recording.
func (s *Session) StopRecording() error {
	if s.state != StateRecording {
		return fmt.Errorf("%w: cannot stop recording from %s", ErrInvalidTransition, s.state)
	}
	s.state = StateFinished
	return nil
}

// AddReading records a temperature sample. Only stored while
// Recording; accepted but dropped while Monitoring (live display only).
func (s *Session) AddReading(timestampMS, et, bt float64) {
	if s.state == StateRecording {
		s.data = append(s.data, TemperaturePoint{TimestampMS: timestampMS, ET: et, BT: bt})
	}
}

// AddControlChange records a control-value change. The log records
// the native (post-scaling) value, not the raw slider position.
// Accepted while Monitoring or Recording; StartRecording clears the
// log, so changes made while Monitoring do not reach the profile of
// the recording that follows.
func (s *Session) AddControlChange(timestampMS float64, channel string, nativeValue float64) {
	if s.state == StateMonitoring || s.state == StateRecording {
		s.controls[channel] = append(s.controls[channel], ControlPoint{TimestampMS: timestampMS, Value: nativeValue})
	}
}

// AddEvent records a roast event. Valid only while Recording.
func (s *Session) AddEvent(eventType string, timestampMS float64, autoDetected bool) error {
	if s.state != StateRecording {
		return fmt.Errorf("%w: cannot add events in %s state", ErrInvalidTransition, s.state)
	}
	s.events = append(s.events, Event{EventType: eventType, TimestampMS: timestampMS, AutoDetected: autoDetected})
	return nil
}

// ToProfile exports the recorded session. Requires at least one
// recorded temperature point.
func (s *Session) ToProfile(name string) (Profile, error) {
	if len(s.data) == 0 {
		return Profile{}, fmt.Errorf("session: no data recorded, cannot create profile")
	}
	controls := make(map[string][]ControlPoint, len(s.controls))
	for ch, pts := range s.controls {
		cp := make([]ControlPoint, len(pts))
		copy(cp, pts)
		controls[ch] = cp
	}
	return Profile{
		Name:         name,
		Machine:      s.machineName,
		Temperatures: append([]TemperaturePoint(nil), s.data...),
		Events:       append([]Event(nil), s.events...),
		Controls:     controls,
	}, nil
}

// CheckBTBreak reports whether the last six BT samples (oldest first)
// show the gradient reversal characteristic of a CHARGE or DROP point.
//
// dpreDpostDiff is a lower-bound guard: if the pre/post gradients
// differ by less than this amount the break is rejected as noise, not
// a real reversal.
func CheckBTBreak(samples [6]float64, d, offset, dpreDpostDiff float64) bool {
	s0, s1, s2, s3, s4, s5 := samples[0], samples[1], samples[2], samples[3], samples[4], samples[5]

	dpre := ((s1 - s0) + (s2 - s1)) / 2.0
	dpost := ((s4 - s3) + (s5 - s4)) / 2.0

	if abs(dpre-dpost) < dpreDpostDiff {
		return false
	}

	fallingToRising := (dpre-d-offset) > 0 && 0 > (dpost+d+offset)
	risingToFalling := (dpre+d+offset) < 0 && 0 < (dpost-d-offset)
	return fallingToRising || risingToFalling
}

// FindTurningPoint returns the index of the minimum BT value at or
// after chargeIndex, or -1 if chargeIndex is out of range.
func FindTurningPoint(btValues []float64, chargeIndex int) int {
	if chargeIndex < 0 || chargeIndex >= len(btValues) {
		return -1
	}
	search := btValues[chargeIndex:]
	minIdx := 0
	for i, v := range search {
		if v < search[minIdx] {
			minIdx = i
		}
	}
	return chargeIndex + minIdx
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
