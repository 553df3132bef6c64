// Package stream defines the live streaming wire contract between the
// gateway and connected observers, and the per-machine broadcast hub
// that fans frames out over WebSocket.
package stream

// Server -> observer frame types.
const (
	TypeTemperature = "temperature"
	TypeEvent       = "event"
	TypeState       = "state"
	TypeAlarm       = "alarm" // reserved, no sender yet
	TypeReplay      = "replay" // reserved, no sender yet
	TypeControlAck  = "control_ack"
	TypeError       = "error"
	TypeConnection  = "connection"
)

// Observer -> server frame types.
const (
	TypeControl       = "control"
	TypeCommand       = "command"
	TypeReplayControl = "replay_control" // reserved, no handler yet
)

// Session command actions, carried on a "command" frame.
const (
	ActionStartMonitoring = "start_monitoring"
	ActionStopMonitoring  = "stop_monitoring"
	ActionStartRecording  = "start_recording"
	ActionStopRecording   = "stop_recording"
	ActionMarkEvent       = "mark_event"
	ActionReset           = "reset"
	ActionSync            = "sync"
)

// Driver connection states, mirrored from internal/driver.ConnectionState
// so wire messages don't need to import the driver package.
const (
	DriverDisconnected = "disconnected"
	DriverConnecting   = "connecting"
	DriverConnected    = "connected"
	DriverError        = "error"
)

// TemperatureMessage is the periodic reading pushed at sampling interval.
type TemperatureMessage struct {
	Type          string             `json:"type"`
	TimestampMS   float64            `json:"timestamp_ms"`
	ET            float64            `json:"et"`
	BT            float64            `json:"bt"`
	ETRoR         float64            `json:"et_ror"`
	BTRoR         float64            `json:"bt_ror"`
	ExtraChannels map[string]float64 `json:"extra_channels"`
}

// NewTemperatureMessage builds a TemperatureMessage with its type tag set.
func NewTemperatureMessage(timestampMS, et, bt, etRoR, btRoR float64, extra map[string]float64) TemperatureMessage {
	if extra == nil {
		extra = map[string]float64{}
	}
	return TemperatureMessage{
		Type: TypeTemperature, TimestampMS: timestampMS,
		ET: et, BT: bt, ETRoR: etRoR, BTRoR: btRoR,
		ExtraChannels: extra,
	}
}

// EventMessage is a roast event notification (manual or auto-detected).
type EventMessage struct {
	Type         string  `json:"type"`
	EventType    string  `json:"event_type"`
	TimestampMS  float64 `json:"timestamp_ms"`
	AutoDetected bool    `json:"auto_detected"`
	BTAtEvent    float64 `json:"bt_at_event"`
	ETAtEvent    float64 `json:"et_at_event"`
}

func NewEventMessage(eventType string, timestampMS float64, autoDetected bool, bt, et float64) EventMessage {
	return EventMessage{
		Type: TypeEvent, EventType: eventType, TimestampMS: timestampMS,
		AutoDetected: autoDetected, BTAtEvent: bt, ETAtEvent: et,
	}
}

// StateMessage is a session lifecycle transition notification.
type StateMessage struct {
	Type         string `json:"type"`
	State        string `json:"state"`
	PreviousState string `json:"previous_state"`
}

func NewStateMessage(state, previous string) StateMessage {
	return StateMessage{Type: TypeState, State: state, PreviousState: previous}
}

// ControlAckMessage acknowledges (or rejects) a control command.
type ControlAckMessage struct {
	Type    string  `json:"type"`
	Channel string  `json:"channel"`
	Value   float64 `json:"value"`
	Applied bool    `json:"applied"`
	Enabled bool    `json:"enabled"`
	Message string  `json:"message,omitempty"`
}

func NewControlAck(channel string, value float64, applied, enabled bool, message string) ControlAckMessage {
	return ControlAckMessage{
		Type: TypeControlAck, Channel: channel, Value: value,
		Applied: applied, Enabled: enabled, Message: message,
	}
}

// ErrorMessage is a non-fatal error notification.
type ErrorMessage struct {
	Type        string `json:"type"`
	Code        string `json:"code"`
	Message     string `json:"message"`
	Recoverable bool   `json:"recoverable"`
}

func NewErrorMessage(code, message string, recoverable bool) ErrorMessage {
	return ErrorMessage{Type: TypeError, Code: code, Message: message, Recoverable: recoverable}
}

// ConnectionMessage reports a driver connection state change.
type ConnectionMessage struct {
	Type       string `json:"type"`
	DriverState string `json:"driver_state"`
	DriverName string `json:"driver_name,omitempty"`
	Message    string `json:"message,omitempty"`
}

func NewConnectionMessage(state, driverName, message string) ConnectionMessage {
	return ConnectionMessage{Type: TypeConnection, DriverState: state, DriverName: driverName, Message: message}
}

// ControlCommand is an observer request to move a control slider.
// Value is normalized 0.0-1.0; the manager scales it to the control's
// native range before forwarding to the driver.
type ControlCommand struct {
	Type    string  `json:"type"`
	Channel string  `json:"channel"`
	Value   float64 `json:"value"`
	Enabled bool    `json:"enabled"`
}

// SessionCommand is an observer request to change session lifecycle
// state or mark a roast event.
type SessionCommand struct {
	Type            string  `json:"type"`
	Action          string  `json:"action"`
	EventType       string  `json:"event_type,omitempty"`
	LastTimestampMS *float64 `json:"last_timestamp_ms,omitempty"`
}
