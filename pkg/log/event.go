package log

import (
	"time"
)

// Event represents a session log event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// SessionID uniquely identifies the control session (UUID).
	SessionID string `cbor:"2,keyasint"`

	// Direction indicates message flow.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// RobotAddr is the robot controller address.
	RobotAddr string `cbor:"6,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Command     *CommandEvent     `cbor:"10,keyasint,omitempty"` // Supervisory/mode commands
	StateChange *StateChangeEvent `cbor:"11,keyasint,omitempty"` // Session/program state
	Frame       *FrameEvent       `cbor:"12,keyasint,omitempty"` // Reverse-channel frames
	Error       *ErrorEventData   `cbor:"13,keyasint,omitempty"` // Errors at any layer
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates an incoming message.
	DirectionIn Direction = 0
	// DirectionOut indicates an outgoing message.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer identifies where an event was captured.
type Layer uint8

const (
	// LayerDashboard is the supervisory line protocol.
	LayerDashboard Layer = 0
	// LayerRTDE is the recipe negotiation channel.
	LayerRTDE Layer = 1
	// LayerReverse is the reverse control channel.
	LayerReverse Layer = 2
	// LayerSession is the session orchestration layer.
	LayerSession Layer = 3
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerDashboard:
		return "DASHBOARD"
	case LayerRTDE:
		return "RTDE"
	case LayerReverse:
		return "REVERSE"
	case LayerSession:
		return "SESSION"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryCommand is a supervisory or mode command.
	CategoryCommand Category = 0
	// CategoryStateChange is a session or program state transition.
	CategoryStateChange Category = 1
	// CategoryFrame is a raw reverse-channel frame.
	CategoryFrame Category = 2
	// CategoryError is an error at any layer.
	CategoryError Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryCommand:
		return "COMMAND"
	case CategoryStateChange:
		return "STATE_CHANGE"
	case CategoryFrame:
		return "FRAME"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// CommandEvent records a discrete command and its outcome.
type CommandEvent struct {
	// Name is the command name, e.g. "stop", "force_mode_start".
	Name string `cbor:"1,keyasint"`

	// Success indicates whether the command was accepted.
	Success bool `cbor:"2,keyasint"`

	// Detail is an optional response line or parameter summary.
	Detail string `cbor:"3,keyasint,omitempty"`
}

// StateChangeEvent records a state transition.
type StateChangeEvent struct {
	// From is the previous state name.
	From string `cbor:"1,keyasint"`

	// To is the new state name.
	To string `cbor:"2,keyasint"`
}

// FrameEvent records a reverse-channel frame.
type FrameEvent struct {
	// MessageType is the frame's message type name.
	MessageType string `cbor:"1,keyasint"`

	// Words is the payload word count.
	Words int `cbor:"2,keyasint"`
}

// ErrorEventData records an error.
type ErrorEventData struct {
	// Message is the error text.
	Message string `cbor:"1,keyasint"`
}
