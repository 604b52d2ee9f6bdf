package log

import (
	"time"

	"github.com/embedded-debugger/emulator-go/pkg/wire"
)

// Event represents a protocol log event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID uniquely identifies the transport connection (UUID).
	ConnectionID string `cbor:"2,keyasint"`

	// Direction indicates message flow.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// Transport names the transport kind ("tcp", "serial", "pipe").
	Transport string `cbor:"6,keyasint,omitempty"`

	// RemoteAddr is the peer address or serial port.
	RemoteAddr string `cbor:"7,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Frame        *FrameEvent        `cbor:"10,keyasint,omitempty"` // Transport layer
	Message      *MessageEvent      `cbor:"11,keyasint,omitempty"` // Wire layer (decoded)
	StateChange  *StateChangeEvent  `cbor:"12,keyasint,omitempty"` // Connection/streaming state
	Notification *NotificationEvent `cbor:"13,keyasint,omitempty"` // Write / debug string
	Error        *ErrorEventData    `cbor:"14,keyasint,omitempty"` // Errors at any layer
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

// Layer indicates which protocol layer captured the event.
type Layer uint8

const (
	// LayerTransport is the byte stream layer.
	LayerTransport Layer = 0
	// LayerWire is the decoded message layer.
	LayerWire Layer = 1
	// LayerEmulator is the dispatcher and sampler.
	LayerEmulator Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerWire:
		return "WIRE"
	case LayerEmulator:
		return "EMULATOR"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage indicates a protocol message or raw frame.
	CategoryMessage Category = 0
	// CategoryNotification indicates a write or debug-string notification.
	CategoryNotification Category = 1
	// CategoryState indicates a state change.
	CategoryState Category = 2
	// CategoryError indicates an error event.
	CategoryError Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryNotification:
		return "NOTIFICATION"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// FrameEvent captures raw bytes at the transport layer.
type FrameEvent struct {
	// Size is the chunk size in bytes.
	Size int `cbor:"1,keyasint"`

	// Data is the raw bytes (may be truncated for large chunks).
	Data []byte `cbor:"2,keyasint,omitempty"`

	// Truncated indicates if Data was truncated.
	Truncated bool `cbor:"3,keyasint,omitempty"`
}

// MaxFrameCapture is the number of bytes of a chunk kept in a FrameEvent.
const MaxFrameCapture = 256

// NewFrameEvent captures data, truncating it to MaxFrameCapture bytes.
func NewFrameEvent(data []byte) *FrameEvent {
	fe := &FrameEvent{Size: len(data)}
	if len(data) > MaxFrameCapture {
		fe.Data = append([]byte(nil), data[:MaxFrameCapture]...)
		fe.Truncated = true
	} else {
		fe.Data = append([]byte(nil), data...)
	}
	return fe
}

// MessageEvent captures a decoded protocol message.
type MessageEvent struct {
	// ControllerID is the addressed node.
	ControllerID uint8 `cbor:"1,keyasint"`

	// MsgID is the client-assigned correlation token.
	MsgID uint8 `cbor:"2,keyasint"`

	// Command is the command code.
	Command wire.Command `cbor:"3,keyasint"`

	// Data is the command payload.
	Data []byte `cbor:"4,keyasint,omitempty"`

	// Invalid is set for frames that failed structural or CRC checks.
	Invalid bool `cbor:"5,keyasint,omitempty"`

	// ProcessingTime is the time from receipt to reply (outgoing replies only).
	// Stored as nanoseconds.
	ProcessingTime *time.Duration `cbor:"6,keyasint,omitempty"`
}

// NewMessageEvent captures m.
func NewMessageEvent(m wire.Message) *MessageEvent {
	return &MessageEvent{
		ControllerID: m.ControllerID,
		MsgID:        m.MsgID,
		Command:      m.Command,
		Data:         append([]byte(nil), m.CommandData...),
		Invalid:      !m.Valid,
	}
}

// StateChangeEvent captures connection and emulator lifecycle events.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	// StateEntityConnection indicates a connection state change.
	StateEntityConnection StateEntity = 0
	// StateEntityStreaming indicates the sampler was started or stopped.
	StateEntityStreaming StateEntity = 1
	// StateEntityMode indicates an emulator mode switch (auto-respond, multi-node).
	StateEntityMode StateEntity = 2
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityConnection:
		return "CONNECTION"
	case StateEntityStreaming:
		return "STREAMING"
	case StateEntityMode:
		return "MODE"
	default:
		return "UNKNOWN"
	}
}

// NotificationEvent captures a notification raised for external observers.
type NotificationEvent struct {
	// Kind of notification.
	Kind NotificationKind `cbor:"1,keyasint"`

	// RegisterID is the written register (write notifications only).
	RegisterID *uint32 `cbor:"2,keyasint,omitempty"`

	// Text is the decoded debug string (debug-string notifications only).
	Text string `cbor:"3,keyasint,omitempty"`
}

// NotificationKind indicates the type of notification.
type NotificationKind uint8

const (
	// NotificationWrite indicates a register was written.
	NotificationWrite NotificationKind = 0
	// NotificationDebugString indicates a debug string was received.
	NotificationDebugString NotificationKind = 1
)

// String returns the notification kind name.
func (k NotificationKind) String() string {
	switch k {
	case NotificationWrite:
		return "WRITE"
	case NotificationDebugString:
		return "DEBUG_STRING"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Code is the error code (if applicable).
	Code *int `cbor:"3,keyasint,omitempty"`

	// Context describes what operation was being performed.
	Context string `cbor:"4,keyasint,omitempty"`
}
