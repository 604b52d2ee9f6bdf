package emulator

import (
	"fmt"

	"github.com/embedded-debugger/emulator-go/pkg/wire"
)

// NotificationKind distinguishes notifications raised for observers.
type NotificationKind int

const (
	// NotificationWrite is raised after a WriteRegister changed a register.
	NotificationWrite NotificationKind = iota

	// NotificationDebugString carries the text of a DebugString message.
	NotificationDebugString
)

// String returns the kind name.
func (k NotificationKind) String() string {
	switch k {
	case NotificationWrite:
		return "write"
	case NotificationDebugString:
		return "debug-string"
	default:
		return "unknown"
	}
}

// Notification is an observable event produced by a message.
type Notification struct {
	Kind NotificationKind

	// Message is the inbound message that raised the notification.
	Message wire.Message

	// RegisterID is the written register (NotificationWrite).
	RegisterID uint32

	// Text is the decoded debug string (NotificationDebugString).
	Text string
}

func (n Notification) String() string {
	switch n.Kind {
	case NotificationWrite:
		return fmt.Sprintf("write register=%d value=% X", n.RegisterID, writeValue(n.Message))
	case NotificationDebugString:
		return fmt.Sprintf("debug-string %q", n.Text)
	default:
		return n.Kind.String()
	}
}

// writeValue returns the value bytes of a WriteRegister payload.
func writeValue(m wire.Message) []byte {
	if len(m.CommandData) < writeHeaderSize {
		return nil
	}
	return m.CommandData[writeHeaderSize:]
}
