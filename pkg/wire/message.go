package wire

import (
	"bytes"
	"fmt"
)

// Controller addressing.
const (
	// ControllerPrimary is the node the emulator answers for by default.
	ControllerPrimary uint8 = 0x01

	// ControllerBroadcast addresses every simulated node.
	ControllerBroadcast uint8 = 0xFF
)

// Message is one decoded protocol message.
//
// Messages are values: the codec never retains CommandData after returning
// it, and handlers must not modify the payload of a message they did not build.
type Message struct {
	ControllerID uint8
	MsgID        uint8
	Command      Command
	CommandData  []byte

	// Valid is set by Decode when the frame was well formed and the CRC matched.
	Valid bool
}

// NewMessage builds a valid message. A nil or empty payload is stored as nil.
func NewMessage(controllerID, msgID uint8, cmd Command, data []byte) Message {
	if len(data) == 0 {
		data = nil
	}
	return Message{
		ControllerID: controllerID,
		MsgID:        msgID,
		Command:      cmd,
		CommandData:  data,
		Valid:        true,
	}
}

// IsBroadcast reports whether the message addresses all nodes.
func (m Message) IsBroadcast() bool {
	return m.ControllerID == ControllerBroadcast
}

// Equal reports whether both messages carry the same fields.
func (m Message) Equal(o Message) bool {
	return m.ControllerID == o.ControllerID &&
		m.MsgID == o.MsgID &&
		m.Command == o.Command &&
		m.Valid == o.Valid &&
		bytes.Equal(m.CommandData, o.CommandData)
}

// String returns a compact representation for logs.
func (m Message) String() string {
	valid := ""
	if !m.Valid {
		valid = " INVALID"
	}
	return fmt.Sprintf("[node=0x%02X id=%d %s data=% X%s]",
		m.ControllerID, m.MsgID, m.Command, m.CommandData, valid)
}
