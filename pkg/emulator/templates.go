package emulator

import (
	"encoding/binary"

	"github.com/embedded-debugger/emulator-go/pkg/register"
	"github.com/embedded-debugger/emulator-go/pkg/version"
	"github.com/embedded-debugger/emulator-go/pkg/wire"
)

// Identity is the session information reported by GetVersion.
type Identity struct {
	CpuName            string
	SerialNumber       string
	ProtocolVersion    version.Version
	ApplicationVersion version.Version
}

// byteOrderLittleEndian is the byte order marker of the info reply.
const byteOrderLittleEndian = 0x00

// configChannelReplySize is the payload size of a zeroed ConfigChannel reply.
const configChannelReplySize = 8

// writeAckStatus is the only status a WriteRegister acknowledgement carries.
const writeAckStatus = 0x00

func ackMessage(m wire.Message) wire.Message {
	return wire.NewMessage(m.ControllerID, m.MsgID, m.Command, nil)
}

func writeAckMessage(m wire.Message) wire.Message {
	return wire.NewMessage(m.ControllerID, m.MsgID, m.Command, []byte{writeAckStatus})
}

func zeroedConfigChannel(m wire.Message) wire.Message {
	return wire.NewMessage(m.ControllerID, m.MsgID, wire.CmdConfigChannel, make([]byte, configChannelReplySize))
}

// versionMessage answers GetVersion for one node.
func versionMessage(msgID, node uint8, id Identity) wire.Message {
	data := make([]byte, 0, 2*version.Size+2+len(id.CpuName)+len(id.SerialNumber))
	data = append(data, id.ProtocolVersion.Bytes()...)
	data = append(data, id.ApplicationVersion.Bytes()...)
	data = appendShortString(data, id.CpuName)
	data = appendShortString(data, id.SerialNumber)
	return wire.NewMessage(node, msgID, wire.CmdGetVersion, data)
}

// infoMessage lists the platform's byte order and the size of every type.
func infoMessage(msgID, node uint8) wire.Message {
	types := register.KnownTypes()
	data := make([]byte, 0, 1+2*len(types))
	data = append(data, byteOrderLittleEndian)
	for _, t := range types {
		data = append(data, byte(t), byte(t.Size()))
	}
	return wire.NewMessage(node, msgID, wire.CmdGetInfo, data)
}

// configurationMessages dumps registers from index start onwards, one
// message each, followed by an empty terminator.
func configurationMessages(msgID, node uint8, regs []*register.Register, start uint32) []wire.Message {
	var out []wire.Message
	for i := int(start); i >= 0 && i < len(regs); i++ {
		out = append(out, wire.NewMessage(node, msgID, wire.CmdEmbeddedConfiguration, registerEntry(uint32(i), regs[i])))
	}
	return append(out, wire.NewMessage(node, msgID, wire.CmdEmbeddedConfiguration, nil))
}

func registerEntry(index uint32, r *register.Register) []byte {
	typeName := r.TypeName
	if typeName == "" {
		typeName = r.Type.CType()
	}
	data := make([]byte, 12, 12+5+len(r.Name)+len(typeName))
	binary.LittleEndian.PutUint32(data[0:4], index)
	binary.LittleEndian.PutUint32(data[4:8], r.ID)
	binary.LittleEndian.PutUint32(data[8:12], r.Offset)
	data = append(data, r.ControlByte(), byte(r.Size), byte(r.Type))
	data = appendShortString(data, r.Name)
	return appendShortString(data, typeName)
}

// channelBindingMessage reports a channel's mode and bound register.
func channelBindingMessage(m wire.Message, r *register.Register) wire.Message {
	data := make([]byte, 1, configChannelReplySize-1)
	data[0] = byte(r.Mode())
	data = binary.LittleEndian.AppendUint32(data, r.Offset)
	data = append(data, r.ControlByte(), byte(r.Size))
	return wire.NewMessage(m.ControllerID, m.MsgID, wire.CmdConfigChannel, data)
}

// traceMessage is an unsolicited trace addressed to node.
func traceMessage(node uint8, level wire.TraceLevel, text string) wire.Message {
	return wire.NewMessage(node, 0, wire.CmdTrace, wire.EncodeTrace(level, text))
}

// channelDataMessage wraps a channel-data payload.
func channelDataMessage(node, msgID uint8, cd wire.ChannelData) wire.Message {
	return wire.NewMessage(node, msgID, wire.CmdReadChannelData, cd.Encode())
}

// appendShortString appends a length-prefixed string, truncated to 255 bytes.
func appendShortString(dst []byte, s string) []byte {
	if len(s) > 0xFF {
		s = s[:0xFF]
	}
	dst = append(dst, byte(len(s)))
	return append(dst, s...)
}
