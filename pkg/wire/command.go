package wire

import "fmt"

// Command is the command code carried in every message.
type Command uint8

const (
	CmdGetVersion            Command = 'V'
	CmdGetInfo               Command = 'I'
	CmdEmbeddedConfiguration Command = 'E'
	CmdConfigChannel         Command = 'C'
	CmdDebugString           Command = 'S'
	CmdWriteRegister         Command = 'W'
	CmdQueryRegister         Command = 'Q'
	CmdDecimation            Command = 'D'
	CmdResetTime             Command = 'T'
	CmdReadChannelData       Command = 'R'

	// CmdTrace carries diagnostic text from the controller to the client.
	CmdTrace Command = 'L'
)

// IsKnown reports whether c is a command defined by the protocol.
func (c Command) IsKnown() bool {
	switch c {
	case CmdGetVersion, CmdGetInfo, CmdEmbeddedConfiguration, CmdConfigChannel,
		CmdDebugString, CmdWriteRegister, CmdQueryRegister, CmdDecimation,
		CmdResetTime, CmdReadChannelData, CmdTrace:
		return true
	}
	return false
}

// String returns the command name.
func (c Command) String() string {
	switch c {
	case CmdGetVersion:
		return "GetVersion"
	case CmdGetInfo:
		return "GetInfo"
	case CmdEmbeddedConfiguration:
		return "EmbeddedConfiguration"
	case CmdConfigChannel:
		return "ConfigChannel"
	case CmdDebugString:
		return "DebugString"
	case CmdWriteRegister:
		return "WriteRegister"
	case CmdQueryRegister:
		return "QueryRegister"
	case CmdDecimation:
		return "Decimation"
	case CmdResetTime:
		return "ResetTime"
	case CmdReadChannelData:
		return "ReadChannelData"
	case CmdTrace:
		return "Trace"
	default:
		return fmt.Sprintf("Command(0x%02X)", uint8(c))
	}
}
