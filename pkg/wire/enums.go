package wire

// Access is the access mode of a register.
type Access uint8

const (
	AccessNone      Access = 0
	AccessRead      Access = 1
	AccessWrite     Access = 2
	AccessReadWrite Access = AccessRead | AccessWrite
)

// CanRead returns true if the register can be read.
func (a Access) CanRead() bool { return a&AccessRead != 0 }

// CanWrite returns true if the register can be written.
func (a Access) CanWrite() bool { return a&AccessWrite != 0 }

// String returns the access mode name.
func (a Access) String() string {
	switch a {
	case AccessRead:
		return "read"
	case AccessWrite:
		return "write"
	case AccessReadWrite:
		return "readwrite"
	default:
		return "none"
	}
}

// Source is the domain a register address was resolved from.
type Source uint8

const (
	SourceHandWrittenOffset Source = 0
	SourceHandWrittenIndex  Source = 1
	SourceSymbolTable       Source = 2
	SourceTemplate          Source = 3
)

// String returns the source name.
func (s Source) String() string {
	switch s {
	case SourceHandWrittenOffset:
		return "handwritten_offset"
	case SourceHandWrittenIndex:
		return "handwritten_index"
	case SourceSymbolTable:
		return "symbol_table"
	case SourceTemplate:
		return "template"
	default:
		return "unknown"
	}
}

// MaxDerefDepth is the deepest pointer chain the control byte can express.
const MaxDerefDepth = 15

// Control byte layout.
const (
	controlAccessMask  = 0x03
	controlSourceShift = 2
	controlSourceMask  = 0x03
	controlDerefShift  = 4
	controlDerefMask   = 0x0F
)

// ControlByte packs access mode, source and dereference depth into the
// access-control byte used by register addressing tuples.
func ControlByte(access Access, source Source, derefDepth uint8) byte {
	return byte(access)&controlAccessMask |
		(byte(source)&controlSourceMask)<<controlSourceShift |
		(derefDepth&controlDerefMask)<<controlDerefShift
}

// ParseControlByte is the inverse of ControlByte.
func ParseControlByte(b byte) (access Access, source Source, derefDepth uint8) {
	access = Access(b & controlAccessMask)
	source = Source((b >> controlSourceShift) & controlSourceMask)
	derefDepth = (b >> controlDerefShift) & controlDerefMask
	return access, source, derefDepth
}

// ChannelMode governs when a channel's register is streamed.
type ChannelMode uint8

const (
	// ChannelOff never streams.
	ChannelOff ChannelMode = 0x00

	// ChannelOnChange streams on every sampler tick.
	ChannelOnChange ChannelMode = 0x01

	// ChannelLowSpeed streams on every full sample cycle.
	ChannelLowSpeed ChannelMode = 0x02

	// ChannelOnce streams only on a one-shot ReadChannelData request.
	ChannelOnce ChannelMode = 0x03
)

// IsValid reports whether m is a defined channel mode.
func (m ChannelMode) IsValid() bool {
	return m <= ChannelOnce
}

// String returns the mode name.
func (m ChannelMode) String() string {
	switch m {
	case ChannelOff:
		return "OFF"
	case ChannelOnChange:
		return "ON_CHANGE"
	case ChannelLowSpeed:
		return "LOW_SPEED"
	case ChannelOnce:
		return "ONCE"
	default:
		return "UNKNOWN"
	}
}

// MaxChannels is the number of streaming channel slots.
const MaxChannels = 16

// TraceLevel is the severity of a trace message.
type TraceLevel uint8

const (
	TraceLevelTrace TraceLevel = iota
	TraceLevelDebug
	TraceLevelInfo
	TraceLevelWarning
	TraceLevelError
	TraceLevelFatal
)

// String returns the level name.
func (l TraceLevel) String() string {
	switch l {
	case TraceLevelTrace:
		return "TRACE"
	case TraceLevelDebug:
		return "DEBUG"
	case TraceLevelInfo:
		return "INFO"
	case TraceLevelWarning:
		return "WARNING"
	case TraceLevelError:
		return "ERROR"
	case TraceLevelFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}
