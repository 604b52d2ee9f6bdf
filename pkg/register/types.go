package register

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// VariableType is the value type tag of a register.
type VariableType uint8

const (
	TypeUnknown VariableType = iota
	TypeBool
	TypeInt8
	TypeInt16
	TypeInt32
	TypeInt64
	TypeUint8
	TypeUint16
	TypeUint32
	TypeUint64
)

var typeNames = []string{
	"unknown", "bool", "int8", "int16", "int32", "int64",
	"uint8", "uint16", "uint32", "uint64",
}

// String returns the type name.
func (t VariableType) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "unknown"
}

// CType returns the C type name the firmware would declare.
func (t VariableType) CType() string {
	switch t {
	case TypeBool:
		return "boolean"
	case TypeUnknown:
		return "unknown"
	default:
		return t.String() + "_t"
	}
}

// Size returns the fixed byte size of the type, 0 for TypeUnknown.
func (t VariableType) Size() int {
	switch t {
	case TypeBool, TypeInt8, TypeUint8:
		return 1
	case TypeInt16, TypeUint16:
		return 2
	case TypeInt32, TypeUint32:
		return 4
	case TypeInt64, TypeUint64:
		return 8
	default:
		return 0
	}
}

// IsInteger reports whether t is a signed or unsigned integer type.
func (t VariableType) IsInteger() bool {
	return t >= TypeInt8 && t <= TypeUint64
}

// IsSigned reports whether t is a signed integer type.
func (t VariableType) IsSigned() bool {
	return t >= TypeInt8 && t <= TypeInt64
}

// KnownTypes lists every type with a fixed size.
func KnownTypes() []VariableType {
	return []VariableType{
		TypeBool, TypeInt8, TypeInt16, TypeInt32, TypeInt64,
		TypeUint8, TypeUint16, TypeUint32, TypeUint64,
	}
}

// ErrUnknownType indicates a type name that is not recognised.
var ErrUnknownType = errors.New("unknown variable type")

// ParseVariableType accepts the Go-style names returned by String as well as
// the C names used in firmware symbol tables.
func ParseVariableType(s string) (VariableType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bool", "boolean":
		return TypeBool, nil
	case "int8", "int8_t", "schar", "sbyte":
		return TypeInt8, nil
	case "int16", "int16_t", "short":
		return TypeInt16, nil
	case "int32", "int32_t", "int":
		return TypeInt32, nil
	case "int64", "int64_t", "long":
		return TypeInt64, nil
	case "uint8", "uint8_t", "uchar", "char", "byte":
		return TypeUint8, nil
	case "uint16", "uint16_t", "ushort":
		return TypeUint16, nil
	case "uint32", "uint32_t", "uint":
		return TypeUint32, nil
	case "uint64", "uint64_t", "ulong":
		return TypeUint64, nil
	case "unknown", "":
		return TypeUnknown, nil
	default:
		return TypeUnknown, fmt.Errorf("%w: %q", ErrUnknownType, s)
	}
}

// DecodeValue interprets little-endian value bytes according to t.
// Values of TypeUnknown, or whose length does not match the type, are
// returned as a byte slice copy.
func DecodeValue(t VariableType, b []byte) any {
	if t.Size() == 0 || len(b) != t.Size() {
		return append([]byte(nil), b...)
	}
	switch t {
	case TypeBool:
		return b[0] != 0
	case TypeInt8:
		return int8(b[0])
	case TypeInt16:
		return int16(binary.LittleEndian.Uint16(b))
	case TypeInt32:
		return int32(binary.LittleEndian.Uint32(b))
	case TypeInt64:
		return int64(binary.LittleEndian.Uint64(b))
	case TypeUint8:
		return b[0]
	case TypeUint16:
		return binary.LittleEndian.Uint16(b)
	case TypeUint32:
		return binary.LittleEndian.Uint32(b)
	default:
		return binary.LittleEndian.Uint64(b)
	}
}

// FormatValue renders value bytes for humans.
func FormatValue(t VariableType, b []byte) string {
	switch v := DecodeValue(t, b).(type) {
	case []byte:
		return hex.EncodeToString(v)
	default:
		return fmt.Sprint(v)
	}
}

// ParseValue converts a textual value into little-endian bytes of the given
// size. Integer and bool types parse decimal (or 0x-prefixed) numbers;
// TypeUnknown expects hex.
func ParseValue(t VariableType, size int, s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	out := make([]byte, size)
	switch {
	case t == TypeBool:
		v, err := strconv.ParseBool(s)
		if err != nil {
			return nil, fmt.Errorf("parse bool %q: %w", s, err)
		}
		if v && size > 0 {
			out[0] = 1
		}
		return out, nil

	case t.IsSigned():
		v, err := strconv.ParseInt(s, 0, size*8)
		if err != nil {
			return nil, fmt.Errorf("parse %s %q: %w", t, s, err)
		}
		putLE(out, uint64(v))
		return out, nil

	case t.IsInteger():
		v, err := strconv.ParseUint(s, 0, size*8)
		if err != nil {
			return nil, fmt.Errorf("parse %s %q: %w", t, s, err)
		}
		putLE(out, v)
		return out, nil

	default:
		raw, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
		if err != nil {
			return nil, fmt.Errorf("parse raw value %q: %w", s, err)
		}
		if len(raw) != size {
			return nil, fmt.Errorf("%w: %d bytes for size %d", ErrSizeMismatch, len(raw), size)
		}
		return raw, nil
	}
}

// EncodeInt stores v as a little-endian integer of size bytes, truncating.
func EncodeInt(v int64, size int) []byte {
	out := make([]byte, size)
	putLE(out, uint64(v))
	return out
}

// IncrementLE returns b plus one, interpreted as a little-endian integer of
// len(b) bytes. Overflow wraps, matching two's complement for signed types.
func IncrementLE(b []byte) []byte {
	out := append([]byte(nil), b...)
	for i := range out {
		out[i]++
		if out[i] != 0 {
			break
		}
	}
	return out
}

func putLE(dst []byte, v uint64) {
	for i := range dst {
		dst[i] = byte(v)
		v >>= 8
	}
}
