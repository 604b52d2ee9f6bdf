package wire

import (
	"errors"
	"unicode/utf8"
)

// ErrTraceEmpty indicates a trace payload without a level byte.
var ErrTraceEmpty = errors.New("trace payload is empty")

// EncodeTrace builds the payload of a Trace message.
func EncodeTrace(level TraceLevel, text string) []byte {
	out := make([]byte, 0, 1+len(text))
	out = append(out, byte(level))
	return append(out, text...)
}

// DecodeTrace splits a Trace payload. Invalid UTF-8 is replaced.
func DecodeTrace(data []byte) (TraceLevel, string, error) {
	if len(data) == 0 {
		return 0, "", ErrTraceEmpty
	}
	return TraceLevel(data[0]), DecodeText(data[1:]), nil
}

// DecodeText interprets a payload as UTF-8 text, replacing invalid sequences.
func DecodeText(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	out := make([]rune, 0, len(data))
	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		out = append(out, r)
		data = data[size:]
	}
	return string(out)
}
