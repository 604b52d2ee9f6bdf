package wire

import (
	"bytes"
	"errors"
	"fmt"
)

// Framing bytes.
const (
	STX byte = 0x55
	ETX byte = 0xAA
	ESC byte = 0x66
)

// Framing constants.
const (
	// HeaderSize is ControllerID, MsgID and Command.
	HeaderSize = 3

	// CRCSize is the size of the trailing checksum.
	CRCSize = 1

	// MaxFrameSize bounds an unterminated frame kept as remainder (escaped bytes).
	MaxFrameSize = 4096
)

// Framing errors. They are reported through Decoder.OnError; Decode itself
// never fails and marks the affected message invalid instead.
var (
	ErrFrameTooShort    = errors.New("frame too short")
	ErrBadChecksum      = errors.New("checksum mismatch")
	ErrDanglingEscape   = errors.New("escape byte at end of frame")
	ErrFrameInterrupted = errors.New("frame interrupted by start byte")
	ErrFrameTooLarge    = errors.New("unterminated frame exceeds maximum size")
)

// Encode produces one complete frame for m. The Valid flag is not encoded.
func Encode(m Message) []byte {
	body := make([]byte, 0, HeaderSize+len(m.CommandData)+CRCSize)
	body = append(body, m.ControllerID, m.MsgID, byte(m.Command))
	body = append(body, m.CommandData...)
	body = append(body, CRC8(body))

	out := make([]byte, 0, len(body)+len(body)/4+2)
	out = append(out, STX)
	for _, b := range body {
		if needsEscape(b) {
			out = append(out, ESC, b^ESC)
			continue
		}
		out = append(out, b)
	}
	return append(out, ETX)
}

// Decode parses every complete frame in remainder followed by buf.
//
// It returns the decoded messages in stream order, invalid ones included,
// and the trailing bytes of an unfinished frame that must be passed as
// remainder on the next call. Bytes outside of frames are discarded.
func Decode(buf, remainder []byte) ([]Message, []byte) {
	return decode(buf, remainder, nil)
}

// Decoder carries the remainder between successive chunks of one stream.
// A Decoder is not safe for concurrent use.
type Decoder struct {
	remainder []byte

	// OnError, if set, is called for every frame that decodes as invalid
	// and for dropped oversize remainders.
	OnError func(err error, frame []byte)
}

// Feed decodes chunk together with the remainder of previous calls.
func (d *Decoder) Feed(chunk []byte) []Message {
	var msgs []Message
	msgs, d.remainder = decode(chunk, d.remainder, d.OnError)
	return msgs
}

// Remainder returns the bytes of the pending partial frame.
func (d *Decoder) Remainder() []byte {
	return d.remainder
}

// Reset discards any pending partial frame.
func (d *Decoder) Reset() {
	d.remainder = nil
}

func decode(buf, remainder []byte, onErr func(error, []byte)) ([]Message, []byte) {
	data := make([]byte, 0, len(remainder)+len(buf))
	data = append(data, remainder...)
	data = append(data, buf...)

	var msgs []Message
	pos := 0
	for {
		start := bytes.IndexByte(data[pos:], STX)
		if start < 0 {
			return msgs, nil
		}
		start += pos

		end := start + 1
		for end < len(data) && data[end] != ETX && data[end] != STX {
			end++
		}

		if end == len(data) {
			rest := data[start:]
			if len(rest) > MaxFrameSize {
				report(onErr, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(rest)), rest)
				return msgs, nil
			}
			return msgs, append([]byte(nil), rest...)
		}

		frame := data[start : end+1]
		if data[end] == STX {
			msg, _ := parseBody(data[start+1 : end])
			msg.Valid = false
			report(onErr, ErrFrameInterrupted, data[start:end])
			msgs = append(msgs, msg)
			pos = end
			continue
		}

		msg, err := parseBody(data[start+1 : end])
		if err != nil {
			report(onErr, err, frame)
		}
		msgs = append(msgs, msg)
		pos = end + 1
	}
}

// parseBody unescapes and validates the bytes between STX and ETX.
// Whatever header fields are present are filled in even on error.
func parseBody(escaped []byte) (Message, error) {
	body := make([]byte, 0, len(escaped))
	var err error
	for i := 0; i < len(escaped); i++ {
		b := escaped[i]
		if b == ESC {
			if i+1 >= len(escaped) {
				err = ErrDanglingEscape
				break
			}
			i++
			b = escaped[i] ^ ESC
		}
		body = append(body, b)
	}

	var msg Message
	if len(body) > 0 {
		msg.ControllerID = body[0]
	}
	if len(body) > 1 {
		msg.MsgID = body[1]
	}
	if len(body) > 2 {
		msg.Command = Command(body[2])
	}
	if err != nil {
		return msg, err
	}
	if len(body) < HeaderSize+CRCSize {
		return msg, fmt.Errorf("%w: %d bytes", ErrFrameTooShort, len(body))
	}

	payload := body[:len(body)-CRCSize]
	if len(payload) > HeaderSize {
		msg.CommandData = append([]byte(nil), payload[HeaderSize:]...)
	}
	if got, want := body[len(body)-1], CRC8(payload); got != want {
		return msg, fmt.Errorf("%w: got 0x%02X, want 0x%02X", ErrBadChecksum, got, want)
	}
	msg.Valid = true
	return msg, nil
}

func needsEscape(b byte) bool {
	return b == STX || b == ETX || b == ESC
}

func report(onErr func(error, []byte), err error, frame []byte) {
	if onErr != nil {
		onErr(err, frame)
	}
}
