package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/bits"
)

// Channel data layout.
const (
	// ElapsedSize is the width of the elapsed-time field.
	ElapsedSize = 3

	// ChannelDataHeaderSize is elapsed time plus the channel mask.
	ChannelDataHeaderSize = ElapsedSize + 2

	// ElapsedMask keeps the 24 bits the frame can carry.
	ElapsedMask = 0xFFFFFF
)

// Channel data errors.
var (
	ErrChannelDataShort = errors.New("channel data shorter than header")
	ErrChannelOrder     = errors.New("channel samples not in ascending order")
	ErrChannelRange     = errors.New("channel index out of range")
)

// ChannelSample is the value of one channel in a channel-data frame.
type ChannelSample struct {
	Channel uint8
	Value   []byte
}

// ChannelData is the payload of a ReadChannelData frame.
type ChannelData struct {
	// Elapsed is the sampler clock in milliseconds, truncated to 24 bits.
	Elapsed uint32

	// Mask has bit n set when channel n is included.
	Mask uint16

	// Values holds the concatenated value bytes in ascending channel order.
	Values []byte
}

// NewChannelData builds a frame payload from samples sorted by channel.
func NewChannelData(elapsedMs uint32, samples []ChannelSample) (ChannelData, error) {
	cd := ChannelData{Elapsed: elapsedMs & ElapsedMask}
	prev := -1
	for _, s := range samples {
		if int(s.Channel) >= MaxChannels {
			return ChannelData{}, fmt.Errorf("%w: %d", ErrChannelRange, s.Channel)
		}
		if int(s.Channel) <= prev {
			return ChannelData{}, fmt.Errorf("%w: %d after %d", ErrChannelOrder, s.Channel, prev)
		}
		prev = int(s.Channel)
		cd.Mask |= 1 << s.Channel
		cd.Values = append(cd.Values, s.Value...)
	}
	return cd, nil
}

// Encode returns the wire payload.
func (c ChannelData) Encode() []byte {
	out := make([]byte, ChannelDataHeaderSize, ChannelDataHeaderSize+len(c.Values))
	out[0] = byte(c.Elapsed)
	out[1] = byte(c.Elapsed >> 8)
	out[2] = byte(c.Elapsed >> 16)
	binary.LittleEndian.PutUint16(out[3:5], c.Mask)
	return append(out, c.Values...)
}

// Channels returns the included channel indices in ascending order.
func (c ChannelData) Channels() []uint8 {
	out := make([]uint8, 0, bits.OnesCount16(c.Mask))
	for ch := 0; ch < MaxChannels; ch++ {
		if c.Mask&(1<<ch) != 0 {
			out = append(out, uint8(ch))
		}
	}
	return out
}

// ParseChannelData decodes a ReadChannelData payload.
func ParseChannelData(data []byte) (ChannelData, error) {
	if len(data) < ChannelDataHeaderSize {
		return ChannelData{}, fmt.Errorf("%w: %d bytes", ErrChannelDataShort, len(data))
	}
	cd := ChannelData{
		Elapsed: uint32(data[0]) | uint32(data[1])<<8 | uint32(data[2])<<16,
		Mask:    binary.LittleEndian.Uint16(data[3:5]),
	}
	if len(data) > ChannelDataHeaderSize {
		cd.Values = append([]byte(nil), data[ChannelDataHeaderSize:]...)
	}
	return cd, nil
}
