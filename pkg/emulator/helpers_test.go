package emulator

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/embedded-debugger/emulator-go/pkg/register"
	"github.com/embedded-debugger/emulator-go/pkg/version"
	"github.com/embedded-debugger/emulator-go/pkg/wire"
)

var testIdentity = Identity{
	CpuName:            "TestCPU",
	SerialNumber:       "SN1",
	ProtocolVersion:    version.MustParse("0.0.7"),
	ApplicationVersion: version.MustParse("1.2.3"),
}

func ch(n uint8) *uint8 { return &n }

func def(id uint32, name string, t register.VariableType, offset uint32, access wire.Access) register.Definition {
	return register.Definition{
		Descriptor: register.Descriptor{
			ID:       id,
			Name:     name,
			FullName: name,
			Offset:   offset,
			Size:     t.Size(),
			Access:   access,
			Type:     t,
		},
	}
}

// newTestStore returns:
//
//	1  Sine     uint8  0x00 read   channel 0 on-change
//	2  Setpoint int16  0x10 write
//	3  Gain     uint16 0x12 rw     initial 100
//	7  Counter  uint16 0x20 read
//	13 Slow     uint32 0x2C read   channel 1 low-speed
//	20 Small    int8   0x40 read
func newTestStore(t *testing.T) *register.Store {
	t.Helper()
	sine := def(1, "Sine", register.TypeUint8, 0x00, wire.AccessRead)
	sine.Channel, sine.Mode = ch(0), wire.ChannelOnChange
	gain := def(3, "Gain", register.TypeUint16, 0x12, wire.AccessReadWrite)
	gain.Initial = []byte{100, 0}
	slow := def(13, "Slow", register.TypeUint32, 0x2C, wire.AccessRead)
	slow.Channel, slow.Mode = ch(1), wire.ChannelLowSpeed

	store, err := register.NewStore(
		sine,
		def(2, "Setpoint", register.TypeInt16, 0x10, wire.AccessWrite),
		gain,
		def(7, "Counter", register.TypeUint16, 0x20, wire.AccessRead),
		slow,
		def(20, "Small", register.TypeInt8, 0x40, wire.AccessRead),
	)
	require.NoError(t, err)
	return store
}

func mustRegister(t *testing.T, s *register.Store, id uint32) *register.Register {
	t.Helper()
	r, ok := s.ByID(id)
	require.True(t, ok, "register %d", id)
	return r
}

// addr builds the offset/ctrl/size prefix of register payloads.
func addr(offset uint32, ctrl byte, size byte) []byte {
	return []byte{byte(offset), byte(offset >> 8), byte(offset >> 16), byte(offset >> 24), ctrl, size}
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
