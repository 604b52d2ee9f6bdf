package emulator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/embedded-debugger/emulator-go/pkg/register"
	"github.com/embedded-debugger/emulator-go/pkg/wire"
)

var autoState = State{AutoRespond: true, NodeCount: 1}

func newTestDispatcher(t *testing.T) (*Dispatcher, *register.Store) {
	t.Helper()
	store := newTestStore(t)
	return NewDispatcher(store, testIdentity, nil), store
}

func TestDispatchInvalidMessage(t *testing.T) {
	d, _ := newTestDispatcher(t)
	m := wire.NewMessage(0x01, 1, wire.CmdGetVersion, nil)
	m.Valid = false

	res := d.Dispatch(m, autoState)
	assert.Empty(t, res.Replies)
	assert.Empty(t, res.Notifications)
	assert.Nil(t, res.Streaming)
}

func TestDispatchUnknownCommand(t *testing.T) {
	d, _ := newTestDispatcher(t)
	res := d.Dispatch(wire.NewMessage(0x01, 1, wire.Command('Z'), nil), autoState)
	assert.Empty(t, res.Replies)
}

func TestDispatchAutoRespondOff(t *testing.T) {
	d, store := newTestDispatcher(t)
	payload := append(addr(0x10, 0x02, 2), 0x34, 0x12)

	res := d.Dispatch(wire.NewMessage(0x01, 9, wire.CmdWriteRegister, payload), State{})

	require.Len(t, res.Replies, 1)
	assert.Equal(t, wire.NewMessage(0x01, 9, wire.CmdWriteRegister, nil), res.Replies[0])
	assert.Empty(t, res.Notifications)
	assert.Equal(t, []byte{0, 0}, mustRegister(t, store, 2).Value())
}

func TestDispatchDebugStringAutoRespondOff(t *testing.T) {
	d, _ := newTestDispatcher(t)

	res := d.Dispatch(wire.NewMessage(0x01, 1, wire.CmdDebugString, []byte("hi")), State{})

	require.Len(t, res.Replies, 1)
	assert.Equal(t, wire.NewMessage(0x01, 1, wire.CmdDebugString, nil), res.Replies[0])
	require.Len(t, res.Notifications, 1)
	assert.Equal(t, NotificationDebugString, res.Notifications[0].Kind)
	assert.Equal(t, "hi", res.Notifications[0].Text)
}

func TestGetVersion(t *testing.T) {
	d, _ := newTestDispatcher(t)
	res := d.Dispatch(wire.NewMessage(0x01, 4, wire.CmdGetVersion, nil), autoState)

	want := []byte{0, 0, 7, 0, 1, 2, 3, 0, 7}
	want = append(want, "TestCPU"...)
	want = append(want, 3)
	want = append(want, "SN1"...)

	require.Len(t, res.Replies, 1)
	assert.Equal(t, wire.NewMessage(0x01, 4, wire.CmdGetVersion, want), res.Replies[0])
}

func TestGetVersionBroadcast(t *testing.T) {
	d, _ := newTestDispatcher(t)
	m := wire.NewMessage(wire.ControllerBroadcast, 5, wire.CmdGetVersion, nil)

	res := d.Dispatch(m, State{AutoRespond: true, NodeCount: 3})
	require.Len(t, res.Replies, 4)
	for i, want := range []uint8{0, 1, 2, 0x01} {
		assert.Equal(t, want, res.Replies[i].ControllerID)
		assert.Equal(t, uint8(5), res.Replies[i].MsgID)
		assert.Equal(t, wire.CmdGetVersion, res.Replies[i].Command)
	}

	res = d.Dispatch(m, State{AutoRespond: true, NodeCount: 2, EmitTraces: true})
	require.Len(t, res.Replies, 5)
	cmds := make([]wire.Command, len(res.Replies))
	for i, r := range res.Replies {
		cmds[i] = r.Command
	}
	assert.Equal(t, []wire.Command{
		wire.CmdTrace, wire.CmdGetVersion,
		wire.CmdTrace, wire.CmdGetVersion,
		wire.CmdGetVersion,
	}, cmds)
	level, text, err := wire.DecodeTrace(res.Replies[0].CommandData)
	require.NoError(t, err)
	assert.Equal(t, wire.TraceLevelFatal, level)
	assert.Equal(t, "Version has been called", text)
}

func TestGetInfo(t *testing.T) {
	d, _ := newTestDispatcher(t)
	res := d.Dispatch(wire.NewMessage(0x02, 6, wire.CmdGetInfo, nil), autoState)

	require.Len(t, res.Replies, 1)
	r := res.Replies[0]
	assert.Equal(t, uint8(0x02), r.ControllerID)
	require.Len(t, r.CommandData, 1+2*len(register.KnownTypes()))
	assert.Equal(t, byte(0x00), r.CommandData[0])
	assert.Equal(t, []byte{byte(register.TypeBool), 1}, r.CommandData[1:3])
}

func TestEmbeddedConfiguration(t *testing.T) {
	d, store := newTestDispatcher(t)

	t.Run("full dump", func(t *testing.T) {
		res := d.Dispatch(wire.NewMessage(0x01, 7, wire.CmdEmbeddedConfiguration, nil), autoState)
		require.Len(t, res.Replies, store.Len()+1)
		assert.Empty(t, res.Replies[len(res.Replies)-1].CommandData)

		first := res.Replies[0].CommandData
		assert.Equal(t, []byte{0, 0, 0, 0}, first[0:4])  // index
		assert.Equal(t, []byte{1, 0, 0, 0}, first[4:8])  // id
		assert.Equal(t, []byte{0, 0, 0, 0}, first[8:12]) // offset
		assert.Equal(t, byte(0x01), first[12])           // ctrl: read
		assert.Equal(t, byte(1), first[13])              // size
		assert.Equal(t, byte(register.TypeUint8), first[14])
		assert.Equal(t, byte(4), first[15])
		assert.Equal(t, "Sine", string(first[16:20]))
		assert.Equal(t, byte(len("uint8_t")), first[20])
		assert.Equal(t, "uint8_t", string(first[21:]))
	})

	t.Run("paged", func(t *testing.T) {
		res := d.Dispatch(wire.NewMessage(0x01, 7, wire.CmdEmbeddedConfiguration, []byte{2, 0, 0, 0}), autoState)
		require.Len(t, res.Replies, store.Len()-2+1)
		assert.Equal(t, []byte{2, 0, 0, 0}, res.Replies[0].CommandData[0:4])
		assert.Equal(t, []byte{3, 0, 0, 0}, res.Replies[0].CommandData[4:8])
	})

	t.Run("past the end", func(t *testing.T) {
		res := d.Dispatch(wire.NewMessage(0x01, 7, wire.CmdEmbeddedConfiguration, []byte{0xFF, 0, 0, 0}), autoState)
		require.Len(t, res.Replies, 1)
		assert.Empty(t, res.Replies[0].CommandData)
	})

	t.Run("bad payload", func(t *testing.T) {
		res := d.Dispatch(wire.NewMessage(0x01, 7, wire.CmdEmbeddedConfiguration, []byte{1, 2, 3}), autoState)
		assert.Empty(t, res.Replies)
	})
}

func configChannel(data ...byte) wire.Message {
	return wire.NewMessage(0x01, 8, wire.CmdConfigChannel, data)
}

func bindRequest(channel uint8, mode wire.ChannelMode, offset uint32, ctrl, size byte) wire.Message {
	return configChannel(channel, byte(mode),
		byte(offset), byte(offset>>8), byte(offset>>16), byte(offset>>24), ctrl, size)
}

func TestConfigChannelBindAndQuery(t *testing.T) {
	d, store := newTestDispatcher(t)

	req := bindRequest(3, wire.ChannelOnChange, 0x10, 0x02, 2)
	res := d.Dispatch(req, autoState)
	require.Len(t, res.Replies, 1)
	assert.Equal(t, req.CommandData, res.Replies[0].CommandData)

	r, ok := store.ByChannel(3)
	require.True(t, ok)
	assert.Equal(t, uint32(2), r.ID)

	res = d.Dispatch(configChannel(3), autoState)
	require.Len(t, res.Replies, 1)
	assert.Equal(t, []byte{byte(wire.ChannelOnChange), 0x10, 0, 0, 0, 0x02, 2}, res.Replies[0].CommandData)
}

func TestConfigChannelRebindMovesRegister(t *testing.T) {
	d, store := newTestDispatcher(t)

	// Sine (offset 0, ctrl 0x01, size 1) moves from channel 0 to channel 5.
	res := d.Dispatch(bindRequest(5, wire.ChannelLowSpeed, 0x00, 0x01, 1), autoState)
	require.Len(t, res.Replies, 1)

	_, ok := store.ByChannel(0)
	assert.False(t, ok)
	r, ok := store.ByChannel(5)
	require.True(t, ok)
	assert.Equal(t, uint32(1), r.ID)
	assert.Equal(t, wire.ChannelLowSpeed, r.Mode())
}

func TestConfigChannelNoMatchReleasesChannel(t *testing.T) {
	d, store := newTestDispatcher(t)

	res := d.Dispatch(bindRequest(0, wire.ChannelOnChange, 0x99, 0x01, 1), autoState)
	require.Len(t, res.Replies, 1)
	assert.Equal(t, make([]byte, 8), res.Replies[0].CommandData)

	_, ok := store.ByChannel(0)
	assert.False(t, ok)
	assert.Equal(t, wire.ChannelOff, mustRegister(t, store, 1).Mode())
}

func TestConfigChannelZeroedReplies(t *testing.T) {
	zeroed := make([]byte, 8)
	tests := []struct {
		name string
		msg  wire.Message
	}{
		{"other controller", wire.NewMessage(0x02, 1, wire.CmdConfigChannel, []byte{0})},
		{"broadcast", wire.NewMessage(wire.ControllerBroadcast, 1, wire.CmdConfigChannel, []byte{0})},
		{"query unbound", configChannel(9)},
		{"mode on unbound", configChannel(9, byte(wire.ChannelOnce))},
		{"invalid mode", configChannel(0, 0x07)},
		{"channel out of range", bindRequest(16, wire.ChannelOnChange, 0x10, 0x02, 2)},
		{"invalid bind mode", bindRequest(4, wire.ChannelMode(9), 0x10, 0x02, 2)},
		{"odd length", configChannel(0, 1, 2)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, store := newTestDispatcher(t)
			res := d.Dispatch(tt.msg, autoState)
			require.Len(t, res.Replies, 1)
			assert.Equal(t, wire.CmdConfigChannel, res.Replies[0].Command)
			assert.Equal(t, zeroed, res.Replies[0].CommandData)
			assert.Equal(t, wire.ChannelOnChange, mustRegister(t, store, 1).Mode())
		})
	}
}

func TestConfigChannelSetMode(t *testing.T) {
	d, store := newTestDispatcher(t)

	res := d.Dispatch(configChannel(0, byte(wire.ChannelOnce)), autoState)
	require.Len(t, res.Replies, 1)
	assert.Equal(t, []byte{byte(wire.ChannelOnce)}, res.Replies[0].CommandData)
	assert.Equal(t, wire.ChannelOnce, mustRegister(t, store, 1).Mode())
}

func TestConfigChannelEmptyPayload(t *testing.T) {
	d, _ := newTestDispatcher(t)
	res := d.Dispatch(configChannel(), autoState)
	require.Len(t, res.Replies, 1)
	assert.Empty(t, res.Replies[0].CommandData)
}

func TestConfigChannelKeepsAddressesUnique(t *testing.T) {
	d, store := newTestDispatcher(t)
	for _, c := range []uint8{2, 3, 4, 2, 6} {
		d.Dispatch(bindRequest(c, wire.ChannelOnChange, 0x12, 0x03, 2), autoState)
	}
	bound := store.Channels(nil)
	seen := map[uint32]bool{}
	for _, b := range bound {
		assert.False(t, seen[b.Register.ID], "register %d bound twice", b.Register.ID)
		seen[b.Register.ID] = true
	}
	r, ok := store.ByChannel(6)
	require.True(t, ok)
	assert.Equal(t, uint32(3), r.ID)
}

func TestDebugString(t *testing.T) {
	d, _ := newTestDispatcher(t)
	m := wire.NewMessage(0x01, 2, wire.CmdDebugString, []byte("hello"))

	res := d.Dispatch(m, autoState)
	require.Len(t, res.Replies, 1)
	assert.Equal(t, wire.NewMessage(0x01, 2, wire.CmdDebugString, nil), res.Replies[0])
	require.Len(t, res.Notifications, 1)
	assert.Equal(t, NotificationDebugString, res.Notifications[0].Kind)
	assert.Equal(t, "hello", res.Notifications[0].Text)
}

func TestWriteRegister(t *testing.T) {
	ack := []byte{0x00}

	t.Run("writable match", func(t *testing.T) {
		d, store := newTestDispatcher(t)
		m := wire.NewMessage(0x01, 3, wire.CmdWriteRegister, append(addr(0x10, 0x02, 2), 0x34, 0x12))

		res := d.Dispatch(m, autoState)
		require.Len(t, res.Replies, 1)
		assert.Equal(t, ack, res.Replies[0].CommandData)
		assert.Equal(t, []byte{0x34, 0x12}, mustRegister(t, store, 2).Value())
		require.Len(t, res.Notifications, 1)
		assert.Equal(t, NotificationWrite, res.Notifications[0].Kind)
		assert.Equal(t, uint32(2), res.Notifications[0].RegisterID)
		assert.True(t, m.Equal(res.Notifications[0].Message))
	})

	t.Run("unknown address", func(t *testing.T) {
		d, store := newTestDispatcher(t)
		before := mustRegister(t, store, 2).Value()
		m := wire.NewMessage(0x01, 3, wire.CmdWriteRegister, append(addr(0x500, 0x02, 2), 1, 2))

		res := d.Dispatch(m, autoState)
		require.Len(t, res.Replies, 1)
		assert.Equal(t, ack, res.Replies[0].CommandData)
		assert.Empty(t, res.Notifications)
		assert.Equal(t, before, mustRegister(t, store, 2).Value())
	})

	t.Run("read only register", func(t *testing.T) {
		d, store := newTestDispatcher(t)
		m := wire.NewMessage(0x01, 3, wire.CmdWriteRegister, append(addr(0x20, 0x01, 2), 9, 9))

		res := d.Dispatch(m, autoState)
		assert.Equal(t, ack, res.Replies[0].CommandData)
		assert.Empty(t, res.Notifications)
		assert.Equal(t, []byte{0, 0}, mustRegister(t, store, 7).Value())
	})

	t.Run("value size mismatch", func(t *testing.T) {
		d, store := newTestDispatcher(t)
		m := wire.NewMessage(0x01, 3, wire.CmdWriteRegister, append(addr(0x12, 0x03, 2), 1, 2, 3))

		res := d.Dispatch(m, autoState)
		assert.Equal(t, ack, res.Replies[0].CommandData)
		assert.Empty(t, res.Notifications)
		assert.Equal(t, []byte{100, 0}, mustRegister(t, store, 3).Value())
	})

	t.Run("short payload", func(t *testing.T) {
		d, _ := newTestDispatcher(t)
		res := d.Dispatch(wire.NewMessage(0x01, 3, wire.CmdWriteRegister, []byte{1, 2}), autoState)
		require.Len(t, res.Replies, 1)
		assert.Equal(t, ack, res.Replies[0].CommandData)
		assert.Empty(t, res.Notifications)
	})
}

func TestQueryRegister(t *testing.T) {
	d, _ := newTestDispatcher(t)

	found := addr(0x12, 0x03, 2)
	res := d.Dispatch(wire.NewMessage(0x01, 1, wire.CmdQueryRegister, found), autoState)
	require.Len(t, res.Replies, 1)
	assert.Equal(t, append(append([]byte(nil), found...), 100, 0), res.Replies[0].CommandData)

	missing := addr(0x12, 0x01, 2)
	res = d.Dispatch(wire.NewMessage(0x01, 1, wire.CmdQueryRegister, missing), autoState)
	assert.Equal(t, missing, res.Replies[0].CommandData)

	short := []byte{0x12, 0}
	res = d.Dispatch(wire.NewMessage(0x01, 1, wire.CmdQueryRegister, short), autoState)
	assert.Equal(t, short, res.Replies[0].CommandData)
}

func TestResetTimeAndDecimation(t *testing.T) {
	d, _ := newTestDispatcher(t)
	for _, cmd := range []wire.Command{wire.CmdResetTime, wire.CmdDecimation} {
		res := d.Dispatch(wire.NewMessage(0x01, 1, cmd, nil), autoState)
		assert.True(t, res.ResetClock, cmd.String())
		assert.Empty(t, res.Replies, cmd.String())
	}
}

func TestReadChannelData(t *testing.T) {
	d, store := newTestDispatcher(t)
	rcd := func(data ...byte) wire.Message {
		return wire.NewMessage(0x01, 11, wire.CmdReadChannelData, data)
	}

	res := d.Dispatch(rcd(0x01), autoState)
	require.NotNil(t, res.Streaming)
	assert.True(t, *res.Streaming)
	assert.Equal(t, []wire.Message{wire.NewMessage(0x01, 11, wire.CmdReadChannelData, nil)}, res.Replies)

	res = d.Dispatch(rcd(0x00), autoState)
	require.NotNil(t, res.Streaming)
	assert.False(t, *res.Streaming)
	assert.Len(t, res.Replies, 1)

	res = d.Dispatch(rcd(0x09), autoState)
	assert.Nil(t, res.Streaming)
	assert.Equal(t, []wire.Message{wire.NewMessage(0x01, 11, wire.CmdReadChannelData, nil)}, res.Replies)

	res = d.Dispatch(rcd(0x01, 0x02), autoState)
	assert.Nil(t, res.Streaming)
	assert.Equal(t, []wire.Message{wire.NewMessage(0x01, 11, wire.CmdReadChannelData, nil)}, res.Replies)

	t.Run("once without once channels", func(t *testing.T) {
		res := d.Dispatch(rcd(0x02), State{AutoRespond: true, ElapsedMs: 0x010203})
		require.Len(t, res.Replies, 1)
		assert.Equal(t, []byte{0x03, 0x02, 0x01, 0x00, 0x00}, res.Replies[0].CommandData)
	})

	t.Run("once with once channels", func(t *testing.T) {
		_, err := store.SetMode(1, wire.ChannelOnce)
		require.NoError(t, err)
		require.NoError(t, mustRegister(t, store, 13).SetValue([]byte{1, 2, 3, 4}))

		res := d.Dispatch(rcd(0x02), autoState)
		require.Len(t, res.Replies, 1)
		assert.Equal(t, uint8(11), res.Replies[0].MsgID)
		assert.Equal(t, []byte{0, 0, 0, 0x02, 0x00, 1, 2, 3, 4}, res.Replies[0].CommandData)
	})
}
