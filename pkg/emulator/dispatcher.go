package emulator

import (
	"encoding/binary"
	"log/slog"

	"github.com/embedded-debugger/emulator-go/pkg/register"
	"github.com/embedded-debugger/emulator-go/pkg/wire"
)

// writeHeaderSize is the addressing prefix of Write/QueryRegister payloads:
// offset(u32) ctrl(u8) size(u8).
const writeHeaderSize = 6

// Read-channel-data control codes.
const (
	streamStop  byte = 0x00
	streamStart byte = 0x01
	streamOnce  byte = 0x02
)

// State is the runtime mode the Dispatcher consults for one message.
type State struct {
	AutoRespond bool

	// NodeCount is the number of simulated nodes answering broadcasts.
	NodeCount int

	// EmitTraces enables the diagnostic traces sent ahead of identity,
	// configuration and channel replies.
	EmitTraces bool

	// ElapsedMs stamps one-shot channel-data frames.
	ElapsedMs uint32
}

// Result is everything one message produces.
type Result struct {
	// Replies are sent in order.
	Replies []wire.Message

	// Notifications are published after all Replies were sent.
	Notifications []Notification

	// Streaming is non-nil when the message starts or stops the sampler.
	Streaming *bool

	// ResetClock restarts the elapsed-time clock.
	ResetClock bool
}

func (r *Result) reply(msgs ...wire.Message) {
	r.Replies = append(r.Replies, msgs...)
}

func (r *Result) notify(n Notification) {
	r.Notifications = append(r.Notifications, n)
}

func (r *Result) setStreaming(on bool) {
	r.Streaming = &on
}

type handlerFunc func(d *Dispatcher, m wire.Message, st State, res *Result)

var handlers = map[wire.Command]handlerFunc{
	wire.CmdGetVersion:            (*Dispatcher).handleGetVersion,
	wire.CmdGetInfo:               (*Dispatcher).handleGetInfo,
	wire.CmdEmbeddedConfiguration: (*Dispatcher).handleEmbeddedConfiguration,
	wire.CmdConfigChannel:         (*Dispatcher).handleConfigChannel,
	wire.CmdDebugString:           (*Dispatcher).handleDebugString,
	wire.CmdWriteRegister:         (*Dispatcher).handleWriteRegister,
	wire.CmdQueryRegister:         (*Dispatcher).handleQueryRegister,
	wire.CmdDecimation:            (*Dispatcher).handleResetTime,
	wire.CmdResetTime:             (*Dispatcher).handleResetTime,
	wire.CmdReadChannelData:       (*Dispatcher).handleReadChannelData,
}

// Dispatcher interprets messages against a register store. It holds no
// per-message state and never writes to a transport.
type Dispatcher struct {
	store    *register.Store
	identity Identity
	logger   *slog.Logger
}

// NewDispatcher creates a dispatcher. A nil logger discards output.
func NewDispatcher(store *register.Store, identity Identity, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Dispatcher{store: store, identity: identity, logger: logger}
}

// Dispatch handles one decoded message. Invalid messages and unknown
// commands produce an empty Result.
func (d *Dispatcher) Dispatch(m wire.Message, st State) Result {
	var res Result
	if !m.Valid {
		d.logger.Debug("dropping invalid message", "message", m.String())
		return res
	}
	if !st.AutoRespond {
		res.reply(ackMessage(m))
		if m.Command == wire.CmdDebugString {
			res.notify(debugStringNotification(m))
		}
		return res
	}
	h, ok := handlers[m.Command]
	if !ok {
		d.logger.Debug("ignoring unknown command", "command", m.Command.String())
		return res
	}
	h(d, m, st, &res)
	return res
}

func (d *Dispatcher) trace(st State, res *Result, node uint8, level wire.TraceLevel, text string) {
	if st.EmitTraces {
		res.reply(traceMessage(node, level, text))
	}
}

func (d *Dispatcher) handleGetVersion(m wire.Message, st State, res *Result) {
	if m.IsBroadcast() {
		for i := 0; i < st.NodeCount && i < int(wire.ControllerBroadcast); i++ {
			node := uint8(i)
			d.trace(st, res, node, wire.TraceLevelFatal, "Version has been called")
			res.reply(versionMessage(m.MsgID, node, d.identity))
		}
	}
	res.reply(versionMessage(m.MsgID, wire.ControllerPrimary, d.identity))
}

func (d *Dispatcher) handleGetInfo(m wire.Message, st State, res *Result) {
	d.trace(st, res, wire.ControllerPrimary, wire.TraceLevelError, "Info has been called")
	res.reply(infoMessage(m.MsgID, m.ControllerID))
}

func (d *Dispatcher) handleEmbeddedConfiguration(m wire.Message, st State, res *Result) {
	d.trace(st, res, wire.ControllerPrimary, wire.TraceLevelWarning, "EmbeddedConfig has been called")
	var start uint32
	switch len(m.CommandData) {
	case 0:
	case 4:
		start = binary.LittleEndian.Uint32(m.CommandData)
	default:
		d.logger.Debug("configuration request with unexpected payload", "length", len(m.CommandData))
		return
	}
	res.reply(configurationMessages(m.MsgID, m.ControllerID, d.store.All(), start)...)
}

func (d *Dispatcher) handleConfigChannel(m wire.Message, st State, res *Result) {
	d.trace(st, res, wire.ControllerPrimary, wire.TraceLevelInfo, "ConfigChannel has been called")
	if m.ControllerID != wire.ControllerPrimary {
		res.reply(zeroedConfigChannel(m))
		return
	}

	data := m.CommandData
	if len(data) == 0 {
		res.reply(wire.NewMessage(m.ControllerID, m.MsgID, wire.CmdConfigChannel, nil))
		return
	}
	ch := data[0]

	switch len(data) {
	case 1:
		r, ok := d.store.ByChannel(ch)
		if !ok {
			res.reply(zeroedConfigChannel(m))
			return
		}
		res.reply(channelBindingMessage(m, r))

	case 2:
		if _, ok := d.store.ByChannel(ch); !ok {
			res.reply(zeroedConfigChannel(m))
			return
		}
		mode := wire.ChannelMode(data[1])
		if _, err := d.store.SetMode(ch, mode); err != nil {
			d.logger.Warn("channel mode rejected", "channel", ch, "error", err)
			res.reply(zeroedConfigChannel(m))
			return
		}
		res.reply(wire.NewMessage(m.ControllerID, m.MsgID, wire.CmdConfigChannel, []byte{byte(mode)}))

	case 8:
		d.store.Release(ch)
		offset := binary.LittleEndian.Uint32(data[2:6])
		r, ok := d.store.Find(register.CriteriaFromControl(offset, data[6], int(data[7])))
		if !ok {
			d.logger.Debug("no register for channel binding", "channel", ch, "offset", offset)
			res.reply(zeroedConfigChannel(m))
			return
		}
		if err := d.store.Bind(ch, r, wire.ChannelMode(data[1])); err != nil {
			d.logger.Warn("channel binding rejected", "channel", ch, "register", r.ID, "error", err)
			res.reply(zeroedConfigChannel(m))
			return
		}
		res.reply(wire.NewMessage(m.ControllerID, m.MsgID, m.Command, append([]byte(nil), data...)))

	default:
		res.reply(zeroedConfigChannel(m))
	}
}

func (d *Dispatcher) handleDebugString(m wire.Message, _ State, res *Result) {
	res.reply(ackMessage(m))
	res.notify(debugStringNotification(m))
}

func (d *Dispatcher) handleWriteRegister(m wire.Message, _ State, res *Result) {
	res.reply(writeAckMessage(m))

	crit, ok := addressing(m.CommandData)
	if !ok {
		d.logger.Warn("write register payload too short", "length", len(m.CommandData))
		return
	}
	r, ok := d.store.FindWritable(crit)
	if !ok {
		d.logger.Debug("write to unknown register", "offset", crit.Offset, "size", crit.Size)
		return
	}
	if err := r.SetValue(m.CommandData[writeHeaderSize:]); err != nil {
		d.logger.Warn("write register rejected", "register", r.ID, "error", err)
		return
	}
	res.notify(Notification{Kind: NotificationWrite, Message: m, RegisterID: r.ID})
}

func (d *Dispatcher) handleQueryRegister(m wire.Message, _ State, res *Result) {
	reply := append([]byte(nil), m.CommandData...)
	if crit, ok := addressing(m.CommandData); ok {
		if r, found := d.store.Find(crit); found {
			reply = append(reply, r.Value()...)
		}
	}
	res.reply(wire.NewMessage(m.ControllerID, m.MsgID, m.Command, reply))
}

func (d *Dispatcher) handleResetTime(_ wire.Message, _ State, res *Result) {
	res.ResetClock = true
}

func (d *Dispatcher) handleReadChannelData(m wire.Message, st State, res *Result) {
	if len(m.CommandData) != 1 {
		res.reply(ackMessage(m))
		return
	}
	switch m.CommandData[0] {
	case streamStop:
		res.setStreaming(false)
		res.reply(ackMessage(m))
	case streamStart:
		res.setStreaming(true)
		res.reply(ackMessage(m))
	case streamOnce:
		cd, _ := channelData(d.store, st.ElapsedMs, isOnce)
		res.reply(channelDataMessage(m.ControllerID, m.MsgID, cd))
	default:
		res.reply(ackMessage(m))
	}
}

// addressing decodes offset, control byte and size from a register payload.
func addressing(data []byte) (register.Criteria, bool) {
	if len(data) < writeHeaderSize {
		return register.Criteria{}, false
	}
	offset := binary.LittleEndian.Uint32(data[0:4])
	return register.CriteriaFromControl(offset, data[4], int(data[5])), true
}

// debugStringNotification is raised for every debug string, whether or not
// auto-respond is on.
func debugStringNotification(m wire.Message) Notification {
	return Notification{
		Kind:    NotificationDebugString,
		Message: m,
		Text:    wire.DecodeText(m.CommandData),
	}
}
