package emulator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/embedded-debugger/emulator-go/pkg/log"
	"github.com/embedded-debugger/emulator-go/pkg/register"
	"github.com/embedded-debugger/emulator-go/pkg/transport"
	"github.com/embedded-debugger/emulator-go/pkg/wire"
)

// DefaultNotificationBuffer is the capacity of the notification channel.
const DefaultNotificationBuffer = 64

// MaxNodeCount is the largest number of simulated nodes.
const MaxNodeCount = 255

// ErrNodeCount is returned for a node count outside 0..MaxNodeCount.
var ErrNodeCount = errors.New("node count out of range")

// ChannelObserver receives the samples of every emitted sampler frame.
type ChannelObserver interface {
	ObserveChannels(at time.Time, samples []Sample)
}

// Config configures an Emulator.
type Config struct {
	Identity Identity

	AutoRespond bool
	MultiNode   bool
	NodeCount   int
	EmitTraces  bool

	Sampler SamplerConfig

	// NotificationBuffer sizes the Notifications channel.
	NotificationBuffer int

	// Logger for operational output (optional).
	Logger *slog.Logger

	// ProtocolLogger captures messages, notifications and state changes (optional).
	ProtocolLogger log.Logger

	// Observer receives sampled channel values (optional).
	Observer ChannelObserver

	// Now overrides the clock source (tests).
	Now func() time.Time
}

// Emulator serves the debug protocol over a transport.
type Emulator struct {
	cfg        Config
	store      *register.Store
	transport  transport.Transport
	dispatcher *Dispatcher
	sampler    *Sampler
	clock      *Clock
	logger     *slog.Logger
	plog       log.Logger

	recvMu  sync.Mutex
	decoder wire.Decoder

	sendMu sync.Mutex

	autoRespond atomic.Bool
	multiNode   atomic.Bool
	emitTraces  atomic.Bool
	nodeCount   atomic.Int32

	notifyMu      sync.Mutex
	notifications chan Notification
	closed        bool
	dropped       atomic.Uint64

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates an emulator for store that talks over tr.
func New(store *register.Store, cfg Config, tr transport.Transport) (*Emulator, error) {
	if store == nil {
		return nil, errors.New("emulator: register store is required")
	}
	if tr == nil {
		return nil, errors.New("emulator: transport is required")
	}
	if cfg.NodeCount < 0 || cfg.NodeCount > MaxNodeCount {
		return nil, fmt.Errorf("%w: %d", ErrNodeCount, cfg.NodeCount)
	}
	if cfg.NotificationBuffer <= 0 {
		cfg.NotificationBuffer = DefaultNotificationBuffer
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	e := &Emulator{
		cfg:           cfg,
		store:         store,
		transport:     tr,
		clock:         NewClock(cfg.Now),
		logger:        logger,
		plog:          log.OrNoop(cfg.ProtocolLogger),
		notifications: make(chan Notification, cfg.NotificationBuffer),
	}
	e.dispatcher = NewDispatcher(store, cfg.Identity, logger)
	e.sampler = NewSampler(store, e.clock, cfg.Sampler, e.emitTick)
	e.decoder.OnError = func(err error, frame []byte) {
		e.logger.Debug("invalid frame", "error", err, "bytes", len(frame))
	}
	e.autoRespond.Store(cfg.AutoRespond)
	e.multiNode.Store(cfg.MultiNode)
	e.emitTraces.Store(cfg.EmitTraces)
	e.nodeCount.Store(int32(cfg.NodeCount))
	e.ctx, e.cancel = context.WithCancel(context.Background())
	return e, nil
}

// Start opens the transport and begins serving messages. Streaming stays
// off until a client requests it.
func (e *Emulator) Start(ctx context.Context) error {
	e.ctx, e.cancel = context.WithCancel(ctx)
	e.transport.OnReceive(e.HandleBytes)
	if cn, ok := e.transport.(transport.ConnectionNotifier); ok {
		cn.OnConnect(e.peerConnected)
	}
	e.transport.OnError(func(err error) {
		e.logger.Warn("transport error", "transport", e.transport.Name(), "error", err)
		e.logError(err)
	})
	if err := e.transport.Open(e.ctx); err != nil {
		e.cancel()
		return fmt.Errorf("open %s transport: %w", e.transport.Name(), err)
	}
	e.logger.Info("emulator started", "transport", e.transport.Name(), "registers", e.store.Len())
	return nil
}

// Stop halts the sampler, closes the transport and closes the
// notification channel.
func (e *Emulator) Stop() error {
	e.sampler.Stop()
	e.cancel()
	err := e.transport.Close()

	e.notifyMu.Lock()
	if !e.closed {
		e.closed = true
		close(e.notifications)
	}
	e.notifyMu.Unlock()

	e.logger.Info("emulator stopped")
	return err
}

// Store returns the register store.
func (e *Emulator) Store() *register.Store { return e.store }

// Notifications returns the channel of write and debug-string notifications.
// It is closed by Stop.
func (e *Emulator) Notifications() <-chan Notification { return e.notifications }

// DroppedNotifications returns how many notifications found the channel full.
func (e *Emulator) DroppedNotifications() uint64 { return e.dropped.Load() }

// AutoRespond reports whether command handling is active.
func (e *Emulator) AutoRespond() bool { return e.autoRespond.Load() }

// SetAutoRespond switches between command handling and bare acknowledgements.
func (e *Emulator) SetAutoRespond(on bool) {
	if e.autoRespond.Swap(on) != on {
		e.logMode("auto-respond", on)
	}
}

// MultiNode reports whether sampler frames go to every simulated node.
func (e *Emulator) MultiNode() bool { return e.multiNode.Load() }

// SetMultiNode enables or disables multi-node simulation.
func (e *Emulator) SetMultiNode(on bool) {
	if e.multiNode.Swap(on) != on {
		e.logMode("multi-node", on)
	}
}

// NodeCount returns the number of simulated nodes.
func (e *Emulator) NodeCount() int { return int(e.nodeCount.Load()) }

// SetNodeCount sets the number of simulated nodes.
func (e *Emulator) SetNodeCount(n int) error {
	if n < 0 || n > MaxNodeCount {
		return fmt.Errorf("%w: %d", ErrNodeCount, n)
	}
	e.nodeCount.Store(int32(n))
	return nil
}

// SetEmitTraces enables the diagnostic traces sent ahead of replies.
func (e *Emulator) SetEmitTraces(on bool) { e.emitTraces.Store(on) }

// Streaming reports whether the sampler is running.
func (e *Emulator) Streaming() bool { return e.sampler.Running() }

// StartStreaming starts the sampler, as ReadChannelData 0x01 does.
func (e *Emulator) StartStreaming() { e.setStreaming(true) }

// StopStreaming stops the sampler, as ReadChannelData 0x00 does.
func (e *Emulator) StopStreaming() { e.setStreaming(false) }

// ResetClock restarts the channel-data clock.
func (e *Emulator) ResetClock() { e.clock.Reset() }

// Elapsed returns the channel-data clock.
func (e *Emulator) Elapsed() time.Duration { return e.clock.Elapsed() }

// HandleBytes feeds a received chunk to the decoder and handles every
// complete message. Chunks are processed one at a time in arrival order.
func (e *Emulator) HandleBytes(chunk []byte) {
	e.recvMu.Lock()
	defer e.recvMu.Unlock()
	for _, m := range e.decoder.Feed(chunk) {
		e.handleMessage(m)
	}
}

// peerConnected drops a partial frame left by the previous peer.
func (e *Emulator) peerConnected(connID string) {
	e.recvMu.Lock()
	defer e.recvMu.Unlock()
	if n := len(e.decoder.Remainder()); n > 0 {
		e.logger.Debug("discarding partial frame from previous peer", "bytes", n, "conn_id", connID)
	}
	e.decoder.Reset()
}

func (e *Emulator) state() State {
	return State{
		AutoRespond: e.autoRespond.Load(),
		NodeCount:   int(e.nodeCount.Load()),
		EmitTraces:  e.emitTraces.Load(),
		ElapsedMs:   e.clock.ElapsedMs(),
	}
}

func (e *Emulator) handleMessage(m wire.Message) {
	received := time.Now()
	e.logMessage(m, log.DirectionIn, nil)

	res := e.dispatcher.Dispatch(m, e.state())

	if res.ResetClock {
		e.clock.Reset()
	}
	if res.Streaming != nil {
		e.setStreaming(*res.Streaming)
	}

	elapsed := time.Since(received)
	e.send(&elapsed, res.Replies...)

	for _, n := range res.Notifications {
		e.publish(n)
	}
}

func (e *Emulator) setStreaming(on bool) {
	if on == e.sampler.Running() {
		return
	}
	if on {
		e.sampler.Start(e.ctx)
	} else {
		e.sampler.Stop()
	}
	old, next := "STOPPED", "STREAMING"
	if !on {
		old, next = next, old
	}
	e.logger.Info("channel streaming", "streaming", on)
	e.plog.Log(log.Event{
		Timestamp: time.Now(),
		Layer:     log.LayerEmulator,
		Category:  log.CategoryState,
		Transport: e.transport.Name(),
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityStreaming,
			OldState: old,
			NewState: next,
		},
	})
}

// emitTick sends a sampler frame and hands its samples to the observer.
func (e *Emulator) emitTick(t Tick) {
	e.send(nil, channelDataMessages(t.Data, e.multiNode.Load(), int(e.nodeCount.Load()))...)
	if e.cfg.Observer != nil {
		e.cfg.Observer.ObserveChannels(time.Now(), t.Samples)
	}
}

// send encodes and writes msgs in order. Failures are reported and the
// remaining messages are still attempted.
func (e *Emulator) send(processing *time.Duration, msgs ...wire.Message) {
	if len(msgs) == 0 {
		return
	}
	e.sendMu.Lock()
	defer e.sendMu.Unlock()
	for _, m := range msgs {
		if err := e.transport.Send(wire.Encode(m)); err != nil {
			if errors.Is(err, transport.ErrNotConnected) {
				e.logger.Debug("dropping message, no client", "message", m.String())
			} else {
				e.logger.Warn("send failed", "message", m.String(), "error", err)
				e.logError(err)
			}
			continue
		}
		e.logMessage(m, log.DirectionOut, processing)
	}
}

// publish hands n to observers without blocking. Overflow is dropped.
func (e *Emulator) publish(n Notification) {
	e.notifyMu.Lock()
	defer e.notifyMu.Unlock()
	if e.closed {
		return
	}

	select {
	case e.notifications <- n:
	default:
		e.dropped.Add(1)
		e.logger.Warn("notification dropped, channel full", "kind", n.Kind.String())
	}

	ev := &log.NotificationEvent{Text: n.Text}
	switch n.Kind {
	case NotificationWrite:
		id := n.RegisterID
		ev.Kind = log.NotificationWrite
		ev.RegisterID = &id
	case NotificationDebugString:
		ev.Kind = log.NotificationDebugString
	}
	e.plog.Log(log.Event{
		Timestamp:    time.Now(),
		Layer:        log.LayerEmulator,
		Category:     log.CategoryNotification,
		Transport:    e.transport.Name(),
		Notification: ev,
	})
}

func (e *Emulator) logMessage(m wire.Message, dir log.Direction, processing *time.Duration) {
	me := log.NewMessageEvent(m)
	me.ProcessingTime = processing
	e.plog.Log(log.Event{
		Timestamp: time.Now(),
		Direction: dir,
		Layer:     log.LayerWire,
		Category:  log.CategoryMessage,
		Transport: e.transport.Name(),
		Message:   me,
	})
}

func (e *Emulator) logMode(mode string, on bool) {
	state := "OFF"
	if on {
		state = "ON"
	}
	e.logger.Info("emulator mode changed", "mode", mode, "enabled", on)
	e.plog.Log(log.Event{
		Timestamp: time.Now(),
		Layer:     log.LayerEmulator,
		Category:  log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityMode,
			NewState: state,
			Reason:   mode,
		},
	})
}

func (e *Emulator) logError(err error) {
	e.plog.Log(log.Event{
		Timestamp: time.Now(),
		Layer:     log.LayerTransport,
		Category:  log.CategoryError,
		Transport: e.transport.Name(),
		Error:     &log.ErrorEventData{Layer: log.LayerTransport, Message: err.Error()},
	})
}
