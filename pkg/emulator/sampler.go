package emulator

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/embedded-debugger/emulator-go/pkg/register"
	"github.com/embedded-debugger/emulator-go/pkg/wire"
)

const (
	// DefaultTickInterval is the sampler period.
	DefaultTickInterval = time.Millisecond

	// incrementEvery is the tick divisor for counter increments.
	incrementEvery = 5

	// cycleLength is the number of ticks after which every-sample channels
	// are included and the tick counter restarts.
	cycleLength = 20
)

// Sine wave parameters: one period per 2*pi seconds of elapsed time,
// centred on 128 with an amplitude of 100.
const (
	sinePeriod    = 6.28
	sineOffset    = 3.14
	sineAmplitude = 100
	sineCentre    = 128
)

// Sample is one channel value included in a frame.
type Sample struct {
	Channel  uint8
	Register *register.Register
	Value    []byte
}

// Tick is the outcome of one sampler tick.
type Tick struct {
	// Count is the tick counter after the tick, 0 after a full cycle.
	Count int

	// Full is set when every-sample channels were included.
	Full bool

	// Data is the frame payload. It is only meaningful when Emit is set.
	Data    wire.ChannelData
	Samples []Sample
	Emit    bool
}

// SamplerConfig configures a Sampler.
type SamplerConfig struct {
	Interval time.Duration

	// SineIDs are registers overwritten with a sine of the elapsed time.
	SineIDs []uint32

	// CounterIDs are registers incremented every fifth tick.
	CounterIDs []uint32
}

// Sampler drives the synthetic register updates and channel-data frames.
type Sampler struct {
	store  *register.Store
	clock  *Clock
	cfg    SamplerConfig
	onTick func(Tick)

	countMu sync.Mutex
	count   int

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// NewSampler creates a stopped sampler. onTick receives every tick that
// produced a frame.
func NewSampler(store *register.Store, clock *Clock, cfg SamplerConfig, onTick func(Tick)) *Sampler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultTickInterval
	}
	return &Sampler{store: store, clock: clock, cfg: cfg, onTick: onTick}
}

// Start begins ticking. Starting a running sampler has no effect.
func (s *Sampler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		return
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.run(ctx, s.stop, s.done)
}

// Stop halts ticking before the next scheduled tick and waits for an
// in-flight tick to complete. Stopping a stopped sampler has no effect.
func (s *Sampler) Stop() {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
}

// Running reports whether the sampler is ticking.
func (s *Sampler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stop != nil
}

// release clears the running state if it still belongs to the loop owning
// stop, so a later Start can spawn a fresh loop.
func (s *Sampler) release(stop chan struct{}) {
	s.mu.Lock()
	if s.stop == stop {
		s.stop, s.done = nil, nil
	}
	s.mu.Unlock()
}

func (s *Sampler) run(ctx context.Context, stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			s.release(stop)
			return
		case <-ticker.C:
			select {
			case <-stop:
				return
			default:
			}
			t := s.Tick()
			if t.Emit && s.onTick != nil {
				s.onTick(t)
			}
		}
	}
}

// Tick runs one sampler cycle step and returns the frame it produced.
func (s *Sampler) Tick() Tick {
	s.countMu.Lock()
	s.count++
	count := s.count
	full := count >= cycleLength
	if full {
		s.count = 0
	}
	s.countMu.Unlock()

	elapsed := s.clock.Elapsed()
	s.updateSine(elapsed)
	if count%incrementEvery == 0 {
		s.incrementCounters()
	}

	match := isOnChange
	if full {
		match = isStreamed
		count = 0
	}
	if !s.store.AnyChannel(match) {
		return Tick{Count: count, Full: full}
	}
	cd, samples := channelData(s.store, uint32(elapsed.Milliseconds()), match)
	return Tick{Count: count, Full: full, Data: cd, Samples: samples, Emit: len(samples) > 0}
}

func (s *Sampler) updateSine(elapsed time.Duration) {
	v := math.Mod(elapsed.Seconds(), sinePeriod) - sineOffset
	level := int64(sineAmplitude*math.Sin(v) + sineCentre)
	for _, id := range s.cfg.SineIDs {
		if r, ok := s.store.ByID(id); ok {
			_ = r.SetValue(register.EncodeInt(level, r.Size))
		}
	}
}

func (s *Sampler) incrementCounters() {
	for _, id := range s.cfg.CounterIDs {
		if r, ok := s.store.ByID(id); ok {
			_ = r.Update(register.IncrementLE)
		}
	}
}

func isOnChange(m wire.ChannelMode) bool { return m == wire.ChannelOnChange }

func isOnce(m wire.ChannelMode) bool { return m == wire.ChannelOnce }

func isStreamed(m wire.ChannelMode) bool {
	return m == wire.ChannelOnChange || m == wire.ChannelLowSpeed
}

// channelData snapshots the channels selected by match into a frame payload.
func channelData(store *register.Store, elapsedMs uint32, match func(wire.ChannelMode) bool) (wire.ChannelData, []Sample) {
	channels := store.Channels(match)
	samples := make([]Sample, 0, len(channels))
	wireSamples := make([]wire.ChannelSample, 0, len(channels))
	for _, ch := range channels {
		v := ch.Register.Value()
		samples = append(samples, Sample{Channel: ch.Index, Register: ch.Register, Value: v})
		wireSamples = append(wireSamples, wire.ChannelSample{Channel: ch.Index, Value: v})
	}
	// Channels are ascending and below MaxChannels, so this cannot fail.
	cd, _ := wire.NewChannelData(elapsedMs, wireSamples)
	return cd, samples
}

// channelDataMessages addresses a sampler frame to the primary node or, in
// multi-node mode, to every simulated node with a preceding trace.
func channelDataMessages(cd wire.ChannelData, multiNode bool, nodeCount int) []wire.Message {
	if !multiNode {
		return []wire.Message{channelDataMessage(wire.ControllerPrimary, 0, cd)}
	}
	out := make([]wire.Message, 0, 2*nodeCount)
	for i := 0; i < nodeCount && i < int(wire.ControllerBroadcast); i++ {
		node := uint8(i)
		out = append(out,
			traceMessage(node, wire.TraceLevelTrace, "SendingChannelData has been called"),
			channelDataMessage(node, 0, cd))
	}
	return out
}
