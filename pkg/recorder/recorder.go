// Package recorder stores sampled channel values in InfluxDB.
package recorder

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/embedded-debugger/emulator-go/pkg/config"
	"github.com/embedded-debugger/emulator-go/pkg/emulator"
	"github.com/embedded-debugger/emulator-go/pkg/register"
)

// DefaultMeasurement is used when no measurement is configured.
const DefaultMeasurement = "channel_data"

// PointWriter is the subset of the InfluxDB write API the recorder uses.
type PointWriter interface {
	WritePoint(p *write.Point)
	Flush()
}

// Options configures a Recorder.
type Options struct {
	Measurement string

	// Tags are added to every point.
	Tags map[string]string

	// Every records one of every Every observed frames. Values below 1
	// record all of them.
	Every int

	Logger *slog.Logger
}

// Recorder writes one point per recorded sampler frame. Fields are named
// after the registers; integer and bool registers are written as numbers,
// others as hex strings.
type Recorder struct {
	writer      PointWriter
	measurement string
	tags        map[string]string
	every       uint64
	logger      *slog.Logger

	seen    atomic.Uint64
	written atomic.Uint64

	closeOnce sync.Once
	closeFn   func()
}

var _ emulator.ChannelObserver = (*Recorder)(nil)

// New creates a recorder writing to w.
func New(w PointWriter, opts Options) *Recorder {
	if opts.Measurement == "" {
		opts.Measurement = DefaultMeasurement
	}
	if opts.Every < 1 {
		opts.Every = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Recorder{
		writer:      w,
		measurement: opts.Measurement,
		tags:        opts.Tags,
		every:       uint64(opts.Every),
		logger:      logger,
	}
}

// Dial connects to the InfluxDB server in cfg. An unreachable server is
// logged but not fatal; the write API buffers and retries on its own.
func Dial(ctx context.Context, cfg config.InfluxConfig, opts Options) (*Recorder, error) {
	if cfg.URL == "" {
		return nil, errors.New("recorder: influx url is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("recorder: influx bucket is required")
	}
	if opts.Measurement == "" {
		opts.Measurement = cfg.Measurement
	}
	if opts.Every == 0 {
		opts.Every = cfg.Every
	}

	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	r := New(nil, opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if ok, err := client.Ping(pingCtx); err != nil || !ok {
		r.logger.Warn("influxdb not reachable", "url", cfg.URL, "error", err)
	} else {
		r.logger.Info("influxdb reachable", "url", cfg.URL, "bucket", cfg.Bucket)
	}

	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)
	errs := writeAPI.Errors()
	go func() {
		for err := range errs {
			r.logger.Warn("influxdb write failed", "error", err)
		}
	}()

	r.writer = writeAPI
	r.closeFn = func() {
		writeAPI.Flush()
		client.Close()
	}
	return r, nil
}

// ObserveChannels records one sampler frame.
func (r *Recorder) ObserveChannels(at time.Time, samples []emulator.Sample) {
	if len(samples) == 0 {
		return
	}
	if (r.seen.Add(1)-1)%r.every != 0 {
		return
	}

	fields := make(map[string]any, len(samples))
	for _, s := range samples {
		fields[fieldName(s)] = fieldValue(s)
	}
	r.writer.WritePoint(influxdb2.NewPoint(r.measurement, r.tags, fields, at))
	r.written.Add(1)
}

// Written returns the number of points handed to the writer.
func (r *Recorder) Written() uint64 { return r.written.Load() }

// Close flushes pending points and releases the client.
func (r *Recorder) Close() {
	r.closeOnce.Do(func() {
		if r.closeFn != nil {
			r.closeFn()
			return
		}
		r.writer.Flush()
	})
}

func fieldName(s emulator.Sample) string {
	if s.Register.FullName != "" {
		return s.Register.FullName
	}
	return s.Register.Name
}

func fieldValue(s emulator.Sample) any {
	t := s.Register.Type
	if t.IsInteger() || t == register.TypeBool {
		return register.DecodeValue(t, s.Value)
	}
	return register.FormatValue(t, s.Value)
}
