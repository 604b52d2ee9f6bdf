package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/embedded-debugger/emulator-go/pkg/log"
	"github.com/goburrow/serial"
)

// SerialOptions configures a serial port.
type SerialOptions struct {
	// Port is the device path, e.g. /dev/ttyUSB0 or COM3.
	Port string

	BaudRate int
	DataBits int
	StopBits int

	// Parity is "N", "E" or "O".
	Parity string

	// Timeout bounds a single read. Reads that time out are retried.
	Timeout time.Duration
}

func (o SerialOptions) withDefaults() SerialOptions {
	if o.BaudRate == 0 {
		o.BaudRate = 115200
	}
	if o.DataBits == 0 {
		o.DataBits = 8
	}
	if o.StopBits == 0 {
		o.StopBits = 1
	}
	if o.Parity == "" {
		o.Parity = "N"
	}
	if o.Timeout == 0 {
		o.Timeout = 100 * time.Millisecond
	}
	return o
}

// PortOpener opens a serial port. It is serial.Open by default.
type PortOpener func(*serial.Config) (serial.Port, error)

// Serial is a transport over a serial port.
type Serial struct {
	opts   SerialOptions
	open   PortOpener
	logger log.Logger
	slog   *slog.Logger

	onReceive func([]byte)
	onError   func(error)

	mu     sync.Mutex
	port   io.ReadWriteCloser
	stream *stream

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewSerial creates a serial transport.
func NewSerial(opts Options) *Serial {
	opener := opts.PortOpener
	if opener == nil {
		opener = serial.Open
	}
	return &Serial{
		opts:   opts.Serial.withDefaults(),
		open:   opener,
		logger: log.OrNoop(opts.Logger),
		slog:   opts.slogger(),
	}
}

// Name implements Transport.
func (s *Serial) Name() string { return "serial" }

// OnReceive implements Transport.
func (s *Serial) OnReceive(fn func([]byte)) { s.onReceive = fn }

// OnError implements Transport.
func (s *Serial) OnError(fn func(error)) { s.onError = fn }

// Open opens the port and starts reading.
func (s *Serial) Open(ctx context.Context) error {
	if s.running.Load() {
		return ErrAlreadyOpen
	}
	if s.opts.Port == "" {
		return errors.New("serial port not configured")
	}

	port, err := s.open(&serial.Config{
		Address:  s.opts.Port,
		BaudRate: s.opts.BaudRate,
		DataBits: s.opts.DataBits,
		StopBits: s.opts.StopBits,
		Parity:   s.opts.Parity,
		Timeout:  s.opts.Timeout,
	})
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", s.opts.Port, err)
	}

	st := newStream(port, s.Name(), s.opts.Port, s.opts.Port, s.logger)
	s.mu.Lock()
	s.port = port
	s.stream = st
	s.mu.Unlock()

	var runCtx context.Context
	runCtx, s.cancel = context.WithCancel(ctx)
	s.running.Store(true)

	s.slog.Info("serial transport open", "port", s.opts.Port, "baud", s.opts.BaudRate)
	s.logger.Log(st.stateEvent(StateDisconnected, StateConnected, ""))

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		<-runCtx.Done()
		_ = port.Close()
	}()
	go func() {
		defer s.wg.Done()
		err := st.readLoop(s.onReceive, isTimeout)
		if s.running.Load() && !errors.Is(err, io.EOF) {
			s.slog.Warn("serial read failed", "port", s.opts.Port, "error", err)
			if s.onError != nil {
				s.onError(err)
			}
		}
	}()

	return nil
}

// Close closes the port.
func (s *Serial) Close() error {
	if !s.running.Swap(false) {
		return nil
	}
	s.cancel()
	s.wg.Wait()

	s.mu.Lock()
	st := s.stream
	s.port = nil
	s.stream = nil
	s.mu.Unlock()

	if st != nil {
		s.logger.Log(st.stateEvent(StateConnected, StateClosed, ""))
	}
	return nil
}

// Send writes data to the port.
func (s *Serial) Send(data []byte) error {
	s.mu.Lock()
	st := s.stream
	s.mu.Unlock()
	if st == nil {
		return ErrNotConnected
	}
	return st.write(data)
}

func isTimeout(err error) bool {
	return errors.Is(err, serial.ErrTimeout)
}
