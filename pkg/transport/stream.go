package transport

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/embedded-debugger/emulator-go/pkg/log"
)

// ReadBufferSize is the size of a single read from the underlying stream.
const ReadBufferSize = 4096

// stream moves raw chunks between an io.ReadWriter and the callbacks, and
// records them in the protocol capture.
type stream struct {
	rw        io.ReadWriter
	transport string
	connID    string
	remote    string
	logger    log.Logger

	writeMu sync.Mutex
}

func newStream(rw io.ReadWriter, transport, connID, remote string, logger log.Logger) *stream {
	return &stream{
		rw:        rw,
		transport: transport,
		connID:    connID,
		remote:    remote,
		logger:    log.OrNoop(logger),
	}
}

// write sends data in one Write call under the stream lock.
func (s *stream) write(data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := s.rw.Write(data); err != nil {
		return fmt.Errorf("%s write: %w", s.transport, err)
	}
	s.logger.Log(s.frameEvent(data, log.DirectionOut))
	return nil
}

// readLoop delivers chunks until the reader fails. Errors for which skip
// returns true are ignored (read timeouts on serial ports). The terminating
// error is returned, io.EOF for an orderly close.
func (s *stream) readLoop(onReceive func([]byte), skip func(error) bool) error {
	buf := make([]byte, ReadBufferSize)
	for {
		n, err := s.rw.Read(buf)
		if n > 0 {
			chunk := append([]byte(nil), buf[:n]...)
			s.logger.Log(s.frameEvent(chunk, log.DirectionIn))
			if onReceive != nil {
				onReceive(chunk)
			}
		}
		if err != nil {
			if skip != nil && skip(err) {
				continue
			}
			if errors.Is(err, io.EOF) {
				return io.EOF
			}
			return fmt.Errorf("%s read: %w", s.transport, err)
		}
	}
}

func (s *stream) frameEvent(data []byte, dir log.Direction) log.Event {
	return log.Event{
		Timestamp:    time.Now(),
		ConnectionID: s.connID,
		Direction:    dir,
		Layer:        log.LayerTransport,
		Category:     log.CategoryMessage,
		Transport:    s.transport,
		RemoteAddr:   s.remote,
		Frame:        log.NewFrameEvent(data),
	}
}

func (s *stream) stateEvent(oldState, newState ConnectionState, reason string) log.Event {
	return log.Event{
		Timestamp:    time.Now(),
		ConnectionID: s.connID,
		Layer:        log.LayerTransport,
		Category:     log.CategoryState,
		Transport:    s.transport,
		RemoteAddr:   s.remote,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityConnection,
			OldState: oldState.String(),
			NewState: newState.String(),
			Reason:   reason,
		},
	}
}
