package transport_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goburrow/serial"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/embedded-debugger/emulator-go/pkg/transport"
)

// fakePort feeds reads from a channel and times out when it is empty.
type fakePort struct {
	serial.Port

	in      chan []byte
	mu      sync.Mutex
	written [][]byte
	closed  chan struct{}
	once    sync.Once
}

func newFakePort() *fakePort {
	return &fakePort{in: make(chan []byte, 8), closed: make(chan struct{})}
}

func (p *fakePort) Read(b []byte) (int, error) {
	select {
	case data := <-p.in:
		return copy(b, data), nil
	case <-p.closed:
		return 0, errors.New("port closed")
	case <-time.After(10 * time.Millisecond):
		return 0, serial.ErrTimeout
	}
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.written = append(p.written, append([]byte(nil), b...))
	return len(b), nil
}

func (p *fakePort) Close() error {
	p.once.Do(func() { close(p.closed) })
	return nil
}

func TestSerialOpenConfig(t *testing.T) {
	port := newFakePort()
	var got *serial.Config
	s := transport.NewSerial(transport.Options{
		Serial: transport.SerialOptions{Port: "/dev/ttyTEST"},
		PortOpener: func(c *serial.Config) (serial.Port, error) {
			got = c
			return port, nil
		},
	})
	require.NoError(t, s.Open(context.Background()))
	defer s.Close()

	require.NotNil(t, got)
	assert.Equal(t, "/dev/ttyTEST", got.Address)
	assert.Equal(t, 115200, got.BaudRate)
	assert.Equal(t, 8, got.DataBits)
	assert.Equal(t, 1, got.StopBits)
	assert.Equal(t, "N", got.Parity)
	assert.Equal(t, 100*time.Millisecond, got.Timeout)
}

func TestSerialReceiveAndSend(t *testing.T) {
	port := newFakePort()
	s := transport.NewSerial(transport.Options{
		Serial:     transport.SerialOptions{Port: "/dev/ttyTEST"},
		PortOpener: func(*serial.Config) (serial.Port, error) { return port, nil },
	})
	received := make(chan []byte, 4)
	var errs []error
	s.OnReceive(func(b []byte) { received <- b })
	s.OnError(func(err error) { errs = append(errs, err) })

	assert.ErrorIs(t, s.Send([]byte{1}), transport.ErrNotConnected)
	require.NoError(t, s.Open(context.Background()))

	// Timeouts between chunks are not errors.
	time.Sleep(30 * time.Millisecond)
	port.in <- []byte{0x55, 0x01}

	select {
	case got := <-received:
		assert.Equal(t, []byte{0x55, 0x01}, got)
	case <-time.After(2 * time.Second):
		t.Fatal("no data received")
	}

	require.NoError(t, s.Send([]byte{0xAA}))
	port.mu.Lock()
	assert.Equal(t, [][]byte{{0xAA}}, port.written)
	port.mu.Unlock()

	require.NoError(t, s.Close())
	assert.Empty(t, errs)
	assert.ErrorIs(t, s.Send([]byte{1}), transport.ErrNotConnected)
}

func TestSerialOpenErrors(t *testing.T) {
	s := transport.NewSerial(transport.Options{})
	assert.Error(t, s.Open(context.Background()))

	s = transport.NewSerial(transport.Options{
		Serial: transport.SerialOptions{Port: "/dev/missing"},
		PortOpener: func(*serial.Config) (serial.Port, error) {
			return nil, errors.New("no such device")
		},
	})
	err := s.Open(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/dev/missing")
}
