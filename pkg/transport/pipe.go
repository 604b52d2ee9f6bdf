package transport

import (
	"context"
	"sync"
)

// Pipe is an in-memory transport. Inbound bytes are injected with Inject;
// everything sent appears on Outbound.
type Pipe struct {
	onReceive func([]byte)
	onError   func(error)
	onConnect func(string)

	mu       sync.Mutex
	open     bool
	outbound chan []byte
}

// NewPipe creates a pipe whose Outbound channel buffers up to size chunks.
func NewPipe(size int) *Pipe {
	if size <= 0 {
		size = 64
	}
	return &Pipe{outbound: make(chan []byte, size)}
}

// Name implements Transport.
func (p *Pipe) Name() string { return "pipe" }

// OnReceive implements Transport.
func (p *Pipe) OnReceive(fn func([]byte)) { p.onReceive = fn }

// OnError implements Transport.
func (p *Pipe) OnError(fn func(error)) { p.onError = fn }

// OnConnect implements ConnectionNotifier.
func (p *Pipe) OnConnect(fn func(string)) { p.onConnect = fn }

// Open marks the pipe connected.
func (p *Pipe) Open(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.open {
		return ErrAlreadyOpen
	}
	p.open = true
	return nil
}

// Close marks the pipe closed. Outbound is left open for draining.
func (p *Pipe) Close() error {
	p.mu.Lock()
	p.open = false
	p.mu.Unlock()
	return nil
}

// Send copies data to Outbound. It fails when the buffer is full.
func (p *Pipe) Send(data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.open {
		return ErrNotConnected
	}
	select {
	case p.outbound <- append([]byte(nil), data...):
		return nil
	default:
		return ErrPipeFull
	}
}

// Inject delivers data to the receive callback as if read from a peer.
func (p *Pipe) Inject(data []byte) error {
	p.mu.Lock()
	open := p.open
	p.mu.Unlock()
	if !open {
		return ErrNotConnected
	}
	if p.onReceive != nil {
		p.onReceive(append([]byte(nil), data...))
	}
	return nil
}

// Reconnect simulates a new peer attaching.
func (p *Pipe) Reconnect(connID string) {
	if p.onConnect != nil {
		p.onConnect(connID)
	}
}

// Fail delivers err to the error callback.
func (p *Pipe) Fail(err error) {
	if p.onError != nil {
		p.onError(err)
	}
}

// Outbound returns the channel of sent chunks.
func (p *Pipe) Outbound() <-chan []byte { return p.outbound }
