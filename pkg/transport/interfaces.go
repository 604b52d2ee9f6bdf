package transport

import (
	"context"
	"net"
)

// Transport is the capability set the emulator needs from a byte link.
type Transport interface {
	// Name returns the registry name of the transport kind.
	Name() string

	// Open starts the transport. Received bytes are delivered to the
	// OnReceive callback from a transport goroutine until Close or ctx ends.
	Open(ctx context.Context) error

	// Close stops the transport and releases its resources.
	Close() error

	// Send writes data as one unit. It returns ErrNotConnected when no peer
	// is attached. Concurrent Sends never interleave.
	Send(data []byte) error

	// OnReceive registers the inbound bytes callback. Set before Open.
	OnReceive(fn func(data []byte))

	// OnError registers the asynchronous error callback. Set before Open.
	OnError(fn func(err error))
}

// ConnectionNotifier is implemented by transports whose peer can change
// while they are open.
type ConnectionNotifier interface {
	// OnConnect registers a callback run when a new peer attaches, before
	// any of its bytes are delivered. Set before Open.
	OnConnect(fn func(connID string))
}

// Listener is implemented by transports that accept network peers.
type Listener interface {
	Transport

	// Addr returns the listen address once open.
	Addr() net.Addr

	// State returns the state of the client connection.
	State() ConnectionState
}

var (
	_ Transport = (*Serial)(nil)
	_ Transport = (*Pipe)(nil)
	_ Listener  = (*TCPServer)(nil)

	_ ConnectionNotifier = (*TCPServer)(nil)
	_ ConnectionNotifier = (*Pipe)(nil)
)
