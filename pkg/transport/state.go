package transport

import "errors"

// ConnectionState is the state of a transport's peer link.
type ConnectionState int

const (
	// StateDisconnected indicates no peer.
	StateDisconnected ConnectionState = iota

	// StateListening indicates the transport waits for a peer.
	StateListening

	// StateConnected indicates an active peer.
	StateConnected

	// StateClosed indicates the transport was closed.
	StateClosed
)

// String returns the connection state name.
func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateListening:
		return "LISTENING"
	case StateConnected:
		return "CONNECTED"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Transport errors.
var (
	ErrNotConnected     = errors.New("not connected")
	ErrAlreadyOpen      = errors.New("transport already open")
	ErrClosed           = errors.New("transport closed")
	ErrUnknownTransport = errors.New("unknown transport")
)

// ErrPipeFull is returned by Pipe.Send when Outbound is not drained.
var ErrPipeFull = errors.New("pipe outbound buffer full")
