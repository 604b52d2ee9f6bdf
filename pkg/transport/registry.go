package transport

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/embedded-debugger/emulator-go/pkg/log"
)

// Options configures a transport created through a Registry.
type Options struct {
	// Address is the TCP listen address.
	Address string

	// Serial configures the serial transport.
	Serial SerialOptions

	// PortOpener overrides how serial ports are opened.
	PortOpener PortOpener

	// PipeBuffer sizes the pipe's outbound channel.
	PipeBuffer int

	// Logger receives protocol capture events (optional).
	Logger log.Logger

	// Slog receives operational logs (optional).
	Slog *slog.Logger
}

func (o Options) slogger() *slog.Logger {
	if o.Slog != nil {
		return o.Slog
	}
	return slog.Default()
}

// Constructor creates a transport from options.
type Constructor func(Options) (Transport, error)

// Registry maps transport names to constructors.
type Registry struct {
	mu    sync.RWMutex
	ctors map[string]Constructor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{ctors: make(map[string]Constructor)}
}

// DefaultRegistry returns a registry with tcp, serial and pipe registered.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("tcp", func(o Options) (Transport, error) { return NewTCPServer(o), nil })
	r.Register("serial", func(o Options) (Transport, error) { return NewSerial(o), nil })
	r.Register("pipe", func(o Options) (Transport, error) { return NewPipe(o.PipeBuffer), nil })
	return r
}

// Register adds or replaces a constructor.
func (r *Registry) Register(name string, ctor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ctors[name] = ctor
}

// New creates the named transport.
func (r *Registry) New(name string, opts Options) (Transport, error) {
	r.mu.RLock()
	ctor, ok := r.ctors[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTransport, name)
	}
	return ctor(opts)
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.ctors))
	for n := range r.ctors {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
