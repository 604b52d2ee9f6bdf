package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"github.com/embedded-debugger/emulator-go/pkg/log"
	"github.com/google/uuid"
)

// DefaultTCPAddress is the listen address used when none is configured.
const DefaultTCPAddress = ":5000"

// TCPServer accepts debugger clients over TCP. One client is active at a
// time; a newly accepted client replaces the previous one.
type TCPServer struct {
	address string
	logger  log.Logger
	slog    *slog.Logger

	onReceive func([]byte)
	onError   func(error)
	onConnect func(string)

	listener net.Listener

	mu     sync.Mutex
	client *tcpClient
	state  ConnectionState

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

type tcpClient struct {
	conn      net.Conn
	stream    *stream
	closeOnce sync.Once
}

func (c *tcpClient) close() {
	c.closeOnce.Do(func() { _ = c.conn.Close() })
}

// NewTCPServer creates a TCP server transport.
func NewTCPServer(opts Options) *TCPServer {
	addr := opts.Address
	if addr == "" {
		addr = DefaultTCPAddress
	}
	return &TCPServer{
		address: addr,
		logger:  log.OrNoop(opts.Logger),
		slog:    opts.slogger(),
		state:   StateDisconnected,
	}
}

// Name implements Transport.
func (s *TCPServer) Name() string { return "tcp" }

// OnReceive implements Transport.
func (s *TCPServer) OnReceive(fn func([]byte)) { s.onReceive = fn }

// OnError implements Transport.
func (s *TCPServer) OnError(fn func(error)) { s.onError = fn }

// OnConnect implements ConnectionNotifier.
func (s *TCPServer) OnConnect(fn func(string)) { s.onConnect = fn }

// Open starts listening and accepting clients.
func (s *TCPServer) Open(ctx context.Context) error {
	if s.running.Load() {
		return ErrAlreadyOpen
	}

	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.address, err)
	}
	s.listener = listener
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.running.Store(true)
	s.setState(StateListening)
	s.slog.Info("tcp transport listening", "address", listener.Addr().String())

	s.wg.Add(1)
	go s.acceptLoop()

	// Close on context cancellation.
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		<-s.ctx.Done()
		_ = s.listener.Close()
		s.dropClient(nil, "transport closed")
	}()

	return nil
}

// Close stops accepting and disconnects the active client.
func (s *TCPServer) Close() error {
	if !s.running.Swap(false) {
		return nil
	}
	s.cancel()
	s.wg.Wait()
	s.setState(StateClosed)
	return nil
}

// Send writes data to the active client.
func (s *TCPServer) Send(data []byte) error {
	s.mu.Lock()
	c := s.client
	s.mu.Unlock()
	if c == nil {
		return ErrNotConnected
	}
	return c.stream.write(data)
}

// Addr returns the listen address.
func (s *TCPServer) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// State returns the client connection state.
func (s *TCPServer) State() ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *TCPServer) setState(state ConnectionState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *TCPServer) acceptLoop() {
	defer s.wg.Done()

	for s.running.Load() {
		conn, err := s.listener.Accept()
		if err != nil {
			if !s.running.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			s.reportError(fmt.Errorf("accept error: %w", err))
			continue
		}

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

func (s *TCPServer) handleConnection(conn net.Conn) {
	defer s.wg.Done()

	connID := uuid.New().String()
	remote := conn.RemoteAddr().String()
	c := &tcpClient{
		conn:   conn,
		stream: newStream(conn, s.Name(), connID, remote, s.logger),
	}

	s.mu.Lock()
	prev := s.client
	s.client = c
	s.state = StateConnected
	s.mu.Unlock()

	if prev != nil {
		s.slog.Info("replacing debugger client", "previous", prev.stream.remote, "remote", remote)
		prev.close()
	}
	if s.onConnect != nil {
		s.onConnect(connID)
	}

	s.slog.Info("debugger client connected", "remote", remote, "conn_id", connID)
	s.logger.Log(c.stream.stateEvent(StateListening, StateConnected, ""))

	err := c.stream.readLoop(s.onReceive, nil)

	reason := "peer closed"
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
		if s.running.Load() {
			s.reportError(err)
		}
		reason = err.Error()
	}
	s.dropClient(c, reason)
}

// dropClient clears c as active client. A nil c drops whichever is active.
func (s *TCPServer) dropClient(c *tcpClient, reason string) {
	s.mu.Lock()
	active := s.client
	if c == nil {
		c = active
	}
	if c == nil {
		s.mu.Unlock()
		return
	}
	current := active == c
	if current {
		s.client = nil
		if s.running.Load() {
			s.state = StateListening
		}
	}
	s.mu.Unlock()

	c.close()
	if current {
		s.slog.Info("debugger client disconnected", "remote", c.stream.remote, "reason", reason)
		s.logger.Log(c.stream.stateEvent(StateConnected, StateDisconnected, reason))
	}
}

func (s *TCPServer) reportError(err error) {
	s.slog.Warn("tcp transport error", "error", err)
	if s.onError != nil {
		s.onError(err)
	}
}
