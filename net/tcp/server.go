package tcp

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hsgames/tcplib/id"
	"github.com/hsgames/tcplib/safe"
	"github.com/pkg/errors"
)

type state int32

const (
	stateStopped state = iota
	stateStarting
	stateListening
	stateStopping
)

func (s state) String() string {
	switch s {
	case stateStopped:
		return "stopped"
	case stateStarting:
		return "starting"
	case stateListening:
		return "listening"
	case stateStopping:
		return "stopping"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

type Server struct {
	opts               options
	name               string
	ep                 netip.AddrPort
	events             *Events
	registry           *registry
	seq                id.Seq
	tlsPlain           *tls.Config
	tlsClientAuth      *tls.Config
	clientCertRequired atomic.Bool
	timeout            atomic.Int64
	bufferSize         atomic.Int32
	pollInterval       atomic.Int64
	state              atomic.Int32
	closed             atomic.Bool
	lisAddr            atomic.Value
	connsWg            sync.WaitGroup
	mu                 sync.Mutex
	runCtx             context.Context
	cancel             context.CancelFunc
	poller             *poller
	logger             *slog.Logger
}

// NewServer validates the endpoint and options. Nothing is bound until Start.
func NewServer(name, addr string, port int, opt ...Option) (*Server, error) {
	ep, err := ParseEndpoint(addr, port)
	if err != nil {
		return nil, err
	}
	return NewServerEndpoint(name, ep, opt...)
}

func NewServerEndpoint(name string, ep netip.AddrPort, opt ...Option) (*Server, error) {
	if !ep.IsValid() {
		return nil, errors.Wrapf(ErrInvalidAddress, "endpoint [%s]", ep)
	}

	opts := defaultOptions()
	for _, o := range opt {
		o(&opts)
	}

	if err := opts.check(); err != nil {
		return nil, err
	}

	s := &Server{
		opts:          opts,
		name:          name,
		ep:            ep,
		events:        newEvents(),
		registry:      newRegistry(),
		tlsPlain:      opts.tlsConfig(false),
		tlsClientAuth: opts.tlsConfig(true),
		logger:        opts.logger,
	}
	s.clientCertRequired.Store(opts.clientCertRequired)
	s.timeout.Store(int64(opts.timeout))
	s.bufferSize.Store(int32(opts.bufferSize))
	s.pollInterval.Store(int64(opts.pollInterval))

	return s, nil
}

func (s *Server) String() string {
	return fmt.Sprintf("[name:%s][listen_addr:%s]", s.Name(), s.Addr())
}

func (s *Server) Name() string {
	return s.name
}

// Addr is the bound address while listening, the configured one otherwise.
func (s *Server) Addr() string {
	if lisAddr, _ := s.lisAddr.Load().(string); lisAddr != "" {
		return lisAddr
	}
	return s.ep.String()
}

func (s *Server) Events() *Events {
	return s.events
}

func (s *Server) IsRunning() bool {
	return state(s.state.Load()) == stateListening
}

// IsActive reports whether the server is listening.
func (s *Server) IsActive() bool {
	return s.IsRunning()
}

func (s *Server) Encrypted() bool {
	return s.opts.encrypted()
}

func (s *Server) Timeout() time.Duration {
	return time.Duration(s.timeout.Load())
}

// SetTimeout changes the timeout given to connections accepted afterwards.
func (s *Server) SetTimeout(timeout time.Duration) error {
	if err := checkTimeout(timeout); err != nil {
		return err
	}
	s.timeout.Store(int64(timeout))
	return nil
}

func (s *Server) BufferSize() int {
	return int(s.bufferSize.Load())
}

// SetBufferSize changes the read buffer size of connections accepted
// afterwards.
func (s *Server) SetBufferSize(size int) error {
	if err := checkBufferSize(size); err != nil {
		return err
	}
	s.bufferSize.Store(int32(size))
	return nil
}

func (s *Server) PollInterval() time.Duration {
	return time.Duration(s.pollInterval.Load())
}

func (s *Server) PollEnabled() bool {
	return s.PollInterval() > 0
}

// SetPollInterval takes effect immediately on a listening server. A value
// <= 0 turns the sweep off.
func (s *Server) SetPollInterval(interval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pollInterval.Store(int64(interval))
	if state(s.state.Load()) == stateListening {
		s.poller.stop()
		s.poller = s.newPoller(s.runCtx)
	}
}

func (s *Server) ClientCertRequired() bool {
	return s.Encrypted() && s.clientCertRequired.Load()
}

func (s *Server) SetClientCertRequired(required bool) error {
	if !s.Encrypted() {
		return errors.WithStack(ErrNoCertificate)
	}
	s.clientCertRequired.Store(required)
	return nil
}

func (s *Server) tlsConfig() *tls.Config {
	if s.clientCertRequired.Load() {
		return s.tlsClientAuth
	}
	return s.tlsPlain
}

func (s *Server) handshakeTimeout() time.Duration {
	if timeout := s.Timeout(); timeout > 0 {
		return timeout
	}
	return s.opts.handshakeTimeout
}

// Conns returns a point in time copy of the live connections in accept order.
func (s *Server) Conns() []*Conn {
	return s.registry.snapshot()
}

func (s *Server) Conn(id uuid.UUID) (*Conn, bool) {
	return s.registry.get(id)
}

func (s *Server) ConnNum() int {
	return s.registry.len()
}

// Start binds the listener and serves until ctx is done or Stop is called. It
// returns once the accept loop has exited and every connection handler has
// finished. Starting a server that is not stopped fails with
// ErrAlreadyRunning.
func (s *Server) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	runCtx, err := s.begin(ctx)
	if err != nil {
		return err
	}

	lis, err := s.listen(runCtx)
	if err != nil {
		s.end()
		return err
	}

	s.serve(runCtx, lis)
	return nil
}

func (s *Server) begin(parent context.Context) (context.Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return nil, errors.Wrapf(ErrServerClosed, "tcp: server %s start", s)
	}
	if state(s.state.Load()) != stateStopped {
		return nil, errors.Wrapf(ErrAlreadyRunning, "tcp: server %s start", s)
	}

	s.runCtx, s.cancel = context.WithCancel(parent)
	s.state.Store(int32(stateStarting))

	return s.runCtx, nil
}

func (s *Server) end() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancel()
	s.runCtx, s.cancel = nil, nil
	s.lisAddr.Store("")
	s.state.Store(int32(stateStopped))
}

func (s *Server) listen(ctx context.Context) (net.Listener, error) {
	keepAlive := s.opts.keepAlivePeriod
	if keepAlive <= 0 {
		keepAlive = -1
	}

	lc := net.ListenConfig{KeepAlive: keepAlive}
	lis, err := lc.Listen(ctx, "tcp", s.ep.String())
	if err != nil {
		return nil, errors.Wrapf(err, "tcp: server %s listen", s)
	}

	return lis, nil
}

func (s *Server) serve(ctx context.Context, lis net.Listener) {
	s.lisAddr.Store(lis.Addr().String())

	s.mu.Lock()
	s.state.Store(int32(stateListening))
	s.poller = s.newPoller(ctx)
	s.mu.Unlock()

	s.logger.Info("tcp: server listen", slog.String("server", s.String()),
		slog.Bool("tls", s.Encrypted()))
	s.events.Started.Trigger(s)

	stop := context.AfterFunc(ctx, func() {
		_ = lis.Close()
	})
	s.acceptLoop(ctx, lis)
	stop()

	s.mu.Lock()
	s.state.Store(int32(stateStopping))
	s.poller.stop()
	s.poller = nil
	cancel := s.cancel
	s.mu.Unlock()

	if err := lis.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		s.logger.Error("tcp: server close listener", slog.String("server", s.String()),
			slog.Any("error", errors.WithStack(err)))
	}
	cancel()
	s.connsWg.Wait()

	s.logger.Info("tcp: server stopped", slog.String("server", s.String()))
	s.end()
	s.events.Stopped.Trigger(s)
}

func (s *Server) acceptLoop(ctx context.Context, lis net.Listener) {
	var tempDelay time.Duration
	for {
		raw, err := lis.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, net.ErrClosed) {
				s.logger.Warn("tcp: server listener closed", slog.String("server", s.String()))
				return
			}

			if tempDelay == 0 {
				tempDelay = 5 * time.Millisecond
			} else {
				tempDelay *= 2
			}
			if maxDelay := time.Second; tempDelay > maxDelay {
				tempDelay = maxDelay
			}
			s.fault(errors.Wrapf(err, "tcp: server %s accept", s), nil)

			timer := time.NewTimer(tempDelay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return
			}
			continue
		}

		tempDelay = 0
		s.connsWg.Add(1)
		safe.Go(func() {
			defer s.connsWg.Done()
			s.serveConn(ctx, raw)
		})
	}
}

func (s *Server) newPoller(ctx context.Context) *poller {
	return startPoller(ctx, s.PollInterval(), s.probes, s.logger)
}

func (s *Server) probes() []probe {
	conns := s.registry.snapshot()
	probes := make([]probe, len(conns))
	for i, c := range conns {
		probes[i] = c
	}
	return probes
}

// Stop asks the accept loop and every connection to wind down. It does not
// wait; Start returns once shutdown is complete. Stop is a no-op on a server
// that is not running.
func (s *Server) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Close stops the server and detaches every event subscriber. The server
// cannot be started again.
func (s *Server) Close() {
	s.mu.Lock()
	closed := s.closed.Swap(true)
	s.mu.Unlock()

	s.Stop()
	if !closed {
		s.events.detachAll()
	}
}
