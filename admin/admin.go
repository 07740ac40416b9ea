// Package admin serves the operational surface of a tcp.Server on a single
// port: gRPC health checks, pprof, a connection listing, process stats and a
// websocket stream of connection events.
package admin

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hsgames/tcplib/net/grpc"
	tcphttp "github.com/hsgames/tcplib/net/http"
	"github.com/hsgames/tcplib/net/tcp"
	"github.com/hsgames/tcplib/net/ws"
	"github.com/hsgames/tcplib/safe"
	"github.com/pkg/errors"
	"github.com/soheilhy/cmux"
)

type Server struct {
	opts      options
	name      string
	addr      string
	target    *tcp.Server
	http      *tcphttp.Server
	grpc      *grpc.Server
	events    *ws.Server
	hooks     []unhooker
	createdAt time.Time
	mu        sync.Mutex
	lis       net.Listener
	lisAddr   atomic.Value
	served    bool
	shutdown  bool
	logger    *slog.Logger
}

// Subscribers only listen; anything larger than this from them is dropped
// along with the stream.
const subscriberReadLimit = 512

func New(name, addr string, target *tcp.Server, opt ...Option) (*Server, error) {
	if target == nil {
		return nil, errors.New("admin: target server is nil")
	}

	opts := defaultOptions()
	for _, o := range opt {
		o(&opts)
	}
	opts.ensure()

	events, err := ws.NewServer(name+"_events",
		ws.ServerMaxConnNum(opts.maxSubscribers),
		ws.ServerMaxWriteQueueSize(opts.subscriberBacklog),
		ws.ServerMsgType(ws.TextMessage),
		ws.ServerMaxReadMsgSize(subscriberReadLimit),
		ws.ServerCheckOrigin(opts.checkOrigin),
		ws.ServerLogger(opts.logger))
	if err != nil {
		return nil, err
	}

	s := &Server{
		opts:      opts,
		name:      name,
		addr:      addr,
		target:    target,
		events:    events,
		createdAt: time.Now(),
		logger:    opts.logger,
	}
	s.grpc = grpc.NewServer(name+"_grpc", addr, grpc.ServerLogger(opts.logger))
	s.http = tcphttp.NewServer(name+"_http", addr, s.handlers(), tcphttp.ServerLogger(opts.logger))

	s.setServing(target.IsRunning())
	s.hooks = s.watch()

	return s, nil
}

func (s *Server) String() string {
	return fmt.Sprintf("[name:%s][listen_addr:%s]", s.Name(), s.Addr())
}

func (s *Server) Name() string {
	return s.name
}

func (s *Server) Addr() string {
	if lisAddr, _ := s.lisAddr.Load().(string); lisAddr != "" {
		return lisAddr
	}
	return s.addr
}

// setServing reports the target through both the overall health status and
// the status named after the target.
func (s *Server) setServing(serving bool) {
	s.grpc.SetServingStatus("", serving)
	s.grpc.SetServingStatus(s.target.Name(), serving)
}

func (s *Server) ListenAndServe() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.shutdown {
		return errors.Errorf("admin: server %s already shutdown", s)
	}
	if s.lis != nil {
		return errors.Errorf("admin: server %s already listened", s)
	}

	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return errors.Wrapf(err, "admin: server %s listen", s)
	}
	s.lis = lis
	s.lisAddr.Store(lis.Addr().String())

	return nil
}

// Serve splits the listener between gRPC and HTTP/1 and blocks until
// Shutdown.
func (s *Server) Serve() error {
	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		return errors.Errorf("admin: server %s already shutdown", s)
	}
	if s.served {
		s.mu.Unlock()
		return errors.Errorf("admin: server %s already served", s)
	}
	if s.lis == nil {
		s.mu.Unlock()
		return errors.Errorf("admin: server %s no listener", s)
	}
	s.served = true
	lis := s.lis
	s.mu.Unlock()

	m := cmux.New(lis)
	grpcL := m.MatchWithWriters(cmux.HTTP2MatchHeaderFieldSendSettings("content-type", "application/grpc"))
	httpL := m.Match(cmux.Any())

	if err := s.grpc.Attach(grpcL); err != nil {
		return err
	}
	if err := s.http.Attach(httpL); err != nil {
		return err
	}

	s.logger.Info("admin: server listen", slog.String("server", s.String()),
		slog.String("target", s.target.Name()))

	var wg sync.WaitGroup
	errChan := make(chan error, 3)
	serve := func(f func() error) {
		wg.Add(1)
		safe.Go(func() {
			defer wg.Done()
			if err := f(); err != nil {
				errChan <- err
			}
		})
	}
	serve(s.grpc.Serve)
	serve(s.http.Serve)
	serve(m.Serve)

	err := <-errChan
	if s.isShutdown() {
		err = nil
	} else {
		s.Shutdown()
	}
	wg.Wait()

	if err != nil {
		return errors.Wrapf(err, "admin: server %s serve", s)
	}
	s.logger.Info("admin: server shutdown", slog.String("server", s.String()))
	return nil
}

func (s *Server) isShutdown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shutdown
}

// Shutdown detaches from the target, closes the event streams and stops both
// protocol servers. The target itself is left running.
func (s *Server) Shutdown() {
	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		return
	}
	s.shutdown = true
	lis := s.lis
	s.mu.Unlock()

	for _, h := range s.hooks {
		h.Unhook()
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.opts.shutdownTimeout)
	defer cancel()

	s.events.Shutdown()
	s.grpc.Shutdown()
	s.http.Shutdown(ctx)
	if lis != nil {
		if err := lis.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.logger.Error("admin: server close listener", slog.String("server", s.String()),
				slog.Any("error", errors.WithStack(err)))
		}
	}
}
