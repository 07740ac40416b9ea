package grpc

import (
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type Server struct {
	opts     serverOptions
	name     string
	addr     string
	serveWg  sync.WaitGroup
	mu       sync.Mutex
	lis      net.Listener
	lisAddr  atomic.Value
	server   *grpc.Server
	health   *health.Server
	served   bool
	shutdown bool
	logger   *slog.Logger
}

// NewServer creates a server with the standard health service registered.
func NewServer(name, addr string, opt ...ServerOption) *Server {
	opts := defaultServerOptions()
	for _, o := range opt {
		o(&opts)
	}
	opts.ensure()


	s := &Server{
		opts:   opts,
		name:   name,
		addr:   addr,
		server: grpc.NewServer(grpc.ChainUnaryInterceptor(opts.interceptors()...)),
		health: health.NewServer(),
		logger: opts.logger,
	}
	healthpb.RegisterHealthServer(s.server, s.health)

	return s
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

func (s *Server) ListenAndServe() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

func (s *Server) Listen() error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return errors.Wrapf(err, "grpc: server %s listen", s)
	}

	if err = s.Attach(lis); err != nil {
		_ = lis.Close()
		return err
	}
	return nil
}

// Attach makes Serve use lis, for listeners shared with other protocols.
func (s *Server) Attach(lis net.Listener) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.shutdown {
		return errors.Errorf("grpc: server %s already shutdown", s)
	}
	if s.lis != nil {
		return errors.Errorf("grpc: server %s already listened", s)
	}

	s.lis = lis
	s.lisAddr.Store(lis.Addr().String())
	return nil
}

func (s *Server) Serve() error {
	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		return errors.Errorf("grpc: server %s already shutdown", s)
	}
	if s.served {
		s.mu.Unlock()
		return errors.Errorf("grpc: server %s already served", s)
	}
	if s.lis == nil {
		s.mu.Unlock()
		return errors.Errorf("grpc: server %s no listener", s)
	}
	s.served = true
	s.serveWg.Add(1)
	defer s.serveWg.Done()
	s.mu.Unlock()

	if err := s.server.Serve(s.lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return errors.Wrapf(err, "grpc: server %s serve", s)
	}
	return nil
}

func (s *Server) Shutdown() {
	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		return
	}
	s.shutdown = true
	s.mu.Unlock()

	s.health.Shutdown()
	s.server.GracefulStop()
	s.serveWg.Wait()
	s.logger.Debug("grpc: server shutdown", slog.String("server", s.String()))
}

// SetServingStatus reports service through the health service. The empty
// service name is the overall server status.
func (s *Server) SetServingStatus(service string, serving bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(service, st)
}

func (s *Server) RegisterService(desc *grpc.ServiceDesc, impl any) {
	s.server.RegisterService(desc, impl)
}
