package http

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
)

type ResponseWriter = http.ResponseWriter
type Request = http.Request
type Handler = func(ResponseWriter, *Request)
type Handlers = map[string]Handler

type Server struct {
	opts     serverOptions
	name     string
	addr     string
	serveWg  sync.WaitGroup
	mu       sync.Mutex
	lis      net.Listener
	lisAddr  atomic.Value
	server   *http.Server
	served   bool
	shutdown bool
	logger   *slog.Logger
}

func NewServer(name, addr string, handlers Handlers, opt ...ServerOption) *Server {
	if handlers == nil {
		panic("http: NewServer handlers is nil")
	}

	opts := defaultServerOptions()
	for _, o := range opt {
		o(&opts)
	}
	opts.ensure()

	mux := http.NewServeMux()
	for pattern, h := range handlers {
		handler := chain(opts.middlewares, h)
		mux.HandleFunc(pattern, func(w ResponseWriter, r *Request) {
			if opts.allowAllOrigins {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			}
			handler(w, r)
		})
	}

	return &Server{
		opts: opts,
		name: name,
		addr: addr,
		server: &http.Server{
			Handler:      mux,
			ReadTimeout:  opts.readTimeout,
			WriteTimeout: opts.writeTimeout,
		},
		logger: opts.logger,
	}
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
	if s.addr == "" {
		s.addr = ":http"
	}

	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return errors.Wrapf(err, "http: server %s listen", s)
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
		return errors.Errorf("http: server %s already shutdown", s)
	}
	if s.lis != nil {
		return errors.Errorf("http: server %s already listened", s)
	}

	s.lis = lis
	s.lisAddr.Store(lis.Addr().String())
	return nil
}

func (s *Server) Serve() error {
	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		return errors.Errorf("http: server %s already shutdown", s)
	}
	if s.served {
		s.mu.Unlock()
		return errors.Errorf("http: server %s already served", s)
	}
	if s.lis == nil {
		s.mu.Unlock()
		return errors.Errorf("http: server %s no listener", s)
	}
	s.served = true
	s.serveWg.Add(1)
	defer s.serveWg.Done()
	s.mu.Unlock()

	err := s.server.Serve(s.lis)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return errors.Wrapf(err, "http: server %s serve", s)
}

func (s *Server) Shutdown(ctx context.Context) {
	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		return
	}
	s.shutdown = true
	s.mu.Unlock()

	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Error("http: server shutdown", slog.String("server", s.String()),
			slog.Any("error", errors.WithStack(err)))
	}
	s.serveWg.Wait()
}

func Error(w ResponseWriter, error string, code int) {
	http.Error(w, error, code)
}
