package ws

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hsgames/tcplib/id"
	"github.com/pkg/errors"
)

// Server fans messages out to every websocket subscriber. It is an
// http.Handler and is mounted on an existing mux.
type Server struct {
	opts     serverOptions
	name     string
	upgrader *websocket.Upgrader
	connsWg  sync.WaitGroup
	connsMu  sync.Mutex
	conns    map[*Conn]struct{}
	connSeq  id.Seq
	shutdown bool
	logger   *slog.Logger
}

func NewServer(name string, opt ...ServerOption) (*Server, error) {
	opts := defaultServerOptions()
	for _, o := range opt {
		o(&opts)
	}

	if err := opts.check(); err != nil {
		return nil, err
	}

	s := &Server{
		opts:   opts,
		name:   name,
		conns:  make(map[*Conn]struct{}),
		logger: opts.logger,
	}
	s.upgrader = &websocket.Upgrader{}
	if !opts.checkOrigin {
		s.upgrader.CheckOrigin = func(*http.Request) bool { return true }
	}

	return s, nil
}

func (s *Server) String() string {
	return fmt.Sprintf("[name:%s]", s.name)
}

func (s *Server) Name() string {
	return s.name
}

func (s *Server) ConnNum() int {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	return len(s.conns)
}

// Broadcast queues data on every subscriber and returns how many accepted it.
func (s *Server) Broadcast(data []byte) int {
	s.connsMu.Lock()
	conns := make([]*Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.connsMu.Unlock()

	var n int
	for _, c := range conns {
		if c.Write(data) {
			n++
		}
	}
	return n
}

// Shutdown closes every subscriber and waits for them to finish. Later
// upgrades are refused.
func (s *Server) Shutdown() {
	s.connsMu.Lock()
	s.shutdown = true
	for c := range s.conns {
		c.Close()
	}
	s.connsMu.Unlock()

	s.connsWg.Wait()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws: server upgrade", slog.String("server", s.String()),
			slog.Any("error", errors.WithStack(err)))
		return
	}

	s.connsMu.Lock()
	if s.shutdown || (s.opts.maxConnNum > 0 && len(s.conns) >= s.opts.maxConnNum) {
		s.connsMu.Unlock()
		s.logger.Warn("ws: server refuse conn", slog.String("server", s.String()),
			slog.String("remote_addr", conn.RemoteAddr().String()))
		msg := websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(s.opts.writeTimeout))
		_ = conn.Close()
		return
	}
	c := newConn(fmt.Sprintf("%s_%d", s.name, s.connSeq.Next()), conn, s.opts.connOptions, s.logger)
	s.conns[c] = struct{}{}
	s.connsWg.Add(1)
	s.connsMu.Unlock()

	defer s.connsWg.Done()
	s.logger.Debug("ws: conn open", slog.String("conn", c.String()))

	c.serve()

	s.connsMu.Lock()
	delete(s.conns, c)
	s.connsMu.Unlock()
	s.logger.Debug("ws: conn closed", slog.String("conn", c.String()),
		slog.Uint64("write_bytes", c.WriteBytes()))
}
