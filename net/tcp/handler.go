package tcp

import (
	"context"
	"log/slog"
	"net"

	"github.com/hsgames/tcplib/safe"
)

// serveConn drives one accepted socket from handshake to the Closed event.
// Nothing it does may escape to the accept loop.
func (s *Server) serveConn(ctx context.Context, raw net.Conn) {
	c := newConn(s, ctx, raw, s.tlsConfig())

	if err := c.handshake(s.handshakeTimeout()); err != nil {
		c.finish()
		if ctx.Err() == nil {
			s.fault(err, c)
		}
		return
	}

	// Registered conns are never seen in StateCreated.
	c.state.CompareAndSwap(int32(StateCreated), int32(StateActive))
	s.registry.add(c)
	defer s.cleanup(c)

	s.logger.Debug("tcp: conn open", slog.String("conn", c.String()))

	err := func() (err error) {
		defer safe.RecoverError(&err)
		s.events.Opened.Trigger(c)
		return c.receive()
	}()
	if err != nil {
		s.fault(err, c)
	}
}

func (s *Server) cleanup(c *Conn) {
	s.registry.remove(c)
	c.finish()
	s.logger.Debug("tcp: conn closed", slog.String("conn", c.String()),
		slog.Uint64("read_bytes", c.ReadBytes()), slog.Uint64("write_bytes", c.WriteBytes()))
	s.events.Closed.Trigger(c)
}

func (s *Server) fault(err error, c *Conn) {
	attrs := []any{slog.String("server", s.String()), slog.Any("error", err)}
	if c != nil {
		attrs = append(attrs, slog.String("conn", c.String()))
	}
	s.logger.Error("tcp: fault", attrs...)
	s.events.Fault.Trigger(&FaultEvent{Err: err, Conn: c})
}
