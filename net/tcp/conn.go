package tcp

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hsgames/tcplib/pool/bytespool"
	"github.com/pkg/errors"
)

const closeNotifyTimeout = time.Second

var aLongTimeAgo = time.Unix(1, 0)

type ConnState int32

const (
	StateCreated ConnState = iota
	StateActive
	StateDisconnecting
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateActive:
		return "active"
	case StateDisconnecting:
		return "disconnecting"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("ConnState(%d)", int32(s))
	}
}

// Conn is one accepted connection. It exclusively owns its transport, which
// is the accepted socket or a TLS stream over it.
type Conn struct {
	id          uuid.UUID
	seq         uint64
	name        string
	server      *Server
	raw         net.Conn
	tcp         *net.TCPConn
	conn        net.Conn
	ctx         context.Context
	cancel      context.CancelFunc
	stopRelease func() bool
	state       atomic.Int32
	timeout     atomic.Int64
	bufferSize  atomic.Int32
	readPool    bool
	writeMu     sync.Mutex
	releaseOnce sync.Once
	readBytes   atomic.Uint64
	writeBytes  atomic.Uint64
	userData    atomic.Value
	logger      *slog.Logger
}

func newConn(s *Server, parent context.Context, raw net.Conn, tlsConfig *tls.Config) *Conn {
	seq := s.seq.Next()
	ctx, cancel := context.WithCancel(parent)

	c := &Conn{
		id:       uuid.New(),
		seq:      seq,
		name:     fmt.Sprintf("%s_%d", s.name, seq),
		server:   s,
		raw:      raw,
		conn:     raw,
		ctx:      ctx,
		cancel:   cancel,
		readPool: s.opts.readPool,
		logger:   s.logger,
	}
	c.tcp, _ = raw.(*net.TCPConn)
	if tlsConfig != nil {
		c.conn = tls.Server(raw, tlsConfig)
	}
	c.timeout.Store(int64(s.Timeout()))
	c.bufferSize.Store(int32(s.BufferSize()))
	c.stopRelease = context.AfterFunc(ctx, c.release)

	return c
}

func (c *Conn) String() string {
	return fmt.Sprintf("[name:%s][local_addr:%s][remote_addr:%s]",
		c.Name(), c.LocalAddr(), c.RemoteAddr())
}

func (c *Conn) ID() uuid.UUID {
	return c.id
}

func (c *Conn) Name() string {
	return c.name
}

// Addr is the remote endpoint.
func (c *Conn) Addr() string {
	return c.RemoteAddr().String()
}

func (c *Conn) LocalAddr() net.Addr {
	return c.raw.LocalAddr()
}

func (c *Conn) RemoteAddr() net.Addr {
	return c.raw.RemoteAddr()
}

func (c *Conn) Server() *Server {
	return c.server
}

func (c *Conn) State() ConnState {
	return ConnState(c.state.Load())
}

func (c *Conn) Encrypted() bool {
	_, ok := c.conn.(*tls.Conn)
	return ok
}

// ConnectionState returns the TLS state, ok is false for plain connections.
func (c *Conn) ConnectionState() (state tls.ConnectionState, ok bool) {
	tc, ok := c.conn.(*tls.Conn)
	if !ok {
		return tls.ConnectionState{}, false
	}
	return tc.ConnectionState(), true
}

func (c *Conn) Timeout() time.Duration {
	return time.Duration(c.timeout.Load())
}

// SetTimeout applies to the next read or write on the connection.
func (c *Conn) SetTimeout(timeout time.Duration) error {
	if err := checkTimeout(timeout); err != nil {
		return err
	}
	c.timeout.Store(int64(timeout))
	return nil
}

func (c *Conn) BufferSize() int {
	return int(c.bufferSize.Load())
}

func (c *Conn) SetBufferSize(size int) error {
	if err := checkBufferSize(size); err != nil {
		return err
	}
	c.bufferSize.Store(int32(size))
	return nil
}

func (c *Conn) ReadBytes() uint64 {
	return c.readBytes.Load()
}

func (c *Conn) WriteBytes() uint64 {
	return c.writeBytes.Load()
}

func (c *Conn) UserData() any {
	return c.userData.Load()
}

func (c *Conn) SetUserData(data any) {
	c.userData.Store(data)
}

// Context is done once the connection is disconnecting or the server stops.
func (c *Conn) Context() context.Context {
	return c.ctx
}

// IsActive is a cheap non-blocking liveness probe. It reports false once the
// connection is disconnecting, and otherwise asks the socket whether the peer
// is still there.
func (c *Conn) IsActive() bool {
	if c.State() != StateActive || c.ctx.Err() != nil {
		return false
	}
	if c.tcp == nil {
		return true
	}
	return probeConnected(c.tcp)
}

// Disconnect cancels the connection and shuts its transport down. It is safe
// to call any number of times from any goroutine.
func (c *Conn) Disconnect() {
	for {
		s := c.state.Load()
		if ConnState(s) >= StateDisconnecting ||
			c.state.CompareAndSwap(s, int32(StateDisconnecting)) {
			break
		}
	}
	c.cancel()
	c.release()
}

func (c *Conn) release() {
	c.releaseOnce.Do(func() {
		// Bound close_notify and unblock a writer stuck on a peer that does
		// not read.
		_ = c.raw.SetWriteDeadline(time.Now().Add(closeNotifyTimeout))
		if tc, ok := c.conn.(*tls.Conn); ok {
			_ = tc.CloseWrite()
		}
		if c.tcp != nil {
			_ = c.tcp.CloseWrite()
			_ = c.tcp.CloseRead()
		}
		if err := c.raw.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			c.logger.Debug("tcp: conn close", slog.String("conn", c.String()), slog.Any("error", err))
		}
	})
}

// finish moves the connection to Closed and releases everything it holds.
func (c *Conn) finish() {
	c.Disconnect()
	c.stopRelease()
	c.state.Store(int32(StateClosed))
}

func (c *Conn) handshake(timeout time.Duration) error {
	tc, ok := c.conn.(*tls.Conn)
	if !ok {
		return nil
	}

	ctx, cancel := context.WithTimeout(c.ctx, timeout)
	defer cancel()

	if err := tc.HandshakeContext(ctx); err != nil {
		return errors.Wrapf(err, "tcp: conn %s tls handshake", c)
	}
	return nil
}

// Send writes all of data. The write is bounded by the connection timeout and
// aborted when ctx or the connection is cancelled. Sending on an inactive
// connection disconnects it and returns nil. A write fault is reported as a
// Fault event, disconnects the connection and is returned.
func (c *Conn) Send(ctx context.Context, data []byte) error {
	if len(data) == 0 {
		return nil
	}

	if !c.IsActive() {
		c.Disconnect()
		return nil
	}

	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	var deadline time.Time
	if timeout := c.Timeout(); timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return c.writeFailed(ctx, err)
	}

	aborted := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		defer close(aborted)
		_ = c.conn.SetWriteDeadline(aLongTimeAgo)
	})
	defer func() {
		// A running abort must land before writeMu is released, or it
		// would clobber the next Send's deadline.
		if !stop() {
			<-aborted
		}
	}()

	n, err := c.conn.Write(data)
	c.writeBytes.Add(uint64(n))
	if err != nil {
		return c.writeFailed(ctx, err)
	}
	return nil
}

func (c *Conn) writeFailed(ctx context.Context, err error) error {
	defer c.Disconnect()

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if c.ctx.Err() != nil {
		return errors.Wrapf(net.ErrClosed, "tcp: conn %s send", c)
	}

	err = errors.Wrapf(err, "tcp: conn %s write", c)
	c.server.fault(err, c)
	return err
}

// receive reads until EOF, cancellation or a read fault. Only the fault is
// returned.
func (c *Conn) receive() error {
	for {
		if c.ctx.Err() != nil {
			return nil
		}

		size := c.BufferSize()
		var buf []byte
		if c.readPool {
			buf = bytespool.Get(size)
		} else {
			buf = make([]byte, size)
		}

		n, err := c.read(buf)
		if n > 0 {
			c.readBytes.Add(uint64(n))
			c.server.events.Data.Trigger(&DataEvent{Conn: c, Buffer: buf, N: n})
		}
		if c.readPool {
			bytespool.Put(buf)
		}

		if err != nil {
			if c.ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			return errors.Wrapf(err, "tcp: conn %s read", c)
		}
	}
}

func (c *Conn) read(buf []byte) (int, error) {
	var deadline time.Time
	if timeout := c.Timeout(); timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return 0, err
	}
	return c.conn.Read(buf)
}
