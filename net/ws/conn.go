package ws

import (
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hsgames/tcplib/container/queue"
	"github.com/hsgames/tcplib/safe"
	"github.com/pkg/errors"
)

// Conn is one stream subscriber. Messages are queued by Write and sent by
// the conn's own writer, so a slow peer never blocks the publisher.
type Conn struct {
	opts       connOptions
	name       string
	conn       *websocket.Conn
	writeQueue *queue.MPSCQueue[[]byte]
	writeBytes atomic.Uint64
	closed     atomic.Bool
	logger     *slog.Logger
}

func newConn(name string, conn *websocket.Conn, opts connOptions, logger *slog.Logger) *Conn {
	conn.SetReadLimit(int64(opts.maxReadMsgSize))
	return &Conn{
		opts:       opts,
		name:       name,
		conn:       conn,
		writeQueue: queue.NewMPSCQueue[[]byte](opts.maxWriteQueueSize, opts.writeQueueShrinkSize),
		logger:     logger,
	}
}

func (c *Conn) String() string {
	return fmt.Sprintf("[name:%s][local_addr:%s][remote_addr:%s]",
		c.Name(), c.LocalAddr(), c.RemoteAddr())
}

func (c *Conn) Name() string {
	return c.name
}

func (c *Conn) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

func (c *Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

func (c *Conn) WriteBytes() uint64 {
	return c.writeBytes.Load()
}

func (c *Conn) IsClosed() bool {
	return c.closed.Load()
}

// Write queues data. It reports false when the conn is closed or its queue
// overflowed, in which case the conn is closed.
func (c *Conn) Write(data []byte) bool {
	if c.IsClosed() || len(data) == 0 {
		return false
	}
	if !c.writeQueue.Push(data) {
		if !c.closed.Swap(true) {
			c.logger.Warn("ws: conn write queue overflow", slog.String("conn", c.String()))
		}
		return false
	}
	return true
}

// Close flushes what is queued, sends a close frame and closes the socket.
func (c *Conn) Close() {
	c.closed.Store(true)
	c.writeQueue.Close()
}

func (c *Conn) serve() {
	var wg sync.WaitGroup
	wg.Add(1)
	safe.Go(func() {
		defer wg.Done()
		c.read()
	})
	c.write()
	wg.Wait()
}

// read only watches for the peer going away; subscribers do not talk back.
func (c *Conn) read() {
	defer c.Close()
	for {
		if _, _, err := c.conn.NextReader(); err != nil {
			if !c.IsClosed() && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Debug("ws: conn read", slog.String("conn", c.String()), slog.Any("error", err))
			}
			return
		}
	}
}

func (c *Conn) write() {
	defer func() {
		if err := c.conn.Close(); err != nil {
			c.logger.Debug("ws: conn close", slog.String("conn", c.String()),
				slog.Any("error", errors.WithStack(err)))
		}
	}()

	for {
		batch, ok := c.writeQueue.Pop()
		if !ok {
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.opts.writeTimeout))
			return
		}
		for _, data := range batch {
			if err := c.writeMessage(data); err != nil {
				c.Close()
				c.logger.Debug("ws: conn write", slog.String("conn", c.String()), slog.Any("error", err))
				return
			}
		}
	}
}

func (c *Conn) writeMessage(data []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.opts.writeTimeout)); err != nil {
		return errors.WithStack(err)
	}
	if err := c.conn.WriteMessage(c.opts.msgType, data); err != nil {
		return errors.WithStack(err)
	}
	c.writeBytes.Add(uint64(len(data)))
	return nil
}
