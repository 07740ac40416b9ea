package ws

import (
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

const (
	BinaryMessage = websocket.BinaryMessage
	TextMessage   = websocket.TextMessage
)

type connOptions struct {
	maxWriteQueueSize    int
	writeQueueShrinkSize int
	maxReadMsgSize       int
	msgType              int
	writeTimeout         time.Duration
}

func defaultConnOptions() connOptions {
	return connOptions{
		maxWriteQueueSize:    1024,
		writeQueueShrinkSize: 64 * 1024,
		maxReadMsgSize:       4096,
		msgType:              TextMessage,
		writeTimeout:         10 * time.Second,
	}
}

func (opts *connOptions) check() error {
	if opts.maxReadMsgSize <= 0 {
		return errors.Errorf("ws: max read msg size [%d] <= 0", opts.maxReadMsgSize)
	}
	if opts.writeTimeout <= 0 {
		return errors.Errorf("ws: write timeout [%s] <= 0", opts.writeTimeout)
	}
	switch opts.msgType {
	case BinaryMessage, TextMessage:
	default:
		return errors.Errorf("ws: msg type [%d] not in (BinaryMessage, TextMessage)", opts.msgType)
	}
	return nil
}

type serverOptions struct {
	connOptions
	maxConnNum  int
	checkOrigin bool
	logger      *slog.Logger
}

func defaultServerOptions() serverOptions {
	return serverOptions{
		connOptions: defaultConnOptions(),
		checkOrigin: true,
	}
}

func (opts *serverOptions) check() error {
	if opts.logger == nil {
		opts.logger = slog.Default()
	}
	return opts.connOptions.check()
}

type ServerOption func(o *serverOptions)

// ServerMaxWriteQueueSize bounds the messages pending per subscriber. A
// subscriber that falls further behind is disconnected. Zero is unbounded.
func ServerMaxWriteQueueSize(maxWriteQueueSize int) ServerOption {
	return func(o *serverOptions) {
		o.maxWriteQueueSize = maxWriteQueueSize
	}
}

func ServerMaxReadMsgSize(maxReadMsgSize int) ServerOption {
	return func(o *serverOptions) {
		o.maxReadMsgSize = maxReadMsgSize
	}
}

func ServerMsgType(msgType int) ServerOption {
	return func(o *serverOptions) {
		o.msgType = msgType
	}
}

func ServerWriteTimeout(writeTimeout time.Duration) ServerOption {
	return func(o *serverOptions) {
		o.writeTimeout = writeTimeout
	}
}

func ServerMaxConnNum(maxConnNum int) ServerOption {
	return func(o *serverOptions) {
		o.maxConnNum = maxConnNum
	}
}

// ServerCheckOrigin false accepts upgrades from any origin.
func ServerCheckOrigin(checkOrigin bool) ServerOption {
	return func(o *serverOptions) {
		o.checkOrigin = checkOrigin
	}
}

func ServerLogger(logger *slog.Logger) ServerOption {
	return func(o *serverOptions) {
		o.logger = logger
	}
}
