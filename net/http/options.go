package http

import (
	"log/slog"
	"time"
)

type serverOptions struct {
	middlewares     []Middleware
	readTimeout     time.Duration
	writeTimeout    time.Duration
	allowAllOrigins bool
	logger          *slog.Logger
}

func defaultServerOptions() serverOptions {
	return serverOptions{
		allowAllOrigins: true,
	}
}

func (opts *serverOptions) ensure() {
	if opts.logger == nil {
		opts.logger = slog.Default()
	}
	opts.middlewares = append([]Middleware{NewRecoverMiddleware(opts.logger)}, opts.middlewares...)
}

type ServerOption func(o *serverOptions)

func ServerChainMiddleware(ms ...Middleware) ServerOption {
	return func(o *serverOptions) {
		o.middlewares = append(o.middlewares, ms...)
	}
}

func ServerReadTimeout(readTimeout time.Duration) ServerOption {
	return func(o *serverOptions) {
		o.readTimeout = readTimeout
	}
}

// ServerWriteTimeout must stay 0 for servers that hijack connections for
// long lived streams.
func ServerWriteTimeout(writeTimeout time.Duration) ServerOption {
	return func(o *serverOptions) {
		o.writeTimeout = writeTimeout
	}
}

func ServerAllowAllOrigins(allowAllOrigins bool) ServerOption {
	return func(o *serverOptions) {
		o.allowAllOrigins = allowAllOrigins
	}
}

func ServerLogger(logger *slog.Logger) ServerOption {
	return func(o *serverOptions) {
		o.logger = logger
	}
}
