package grpc

import (
	"log/slog"

	"google.golang.org/grpc"
)

type serverOptions struct {
	logger *slog.Logger
}

func defaultServerOptions() serverOptions {
	return serverOptions{}
}

func (opts *serverOptions) ensure() {
	if opts.logger == nil {
		opts.logger = slog.Default()
	}
}

func (opts *serverOptions) interceptors() []grpc.UnaryServerInterceptor {
	return []grpc.UnaryServerInterceptor{
		UnaryServerInterceptor(NewRecoverMiddleware(opts.logger)),
		UnaryServerInterceptor(NewContextMiddleware()),
	}
}

type ServerOption func(o *serverOptions)

func ServerLogger(logger *slog.Logger) ServerOption {
	return func(o *serverOptions) {
		o.logger = logger
	}
}
