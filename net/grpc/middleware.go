package grpc

import (
	"context"
	"log/slog"

	"github.com/hsgames/tcplib/safe"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type Handler func(ctx context.Context, req any) (resp any, err error)

type Middleware func(Handler) Handler

// NewRecoverMiddleware turns a handler panic into codes.Internal.
func NewRecoverMiddleware(logger *slog.Logger) Middleware {
	return func(h Handler) Handler {
		return func(ctx context.Context, req any) (resp any, err error) {
			var panicErr error
			func() {
				defer safe.RecoverError(&panicErr)
				resp, err = h(ctx, req)
			}()
			if panicErr != nil {
				logger.Error("grpc: recover middleware", slog.Any("error", panicErr))
				return nil, status.Error(codes.Internal, "internal error")
			}
			return resp, err
		}
	}
}

// NewContextMiddleware fails calls whose context is already done.
func NewContextMiddleware() Middleware {
	return func(h Handler) Handler {
		return func(ctx context.Context, req any) (any, error) {
			if err := ctx.Err(); err != nil {
				return nil, status.FromContextError(err).Err()
			}
			return h(ctx, req)
		}
	}
}

func UnaryServerInterceptor(m Middleware) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any,
		info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		h := func(ctx context.Context, req any) (any, error) {
			return handler(ctx, req)
		}
		if m != nil {
			h = m(h)
		}
		return h(ctx, req)
	}
}

func UnaryClientInterceptor(m Middleware) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any,
		cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		h := func(ctx context.Context, req any) (any, error) {
			return reply, invoker(ctx, method, req, reply, cc, opts...)
		}
		if m != nil {
			h = m(h)
		}
		_, err := h(ctx, req)
		return err
	}
}
