package grpc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

func TestServerHealth(t *testing.T) {
	s := NewServer("test", "127.0.0.1:0")
	require.NoError(t, s.Listen())
	assert.Error(t, s.Listen())

	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve() }()
	defer func() {
		s.Shutdown()
		require.NoError(t, <-errCh)
	}()

	cc, err := NewClient(s.Addr())
	require.NoError(t, err)
	defer cc.Close()

	client := healthpb.NewHealthClient(cc)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)

	s.SetServingStatus("tcp", false)
	resp, err = client.Check(ctx, &healthpb.HealthCheckRequest{Service: "tcp"})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.Status)

	s.SetServingStatus("tcp", true)
	resp, err = client.Check(ctx, &healthpb.HealthCheckRequest{Service: "tcp"})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)

	_, err = client.Check(ctx, &healthpb.HealthCheckRequest{Service: "unknown"})
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestRecoverMiddleware(t *testing.T) {
	m := NewRecoverMiddleware(nopLogger())

	h := m(func(ctx context.Context, req any) (any, error) {
		panic("boom")
	})
	resp, err := h(context.Background(), nil)
	assert.Nil(t, resp)
	assert.Equal(t, codes.Internal, status.Code(err))

	want := status.Error(codes.InvalidArgument, "bad")
	h = m(func(ctx context.Context, req any) (any, error) {
		return nil, want
	})
	_, err = h(context.Background(), nil)
	assert.Equal(t, want, err)

	h = m(func(ctx context.Context, req any) (any, error) {
		return req, nil
	})
	resp, err = h(context.Background(), "ok")
	require.NoError(t, err)
	assert.Equal(t, "ok", resp)
}

func TestContextMiddleware(t *testing.T) {
	var called bool
	h := NewContextMiddleware()(func(ctx context.Context, req any) (any, error) {
		called = true
		return nil, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := h(ctx, nil)
	assert.Equal(t, codes.Canceled, status.Code(err))
	assert.False(t, called)

	_, err = h(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, called)
}
