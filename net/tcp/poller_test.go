package tcp

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProbe struct {
	active       atomic.Bool
	disconnected atomic.Int32
}

func newFakeProbe(active bool) *fakeProbe {
	p := &fakeProbe{}
	p.active.Store(active)
	return p
}

func (p *fakeProbe) IsActive() bool {
	return p.active.Load()
}

func (p *fakeProbe) Disconnect() {
	p.active.Store(false)
	p.disconnected.Add(1)
}

func TestSweep(t *testing.T) {
	live := newFakeProbe(true)
	dead := newFakeProbe(false)

	assert.Equal(t, 1, sweep([]probe{live, dead}))
	assert.Equal(t, int32(0), live.disconnected.Load())
	assert.Equal(t, int32(1), dead.disconnected.Load())

	assert.Equal(t, 0, sweep(nil))
}

func TestPollerDisabled(t *testing.T) {
	p := startPoller(context.Background(), 0, nil, slog.Default())
	assert.Nil(t, p)
	p.stop()
}

func TestPollerSweepsDeadProbes(t *testing.T) {
	live := newFakeProbe(true)
	dead := newFakeProbe(false)
	snapshot := func() []probe { return []probe{live, dead} }

	p := startPoller(context.Background(), 10*time.Millisecond, snapshot, slog.Default())
	require.NotNil(t, p)
	defer p.stop()

	require.Eventually(t, func() bool {
		return dead.disconnected.Load() > 0
	}, time.Second, 5*time.Millisecond)

	live.active.Store(false)
	require.Eventually(t, func() bool {
		return live.disconnected.Load() > 0
	}, time.Second, 5*time.Millisecond)
}

func TestPollerStopsWithContext(t *testing.T) {
	var ticks atomic.Int32
	snapshot := func() []probe {
		ticks.Add(1)
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := startPoller(ctx, 5*time.Millisecond, snapshot, slog.Default())
	require.Eventually(t, func() bool { return ticks.Load() > 0 }, time.Second, time.Millisecond)

	cancel()
	select {
	case <-p.done:
	case <-time.After(time.Second):
		t.Fatal("poller did not exit")
	}

	n := ticks.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, n, ticks.Load())

	p.stop()
}
