package tcp

import (
	"context"
	"log/slog"
	"time"

	"github.com/hsgames/tcplib/safe"
)

type probe interface {
	IsActive() bool
	Disconnect()
}

type poller struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// startPoller sweeps snapshot() every interval until ctx is done or stop is
// called. It returns nil when interval <= 0.
func startPoller(ctx context.Context, interval time.Duration,
	snapshot func() []probe, logger *slog.Logger) *poller {

	if interval <= 0 {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	p := &poller{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	safe.Go(func() {
		defer close(p.done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := sweep(snapshot()); n > 0 {
					logger.Debug("tcp: poller disconnected dead conns", slog.Int("count", n))
				}
			}
		}
	})

	return p
}

func (p *poller) stop() {
	if p == nil {
		return
	}
	p.cancel()
	<-p.done
}

func sweep(probes []probe) int {
	var n int
	for _, p := range probes {
		if !p.IsActive() {
			p.Disconnect()
			n++
		}
	}
	return n
}
