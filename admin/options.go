package admin

import (
	"log/slog"
	"time"
)

type options struct {
	pprof             bool
	checkOrigin       bool
	maxSubscribers    int
	subscriberBacklog int
	shutdownTimeout   time.Duration
	logger            *slog.Logger
}

func defaultOptions() options {
	return options{
		pprof:             true,
		checkOrigin:       true,
		maxSubscribers:    16,
		subscriberBacklog: 1024,
		shutdownTimeout:   5 * time.Second,
	}
}

func (o *options) ensure() {
	if o.logger == nil {
		o.logger = slog.Default()
	}
}

type Option func(o *options)

func WithPProf(enabled bool) Option {
	return func(o *options) {
		o.pprof = enabled
	}
}

// WithCheckOrigin false lets browsers on any origin open /events.
func WithCheckOrigin(check bool) Option {
	return func(o *options) {
		o.checkOrigin = check
	}
}

// WithMaxSubscribers caps concurrent /events streams. Zero is unlimited.
func WithMaxSubscribers(n int) Option {
	return func(o *options) {
		o.maxSubscribers = n
	}
}

// WithSubscriberBacklog bounds the records pending per /events stream. A
// stream that falls further behind is dropped.
func WithSubscriberBacklog(n int) Option {
	return func(o *options) {
		o.subscriberBacklog = n
	}
}

func WithShutdownTimeout(timeout time.Duration) Option {
	return func(o *options) {
		o.shutdownTimeout = timeout
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}
