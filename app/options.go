package app

import (
	"log/slog"
	"os"
	"syscall"
)

type SignalHandler func(a *App, sig os.Signal) (done bool)

type options struct {
	sigs       []os.Signal
	sigHandler SignalHandler
	logger     *slog.Logger
}

func defaultOptions() options {
	return options{
		sigs: []os.Signal{
			syscall.SIGTERM,
			syscall.SIGQUIT,
			syscall.SIGINT,
		},
		sigHandler: func(a *App, sig os.Signal) bool {
			switch sig {
			case syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGINT:
				a.logger.Info("app: handle shutdown signal", slog.String("signal", sig.String()))
				return true
			default:
				a.logger.Info("app: unhandled signal", slog.String("signal", sig.String()))
				return false
			}
		},
	}
}

func (opts *options) ensure() {
	if opts.sigHandler == nil {
		panic("app: options sigHandler == nil")
	}
	if opts.logger == nil {
		opts.logger = slog.Default()
	}
}

type Option func(o *options)

func AddSignals(sigs ...os.Signal) Option {
	return func(o *options) {
		m := make(map[os.Signal]struct{})
		for _, v := range o.sigs {
			m[v] = struct{}{}
		}
		for _, v := range sigs {
			if _, ok := m[v]; !ok {
				m[v] = struct{}{}
				o.sigs = append(o.sigs, v)
			}
		}
	}
}

func SetSignalHandler(sigHandler SignalHandler) Option {
	return func(o *options) {
		o.sigHandler = sigHandler
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}
