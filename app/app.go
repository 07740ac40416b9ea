package app

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"

	"github.com/hsgames/tcplib/net/tcp"
	"github.com/hsgames/tcplib/safe"
)

type service struct {
	name     string
	start    func() error
	stop     func() error
	doneChan chan error
}

// App runs services until one fails, a shutdown signal arrives or Stop is
// called, then stops them in reverse order.
type App struct {
	opts     options
	services []*service
	stopOnce sync.Once
	stopChan chan struct{}
	logger   *slog.Logger
}

func New(opt ...Option) *App {
	opts := defaultOptions()
	for _, o := range opt {
		o(&opts)
	}
	opts.ensure()

	return &App{
		opts:     opts,
		stopChan: make(chan struct{}),
		logger:   opts.logger,
	}
}

// AddService registers a blocking start func and the stop func that makes it
// return.
func (a *App) AddService(name string, start, stop func() error) {
	if start == nil {
		panic("app: add service start func is nil")
	}
	if stop == nil {
		panic("app: add service stop func is nil")
	}

	a.services = append(a.services, &service{
		name:     name,
		start:    start,
		stop:     stop,
		doneChan: make(chan error, 2),
	})
}

func (a *App) AddTCPServer(s *tcp.Server) {
	a.AddService(s.Name(),
		func() error {
			return s.Start(context.Background())
		},
		func() error {
			s.Stop()
			return nil
		},
	)
}

// Stop asks Run to shut every service down.
func (a *App) Stop() {
	a.stopOnce.Do(func() { close(a.stopChan) })
}

func (a *App) Run() error {
	var errOnce sync.Once
	errChan := make(chan error, 1)
	for _, v := range a.services {
		s := v
		safe.Go(func() {
			var err error
			defer func() {
				s.doneChan <- err
				if err != nil {
					errOnce.Do(func() { errChan <- err })
				}
			}()
			defer safe.RecoverError(&err)
			err = s.start()
		})
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, a.opts.sigs...)
	defer signal.Stop(sigChan)

	err := a.wait(errChan, sigChan)

	for i := len(a.services) - 1; i >= 0; i-- {
		s := a.services[i]
		func() {
			var err error
			defer func() {
				if err != nil {
					s.doneChan <- err
				}
			}()
			defer safe.RecoverError(&err)
			err = s.stop()
		}()
	}

	for _, s := range a.services {
		if e := <-s.doneChan; e != nil {
			a.logger.Error("app: service done", slog.String("service", s.name), slog.Any("error", e))
		}
	}

	return err
}

func (a *App) wait(errChan <-chan error, sigChan <-chan os.Signal) error {
	for {
		select {
		case err := <-errChan:
			return err
		case <-a.stopChan:
			a.logger.Info("app: stop")
			return nil
		case sig := <-sigChan:
			done, err := func() (done bool, err error) {
				defer safe.RecoverError(&err)
				return a.opts.sigHandler(a, sig), nil
			}()
			if err != nil {
				a.logger.Error("app: handle signal", slog.String("signal", sig.String()), slog.Any("error", err))
				return err
			}
			if done {
				return nil
			}
		}
	}
}
