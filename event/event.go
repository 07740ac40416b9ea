// Package event provides typed observer lists. Subscribers are invoked on the
// goroutine that triggers the event.
package event

import (
	"log/slog"
	"slices"
	"sync"

	"github.com/hsgames/tcplib/safe"
)

type Handler[T any] func(T)

type Hook[T any] struct {
	e *Event[T]
	h Handler[T]
}

// Unhook detaches the hook. Calling it more than once is harmless.
func (h *Hook[T]) Unhook() {
	h.e.remove(h)
}

type Event[T any] struct {
	mu    sync.RWMutex
	hooks []*Hook[T]
}

func New[T any]() *Event[T] {
	return &Event[T]{}
}

func (e *Event[T]) Hook(handler Handler[T]) *Hook[T] {
	if handler == nil {
		panic("event: hook handler is nil")
	}

	h := &Hook[T]{e: e, h: handler}

	e.mu.Lock()
	e.hooks = append(e.hooks, h)
	e.mu.Unlock()

	return h
}

func (e *Event[T]) remove(h *Hook[T]) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if i := slices.Index(e.hooks, h); i >= 0 {
		e.hooks = slices.Delete(e.hooks, i, i+1)
	}
}

// Trigger calls every hook attached at the time of the call. A panicking hook
// is logged and skipped; the remaining hooks still run.
func (e *Event[T]) Trigger(v T) {
	e.mu.RLock()
	hooks := slices.Clone(e.hooks)
	e.mu.RUnlock()

	for _, h := range hooks {
		call(h.h, v)
	}
}

func call[T any](h Handler[T], v T) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("event: hook panic",
				slog.Any("value", r), slog.String("stack", safe.Stack()))
		}
	}()

	h(v)
}

func (e *Event[T]) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return len(e.hooks)
}

func (e *Event[T]) DetachAll() {
	e.mu.Lock()
	e.hooks = nil
	e.mu.Unlock()
}
