package http

import (
	"log/slog"
	"net/http"

	"github.com/hsgames/tcplib/safe"
)

type Middleware func(Handler) Handler

// chain wraps h so that ms[0] runs first.
func chain(ms []Middleware, h Handler) Handler {
	for i := len(ms) - 1; i >= 0; i-- {
		h = ms[i](h)
	}
	return h
}

func NewRecoverMiddleware(logger *slog.Logger) Middleware {
	return func(h Handler) Handler {
		return func(w ResponseWriter, r *Request) {
			var err error
			defer func() {
				if err != nil {
					logger.Error("http: recover middleware", slog.String("path", r.URL.Path),
						slog.Any("error", err))
					w.WriteHeader(http.StatusInternalServerError)
				}
			}()
			defer safe.RecoverError(&err)
			h(w, r)
		}
	}
}

// NewMethodMiddleware rejects requests whose method is not in methods.
func NewMethodMiddleware(methods ...string) Middleware {
	return func(h Handler) Handler {
		return func(w ResponseWriter, r *Request) {
			for _, m := range methods {
				if r.Method == m {
					h(w, r)
					return
				}
			}
			Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		}
	}
}
