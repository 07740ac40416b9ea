package http

import (
	"net/http/pprof"
)

func PProfHandlers() Handlers {
	return Handlers{
		"/debug/pprof/":        pprof.Index,
		"/debug/pprof/cmdline": pprof.Cmdline,
		"/debug/pprof/profile": pprof.Profile,
		"/debug/pprof/symbol":  pprof.Symbol,
		"/debug/pprof/trace":   pprof.Trace,
	}
}

func NewPProfServer(name, addr string, opt ...ServerOption) *Server {
	return NewServer(name, addr, PProfHandlers(), opt...)
}
