package admin

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"runtime"
	"time"

	tcphttp "github.com/hsgames/tcplib/net/http"
	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v3/process"
)

type Stats struct {
	PID         int32   `json:"pid"`
	RSS         uint64  `json:"rss"`
	VMS         uint64  `json:"vms"`
	NumFDs      int32   `json:"num_fds"`
	NumThreads  int32   `json:"num_threads"`
	CPUPercent  float64 `json:"cpu_percent"`
	Goroutines  int     `json:"goroutines"`
	Uptime      string  `json:"uptime"`
	Running     bool    `json:"running"`
	Conns       int     `json:"conns"`
	Subscribers int     `json:"subscribers"`
}

func (s *Server) handlers() tcphttp.Handlers {
	get := tcphttp.NewMethodMiddleware(http.MethodGet)

	handlers := tcphttp.Handlers{
		"/connections": get(s.handleConnections),
		"/debug/stats": get(s.handleStats),
		"/events":      s.events.ServeHTTP,
	}
	if s.opts.pprof {
		for pattern, h := range tcphttp.PProfHandlers() {
			handlers[pattern] = h
		}
	}
	return handlers
}

func (s *Server) handleConnections(w http.ResponseWriter, r *http.Request) {
	conns := s.target.Conns()
	infos := make([]ConnInfo, 0, len(conns))
	for _, c := range conns {
		infos = append(infos, connInfo(c))
	}
	s.writeJSON(w, infos)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.stats()
	if err != nil {
		s.logger.Error("admin: stats", slog.Any("error", err))
		tcphttp.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, stats)
}

func (s *Server) stats() (*Stats, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, errors.Wrap(err, "admin: stats process")
	}

	mem, err := proc.MemoryInfo()
	if err != nil {
		return nil, errors.Wrap(err, "admin: stats memory info")
	}

	stats := &Stats{
		PID:         proc.Pid,
		RSS:         mem.RSS,
		VMS:         mem.VMS,
		Goroutines:  runtime.NumGoroutine(),
		Uptime:      time.Since(s.createdAt).Round(time.Second).String(),
		Running:     s.target.IsRunning(),
		Conns:       s.target.ConnNum(),
		Subscribers: s.events.ConnNum(),
	}

	// not every platform reports these
	if n, err := proc.NumFDs(); err == nil {
		stats.NumFDs = n
	}
	if n, err := proc.NumThreads(); err == nil {
		stats.NumThreads = n
	}
	if pct, err := proc.CPUPercent(); err == nil {
		stats.CPUPercent = pct
	}

	return stats, nil
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("admin: write json", slog.Any("error", err))
	}
}
