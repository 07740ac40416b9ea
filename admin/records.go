package admin

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hsgames/tcplib/event"
	"github.com/hsgames/tcplib/net/tcp"
)

type ConnInfo struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	RemoteAddr string `json:"remote_addr"`
	LocalAddr  string `json:"local_addr"`
	State      string `json:"state"`
	Active     bool   `json:"active"`
	Encrypted  bool   `json:"encrypted"`
	ReadBytes  uint64 `json:"read_bytes"`
	WriteBytes uint64 `json:"write_bytes"`
}

func connInfo(c *tcp.Conn) ConnInfo {
	return ConnInfo{
		ID:         c.ID().String(),
		Name:       c.Name(),
		RemoteAddr: c.RemoteAddr().String(),
		LocalAddr:  c.LocalAddr().String(),
		State:      c.State().String(),
		Active:     c.IsActive(),
		Encrypted:  c.Encrypted(),
		ReadBytes:  c.ReadBytes(),
		WriteBytes: c.WriteBytes(),
	}
}

// Record is one line of the /events stream.
type Record struct {
	Type   string    `json:"type"`
	Time   time.Time `json:"time"`
	Server string    `json:"server"`
	Addr   string    `json:"addr,omitempty"`
	Conn   *ConnInfo `json:"conn,omitempty"`
	Error  string    `json:"error,omitempty"`
}

const (
	RecordStarted = "started"
	RecordStopped = "stopped"
	RecordOpened  = "opened"
	RecordClosed  = "closed"
	RecordFault   = "fault"
)

type unhooker interface {
	Unhook()
}

// watch subscribes to the target's events and returns the hooks to detach.
func (s *Server) watch() []unhooker {
	ev := s.target.Events()
	return []unhooker{
		ev.Started.Hook(func(t *tcp.Server) {
			s.setServing(true)
			s.publish(Record{Type: RecordStarted, Server: t.Name(), Addr: t.Addr()})
		}),
		ev.Stopped.Hook(func(t *tcp.Server) {
			s.setServing(false)
			s.publish(Record{Type: RecordStopped, Server: t.Name()})
		}),
		ev.Opened.Hook(connRecord(s, RecordOpened)),
		ev.Closed.Hook(connRecord(s, RecordClosed)),
		ev.Fault.Hook(func(e *tcp.FaultEvent) {
			r := Record{Type: RecordFault, Server: s.target.Name(), Error: e.Err.Error()}
			if e.Conn != nil {
				info := connInfo(e.Conn)
				r.Conn = &info
			}
			s.publish(r)
		}),
	}
}

func connRecord(s *Server, typ string) event.Handler[*tcp.Conn] {
	return func(c *tcp.Conn) {
		info := connInfo(c)
		s.publish(Record{Type: typ, Server: s.target.Name(), Conn: &info})
	}
}

func (s *Server) publish(r Record) {
	if s.events.ConnNum() == 0 {
		return
	}

	r.Time = time.Now()
	data, err := json.Marshal(r)
	if err != nil {
		s.logger.Error("admin: marshal record", slog.String("type", r.Type), slog.Any("error", err))
		return
	}
	s.events.Broadcast(data)
}
