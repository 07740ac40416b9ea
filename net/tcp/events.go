package tcp

import (
	"github.com/hsgames/tcplib/event"
)

// DataEvent carries one chunk read off a connection. Only Buffer[:N] is
// valid.
type DataEvent struct {
	Conn   *Conn
	Buffer []byte
	N      int
}

func (e *DataEvent) Bytes() []byte {
	return e.Buffer[:e.N]
}

// FaultEvent reports a per-connection or accept error. Conn is nil when the
// error is not tied to a connection.
type FaultEvent struct {
	Err  error
	Conn *Conn
}

// Events are delivered on the goroutine that produced them: the accept loop,
// a connection handler or the poller. Subscribers of different connections
// run concurrently.
type Events struct {
	Started *event.Event[*Server]
	Stopped *event.Event[*Server]
	Opened  *event.Event[*Conn]
	Closed  *event.Event[*Conn]
	Data    *event.Event[*DataEvent]
	Fault   *event.Event[*FaultEvent]
}

func newEvents() *Events {
	return &Events{
		Started: event.New[*Server](),
		Stopped: event.New[*Server](),
		Opened:  event.New[*Conn](),
		Closed:  event.New[*Conn](),
		Data:    event.New[*DataEvent](),
		Fault:   event.New[*FaultEvent](),
	}
}

func (e *Events) detachAll() {
	e.Started.DetachAll()
	e.Stopped.DetachAll()
	e.Opened.DetachAll()
	e.Closed.DetachAll()
	e.Data.DetachAll()
	e.Fault.DetachAll()
}
