package tcp

import (
	"cmp"
	"maps"
	"slices"
	"sync"

	"github.com/google/uuid"
)

type registry struct {
	mu    sync.Mutex
	conns map[uuid.UUID]*Conn
}

func newRegistry() *registry {
	return &registry{conns: make(map[uuid.UUID]*Conn)}
}

func (r *registry) add(c *Conn) {
	r.mu.Lock()
	r.conns[c.id] = c
	r.mu.Unlock()
}

func (r *registry) remove(c *Conn) {
	r.mu.Lock()
	delete(r.conns, c.id)
	r.mu.Unlock()
}

func (r *registry) get(id uuid.UUID) (*Conn, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[id]
	return c, ok
}

func (r *registry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// snapshot returns a copy in accept order.
func (r *registry) snapshot() []*Conn {
	r.mu.Lock()
	conns := slices.Collect(maps.Values(r.conns))
	r.mu.Unlock()

	slices.SortFunc(conns, func(a, b *Conn) int {
		return cmp.Compare(a.seq, b.seq)
	})
	return conns
}
