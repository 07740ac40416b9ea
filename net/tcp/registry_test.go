package tcp

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	r := newRegistry()

	conns := make([]*Conn, 0, 3)
	for _, seq := range []uint64{3, 1, 2} {
		c := &Conn{id: uuid.New(), seq: seq}
		conns = append(conns, c)
		r.add(c)
	}
	assert.Equal(t, 3, r.len())

	snap := r.snapshot()
	require.Len(t, snap, 3)
	for i, c := range snap {
		assert.Equal(t, uint64(i+1), c.seq)
	}

	c, ok := r.get(conns[0].id)
	assert.True(t, ok)
	assert.Same(t, conns[0], c)

	r.remove(conns[0])
	r.remove(conns[0])
	_, ok = r.get(conns[0].id)
	assert.False(t, ok)
	assert.Equal(t, 2, r.len())

	// snapshots are copies
	snap = r.snapshot()
	r.remove(conns[1])
	assert.Len(t, snap, 2)
	assert.Equal(t, 1, r.len())
}

func TestRegistryConcurrent(t *testing.T) {
	r := newRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(seq uint64) {
			defer wg.Done()
			c := &Conn{id: uuid.New(), seq: seq}
			r.add(c)
			_ = r.snapshot()
			r.remove(c)
		}(uint64(i))
	}
	wg.Wait()

	assert.Equal(t, 0, r.len())
	assert.Empty(t, r.snapshot())
}
