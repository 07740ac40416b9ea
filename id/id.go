package id

import (
	"sync/atomic"
)

// Seq hands out increasing numbers starting at 1. The zero value is ready
// to use and safe for concurrent use.
type Seq struct {
	n atomic.Uint64
}

func (s *Seq) Next() uint64 {
	n := s.n.Add(1)
	if n == 0 {
		panic("id: seq overflow")
	}

	return n
}

func (s *Seq) Last() uint64 {
	return s.n.Load()
}
