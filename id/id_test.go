package id_test

import (
	"sync"
	"testing"

	"github.com/hsgames/tcplib/id"
	"github.com/stretchr/testify/assert"
)

func TestSeqUnique(t *testing.T) {
	var (
		s    id.Seq
		mu   sync.Mutex
		seen = make(map[uint64]struct{})
		wg   sync.WaitGroup
	)

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				n := s.Next()
				mu.Lock()
				seen[n] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 8000)
	assert.Equal(t, uint64(8000), s.Last())
}
