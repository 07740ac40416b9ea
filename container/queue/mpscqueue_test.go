package queue_test

import (
	"sync"
	"testing"

	"github.com/hsgames/tcplib/container/queue"
	"github.com/stretchr/testify/assert"
)

func TestMPSCQueue(t *testing.T) {
	q := queue.NewMPSCQueue[int](0, 1024)

	var got []int
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			batch, ok := q.Pop()
			if !ok {
				return
			}
			got = append(got, batch...)
		}
	}()

	var wg sync.WaitGroup
	for j := 0; j < 4; j++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				q.Push(i)
			}
		}()
	}
	wg.Wait()
	q.Close()
	<-done

	assert.Len(t, got, 400)
	assert.False(t, q.Push(1))
}

func TestMPSCQueueOverflowCloses(t *testing.T) {
	q := queue.NewMPSCQueue[string](2, 0)

	assert.True(t, q.Push("a"))
	assert.True(t, q.Push("b"))
	assert.False(t, q.Push("c"))
	assert.False(t, q.Push("d"))

	batch, ok := q.Pop()
	assert.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, batch)

	_, ok = q.Pop()
	assert.False(t, ok)
}
