// Package bytespool recycles byte slices in fixed size classes.
package bytespool

import (
	"sync"
)

type tier struct {
	min, max, step int
	classes        []sync.Pool
}

var tiers = []*tier{
	{min: 1, max: 4096, step: 512},
	{min: 4097, max: 40960, step: 4096},
	{min: 40961, max: 139264, step: 16384},
}

func init() {
	for _, t := range tiers {
		n := (t.max - t.min + 1) / t.step
		t.classes = make([]sync.Pool, n)
		for i := range t.classes {
			size := t.min - 1 + (i+1)*t.step
			t.classes[i].New = func() any {
				b := make([]byte, size)
				return &b
			}
		}
	}
}

func (t *tier) class(size int) int {
	return (size - t.min) / t.step
}

func find(size int) *tier {
	for _, t := range tiers {
		if size >= t.min && size <= t.max {
			return t
		}
	}
	return nil
}

// Get returns a slice of length size. Sizes outside the pooled range are
// allocated directly.
func Get(size int) []byte {
	if size <= 0 {
		return nil
	}

	t := find(size)
	if t == nil {
		return make([]byte, size)
	}

	b := t.classes[t.class(size)].Get().(*[]byte)
	return (*b)[:size]
}

// Put returns b to its size class. Slices whose capacity is not an exact
// class size are dropped.
func Put(b []byte) {
	c := cap(b)

	t := find(c)
	if t == nil || (c-t.min+1)%t.step != 0 {
		return
	}

	b = b[:c]
	t.classes[t.class(c)].Put(&b)
}
