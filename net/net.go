package net

import "time"

// EndPoint is the capability shared by a listening server and each of its
// connections.
type EndPoint interface {
	Name() string
	Addr() string
	IsActive() bool
	Timeout() time.Duration
	BufferSize() int
}
