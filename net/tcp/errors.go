package tcp

import (
	"github.com/pkg/errors"
)

// Configuration errors.
var (
	ErrInvalidAddress    = errors.New("tcp: invalid address")
	ErrInvalidPort       = errors.New("tcp: invalid port")
	ErrInvalidTimeout    = errors.New("tcp: invalid timeout")
	ErrInvalidBufferSize = errors.New("tcp: invalid buffer size")
	ErrNoCertificate     = errors.New("tcp: client certificate check requires a server certificate")
)

// Lifecycle errors.
var (
	ErrAlreadyRunning = errors.New("tcp: server already running")
	ErrServerClosed   = errors.New("tcp: server closed")
)
