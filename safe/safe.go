package safe

import (
	"fmt"
	"log/slog"
	"runtime"
)

const stackSize = 64 << 10

func Stack() string {
	buf := make([]byte, stackSize)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}

func Recover() {
	if r := recover(); r != nil {
		slog.Error("panic recover",
			slog.Any("value", r), slog.String("stack", Stack()))
	}
}

// RecoverError converts a panic into *err. It must be deferred directly.
func RecoverError(err *error) {
	if r := recover(); r != nil {
		if e, ok := r.(error); ok {
			*err = fmt.Errorf("safe: panic [%w]\n%s", e, Stack())
		} else {
			*err = fmt.Errorf("safe: panic [%v]\n%s", r, Stack())
		}
	}
}

func Go(f func()) {
	go func() {
		defer Recover()
		f()
	}()
}
