//go:build linux || darwin || freebsd

package tcp

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// probeConnected reports false when the socket is readable with nothing to
// read (peer sent FIN or RST) or when it has no peer any more. It never
// blocks.
func probeConnected(sc syscall.Conn) bool {
	rc, err := sc.SyscallConn()
	if err != nil {
		return false
	}

	alive := false
	if err = rc.Control(func(fd uintptr) {
		alive = fdConnected(int(fd))
	}); err != nil {
		return false
	}

	return alive
}

func fdConnected(fd int) bool {
	if _, err := unix.Getpeername(fd); err != nil {
		return false
	}

	avail, err := unix.IoctlGetInt(fd, ioctlInq)
	if err != nil {
		return false
	}
	if avail > 0 {
		return true
	}

	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	n, err := unix.Poll(fds, 0)
	if err != nil {
		return err == unix.EINTR
	}
	if n == 0 {
		return true
	}
	if fds[0].Revents&(unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0 {
		return false
	}

	// Data may have arrived between the checks. Only a socket that stays
	// readable with nothing to read is gone.
	avail, err = unix.IoctlGetInt(fd, ioctlInq)
	if err != nil {
		return false
	}

	return avail > 0
}
