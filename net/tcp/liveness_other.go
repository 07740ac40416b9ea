//go:build !(linux || darwin || freebsd)

package tcp

import "syscall"

func probeConnected(syscall.Conn) bool {
	return true
}
