//go:build darwin || freebsd

package tcp

import "syscall"

const ioctlInq = syscall.FIONREAD
