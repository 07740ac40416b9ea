package tcp

import "golang.org/x/sys/unix"

// ioctlInq returns the number of unread bytes in the receive queue.
const ioctlInq = unix.SIOCINQ
