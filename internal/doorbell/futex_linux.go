//go:build linux

package doorbell

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

const futexSupported = true

// Futex operation codes from the Linux ABI (<linux/futex.h>); x/sys/unix
// does not export them.
const (
	futexOpWait = 0 // FUTEX_WAIT
	futexOpWake = 1 // FUTEX_WAKE
)

// futexWait sleeps until the word no longer holds val, a wake arrives, or
// the call is interrupted. EAGAIN (value already moved) and EINTR are the
// expected benign outcomes; the caller re-checks its condition on every
// return regardless.
//
// FUTEX_PRIVATE_FLAG is deliberately absent: the word lives in memory
// shared across processes.
func futexWait(word *uint32, val uint32) {
	_, _, _ = unix.Syscall6(
		unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(word)),
		uintptr(futexOpWait),
		uintptr(val),
		0, // no timeout
		0,
		0,
	)
}

// futexWake wakes every waiter on the word. With the one-waiter-per-bell
// discipline this wakes at most one thread.
func futexWake(word *uint32) {
	_, _, _ = unix.Syscall6(
		unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(word)),
		uintptr(futexOpWake),
		uintptr(^uint32(0)>>1), // INT_MAX waiters
		0,
		0,
		0,
	)
}
