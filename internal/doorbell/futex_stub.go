//go:build !linux

package doorbell

// Futex doorbells need the futex syscall; NewFutex reports ErrUnsupported
// elsewhere, so these are never reached.

const futexSupported = false

func futexWait(word *uint32, val uint32) {}

func futexWake(word *uint32) {}
