package doorbell

import (
	"errors"
	"sync/atomic"
)

// ErrUnsupported indicates futex doorbells are not available on this
// platform.
var ErrUnsupported = errors.New("futex doorbell not supported on this platform")

// Futex is a doorbell backed by a 32-bit sequence word in shared memory,
// for streams whose ends live in separate processes. Ring increments the
// sequence and wakes waiters; Wait sleeps until the sequence moves past
// the value seen at the previous wake.
//
// The sequence word must live in memory mapped by both processes, outside
// the stream's submit/ack/bulk layout (typically a small side region set
// up with the session). At most one thread of control may Wait on a given
// bell, matching the single-producer/single-consumer discipline of the
// queues it guards.
type Futex struct {
	word *uint32
	seen uint32
}

// NewFutex returns a doorbell over the given shared sequence word. Both
// processes construct their own Futex over the same word; the word itself
// must start out zeroed.
func NewFutex(word *uint32) (*Futex, error) {
	if !futexSupported {
		return nil, ErrUnsupported
	}
	return &Futex{word: word}, nil
}

// Ring bumps the sequence and wakes the waiter, if any.
func (b *Futex) Ring() {
	atomic.AddUint32(b.word, 1)
	futexWake(b.word)
}

// Wait blocks until the sequence has moved since the last observed value.
// A ring delivered before Wait is entered is not lost: the moved sequence
// is detected without entering the kernel.
func (b *Futex) Wait() {
	for {
		seq := atomic.LoadUint32(b.word)
		if seq != b.seen {
			b.seen = seq
			return
		}
		futexWait(b.word, seq)
	}
}
