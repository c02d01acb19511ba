package doorbell

// Doorbell is an edge-triggered notification endpoint shared between the
// two ends of a packet stream. One end waits on it, the peer rings it.
//
// Contract: a ring is a hint, not a message. Consecutive rings may
// coalesce into one wake, and Wait may return spuriously. Whoever wakes
// from Wait must re-check every condition it was sleeping on.
type Doorbell interface {
	// Ring wakes the waiter, if any. It never blocks. Ringing an
	// already-rung bell is a no-op.
	Ring()

	// Wait blocks until the bell is rung. It returns immediately if the
	// bell was rung since the last Wait.
	Wait()
}

// Chan is a channel-backed doorbell for streams whose two ends live in
// the same process. The one-slot buffer makes a ring before the first
// wait stick, and collapses any burst of rings into a single wake.
type Chan struct {
	c chan struct{}
}

// NewChan returns a channel-backed doorbell.
func NewChan() *Chan {
	return &Chan{c: make(chan struct{}, 1)}
}

// Ring wakes the waiter without blocking.
func (b *Chan) Ring() {
	select {
	case b.c <- struct{}{}:
	default:
	}
}

// Wait blocks until the bell is rung.
func (b *Chan) Wait() {
	<-b.c
}
