package stream

import (
	"sync"

	"github.com/strataos/packetstream/internal/doorbell"
	"github.com/strataos/packetstream/internal/monitoring"
	"github.com/strataos/packetstream/internal/packet"
)

// receiver is the consumer-side counterpart of transmitter: same local
// locking discipline, same deferred-notification scheme, draining the
// queue instead of filling it.
type receiver[D packet.Packet] struct {
	mu        sync.Mutex
	queue     *packet.Queue[D]
	dataBell  doorbell.Doorbell // waited on while the queue is empty
	spaceBell doorbell.Doorbell // rung when the first slot frees up
	owed      bool
	metrics   *monitoring.Metrics
}

func newReceiver[D packet.Packet](q *packet.Queue[D], dataBell doorbell.Doorbell, m *monitoring.Metrics) *receiver[D] {
	return &receiver[D]{queue: q, dataBell: dataBell, metrics: m}
}

// waitBell returns the bell rx blocks on. The session layer hands it to
// the peer transmitter, which rings it as data arrives.
func (r *receiver[D]) waitBell() doorbell.Doorbell { return r.dataBell }

// registerSpaceBell installs the bell rung toward the peer as slots free
// up, repeating the ring if the queue already holds data from before the
// peer's handler existed.
func (r *receiver[D]) registerSpaceBell(bell doorbell.Doorbell) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.spaceBell = bell
	if !r.queue.Empty() {
		r.ring()
	}
}

func (r *receiver[D]) ring() {
	if r.spaceBell == nil {
		return
	}
	r.spaceBell.Ring()
	r.metrics.BellRang()
}

func (r *receiver[D]) readyForRx() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.queue.Empty()
}

// rx dequeues the next descriptor, blocking while the queue is empty.
// Wakes may be stale or spurious, so emptiness is re-tested after every
// wait.
func (r *receiver[D]) rx() D {
	r.mu.Lock()
	defer r.mu.Unlock()

	for r.queue.Empty() {
		r.dataBell.Wait()
	}
	p := r.queue.Get()

	// Edge-triggered mirror of tx: only the transition back to exactly
	// one free slot unblocks a producer stuck on a full queue.
	if r.queue.SingleSlotFree() {
		r.ring()
	}
	return p
}

// tryRx dequeues if a descriptor is available, deferring any owed ring
// to wakeup.
func (r *receiver[D]) tryRx() (D, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var p D
	ok := false
	if !r.queue.Empty() {
		p = r.queue.Get()
		ok = true
	}

	if r.queue.SingleSlotFree() {
		r.owed = true
		r.metrics.BellDeferred()
	}
	return p, ok
}

// peek returns the next descriptor without consuming it, or the zero
// value if the queue is empty.
func (r *receiver[D]) peek() D {
	r.mu.Lock()
	defer r.mu.Unlock()

	var p D
	if !r.queue.Empty() {
		p = r.queue.Peek()
	}
	return p
}

// wakeup sends the deferred ring, if one is owed, and reports whether it
// rang.
func (r *receiver[D]) wakeup() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rang := false
	if r.owed && r.spaceBell != nil {
		r.ring()
		rang = true
	}
	r.owed = false
	return rang
}
