package stream

import (
	"sync"

	"github.com/strataos/packetstream/internal/doorbell"
	"github.com/strataos/packetstream/internal/monitoring"
	"github.com/strataos/packetstream/internal/packet"
)

// transmitter is the producer-side flow-control wrapper around one
// descriptor queue. The mutex serializes local producer threads only; it
// never synchronizes against the consumer end, which is the queue's job.
type transmitter[D packet.Packet] struct {
	mu        sync.Mutex
	queue     *packet.Queue[D]
	spaceBell doorbell.Doorbell // waited on while the queue is full
	dataBell  doorbell.Doorbell // rung when the queue goes non-empty
	owed      bool
	metrics   *monitoring.Metrics
}

func newTransmitter[D packet.Packet](q *packet.Queue[D], spaceBell doorbell.Doorbell, m *monitoring.Metrics) *transmitter[D] {
	return &transmitter[D]{queue: q, spaceBell: spaceBell, metrics: m}
}

// waitBell returns the bell tx blocks on. The session layer hands it to
// the peer receiver, which rings it as slots free up.
func (t *transmitter[D]) waitBell() doorbell.Doorbell { return t.spaceBell }

// registerDataBell installs the bell rung toward the peer when data
// arrives. If packets were enqueued before the peer installed its
// handler, the ring has to be repeated now or the peer never learns
// about them.
func (t *transmitter[D]) registerDataBell(bell doorbell.Doorbell) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.dataBell = bell
	if !t.queue.Empty() {
		t.ring()
	}
}

func (t *transmitter[D]) ring() {
	if t.dataBell == nil {
		return
	}
	t.dataBell.Ring()
	t.metrics.BellRang()
}

func (t *transmitter[D]) readyForTx() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.queue.Full()
}

// tx enqueues p, blocking while the queue is full. A pending wakeup may
// predate the current queue state, so only a successful add proves there
// was room; on failure we wait again.
func (t *transmitter[D]) tx(p D) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for {
		if t.queue.Full() {
			t.spaceBell.Wait()
		}
		if t.queue.Add(p) {
			break
		}
	}

	// Edge-triggered: only the empty-to-one transition needs a ring. A
	// peer that is draining keeps draining without further prompting.
	if t.queue.SingleElement() {
		t.ring()
	}
}

// tryTx enqueues p if there is room, deferring any owed ring to wakeup
// so a batch of try-operations costs one notification at most.
func (t *transmitter[D]) tryTx(p D) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.queue.Full() {
		return false
	}
	t.queue.Add(p)

	if t.queue.SingleElement() {
		t.owed = true
		t.metrics.BellDeferred()
	}
	return true
}

// wakeup sends the deferred ring, if one is owed, and reports whether it
// rang.
func (t *transmitter[D]) wakeup() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	rang := false
	if t.owed && t.dataBell != nil {
		t.ring()
		rang = true
	}
	t.owed = false
	return rang
}

func (t *transmitter[D]) slotsFree() int {
	return t.queue.SlotsFree()
}
