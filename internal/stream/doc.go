// Package stream implements the packet-stream transport: a zero-copy,
// flow-controlled, bidirectional bulk-data channel over one shared memory
// region.
//
// The region is partitioned into a submit queue, an ack queue, and a bulk
// buffer. The Source allocates bulk space, fills it, and submits a
// descriptor; the Sink consumes the descriptor, processes the payload in
// place, and acknowledges it; the Source then releases the bulk space.
// The two queues are independent unidirectional FIFO channels; no
// ordering holds across them.
//
// Flow control is edge-triggered. A doorbell is rung only on the
// transitions that can matter (queue goes non-empty, queue gains its
// first free slot), and the non-blocking operations defer their ring
// until Wakeup so that a batch of try-operations costs at most one
// notification. Wakeup itself sends at most one ring per call even when
// both the submit and ack side owe one. Both points rest on the same
// contract: a peer woken by any ring re-checks every condition it could
// be waiting on. Doorbell waiters in this package are written that way,
// and peers built on top of it must be too.
//
// Descriptors received from the peer are untrusted. PacketBytes and
// Content bounds-check every descriptor against the bulk buffer before
// handing out a view; a failure there is fatal peer misbehavior and the
// session should be torn down, unlike allocation failure, which is a
// retryable flow-control condition.
package stream
