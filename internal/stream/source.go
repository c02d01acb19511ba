package stream

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/strataos/packetstream/internal/alloc"
	"github.com/strataos/packetstream/internal/doorbell"
	"github.com/strataos/packetstream/internal/logging"
	"github.com/strataos/packetstream/internal/monitoring"
	"github.com/strataos/packetstream/internal/packet"
	"github.com/strataos/packetstream/internal/region"
)

// SourceConfig configures the producer end of a stream.
type SourceConfig struct {
	Policy Policy

	// SubmitSpaceBell is the bell this source waits on when the submit
	// queue is full; the sink rings it as slots free up. AckDataBell is
	// the bell this source waits on for acknowledgements. Both default
	// to in-process channel bells; inject futex bells for cross-process
	// streams.
	SubmitSpaceBell doorbell.Doorbell
	AckDataBell     doorbell.Doorbell

	Logger  *logging.Logger
	Metrics *monitoring.Metrics
}

// Source is the producer end of a packet stream: it allocates bulk
// space, submits packet descriptors, and collects acknowledgements. It
// owns the bulk buffer exclusively; the sink only ever touches ranges
// the source granted through descriptors.
type Source[D packet.Packet] struct {
	*base
	policy  Policy
	bulk    *alloc.Range
	submit  *transmitter[D]
	acks    *receiver[D]
	log     *logging.Logger
	metrics *monitoring.Metrics
}

// NewSource lays the stream out over reg and takes ownership of the
// local mapping. The producer role initializes the submit queue's head
// and slots and the ack queue's tail; the sink initializes the opposite
// fields, so both ends must construct before traffic flows.
func NewSource[D packet.Packet](reg *region.Region, cfg SourceConfig) (*Source[D], error) {
	pol := cfg.Policy.withDefaults()

	b, err := newBase(reg, packet.BytesFor[D](pol.SubmitSlots), packet.BytesFor[D](pol.AckSlots))
	if err != nil {
		return nil, err
	}
	submitQ, err := packet.NewQueue[D](b.submitMem(), pol.SubmitSlots, packet.Producer)
	if err != nil {
		return nil, fmt.Errorf("submit queue: %w", err)
	}
	ackQ, err := packet.NewQueue[D](b.ackMem(), pol.AckSlots, packet.Consumer)
	if err != nil {
		return nil, fmt.Errorf("ack queue: %w", err)
	}

	spaceBell := cfg.SubmitSpaceBell
	if spaceBell == nil {
		spaceBell = doorbell.NewChan()
	}
	ackBell := cfg.AckDataBell
	if ackBell == nil {
		ackBell = doorbell.NewChan()
	}
	log := cfg.Logger
	if log == nil {
		log = logging.Nop()
	}

	s := &Source[D]{
		base:    b,
		policy:  pol,
		bulk:    alloc.NewRange(b.bulkOff, b.bulkSize),
		submit:  newTransmitter(submitQ, spaceBell, cfg.Metrics),
		acks:    newReceiver(ackQ, ackBell, cfg.Metrics),
		log:     log,
		metrics: cfg.Metrics,
	}
	s.log.Debug("packet-stream source ready",
		zap.Int("submit_slots", pol.SubmitSlots),
		zap.Int("ack_slots", pol.AckSlots),
		zap.Int64("bulk_offset", b.bulkOff),
		zap.Uint64("bulk_size", b.bulkSize))
	return s, nil
}

// AllocPacket reserves size bytes in the bulk buffer at the given
// alignment (a log2 value) and returns a descriptor naming the range.
// Failure is retryable: space comes back as in-flight packets are
// released. A zero size yields the empty sentinel without allocating.
func (s *Source[D]) AllocPacket(size uint64, alignLog2 uint) (packet.Descriptor, error) {
	if size == 0 {
		return packet.Descriptor{}, nil
	}
	off, err := s.bulk.Alloc(size, alignLog2)
	if err != nil {
		s.metrics.AllocFailed()
		return packet.Descriptor{}, fmt.Errorf("alloc packet: %w", err)
	}
	s.metrics.BulkGrew(size)
	return packet.Descriptor{Offset: off, Size: size}, nil
}

// ReleasePacket returns the packet's bulk range to the allocator. Call
// it exactly once per allocated-and-acknowledged packet: skipping it
// leaks bulk space for good, and a second release is reported as an
// error. Releasing the empty sentinel is a no-op.
func (s *Source[D]) ReleasePacket(p D) error {
	d := p.Desc()
	if d.Empty() {
		return nil
	}
	if err := s.bulk.Free(d.Offset, d.Size); err != nil {
		return fmt.Errorf("release packet: %w", err)
	}
	s.metrics.BulkShrank(d.Size)
	return nil
}

// ReadyToSubmit reports whether the submit queue can take count more
// packets.
func (s *Source[D]) ReadyToSubmit(count int) bool {
	return s.submit.slotsFree() >= count
}

// SubmitPacket hands p to the sink, blocking while the submit queue is
// full. No timeout: a dead sink blocks the caller indefinitely.
func (s *Source[D]) SubmitPacket(p D) {
	s.submit.tx(p)
	s.metrics.Submitted()
}

// TrySubmitPacket hands p to the sink if the submit queue has room. The
// data-available ring, if one became due, is deferred until Wakeup.
func (s *Source[D]) TrySubmitPacket(p D) bool {
	if !s.submit.tryTx(p) {
		return false
	}
	s.metrics.Submitted()
	return true
}

// AckAvail reports whether an acknowledgement is waiting.
func (s *Source[D]) AckAvail() bool {
	return s.acks.readyForRx()
}

// GetAckedPacket returns the next acknowledged packet, blocking while
// the ack queue is empty.
func (s *Source[D]) GetAckedPacket() D {
	return s.acks.rx()
}

// TryGetAckedPacket returns the next acknowledged packet without
// blocking; ok is false when none is waiting.
func (s *Source[D]) TryGetAckedPacket() (p D, ok bool) {
	return s.acks.tryRx()
}

// Wakeup flushes deferred notifications, sending at most one ring per
// call with the submit side checked first. Safe because the sink
// re-checks both queues whenever it wakes; a coalesced ring therefore
// covers whichever condition changed.
func (s *Source[D]) Wakeup() bool {
	return s.submit.wakeup() || s.acks.wakeup()
}

// ReadyToSubmitBell is the bell this source waits on for submit-queue
// space. Session setup hands it to the sink, which registers it via
// RegisterReadyToSubmitBell.
func (s *Source[D]) ReadyToSubmitBell() doorbell.Doorbell { return s.submit.waitBell() }

// AckAvailBell is the bell this source waits on for acknowledgements.
// Session setup hands it to the sink, which registers it via
// RegisterAckAvailBell.
func (s *Source[D]) AckAvailBell() doorbell.Doorbell { return s.acks.waitBell() }

// RegisterPacketAvailBell installs the sink's bell, rung when the submit
// queue gains data.
func (s *Source[D]) RegisterPacketAvailBell(bell doorbell.Doorbell) {
	s.submit.registerDataBell(bell)
}

// RegisterReadyToAckBell installs the sink's bell, rung as ack-queue
// slots free up.
func (s *Source[D]) RegisterReadyToAckBell(bell doorbell.Doorbell) {
	s.acks.registerSpaceBell(bell)
}

// BulkAvail returns the total free bulk bytes; fragmentation may keep a
// single allocation of this size from succeeding.
func (s *Source[D]) BulkAvail() uint64 { return s.bulk.Avail() }

// SourceState is a diagnostic snapshot, racy by nature.
type SourceState struct {
	SubmitSlotsFree int
	AckAvail        bool
	BulkBytesFree   uint64
}

// State captures a diagnostic snapshot for logs.
func (s *Source[D]) State() SourceState {
	return SourceState{
		SubmitSlotsFree: s.submit.slotsFree(),
		AckAvail:        s.acks.readyForRx(),
		BulkBytesFree:   s.bulk.Avail(),
	}
}

// Close releases local resources and detaches the region mapping. The
// shared memory itself belongs to the session layer and lives on.
func (s *Source[D]) Close() {
	s.log.Debug("packet-stream source closing")
	s.base.close()
}
