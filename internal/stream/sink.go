package stream

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/strataos/packetstream/internal/doorbell"
	"github.com/strataos/packetstream/internal/logging"
	"github.com/strataos/packetstream/internal/monitoring"
	"github.com/strataos/packetstream/internal/packet"
	"github.com/strataos/packetstream/internal/region"
)

// SinkConfig configures the consumer end of a stream.
type SinkConfig struct {
	Policy Policy

	// PacketDataBell is the bell this sink waits on for new packets;
	// AckSpaceBell is the bell it waits on when the ack queue is full.
	// Both default to in-process channel bells; inject futex bells for
	// cross-process streams.
	PacketDataBell doorbell.Doorbell
	AckSpaceBell   doorbell.Doorbell

	Logger  *logging.Logger
	Metrics *monitoring.Metrics
}

// Sink is the consumer end of a packet stream: it drains submitted
// packets, processes their payloads in place, and acknowledges them. It
// performs no bulk allocation, only bounded accesses inside descriptor
// ranges the source granted.
type Sink[D packet.Packet] struct {
	*base
	policy  Policy
	submits *receiver[D]
	acks    *transmitter[D]
	log     *logging.Logger
	metrics *monitoring.Metrics
}

// NewSink lays the stream out over reg and takes ownership of the local
// mapping. The consumer role initializes the submit queue's tail and the
// ack queue's head and slots, complementing what NewSource initializes.
func NewSink[D packet.Packet](reg *region.Region, cfg SinkConfig) (*Sink[D], error) {
	pol := cfg.Policy.withDefaults()

	b, err := newBase(reg, packet.BytesFor[D](pol.SubmitSlots), packet.BytesFor[D](pol.AckSlots))
	if err != nil {
		return nil, err
	}
	submitQ, err := packet.NewQueue[D](b.submitMem(), pol.SubmitSlots, packet.Consumer)
	if err != nil {
		return nil, fmt.Errorf("submit queue: %w", err)
	}
	ackQ, err := packet.NewQueue[D](b.ackMem(), pol.AckSlots, packet.Producer)
	if err != nil {
		return nil, fmt.Errorf("ack queue: %w", err)
	}

	dataBell := cfg.PacketDataBell
	if dataBell == nil {
		dataBell = doorbell.NewChan()
	}
	ackSpaceBell := cfg.AckSpaceBell
	if ackSpaceBell == nil {
		ackSpaceBell = doorbell.NewChan()
	}
	log := cfg.Logger
	if log == nil {
		log = logging.Nop()
	}

	k := &Sink[D]{
		base:    b,
		policy:  pol,
		submits: newReceiver(submitQ, dataBell, cfg.Metrics),
		acks:    newTransmitter(ackQ, ackSpaceBell, cfg.Metrics),
		log:     log,
		metrics: cfg.Metrics,
	}
	k.log.Debug("packet-stream sink ready",
		zap.Int("submit_slots", pol.SubmitSlots),
		zap.Int("ack_slots", pol.AckSlots),
		zap.Uint64("bulk_size", b.bulkSize))
	return k, nil
}

// PacketAvail reports whether a packet is waiting in the submit queue.
func (k *Sink[D]) PacketAvail() bool {
	return k.submits.readyForRx()
}

// GetPacket returns the next submitted packet, blocking while the submit
// queue is empty. No timeout: a dead source blocks the caller
// indefinitely.
func (k *Sink[D]) GetPacket() D {
	return k.submits.rx()
}

// TryGetPacket returns the next submitted packet without blocking; ok is
// false when none is waiting. The space-available ring, if one became
// due, is deferred until Wakeup.
func (k *Sink[D]) TryGetPacket() (p D, ok bool) {
	return k.submits.tryRx()
}

// PeekPacket returns the next packet without consuming it, or the zero
// value if the submit queue is empty.
func (k *Sink[D]) PeekPacket() D {
	return k.submits.peek()
}

// ReadyToAck reports whether the ack queue can take another
// acknowledgement.
func (k *Sink[D]) ReadyToAck() bool {
	return k.acks.readyForTx()
}

// AckSlotsFree returns the number of acknowledgements the ack queue can
// still take.
func (k *Sink[D]) AckSlotsFree() int {
	return k.acks.slotsFree()
}

// AcknowledgePacket reports p as processed, blocking while the ack queue
// is full.
func (k *Sink[D]) AcknowledgePacket(p D) {
	k.acks.tx(p)
	k.metrics.Acked()
}

// TryAckPacket reports p as processed if the ack queue has room, with
// the ring deferred until Wakeup.
func (k *Sink[D]) TryAckPacket(p D) bool {
	if !k.acks.tryTx(p) {
		return false
	}
	k.metrics.Acked()
	return true
}

// Wakeup flushes deferred notifications, sending at most one ring per
// call with the submit side checked first. Safe under the same contract
// as Source.Wakeup: the source re-checks both queues on any wake.
func (k *Sink[D]) Wakeup() bool {
	return k.submits.wakeup() || k.acks.wakeup()
}

// PacketAvailBell is the bell this sink waits on for new packets.
// Session setup hands it to the source, which registers it via
// RegisterPacketAvailBell.
func (k *Sink[D]) PacketAvailBell() doorbell.Doorbell { return k.submits.waitBell() }

// ReadyToAckBell is the bell this sink waits on for ack-queue space.
// Session setup hands it to the source, which registers it via
// RegisterReadyToAckBell.
func (k *Sink[D]) ReadyToAckBell() doorbell.Doorbell { return k.acks.waitBell() }

// RegisterAckAvailBell installs the source's bell, rung when the ack
// queue gains data.
func (k *Sink[D]) RegisterAckAvailBell(bell doorbell.Doorbell) {
	k.acks.registerDataBell(bell)
}

// RegisterReadyToSubmitBell installs the source's bell, rung as submit
// queue slots free up.
func (k *Sink[D]) RegisterReadyToSubmitBell(bell doorbell.Doorbell) {
	k.submits.registerSpaceBell(bell)
}

// SinkState is a diagnostic snapshot, racy by nature.
type SinkState struct {
	PacketAvail  bool
	AckSlotsFree int
}

// State captures a diagnostic snapshot for logs.
func (k *Sink[D]) State() SinkState {
	return SinkState{
		PacketAvail:  k.submits.readyForRx(),
		AckSlotsFree: k.acks.slotsFree(),
	}
}

// Close releases local resources and detaches the region mapping.
func (k *Sink[D]) Close() {
	k.log.Debug("packet-stream sink closing")
	k.base.close()
}
