package stream

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strataos/packetstream/internal/packet"
)

// countingBell records rings; it stands in for a peer's doorbell.
type countingBell struct {
	mu    sync.Mutex
	rings int
}

func (b *countingBell) Ring() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rings++
}

// Wait is never exercised: counting bells are only registered as
// peer-facing bells.
func (b *countingBell) Wait() {}

func (b *countingBell) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rings
}

// newPair builds a fully wired source/sink pair over one region, the way
// session setup would.
func newPair(t *testing.T, regionSize int, pol Policy) (*Source[packet.Descriptor], *Sink[packet.Descriptor]) {
	t.Helper()
	reg := testRegion(t, regionSize)

	src, err := NewSource[packet.Descriptor](reg, SourceConfig{Policy: pol})
	require.NoError(t, err)
	snk, err := NewSink[packet.Descriptor](reg, SinkConfig{Policy: pol})
	require.NoError(t, err)

	src.RegisterPacketAvailBell(snk.PacketAvailBell())
	src.RegisterReadyToAckBell(snk.ReadyToAckBell())
	snk.RegisterAckAvailBell(src.AckAvailBell())
	snk.RegisterReadyToSubmitBell(src.ReadyToSubmitBell())
	return src, snk
}

func TestSubmitAndAckFIFO(t *testing.T) {
	src, snk := newPair(t, 1<<16, Policy{SubmitSlots: 8, AckSlots: 8})

	var sent []packet.Descriptor
	for i := 0; i < 3; i++ {
		d, err := src.AllocPacket(64, 0)
		require.NoError(t, err)
		require.True(t, src.TrySubmitPacket(d))
		sent = append(sent, d)
	}

	// Sink sees p1, p2, p3 in submission order.
	for i := 0; i < 3; i++ {
		got, ok := snk.TryGetPacket()
		require.True(t, ok)
		assert.Equal(t, sent[i], got)
		require.True(t, snk.TryAckPacket(got))
	}

	// Acks come back in the same order.
	for i := 0; i < 3; i++ {
		got, ok := src.TryGetAckedPacket()
		require.True(t, ok)
		assert.Equal(t, sent[i], got)
		require.NoError(t, src.ReleasePacket(got))
	}
}

func TestTryOperationsNeverBlock(t *testing.T) {
	src, snk := newPair(t, 1<<16, Policy{SubmitSlots: 4, AckSlots: 4})

	// Empty queues: non-blocking receives return the sentinel at once.
	_, ok := snk.TryGetPacket()
	assert.False(t, ok)
	_, ok = src.TryGetAckedPacket()
	assert.False(t, ok)
	assert.True(t, snk.PeekPacket().Empty())

	// 4 slots means 3 usable; the fourth try-submit must fail, not
	// block.
	for i := 0; i < 3; i++ {
		d, err := src.AllocPacket(32, 0)
		require.NoError(t, err)
		require.True(t, src.TrySubmitPacket(d))
	}
	d, err := src.AllocPacket(32, 0)
	require.NoError(t, err)
	assert.False(t, src.TrySubmitPacket(d))
	assert.False(t, src.ReadyToSubmit(1))

	// Same on the ack side.
	for i := 0; i < 3; i++ {
		p, ok := snk.TryGetPacket()
		require.True(t, ok)
		require.True(t, snk.TryAckPacket(p))
	}
	assert.False(t, snk.TryAckPacket(packet.Descriptor{Offset: 1, Size: 1}))
	assert.False(t, snk.ReadyToAck())
	assert.Zero(t, snk.AckSlotsFree())
}

func TestDeferredNotificationBatching(t *testing.T) {
	src, _ := newPair(t, 1<<16, Policy{SubmitSlots: 8, AckSlots: 8})

	bell := &countingBell{}
	src.RegisterPacketAvailBell(bell)
	require.Equal(t, 0, bell.count(), "registration on an empty queue must not ring")

	d, err := src.AllocPacket(64, 0)
	require.NoError(t, err)
	require.True(t, src.TrySubmitPacket(d))
	assert.Equal(t, 0, bell.count(), "try-submit defers its ring")

	assert.True(t, src.Wakeup(), "wakeup delivers the owed ring")
	assert.Equal(t, 1, bell.count())

	assert.False(t, src.Wakeup(), "no transition, no ring")
	assert.Equal(t, 1, bell.count())
}

func TestRegistrationReRaisesOnBackedUpQueue(t *testing.T) {
	src, _ := newPair(t, 1<<16, Policy{SubmitSlots: 8, AckSlots: 8})

	d, err := src.AllocPacket(64, 0)
	require.NoError(t, err)
	src.SubmitPacket(d)

	// The packet went in before this handler existed; registration must
	// ring immediately or the sink would sleep forever.
	bell := &countingBell{}
	src.RegisterPacketAvailBell(bell)
	assert.Equal(t, 1, bell.count())
}

func TestWakeupSendsAtMostOneSignal(t *testing.T) {
	src, snk := newPair(t, 1<<16, Policy{SubmitSlots: 4, AckSlots: 4})

	packetAvail := &countingBell{}
	readyToAck := &countingBell{}
	src.RegisterPacketAvailBell(packetAvail)
	src.RegisterReadyToAckBell(readyToAck)

	// Make the submit side owe a ring.
	d, err := src.AllocPacket(32, 0)
	require.NoError(t, err)
	require.True(t, src.TrySubmitPacket(d))

	// Make the ack side owe one too: fill the ack queue, then drain one
	// slot so exactly one is free.
	for i := 0; i < 3; i++ {
		p, ok := snk.TryGetPacket()
		if !ok {
			p = packet.Descriptor{Offset: 1, Size: 1}
		}
		require.True(t, snk.TryAckPacket(p))
	}
	_, ok := src.TryGetAckedPacket()
	require.True(t, ok)

	// One signal per call, submit side first; the ack side's ring waits
	// for the next call.
	assert.True(t, src.Wakeup())
	assert.Equal(t, 1, packetAvail.count())
	assert.Equal(t, 0, readyToAck.count())

	assert.True(t, src.Wakeup())
	assert.Equal(t, 1, packetAvail.count())
	assert.Equal(t, 1, readyToAck.count())

	assert.False(t, src.Wakeup())
}

func TestInvalidDescriptorFromPeerIsFatal(t *testing.T) {
	src, snk := newPair(t, 1<<16, Policy{SubmitSlots: 8, AckSlots: 8})

	// A buggy or malicious source can put any bytes on the wire; the
	// sink's bounds check is what stands between that and its mapping.
	require.True(t, src.TrySubmitPacket(packet.Descriptor{Offset: 8, Size: 4096}))
	src.Wakeup()

	got, ok := snk.TryGetPacket()
	require.True(t, ok)
	_, err := snk.PacketBytes(got)
	require.ErrorIs(t, err, ErrInvalidPacket)
}

func TestBlockingRoundTrip(t *testing.T) {
	const (
		count   = 200
		payload = 128
	)
	// Queues and bulk deliberately much smaller than the traffic so
	// both blocking paths and the alloc-retry path get exercised.
	src, snk := newPair(t, 1024, Policy{SubmitSlots: 4, AckSlots: 4})

	errc := make(chan error, 2)

	go func() {
		outstanding := 0
		reap := func(d packet.Descriptor) error { return src.ReleasePacket(d) }
		for i := 0; i < count; i++ {
			d, err := src.AllocPacket(payload, 0)
			for err != nil {
				if outstanding == 0 {
					errc <- err
					return
				}
				if rerr := reap(src.GetAckedPacket()); rerr != nil {
					errc <- rerr
					return
				}
				outstanding--
				d, err = src.AllocPacket(payload, 0)
			}
			buf, err := src.PacketBytes(d)
			if err != nil {
				errc <- err
				return
			}
			for j := range buf {
				buf[j] = byte(i)
			}
			src.SubmitPacket(d)
			outstanding++
		}
		for ; outstanding > 0; outstanding-- {
			if err := reap(src.GetAckedPacket()); err != nil {
				errc <- err
				return
			}
		}
		errc <- nil
	}()

	go func() {
		for i := 0; i < count; i++ {
			d := snk.GetPacket()
			buf, err := snk.PacketBytes(d)
			if err != nil {
				errc <- err
				return
			}
			for _, b := range buf {
				if b != byte(i) {
					errc <- assert.AnError
					return
				}
			}
			snk.AcknowledgePacket(d)
		}
		errc <- nil
	}()

	for i := 0; i < 2; i++ {
		select {
		case err := <-errc:
			require.NoError(t, err)
		case <-time.After(10 * time.Second):
			t.Fatal("round trip stalled")
		}
	}
}
