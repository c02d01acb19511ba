package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strataos/packetstream/internal/packet"
	"github.com/strataos/packetstream/internal/region"
)

func testRegion(t *testing.T, size int) *region.Region {
	t.Helper()
	reg, err := region.NewAnonymous(size)
	require.NoError(t, err)
	t.Cleanup(reg.Close)
	return reg
}

func TestRegionTooSmall(t *testing.T) {
	// Two 64-slot queues alone outgrow 256 bytes; construction must
	// fail cleanly, the channel is never established.
	reg := testRegion(t, 256)

	_, err := NewSource[packet.Descriptor](reg, SourceConfig{})
	require.ErrorIs(t, err, ErrRegionTooSmall)

	_, err = NewSink[packet.Descriptor](reg, SinkConfig{})
	require.ErrorIs(t, err, ErrRegionTooSmall)
}

func TestPacketValidBounds(t *testing.T) {
	reg := testRegion(t, 1<<16)
	src, err := NewSource[packet.Descriptor](reg, SourceConfig{
		Policy: Policy{SubmitSlots: 8, AckSlots: 8},
	})
	require.NoError(t, err)

	// A whole-buffer allocation pins down the bulk extent exactly.
	full, err := src.AllocPacket(src.BulkBufferSize(), 0)
	require.NoError(t, err)

	assert.True(t, src.PacketValid(full), "descriptor covering the whole bulk buffer is valid")
	assert.True(t, src.PacketValid(packet.Descriptor{Offset: -12345, Size: 0}),
		"size-0 sentinel is valid regardless of offset")
	assert.False(t, src.PacketValid(packet.Descriptor{Offset: full.Offset, Size: full.Size + 1}),
		"one byte past the end of the bulk buffer is invalid")
	assert.False(t, src.PacketValid(packet.Descriptor{Offset: full.Offset - 1, Size: 1}),
		"one byte before the bulk buffer is invalid")
}

func TestPacketBytesRejectsForeignRanges(t *testing.T) {
	reg := testRegion(t, 1<<16)
	src, err := NewSource[packet.Descriptor](reg, SourceConfig{
		Policy: Policy{SubmitSlots: 8, AckSlots: 8},
	})
	require.NoError(t, err)

	// Offset 0 points into the submit queue, not the bulk buffer. A
	// peer handing this over is trying to reach outside its grant.
	_, err = src.PacketBytes(packet.Descriptor{Offset: 0, Size: 64})
	require.ErrorIs(t, err, ErrInvalidPacket)

	d, err := src.AllocPacket(128, 0)
	require.NoError(t, err)
	buf, err := src.PacketBytes(d)
	require.NoError(t, err)
	assert.Len(t, buf, 128)

	// Sentinel: valid, but there is nothing to view.
	buf, err = src.PacketBytes(packet.Descriptor{})
	require.NoError(t, err)
	assert.Nil(t, buf)
}

func TestTypedContent(t *testing.T) {
	reg := testRegion(t, 1<<16)
	src, err := NewSource[packet.Descriptor](reg, SourceConfig{
		Policy: Policy{SubmitSlots: 8, AckSlots: 8},
	})
	require.NoError(t, err)

	d, err := src.AllocPacket(16, 3)
	require.NoError(t, err)

	v, err := Content[uint64](src, d)
	require.NoError(t, err)
	*v = 0xdeadbeef
	buf, err := src.PacketBytes(d)
	require.NoError(t, err)
	assert.Equal(t, byte(0xef), buf[0], "typed view aliases the payload bytes")

	// A payload smaller than the requested type is an invalid packet.
	small, err := src.AllocPacket(4, 0)
	require.NoError(t, err)
	_, err = Content[uint64](src, small)
	require.ErrorIs(t, err, ErrInvalidPacket)

	_, err = Content[uint64](src, packet.Descriptor{})
	require.ErrorIs(t, err, ErrInvalidPacket)
}

func TestAllocReleaseCycle(t *testing.T) {
	reg := testRegion(t, 1<<15)
	src, err := NewSource[packet.Descriptor](reg, SourceConfig{
		Policy: Policy{SubmitSlots: 4, AckSlots: 4},
	})
	require.NoError(t, err)

	before := src.BulkAvail()
	d, err := src.AllocPacket(512, 0)
	require.NoError(t, err)
	assert.Equal(t, before-512, src.BulkAvail())

	require.NoError(t, src.ReleasePacket(d))
	assert.Equal(t, before, src.BulkAvail(), "release restores the free extent exactly")

	// Second release of the same range must be reported, not absorbed.
	require.Error(t, src.ReleasePacket(d))

	// Releasing the sentinel is a no-op.
	require.NoError(t, src.ReleasePacket(packet.Descriptor{}))
}

func TestAllocFailureIsRetryable(t *testing.T) {
	reg := testRegion(t, 8192)
	src, err := NewSource[packet.Descriptor](reg, SourceConfig{
		Policy: Policy{SubmitSlots: 4, AckSlots: 4},
	})
	require.NoError(t, err)

	d, err := src.AllocPacket(src.BulkBufferSize(), 0)
	require.NoError(t, err)

	_, err = src.AllocPacket(1, 0)
	require.Error(t, err, "exhausted bulk buffer must fail allocation")

	require.NoError(t, src.ReleasePacket(d))
	_, err = src.AllocPacket(1, 0)
	require.NoError(t, err, "allocation succeeds again after release")
}
