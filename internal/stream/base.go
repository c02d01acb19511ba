package stream

import (
	"fmt"
	"unsafe"

	"github.com/strataos/packetstream/internal/packet"
	"github.com/strataos/packetstream/internal/region"
)

// bulkAlign is the boundary the bulk buffer starts on within the region.
// Part of the wire layout; both ends compute the same offsets from the
// same queue sizes.
const bulkAlign = 64

// base lays out the shared region and owns the local mapping. Layout, in
// fixed order: submit-queue bytes, ack-queue bytes, then the bulk buffer
// (offset rounded up to bulkAlign) taking the remainder.
type base struct {
	reg       *region.Region
	submitLen int
	ackOff    int64
	ackLen    int
	bulkOff   int64
	bulkSize  uint64
}

func newBase(reg *region.Region, submitBytes, ackBytes int) (*base, error) {
	ackOff := int64(submitBytes)
	bulkOff := alignUp(ackOff+int64(ackBytes), bulkAlign)
	total := int64(reg.Size())
	if bulkOff >= total {
		return nil, fmt.Errorf("%w: queues need %d bytes, region has %d", ErrRegionTooSmall, bulkOff, total)
	}
	return &base{
		reg:       reg,
		submitLen: submitBytes,
		ackOff:    ackOff,
		ackLen:    ackBytes,
		bulkOff:   bulkOff,
		bulkSize:  uint64(total - bulkOff),
	}, nil
}

func (b *base) submitMem() []byte {
	return b.reg.Bytes()[:b.submitLen]
}

func (b *base) ackMem() []byte {
	return b.reg.Bytes()[b.ackOff : b.ackOff+int64(b.ackLen)]
}

// PacketValid reports whether d lies entirely inside the bulk buffer.
// The empty sentinel is always valid. The upper bound is closed: a
// descriptor ending exactly at the end of the bulk buffer passes.
func (b *base) PacketValid(d packet.Descriptor) bool {
	if d.Size == 0 {
		return true
	}
	if d.Size > b.bulkSize {
		return false
	}
	return d.Offset >= b.bulkOff &&
		d.Offset < b.bulkOff+int64(b.bulkSize) &&
		d.Offset+int64(d.Size) <= b.bulkOff+int64(b.bulkSize)
}

// PacketBytes returns the local view of d's payload. The descriptor came
// from a mutually distrusting peer: this bounds check is the transport's
// sole defense against an offset that would otherwise grant arbitrary
// access to the local mapping, and must run before every dereference.
// The empty sentinel yields a nil slice.
func (b *base) PacketBytes(d packet.Descriptor) ([]byte, error) {
	if !b.PacketValid(d) {
		return nil, fmt.Errorf("%w: offset %d size %d outside bulk buffer [%d,%d)",
			ErrInvalidPacket, d.Offset, d.Size, b.bulkOff, b.bulkOff+int64(b.bulkSize))
	}
	if d.Size == 0 {
		return nil, nil
	}
	return b.reg.Bytes()[d.Offset : d.Offset+int64(d.Size)], nil
}

// BulkBufferSize returns the size of the bulk buffer in bytes.
func (b *base) BulkBufferSize() uint64 { return b.bulkSize }

// close detaches the local mapping. Detach errors are swallowed inside
// Region; teardown never fails.
func (b *base) close() {
	b.reg.Close()
}

// payloadView is satisfied by both Source and Sink.
type payloadView interface {
	PacketBytes(packet.Descriptor) ([]byte, error)
}

// Content returns a typed view of d's payload inside v's local mapping.
// It fails with ErrInvalidPacket if d is out of bounds or its payload is
// smaller than T.
func Content[T any](v payloadView, d packet.Descriptor) (*T, error) {
	buf, err := v.PacketBytes(d)
	if err != nil {
		return nil, err
	}
	var zero T
	if uintptr(len(buf)) < unsafe.Sizeof(zero) {
		return nil, fmt.Errorf("%w: payload is %d bytes, %T needs %d",
			ErrInvalidPacket, len(buf), zero, unsafe.Sizeof(zero))
	}
	return (*T)(unsafe.Pointer(unsafe.SliceData(buf))), nil
}

func alignUp(v, align int64) int64 {
	return (v + align - 1) &^ (align - 1)
}
