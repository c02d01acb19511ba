// Package block defines the block-device packet protocol carried over a
// packet stream, as the reference protocol extension: a Request embeds
// the core descriptor and appends plain-data operation fields, which is
// the only sanctioned way to build higher-level packet protocols on the
// transport. The core still interprets offset and size only.
package block

import "github.com/strataos/packetstream/internal/packet"

// Op selects the block operation a request asks for.
type Op uint32

const (
	Read Op = iota
	Write
)

func (o Op) String() string {
	switch o {
	case Read:
		return "read"
	case Write:
		return "write"
	default:
		return "unknown"
	}
}

// Request is a block-session packet descriptor. The payload range named
// by the embedded descriptor holds the block data; the extension fields
// say which blocks it covers. All fields are plain data, so a Request
// travels through the descriptor queues by value.
type Request struct {
	packet.Descriptor
	Op          Op
	BlockNumber uint64
	BlockCount  uint32

	// status is 0 until the sink acknowledges; the sink sets it before
	// acknowledging.
	status uint32
}

// NewRequest builds a request for the given payload range.
func NewRequest(d packet.Descriptor, op Op, blockNumber uint64, blockCount uint32) Request {
	return Request{Descriptor: d, Op: op, BlockNumber: blockNumber, BlockCount: blockCount}
}

// WithSuccess returns a copy of r marked as succeeded or failed, for the
// sink to acknowledge with.
func (r Request) WithSuccess(ok bool) Request {
	if ok {
		r.status = 1
	} else {
		r.status = 0
	}
	return r
}

// Succeeded reports whether the sink marked the request successful.
func (r Request) Succeeded() bool { return r.status == 1 }
