package stream

import "errors"

var (
	// ErrRegionTooSmall indicates the shared region cannot fit both
	// queues plus a non-empty bulk buffer. Construction-time and fatal:
	// the channel is never established.
	ErrRegionTooSmall = errors.New("region too small")

	// ErrInvalidPacket indicates a descriptor that reaches outside the
	// bulk buffer or is undersized for the requested view. Fatal peer
	// misbehavior: tear the session down, do not retry.
	ErrInvalidPacket = errors.New("invalid packet")
)
