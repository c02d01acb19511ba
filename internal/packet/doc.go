// Package packet defines the packet descriptor and the descriptor ring
// queue shared between the two ends of a packet stream.
//
// A Descriptor is a plain offset+size handle naming a byte range inside
// the bulk buffer of a shared communication region. Descriptors travel by
// value through a Queue, a fixed-capacity single-producer/single-consumer
// ring embedded directly in shared memory. Both ends of a stream
// instantiate a Queue over the same bytes, each initializing only the
// index it owns.
//
// Higher-level protocols extend the descriptor by embedding it in a larger
// plain-data struct (see internal/block); the queue stores the concrete
// type, but the transport core only ever interprets offset and size.
package packet
