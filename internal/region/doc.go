// Package region manages the shared communication region a packet stream
// runs over: one externally sized block of memory mapped into both ends'
// address spaces.
//
// The region is just bytes. Partitioning it into submit queue, ack queue
// and bulk buffer is the stream layer's job; session setup decides the
// backing (a named file under /dev/shm for cross-process streams, an
// anonymous shared mapping for in-process ones) and the total size.
//
// Detaching a region never fails from the caller's point of view: Close
// swallows unmap errors, since stream teardown must not be able to fail.
package region
