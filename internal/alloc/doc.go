// Package alloc provides the range allocator that manages the bulk buffer
// of a packet stream.
//
// The allocator hands out integer byte ranges inside an extent it was
// seeded with; it never touches the memory itself. Only the Source side
// of a stream owns an allocator. The Sink never allocates or frees bulk
// space; it only operates inside ranges the Source explicitly granted.
//
// Allocation failure is a flow-control condition, not a fault: bulk space
// returns when in-flight packets are released, so callers retry.
package alloc
