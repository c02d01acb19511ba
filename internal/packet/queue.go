package packet

import (
	"errors"
	"fmt"
	"reflect"
	"sync/atomic"
	"unsafe"
)

var (
	// ErrQueueMemory indicates the supplied memory cannot host a queue of
	// the requested capacity.
	ErrQueueMemory = errors.New("queue memory unsuitable")

	// ErrPointerType indicates the element type contains Go pointers and
	// therefore cannot be stored in shared memory.
	ErrPointerType = errors.New("element type contains pointers")
)

// Role selects which fields of a shared queue a constructor initializes.
//
// The queue is constructed twice, once by each end mapping the same
// physical memory. Each role must touch only the fields it owns: the
// producer zeroes the slot array and resets head, the consumer resets
// tail. Initializing the other side's index would race with a peer that
// has already started using it.
type Role int

const (
	Producer Role = iota
	Consumer
)

// Queue header layout inside shared memory: head and tail indices,
// followed by the slot array at an 8-byte boundary.
const (
	headOffset  = 0
	tailOffset  = 4
	slotsOffset = 8
)

// Queue is a fixed-capacity ring of packet descriptors embedded in shared
// memory, with single-producer/single-consumer index discipline: head is
// written only by the producer end, tail only by the consumer end, and
// each index is read by both. No lock is held between the two ends;
// cross-end correctness relies on atomic index accesses alone.
//
// Usable capacity is one less than the slot count: one slot stays empty
// so that full and empty states are distinguishable from two indices.
type Queue[D Packet] struct {
	head     *uint32 // advanced by the producer end only
	tail     *uint32 // advanced by the consumer end only
	slots    []D
	capacity uint32
}

// BytesFor returns the shared-memory footprint of a queue with the given
// slot count and element type D.
func BytesFor[D Packet](capacity int) int {
	var zero D
	return slotsOffset + capacity*int(unsafe.Sizeof(zero))
}

// NewQueue places a queue of the given capacity over mem, initializing
// the fields owned by role. Both ends must use the same capacity and
// element type; a mismatch is undefined behavior, so capacity is a
// compiled-in protocol constant rather than anything negotiated at
// runtime.
func NewQueue[D Packet](mem []byte, capacity int, role Role) (*Queue[D], error) {
	var zero D
	if hasPointers(reflect.TypeOf(zero)) {
		return nil, fmt.Errorf("%w: %T", ErrPointerType, zero)
	}
	if capacity < 2 {
		return nil, fmt.Errorf("%w: capacity %d below minimum of 2", ErrQueueMemory, capacity)
	}
	if need := BytesFor[D](capacity); len(mem) < need {
		return nil, fmt.Errorf("%w: need %d bytes, have %d", ErrQueueMemory, need, len(mem))
	}
	base := unsafe.Pointer(unsafe.SliceData(mem))
	if uintptr(base)%8 != 0 {
		return nil, fmt.Errorf("%w: base not 8-byte aligned", ErrQueueMemory)
	}

	q := &Queue[D]{
		head:     (*uint32)(unsafe.Add(base, headOffset)),
		tail:     (*uint32)(unsafe.Add(base, tailOffset)),
		slots:    unsafe.Slice((*D)(unsafe.Add(base, slotsOffset)), capacity),
		capacity: uint32(capacity),
	}

	switch role {
	case Producer:
		for i := range q.slots {
			q.slots[i] = zero
		}
		atomic.StoreUint32(q.head, 0)
	case Consumer:
		atomic.StoreUint32(q.tail, 0)
	default:
		return nil, fmt.Errorf("%w: unknown role %d", ErrQueueMemory, role)
	}
	return q, nil
}

// Add places p into the queue. It returns false if the queue is full.
// Producer end only.
func (q *Queue[D]) Add(p D) bool {
	head := atomic.LoadUint32(q.head)
	tail := atomic.LoadUint32(q.tail)
	if (head+1)%q.capacity == tail {
		return false
	}
	q.slots[head%q.capacity] = p
	// Publish the slot before the index becomes visible to the consumer.
	atomic.StoreUint32(q.head, (head+1)%q.capacity)
	return true
}

// Get removes and returns the next descriptor. The queue must not be
// empty. Consumer end only.
func (q *Queue[D]) Get() D {
	tail := atomic.LoadUint32(q.tail)
	p := q.slots[tail%q.capacity]
	atomic.StoreUint32(q.tail, (tail+1)%q.capacity)
	return p
}

// Peek returns the next descriptor without removing it. The queue must
// not be empty. Consumer end only.
func (q *Queue[D]) Peek() D {
	return q.slots[atomic.LoadUint32(q.tail)%q.capacity]
}

// Empty reports whether no descriptor is queued.
func (q *Queue[D]) Empty() bool {
	return atomic.LoadUint32(q.head) == atomic.LoadUint32(q.tail)
}

// Full reports whether no slot is left for another Add.
func (q *Queue[D]) Full() bool {
	return (atomic.LoadUint32(q.head)+1)%q.capacity == atomic.LoadUint32(q.tail)
}

// SingleElement reports whether exactly one descriptor is queued.
func (q *Queue[D]) SingleElement() bool {
	return (atomic.LoadUint32(q.tail)+1)%q.capacity == atomic.LoadUint32(q.head)
}

// SingleSlotFree reports whether exactly one slot is left for an Add.
func (q *Queue[D]) SingleSlotFree() bool {
	return (atomic.LoadUint32(q.head)+2)%q.capacity == atomic.LoadUint32(q.tail)
}

// SlotsFree returns the number of descriptors that can still be added.
func (q *Queue[D]) SlotsFree() int {
	head := atomic.LoadUint32(q.head)
	tail := atomic.LoadUint32(q.tail)
	if tail > head {
		return int(tail-head) - 1
	}
	return int(q.capacity-head+tail) - 1
}

// Capacity returns the slot count, one more than the usable capacity.
func (q *Queue[D]) Capacity() int { return int(q.capacity) }

// hasPointers walks t and reports whether any reachable field is a
// pointer-shaped kind. Only pointer-free types may be copied into shared
// memory.
func hasPointers(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return false
	case reflect.Array:
		return hasPointers(t.Elem())
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if hasPointers(t.Field(i).Type) {
				return true
			}
		}
		return false
	default:
		return true
	}
}
