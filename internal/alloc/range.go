package alloc

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrAllocFailed indicates no free extent can satisfy the request.
	// Recoverable: retry after in-flight packets are released.
	ErrAllocFailed = errors.New("allocation failed")

	// ErrDoubleRelease indicates a freed range overlaps space that is
	// already free. The caller released a packet twice or fabricated a
	// range; either way its bookkeeping is broken.
	ErrDoubleRelease = errors.New("range already free")

	// ErrOutOfRange indicates a freed range lies outside the managed
	// extent.
	ErrOutOfRange = errors.New("range outside managed extent")
)

// extent is a free run of bytes, [off, off+size).
type extent struct {
	off  int64
	size uint64
}

func (e extent) end() int64 { return e.off + int64(e.size) }

// Range allocates byte ranges first-fit from one managed extent. It is
// safe for concurrent use by multiple local callers; the extent itself
// belongs to exactly one side of the stream.
type Range struct {
	mu   sync.Mutex
	base int64
	size uint64
	free []extent // sorted by offset, non-adjacent
}

// NewRange returns an allocator seeded with [base, base+size).
func NewRange(base int64, size uint64) *Range {
	return &Range{
		base: base,
		size: size,
		free: []extent{{off: base, size: size}},
	}
}

// Alloc reserves size bytes aligned to 1<<alignLog2 and returns the start
// offset of the reservation. It fails with ErrAllocFailed when no free
// extent fits the aligned request.
func (r *Range) Alloc(size uint64, alignLog2 uint) (int64, error) {
	if size == 0 {
		return 0, fmt.Errorf("%w: zero size", ErrAllocFailed)
	}
	align := int64(1) << alignLog2

	r.mu.Lock()
	defer r.mu.Unlock()

	for i, e := range r.free {
		start := alignUp(e.off, align)
		if start+int64(size) > e.end() {
			continue
		}

		// Carve [start, start+size) out of e, keeping up to two
		// remainders.
		var rest []extent
		if start > e.off {
			rest = append(rest, extent{off: e.off, size: uint64(start - e.off)})
		}
		if end := start + int64(size); end < e.end() {
			rest = append(rest, extent{off: end, size: uint64(e.end() - end)})
		}
		r.free = append(r.free[:i], append(rest, r.free[i+1:]...)...)
		return start, nil
	}
	return 0, fmt.Errorf("%w: %d bytes align %d", ErrAllocFailed, size, align)
}

// Free returns [off, off+size) to the allocator, coalescing with adjacent
// free extents. Releasing space that is already free or outside the
// managed extent is an error and leaves the free list untouched.
func (r *Range) Free(off int64, size uint64) error {
	if size == 0 {
		return nil
	}
	end := off + int64(size)
	if off < r.base || end > r.base+int64(r.size) {
		return fmt.Errorf("%w: [%d,%d)", ErrOutOfRange, off, end)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Find insertion point, rejecting overlap with existing free space.
	i := 0
	for ; i < len(r.free); i++ {
		if off < r.free[i].end() {
			break
		}
	}
	if i < len(r.free) && end > r.free[i].off {
		return fmt.Errorf("%w: [%d,%d)", ErrDoubleRelease, off, end)
	}

	r.free = append(r.free, extent{})
	copy(r.free[i+1:], r.free[i:])
	r.free[i] = extent{off: off, size: size}

	// Merge with the right, then the left neighbor.
	if i+1 < len(r.free) && r.free[i].end() == r.free[i+1].off {
		r.free[i].size += r.free[i+1].size
		r.free = append(r.free[:i+1], r.free[i+2:]...)
	}
	if i > 0 && r.free[i-1].end() == r.free[i].off {
		r.free[i-1].size += r.free[i].size
		r.free = append(r.free[:i], r.free[i+1:]...)
	}
	return nil
}

// Avail returns the total number of free bytes. Fragmentation may keep a
// single allocation of this size from succeeding.
func (r *Range) Avail() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	var total uint64
	for _, e := range r.free {
		total += e.size
	}
	return total
}

func alignUp(v, align int64) int64 {
	return (v + align - 1) &^ (align - 1)
}
