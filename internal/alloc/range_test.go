package alloc

import (
	"errors"
	"testing"
)

func TestAllocFree(t *testing.T) {
	r := NewRange(4096, 1024)

	off, err := r.Alloc(128, 0)
	if err != nil {
		t.Fatalf("Alloc failed: %v", err)
	}
	if off < 4096 || off+128 > 4096+1024 {
		t.Fatalf("allocation [%d,%d) outside managed extent", off, off+128)
	}
	if err := r.Free(off, 128); err != nil {
		t.Fatalf("Free failed: %v", err)
	}
}

func TestRoundTripRestoresExtent(t *testing.T) {
	r := NewRange(4096, 1024)

	off, err := r.Alloc(100, 3)
	if err != nil {
		t.Fatalf("Alloc failed: %v", err)
	}
	if err := r.Free(off, 100); err != nil {
		t.Fatalf("Free failed: %v", err)
	}

	// The free extent must be exactly what it was before the round
	// trip: one allocation covering the whole range must succeed.
	whole, err := r.Alloc(1024, 0)
	if err != nil {
		t.Fatalf("whole-range Alloc after round trip failed: %v", err)
	}
	if whole != 4096 {
		t.Fatalf("whole-range allocation at %d, want 4096", whole)
	}
}

func TestAlignment(t *testing.T) {
	r := NewRange(100, 4096)

	off, err := r.Alloc(10, 6)
	if err != nil {
		t.Fatalf("Alloc failed: %v", err)
	}
	if off%64 != 0 {
		t.Fatalf("offset %d not 64-byte aligned", off)
	}
	if off < 100 {
		t.Fatalf("offset %d before extent base", off)
	}
}

func TestExhaustion(t *testing.T) {
	r := NewRange(0, 256)

	first, err := r.Alloc(200, 0)
	if err != nil {
		t.Fatalf("Alloc failed: %v", err)
	}
	if _, err := r.Alloc(100, 0); !errors.Is(err, ErrAllocFailed) {
		t.Fatalf("expected ErrAllocFailed, got %v", err)
	}

	// Retryable: space returns with the release.
	if err := r.Free(first, 200); err != nil {
		t.Fatalf("Free failed: %v", err)
	}
	if _, err := r.Alloc(100, 0); err != nil {
		t.Fatalf("Alloc after release failed: %v", err)
	}
}

func TestDoubleRelease(t *testing.T) {
	r := NewRange(0, 512)

	off, err := r.Alloc(64, 0)
	if err != nil {
		t.Fatalf("Alloc failed: %v", err)
	}
	if err := r.Free(off, 64); err != nil {
		t.Fatalf("first Free failed: %v", err)
	}
	if err := r.Free(off, 64); !errors.Is(err, ErrDoubleRelease) {
		t.Fatalf("expected ErrDoubleRelease, got %v", err)
	}
}

func TestFreeOutOfRange(t *testing.T) {
	r := NewRange(1024, 512)

	if err := r.Free(0, 64); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("expected ErrOutOfRange, got %v", err)
	}
	if err := r.Free(1024+500, 64); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("expected ErrOutOfRange for range crossing the end, got %v", err)
	}
}

func TestCoalescing(t *testing.T) {
	r := NewRange(0, 300)

	a, _ := r.Alloc(100, 0)
	b, _ := r.Alloc(100, 0)
	c, _ := r.Alloc(100, 0)

	// Free out of order; neighbors must merge back into one extent.
	if err := r.Free(b, 100); err != nil {
		t.Fatalf("Free(b) failed: %v", err)
	}
	if err := r.Free(a, 100); err != nil {
		t.Fatalf("Free(a) failed: %v", err)
	}
	if err := r.Free(c, 100); err != nil {
		t.Fatalf("Free(c) failed: %v", err)
	}

	if _, err := r.Alloc(300, 0); err != nil {
		t.Fatalf("whole-range Alloc after coalescing failed: %v", err)
	}
}

func TestAvail(t *testing.T) {
	r := NewRange(0, 1000)

	if got := r.Avail(); got != 1000 {
		t.Fatalf("Avail()=%d, want 1000", got)
	}
	off, _ := r.Alloc(400, 0)
	if got := r.Avail(); got != 600 {
		t.Fatalf("Avail()=%d after alloc, want 600", got)
	}
	r.Free(off, 400)
	if got := r.Avail(); got != 1000 {
		t.Fatalf("Avail()=%d after free, want 1000", got)
	}
}
