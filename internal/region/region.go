package region

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// ErrBadSize indicates a non-positive region size.
var ErrBadSize = errors.New("region size must be positive")

// Region is a local mapping of one shared memory block. Two Regions in
// different processes may view the same physical bytes; all cross-process
// references into a region are integer offsets, never addresses.
type Region struct {
	mem  []byte
	file *os.File
	name string
}

// Create allocates a named shared region of the given size and maps it.
// The peer attaches to the same name.
func Create(name string, size int) (*Region, error) {
	if size <= 0 {
		return nil, ErrBadSize
	}
	path := filepath.Join(shmDir(), name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create region %q: %w", name, err)
	}
	if err := f.Truncate(int64(size)); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("size region %q: %w", name, err)
	}
	mem, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("map region %q: %w", name, err)
	}
	return &Region{mem: mem, file: f, name: name}, nil
}

// Attach maps an existing named shared region created by the peer.
func Attach(name string) (*Region, error) {
	path := filepath.Join(shmDir(), name)
	f, err := os.OpenFile(path, os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("attach region %q: %w", name, err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("attach region %q: %w", name, err)
	}
	mem, err := unix.Mmap(int(f.Fd()), 0, int(fi.Size()), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("map region %q: %w", name, err)
	}
	return &Region{mem: mem, file: f, name: name}, nil
}

// NewAnonymous maps a shared region with no backing name, usable by
// streams whose two ends share one process (or a fork).
func NewAnonymous(size int) (*Region, error) {
	if size <= 0 {
		return nil, ErrBadSize
	}
	mem, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("map anonymous region: %w", err)
	}
	return &Region{mem: mem}, nil
}

// Bytes returns the local view of the region.
func (r *Region) Bytes() []byte { return r.mem }

// Size returns the region size in bytes.
func (r *Region) Size() int { return len(r.mem) }

// Name returns the region's shared name, empty for anonymous regions.
func (r *Region) Name() string { return r.name }

// Close detaches the local mapping. The shared memory itself lives on
// until every mapping is gone and the name is unlinked. Errors are
// swallowed: teardown cannot fail.
func (r *Region) Close() {
	if r.mem != nil {
		_ = unix.Munmap(r.mem)
		r.mem = nil
	}
	if r.file != nil {
		_ = r.file.Close()
		r.file = nil
	}
}

// Unlink removes a named region's backing so the name can be reused. Call
// it once per stream, after both ends have attached (or on teardown).
func Unlink(name string) error {
	return os.Remove(filepath.Join(shmDir(), name))
}

// shmDir prefers the kernel's shared-memory tmpfs where available.
func shmDir() string {
	if fi, err := os.Stat("/dev/shm"); err == nil && fi.IsDir() {
		return "/dev/shm"
	}
	return os.TempDir()
}
