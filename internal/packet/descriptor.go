package packet

// Descriptor names a byte range inside the bulk buffer of a shared
// communication region. It is plain data: descriptors are copied by value
// across the shared-memory boundary and never carry addresses.
//
// The zero value (Size == 0) is the empty sentinel. It is returned by
// non-blocking receive paths when no packet is available and is considered
// valid regardless of its offset.
type Descriptor struct {
	Offset int64
	Size   uint64
}

// Empty reports whether d is the empty sentinel.
func (d Descriptor) Empty() bool { return d.Size == 0 }

// Desc returns d itself, satisfying the Packet interface so that
// Descriptor can be used directly as a queue element type.
func (d Descriptor) Desc() Descriptor { return d }

// Packet is implemented by descriptor types carried through a Queue.
// Protocol-specific packet types embed Descriptor (gaining this method by
// promotion) and append their own plain-data fields.
//
// A Packet implementation must be free of Go pointers: its bytes are
// copied verbatim into shared memory. Queue construction rejects types
// that violate this.
type Packet interface {
	Desc() Descriptor
}
