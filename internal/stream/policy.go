package stream

// Policy fixes the protocol constants both ends of a stream must agree on
// out of band. The queue capacities are part of the wire layout: ends
// constructed with different policies silently corrupt each other, so a
// policy is compiled into the protocol, never negotiated at runtime.
type Policy struct {
	// SubmitSlots and AckSlots are ring slot counts. Usable capacity is
	// one less than the slot count.
	SubmitSlots int
	AckSlots    int
}

// DefaultPolicy matches the default queue dimensioning of session-based
// services built on this transport.
func DefaultPolicy() Policy {
	return Policy{SubmitSlots: 64, AckSlots: 64}
}

func (p Policy) withDefaults() Policy {
	if p.SubmitSlots == 0 {
		p.SubmitSlots = 64
	}
	if p.AckSlots == 0 {
		p.AckSlots = 64
	}
	return p
}
