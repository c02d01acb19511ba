// Package monitoring exposes Prometheus metrics for the packet-stream
// transport: traffic counters, doorbell activity, and bulk-buffer usage.
//
// Metrics are optional. Every method is nil-safe, so the transport takes
// a *Metrics that may simply be absent; only binaries that care about
// observability construct one.
package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all transport metrics.
type Metrics struct {
	PacketsSubmitted prometheus.Counter
	PacketsAcked     prometheus.Counter
	AllocFailures    prometheus.Counter

	// Doorbell activity. Deferred counts owed-notification flags set by
	// try-operations; Rang counts rings actually delivered, so the gap
	// between the two is the batching win.
	BellsRang     prometheus.Counter
	BellsDeferred prometheus.Counter

	// BulkInFlight tracks bulk-buffer bytes currently allocated to
	// packets.
	BulkInFlight prometheus.Gauge
}

// New creates transport metrics registered with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		PacketsSubmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "packetstream_packets_submitted_total",
			Help: "Packets placed into the submit queue",
		}),
		PacketsAcked: factory.NewCounter(prometheus.CounterOpts{
			Name: "packetstream_packets_acked_total",
			Help: "Packets placed into the ack queue",
		}),
		AllocFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "packetstream_alloc_failures_total",
			Help: "Bulk-buffer allocation failures (retryable)",
		}),
		BellsRang: factory.NewCounter(prometheus.CounterOpts{
			Name: "packetstream_doorbell_rings_total",
			Help: "Doorbell rings delivered to the peer",
		}),
		BellsDeferred: factory.NewCounter(prometheus.CounterOpts{
			Name: "packetstream_doorbell_deferred_total",
			Help: "Notifications deferred by non-blocking operations",
		}),
		BulkInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "packetstream_bulk_in_flight_bytes",
			Help: "Bulk-buffer bytes currently allocated to packets",
		}),
	}
}

// Submitted records a packet entering the submit queue.
func (m *Metrics) Submitted() {
	if m != nil {
		m.PacketsSubmitted.Inc()
	}
}

// Acked records a packet entering the ack queue.
func (m *Metrics) Acked() {
	if m != nil {
		m.PacketsAcked.Inc()
	}
}

// AllocFailed records a retryable bulk allocation failure.
func (m *Metrics) AllocFailed() {
	if m != nil {
		m.AllocFailures.Inc()
	}
}

// BellRang records a doorbell ring delivered to the peer.
func (m *Metrics) BellRang() {
	if m != nil {
		m.BellsRang.Inc()
	}
}

// BellDeferred records a notification deferred for batching.
func (m *Metrics) BellDeferred() {
	if m != nil {
		m.BellsDeferred.Inc()
	}
}

// BulkGrew records bytes allocated from the bulk buffer.
func (m *Metrics) BulkGrew(n uint64) {
	if m != nil {
		m.BulkInFlight.Add(float64(n))
	}
}

// BulkShrank records bytes released back to the bulk buffer.
func (m *Metrics) BulkShrank(n uint64) {
	if m != nil {
		m.BulkInFlight.Sub(float64(n))
	}
}
