package homa

//
// Metrics (§6, §4.J): the prometheus counters this package emits,
// grounded the way the rest of this module's ecosystem wires
// prometheus/client_golang via promauto.
//

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every counter and histogram named in §6. A [Context]
// owns one; tests that do not care about metrics can use
// [NewMetrics] with a private registry to avoid colliding with other
// tests registering the same metric names against the default
// registry.
type Metrics struct {
	// PacketsSent counts packets handed to the IP transmit primitive,
	// labeled by packet type.
	PacketsSent *prometheus.CounterVec

	// ControlXmitErrors counts Control Sender submission failures.
	ControlXmitErrors prometheus.Counter

	// DataXmitErrors counts Data Sender / Retransmitter submission
	// failures.
	DataXmitErrors prometheus.Counter

	// ResentPackets counts packets actually re-emitted by the
	// Retransmitter.
	ResentPackets prometheus.Counter

	// PacerCycles accumulates cycles the pacer spends idle, waiting for
	// the throttled list to become non-empty.
	PacerCycles prometheus.Counter

	// ThrottledRemainingBytes observes remaining-byte counts at the
	// moment an RPC joins the throttled list, useful for capacity
	// planning beyond what §6 strictly requires.
	ThrottledRemainingBytes prometheus.Histogram
}

// NewMetrics registers a fresh set of Homa metrics against reg. Pass
// prometheus.NewRegistry() in tests to avoid duplicate-registration
// panics across test cases.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		PacketsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "homa_packets_sent_total",
			Help: "Packets handed to the IP transmit primitive, by packet type.",
		}, []string{"type"}),

		ControlXmitErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "homa_control_xmit_errors_total",
			Help: "Control packet submissions that failed.",
		}),

		DataXmitErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "homa_data_xmit_errors_total",
			Help: "Data packet submissions that failed.",
		}),

		ResentPackets: factory.NewCounter(prometheus.CounterOpts{
			Name: "homa_resent_packets_total",
			Help: "Packets actually re-emitted by the retransmitter.",
		}),

		PacerCycles: factory.NewCounter(prometheus.CounterOpts{
			Name: "homa_pacer_idle_cycles_total",
			Help: "Cycles the pacer spent blocked waiting for the throttled list.",
		}),

		ThrottledRemainingBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "homa_throttled_remaining_bytes",
			Help:    "Remaining message bytes at the moment an RPC joined the throttled list.",
			Buckets: prometheus.ExponentialBuckets(1400, 2, 16),
		}),
	}
}
