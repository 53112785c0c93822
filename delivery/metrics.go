package delivery

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the delivery engine's prometheus counters (SPEC_FULL §2
// domain stack). Namespacing follows prometheus's own convention
// (namespace/subsystem/name), not a teacher precedent -- no file in
// the retrieval pack exercises this dependency directly.
type Metrics struct {
	Sent         prometheus.Counter
	Delivered    prometheus.Counter
	Failed       prometheus.Counter
	Retried      prometheus.Counter
	HeardRepeats prometheus.Counter
}

// NewMetrics builds the counter set, registering it with reg unless
// reg is nil (tests construct Metrics without a registry).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Sent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "meshclient", Subsystem: "delivery", Name: "sent_total",
			Help: "Direct messages handed to the device for sending.",
		}),
		Delivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "meshclient", Subsystem: "delivery", Name: "delivered_total",
			Help: "Direct messages confirmed delivered via an ack push.",
		}),
		Failed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "meshclient", Subsystem: "delivery", Name: "failed_total",
			Help: "Direct messages marked failed: retries exhausted, a send attempt errored, or the transport disconnected.",
		}),
		Retried: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "meshclient", Subsystem: "delivery", Name: "retried_total",
			Help: "Ack deadlines that expired before delivery; each is followed by another attempt, or by failure after the last one.",
		}),
		HeardRepeats: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "meshclient", Subsystem: "delivery", Name: "heard_repeats_total",
			Help: "Duplicate flood rebroadcasts recognized by the dedup filter.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Sent, m.Delivered, m.Failed, m.Retried, m.HeardRepeats)
	}
	return m
}
