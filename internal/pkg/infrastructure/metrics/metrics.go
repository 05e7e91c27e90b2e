package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics carries the ingestion counters exposed on /metrics. A nil
// *Metrics is a valid no-op recorder, which keeps tests free of registry
// bookkeeping.
type Metrics struct {
	readingsIngested prometheus.Counter
	entriesRejected  *prometheus.CounterVec
	appendLatency    prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		readingsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "telemetry_readings_ingested_total",
			Help: "Readings successfully appended to the time-series store.",
		}),
		entriesRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "telemetry_entries_rejected_total",
			Help: "Frame entries dropped during ingestion, by reason.",
		}, []string{"reason"}),
		appendLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "telemetry_store_append_latency_seconds",
			Help:    "Latency of durable appends to the time-series store.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
	}

	reg.MustRegister(m.readingsIngested, m.entriesRejected, m.appendLatency)

	return m
}

func (m *Metrics) ReadingIngested() {
	if m == nil {
		return
	}
	m.readingsIngested.Inc()
}

func (m *Metrics) EntryRejected(reason string) {
	if m == nil {
		return
	}
	m.entriesRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObserveAppend(d time.Duration) {
	if m == nil {
		return
	}
	m.appendLatency.Observe(d.Seconds())
}
