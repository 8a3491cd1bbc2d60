// Package metrics exports logger measurements to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/robotalks/rawlog/pkg/staging"
)

const namespace = "rawlog"

// Metrics implements staging.Observer.
type Metrics struct {
	RingAvailable     prometheus.Gauge
	RingHighWaterMark prometheus.Gauge
	RingCapacity      prometheus.Gauge
	CommittedBytes    prometheus.Counter
	BlocksWritten     prometheus.Counter
	DroppedBytes      prometheus.Counter
	WriteLatency      prometheus.Histogram
	State             *prometheus.GaugeVec
}

// New creates Metrics registered with registerer.
func New(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	m := &Metrics{
		RingAvailable: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ring_available_bytes",
			Help:      "Bytes queued in the staging ring.",
		}),
		RingHighWaterMark: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ring_high_water_mark_bytes",
			Help:      "Maximum bytes ever queued in the staging ring.",
		}),
		RingCapacity: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ring_capacity_bytes",
			Help:      "Capacity of the staging ring.",
		}),
		CommittedBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "committed_bytes_total",
			Help:      "Bytes written to the sink.",
		}),
		BlocksWritten: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blocks_written_total",
			Help:      "Blocks written to the sink.",
		}),
		DroppedBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_bytes_total",
			Help:      "Bytes dropped because the staging ring was full.",
		}),
		WriteLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "block_write_seconds",
			Help:      "Latency of sink block writes.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
		State: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "state",
			Help:      "Current logger state, 1 for the active state.",
		}, []string{"state"}),
	}
	m.ObserveState(staging.StateRunning)
	return m
}

// ObserveRing implements staging.Observer.
func (m *Metrics) ObserveRing(available, highWaterMark, capacity int) {
	m.RingAvailable.Set(float64(available))
	m.RingHighWaterMark.Set(float64(highWaterMark))
	m.RingCapacity.Set(float64(capacity))
}

// ObserveBlock implements staging.Observer.
func (m *Metrics) ObserveBlock(size int, latency time.Duration) {
	m.CommittedBytes.Add(float64(size))
	m.BlocksWritten.Inc()
	m.WriteLatency.Observe(latency.Seconds())
}

// ObserveDropped implements staging.Observer.
func (m *Metrics) ObserveDropped(n int) {
	m.DroppedBytes.Add(float64(n))
}

// ObserveState implements staging.Observer.
func (m *Metrics) ObserveState(s staging.State) {
	for _, st := range []staging.State{staging.StateRunning, staging.StateDraining, staging.StateStopped, staging.StateFailed} {
		var v float64
		if st == s {
			v = 1
		}
		m.State.WithLabelValues(st.String()).Set(v)
	}
}
