// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Ring metrics exported through a prometheus registry.
// All methods are safe on a nil *RingMetrics so writers need no guard.

package control

import (
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

const metricsNamespace = "hioload_ring"

// Fault kinds used as the "kind" label of the faults counter.
const (
	FaultLeaseExhausted    = "lease_exhausted"
	FaultCapacityViolation = "capacity_violation"
	FaultAckOutOfRange     = "ack_out_of_range"
	FaultLeaseReleased     = "lease_released"
	FaultSink              = "sink"
)

// RingMetrics aggregates counters for every writer sharing it.
type RingMetrics struct {
	flushedBytes prometheus.Counter
	regions      prometheus.Counter
	wrapSplits   prometheus.Counter
	ackBatches   prometheus.Counter
	ackedRegions prometheus.Counter
	freedBytes   prometheus.Counter
	faults       *prometheus.CounterVec
	inFlight     prometheus.Gauge
	leasesHeld   prometheus.Gauge

	gatherer prometheus.Gatherer
}

// NewRingMetrics registers ring collectors on reg. A nil reg gets a
// private registry, which Snapshot then reads.
func NewRingMetrics(reg *prometheus.Registry) *RingMetrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &RingMetrics{
		flushedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace, Name: "flushed_bytes_total",
			Help: "Bytes copied into transfer rings.",
		}),
		regions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace, Name: "regions_total",
			Help: "Region descriptors emitted by flushes.",
		}),
		wrapSplits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace, Name: "wrap_splits_total",
			Help: "Flushes split in two at the ring end.",
		}),
		ackBatches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace, Name: "ack_batches_total",
			Help: "Acknowledgment batches processed.",
		}),
		ackedRegions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace, Name: "acked_regions_total",
			Help: "Regions acknowledged.",
		}),
		freedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace, Name: "freed_bytes_total",
			Help: "Bytes returned to writers by ack index advancement.",
		}),
		faults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace, Name: "faults_total",
			Help: "Rejected operations by kind.",
		}, []string{"kind"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace, Name: "in_flight_bytes",
			Help: "Written but unacknowledged bytes.",
		}),
		leasesHeld: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace, Name: "leases_held",
			Help: "Transfer memory leases currently held.",
		}),
		gatherer: reg,
	}
	reg.MustRegister(
		m.flushedBytes, m.regions, m.wrapSplits,
		m.ackBatches, m.ackedRegions, m.freedBytes,
		m.faults, m.inFlight, m.leasesHeld,
	)
	return m
}

// ObserveFlush records one flush of n bytes producing regions descriptors.
func (m *RingMetrics) ObserveFlush(n int, regions int) {
	if m == nil {
		return
	}
	m.flushedBytes.Add(float64(n))
	m.regions.Add(float64(regions))
	if regions > 1 {
		m.wrapSplits.Inc()
	}
	m.inFlight.Add(float64(n))
}

// ObserveAckBatch records an acknowledgment batch of regions entries.
func (m *RingMetrics) ObserveAckBatch(regions int) {
	if m == nil {
		return
	}
	m.ackBatches.Inc()
	m.ackedRegions.Add(float64(regions))
}

// ObserveFreed records ack index advancement by n bytes.
func (m *RingMetrics) ObserveFreed(n uint64) {
	if m == nil {
		return
	}
	m.freedBytes.Add(float64(n))
	m.inFlight.Sub(float64(n))
}

// ObserveFault counts a rejected operation.
func (m *RingMetrics) ObserveFault(kind string) {
	if m == nil {
		return
	}
	m.faults.WithLabelValues(kind).Inc()
}

// ObserveLease tracks lease acquisition (+1) and release (-1).
func (m *RingMetrics) ObserveLease(delta int) {
	if m == nil {
		return
	}
	m.leasesHeld.Add(float64(delta))
}

// DropInFlight removes bytes that will never be acknowledged, e.g. when
// a writer is torn down with data outstanding.
func (m *RingMetrics) DropInFlight(n uint64) {
	if m == nil {
		return
	}
	m.inFlight.Sub(float64(n))
}

// Snapshot returns the latest metric values keyed by full metric name;
// labelled series are keyed as name{label=value}.
func (m *RingMetrics) Snapshot() map[string]any {
	out := make(map[string]any)
	if m == nil {
		return out
	}
	families, err := m.gatherer.Gather()
	if err != nil {
		return out
	}
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			key := mf.GetName()
			for _, lp := range metric.GetLabel() {
				key += "{" + lp.GetName() + "=" + lp.GetValue() + "}"
			}
			out[key] = metricValue(mf.GetType(), metric)
		}
	}
	return out
}

func metricValue(t dto.MetricType, metric *dto.Metric) float64 {
	switch t {
	case dto.MetricType_COUNTER:
		return metric.GetCounter().GetValue()
	case dto.MetricType_GAUGE:
		return metric.GetGauge().GetValue()
	default:
		return 0
	}
}
