// Package mctpmetrics tracks pipeline-level counters and latencies. It is
// shaped after go-ublk's own metrics.go — atomic counters, a latency
// histogram with percentile interpolation, a point-in-time Snapshot, and
// an Observer interface so a caller can plug in their own collector — but
// re-keyed to the drop reasons and action lifecycle counters the
// transport specification's error-handling design calls for instead of
// I/O byte/op counters.
package mctpmetrics

import (
	"sync/atomic"
	"time"
)

// DropReason classifies why a packet or message was discarded.
type DropReason int

const (
	DropVersion DropReason = iota
	DropSeqnum
	DropNoEOM
	DropNoSOM
	DropWrongTO
	DropBackpressure
	numDropReasons
)

func (r DropReason) String() string {
	switch r {
	case DropVersion:
		return "dropped_version"
	case DropSeqnum:
		return "dropped_seqnum"
	case DropNoEOM:
		return "dropped_noeom"
	case DropNoSOM:
		return "dropped_nosom"
	case DropWrongTO:
		return "dropped_wrongto"
	case DropBackpressure:
		return "dropped_count"
	default:
		return "dropped_unknown"
	}
}

// LatencyBuckets defines the action round-trip latency histogram buckets
// in nanoseconds, covering 100us to 10s.
var LatencyBuckets = []uint64{
	100_000,
	1_000_000,
	10_000_000,
	100_000_000,
	500_000_000,
	1_000_000_000,
	10_000_000_000,
}

const numLatencyBuckets = 7

// Metrics holds the pipeline's running counters.
type Metrics struct {
	Dropped [numDropReasons]atomic.Uint64

	MessageCount      atomic.Uint64
	SuccessfulActions atomic.Uint64
	FailedActions     atomic.Uint64
	AuditDropped      atomic.Uint64

	QueueDepthTotal atomic.Uint64
	QueueDepthCount atomic.Uint64
	MaxQueueDepth   atomic.Uint32

	TotalLatencyNs atomic.Uint64
	OpCount        atomic.Uint64
	LatencyBuckets [numLatencyBuckets]atomic.Uint64

	StartTime atomic.Int64
	StopTime  atomic.Int64
}

// New creates a Metrics instance stamped with the current time.
func New() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// RecordDrop increments the counter for reason.
func (m *Metrics) RecordDrop(reason DropReason) {
	if reason < 0 || reason >= numDropReasons {
		return
	}
	m.Dropped[reason].Add(1)
}

// RecordMessage increments the count of messages delivered to RMQ.
func (m *Metrics) RecordMessage() {
	m.MessageCount.Add(1)
}

// RecordActionCompleted records the outcome and round-trip latency of a
// retired action.
func (m *Metrics) RecordActionCompleted(latencyNs uint64, success bool) {
	if success {
		m.SuccessfulActions.Add(1)
	} else {
		m.FailedActions.Add(1)
	}
	m.recordLatency(latencyNs)
}

// RecordQueueDepth records an instantaneous queue occupancy sample.
func (m *Metrics) RecordQueueDepth(depth uint32) {
	m.QueueDepthTotal.Add(uint64(depth))
	m.QueueDepthCount.Add(1)
	for {
		cur := m.MaxQueueDepth.Load()
		if depth <= cur {
			break
		}
		if m.MaxQueueDepth.CompareAndSwap(cur, depth) {
			break
		}
	}
}

// RecordAuditDropped increments the best-effort audit-log drop counter.
func (m *Metrics) RecordAuditDropped() {
	m.AuditDropped.Add(1)
}

func (m *Metrics) recordLatency(latencyNs uint64) {
	m.TotalLatencyNs.Add(latencyNs)
	m.OpCount.Add(1)
	for i, bucket := range LatencyBuckets {
		if latencyNs <= bucket {
			m.LatencyBuckets[i].Add(1)
		}
	}
}

// Stop marks the pipeline as stopped for uptime accounting.
func (m *Metrics) Stop() {
	m.StopTime.Store(time.Now().UnixNano())
}

// Snapshot is a point-in-time copy of Metrics suitable for logging or
// exposing over an admin endpoint.
type Snapshot struct {
	DroppedVersion     uint64
	DroppedSeqnum      uint64
	DroppedNoEOM       uint64
	DroppedNoSOM       uint64
	DroppedWrongTO     uint64
	DroppedBackpressure uint64

	MessageCount      uint64
	SuccessfulActions uint64
	FailedActions     uint64
	AuditDropped      uint64

	AvgQueueDepth float64
	MaxQueueDepth uint32

	AvgLatencyNs uint64
	UptimeNs     uint64

	LatencyP50Ns  uint64
	LatencyP99Ns  uint64
	LatencyP999Ns uint64

	LatencyHistogram [numLatencyBuckets]uint64
}

// Snapshot produces a consistent-enough point-in-time view of m.
func (m *Metrics) Snapshot() Snapshot {
	s := Snapshot{
		DroppedVersion:      m.Dropped[DropVersion].Load(),
		DroppedSeqnum:       m.Dropped[DropSeqnum].Load(),
		DroppedNoEOM:        m.Dropped[DropNoEOM].Load(),
		DroppedNoSOM:        m.Dropped[DropNoSOM].Load(),
		DroppedWrongTO:      m.Dropped[DropWrongTO].Load(),
		DroppedBackpressure: m.Dropped[DropBackpressure].Load(),
		MessageCount:        m.MessageCount.Load(),
		SuccessfulActions:   m.SuccessfulActions.Load(),
		FailedActions:       m.FailedActions.Load(),
		AuditDropped:        m.AuditDropped.Load(),
		MaxQueueDepth:       m.MaxQueueDepth.Load(),
	}

	if c := m.QueueDepthCount.Load(); c > 0 {
		s.AvgQueueDepth = float64(m.QueueDepthTotal.Load()) / float64(c)
	}

	opCount := m.OpCount.Load()
	if opCount > 0 {
		s.AvgLatencyNs = m.TotalLatencyNs.Load() / opCount
	}

	start := m.StartTime.Load()
	stop := m.StopTime.Load()
	if stop > 0 {
		s.UptimeNs = uint64(stop - start)
	} else {
		s.UptimeNs = uint64(time.Now().UnixNano() - start)
	}

	for i := 0; i < numLatencyBuckets; i++ {
		s.LatencyHistogram[i] = m.LatencyBuckets[i].Load()
	}

	if opCount > 0 {
		s.LatencyP50Ns = m.percentile(0.50)
		s.LatencyP99Ns = m.percentile(0.99)
		s.LatencyP999Ns = m.percentile(0.999)
	}

	return s
}

func (m *Metrics) percentile(p float64) uint64 {
	total := m.OpCount.Load()
	if total == 0 {
		return 0
	}
	target := uint64(float64(total) * p)

	prevBucket := uint64(0)
	for i, bucket := range LatencyBuckets {
		count := m.LatencyBuckets[i].Load()
		if count >= target {
			prevCount := uint64(0)
			if i > 0 {
				prevCount = m.LatencyBuckets[i-1].Load()
			}
			if count == prevCount {
				return bucket
			}
			frac := float64(target-prevCount) / float64(count-prevCount)
			return prevBucket + uint64(frac*float64(bucket-prevBucket))
		}
		prevBucket = bucket
	}
	return LatencyBuckets[numLatencyBuckets-1]
}

// Observer allows pluggable metrics collection, decoupling stages from a
// concrete Metrics implementation the way go-ublk decouples its I/O loop
// from a concrete collector.
type Observer interface {
	ObserveDrop(reason DropReason)
	ObserveMessage()
	ObserveActionCompleted(latencyNs uint64, success bool)
	ObserveQueueDepth(depth uint32)
	ObserveAuditDropped()
}

// NoOpObserver discards every observation.
type NoOpObserver struct{}

func (NoOpObserver) ObserveDrop(DropReason)              {}
func (NoOpObserver) ObserveMessage()                     {}
func (NoOpObserver) ObserveActionCompleted(uint64, bool) {}
func (NoOpObserver) ObserveQueueDepth(uint32)            {}
func (NoOpObserver) ObserveAuditDropped()                {}

// MetricsObserver implements Observer by recording into a Metrics.
type MetricsObserver struct {
	M *Metrics
}

func NewMetricsObserver(m *Metrics) *MetricsObserver { return &MetricsObserver{M: m} }

func (o *MetricsObserver) ObserveDrop(reason DropReason)     { o.M.RecordDrop(reason) }
func (o *MetricsObserver) ObserveMessage()                   { o.M.RecordMessage() }
func (o *MetricsObserver) ObserveActionCompleted(ns uint64, success bool) {
	o.M.RecordActionCompleted(ns, success)
}
func (o *MetricsObserver) ObserveQueueDepth(depth uint32) { o.M.RecordQueueDepth(depth) }
func (o *MetricsObserver) ObserveAuditDropped()           { o.M.RecordAuditDropped() }

var (
	_ Observer = (*MetricsObserver)(nil)
	_ Observer = NoOpObserver{}
)
