// Package metrics exposes the store's Prometheus instrumentation,
// following the shape of NayanaChandrika99-DocReasoner's internal/metrics
// but retargeted from gRPC/node counters onto bucket operations, page
// write-backs, bucket creation/deletion and a cache hit-ratio gauge.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every collector the store registers. A nil *Metrics is
// never passed around — Nop() returns one backed by a private registry
// so repeated Open calls in tests don't collide on prometheus's default
// registry.
type Metrics struct {
	ops             *prometheus.CounterVec
	pageWrites      prometheus.Counter
	pageWriteBytes  prometheus.Counter
	bucketsCreated  prometheus.Counter
	bucketsDeleted  prometheus.Counter
	cacheHitRatio   prometheus.Gauge
}

// New registers the store's collectors against reg. Pass
// prometheus.DefaultRegisterer to expose them on the process-wide
// /metrics endpoint (see cmd/server), or a fresh prometheus.NewRegistry()
// to keep multiple Database instances isolated, e.g. in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ops: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bptreekv",
			Name:      "bucket_operations_total",
			Help:      "Count of Get/Put/Update/Del calls by operation.",
		}, []string{"op"}),
		pageWrites: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "bptreekv",
			Name:      "page_writes_total",
			Help:      "Count of pages written back to disk by the cache.",
		}),
		pageWriteBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "bptreekv",
			Name:      "page_write_bytes_total",
			Help:      "Bytes written back to disk by the cache.",
		}),
		bucketsCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "bptreekv",
			Name:      "buckets_created_total",
			Help:      "Count of buckets created.",
		}),
		bucketsDeleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "bptreekv",
			Name:      "buckets_deleted_total",
			Help:      "Count of buckets deleted.",
		}),
		cacheHitRatio: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "bptreekv",
			Name:      "cache_hit_ratio",
			Help:      "Most recently observed page cache hit ratio.",
		}),
	}
}

// Nop returns a Metrics backed by its own private registry, so it can be
// used unconditionally without colliding with a process-wide registry.
func Nop() *Metrics {
	return New(prometheus.NewRegistry())
}

func (m *Metrics) RecordOp(op string) {
	if m == nil {
		return
	}
	m.ops.WithLabelValues(op).Inc()
}

func (m *Metrics) RecordPageWrite(bytesWritten int) {
	if m == nil {
		return
	}
	m.pageWrites.Inc()
	m.pageWriteBytes.Add(float64(bytesWritten))
}

func (m *Metrics) RecordBucketCreated() {
	if m == nil {
		return
	}
	m.bucketsCreated.Inc()
}

func (m *Metrics) RecordBucketDeleted() {
	if m == nil {
		return
	}
	m.bucketsDeleted.Inc()
}

func (m *Metrics) SetCacheHitRatio(ratio float64) {
	if m == nil {
		return
	}
	m.cacheHitRatio.Set(ratio)
}
