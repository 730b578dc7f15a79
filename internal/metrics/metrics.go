// Package metrics defines the Prometheus collectors of the campus service.
//
// Collectors are registered on an injected registry. A nil *Metrics is
// valid and records nothing, so services and tests can omit it.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "campus"

// Metrics holds every collector.
type Metrics struct {
	syncDuration       *prometheus.HistogramVec
	syncTotal          *prometheus.CounterVec
	syncCoalesced      prometheus.Counter
	cacheInvalidations *prometheus.CounterVec
	retrievalDuration  prometheus.Histogram
	retrievalResults   prometheus.Histogram
	embeddingCalls     *prometheus.CounterVec
	chatRequests       *prometheus.CounterVec
	rateLimited        prometheus.Counter
	mutations          *prometheus.CounterVec
}

// New creates and registers the collectors.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		syncDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "duration_seconds",
			Help:      "Duration of one record sync attempt.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"kind", "outcome"}),
		syncTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "attempts_total",
			Help:      "Record sync attempts by kind and outcome.",
		}, []string{"kind", "outcome"}),
		syncCoalesced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "coalesced_total",
			Help:      "Mutations folded into a pending follow-up sync.",
		}),
		cacheInvalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "invalidations_total",
			Help:      "Cache key and tag invalidations by kind and result.",
		}, []string{"kind", "result"}),
		retrievalDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "retrieval",
			Name:      "duration_seconds",
			Help:      "Duration of query embedding plus ranking.",
			Buckets:   prometheus.DefBuckets,
		}),
		retrievalResults: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "retrieval",
			Name:      "results",
			Help:      "Number of results returned per query.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		}),
		embeddingCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "embedding",
			Name:      "calls_total",
			Help:      "Embedding service calls by outcome.",
		}, []string{"outcome"}),
		chatRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "requests_total",
			Help:      "Chat turns by outcome.",
		}, []string{"outcome"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "rate_limited_total",
			Help:      "Chat requests rejected by the per-client rate limit.",
		}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mutations",
			Name:      "received_total",
			Help:      "Record mutation notifications by transport and operation.",
		}, []string{"transport", "operation"}),
	}

	collectors := []prometheus.Collector{
		m.syncDuration, m.syncTotal, m.syncCoalesced, m.cacheInvalidations,
		m.retrievalDuration, m.retrievalResults, m.embeddingCalls,
		m.chatRequests, m.rateLimited, m.mutations,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveSync records one sync attempt.
func (m *Metrics) ObserveSync(kind, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.syncDuration.WithLabelValues(kind, outcome).Observe(d.Seconds())
	m.syncTotal.WithLabelValues(kind, outcome).Inc()
}

// SyncCoalesced counts a mutation folded into a pending sync.
func (m *Metrics) SyncCoalesced() {
	if m == nil {
		return
	}
	m.syncCoalesced.Inc()
}

// CacheInvalidation counts one key or tag invalidation.
func (m *Metrics) CacheInvalidation(kind string, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.cacheInvalidations.WithLabelValues(kind, result).Inc()
}

// ObserveRetrieval records one retrieval.
func (m *Metrics) ObserveRetrieval(d time.Duration, results int) {
	if m == nil {
		return
	}
	m.retrievalDuration.Observe(d.Seconds())
	m.retrievalResults.Observe(float64(results))
}

// EmbeddingCall counts one embedding client call.
func (m *Metrics) EmbeddingCall(outcome string) {
	if m == nil {
		return
	}
	m.embeddingCalls.WithLabelValues(outcome).Inc()
}

// ChatRequest counts one chat turn.
func (m *Metrics) ChatRequest(outcome string) {
	if m == nil {
		return
	}
	m.chatRequests.WithLabelValues(outcome).Inc()
}

// RateLimited counts a rejected chat request.
func (m *Metrics) RateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}

// MutationReceived counts an accepted notification.
func (m *Metrics) MutationReceived(transport, operation string) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(transport, operation).Inc()
}
