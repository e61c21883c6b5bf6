package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics aggregates the service's prometheus collectors. All recording
// methods are nil-safe so components can run without observability wired.
type Metrics struct {
	embeddingRequests prometheus.Counter
	embeddingFailures prometheus.Counter
	embeddingTokens   prometheus.Counter
	cacheHits         *prometheus.CounterVec
	cacheMisses       *prometheus.CounterVec
	matchDecisions    *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		embeddingRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ticketmatch_embedding_requests_total",
			Help: "Embedding provider calls issued.",
		}),
		embeddingFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ticketmatch_embedding_failures_total",
			Help: "Embedding provider calls that failed after retries.",
		}),
		embeddingTokens: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ticketmatch_embedding_tokens_total",
			Help: "Tokens consumed by the embedding provider.",
		}),
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ticketmatch_cache_hits_total",
			Help: "Cache hits by level.",
		}, []string{"level"}),
		cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ticketmatch_cache_misses_total",
			Help: "Cache misses by level.",
		}, []string{"level"}),
		matchDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ticketmatch_match_decisions_total",
			Help: "Solution match decisions by status.",
		}, []string{"status"}),
	}

	reg.MustRegister(
		m.embeddingRequests,
		m.embeddingFailures,
		m.embeddingTokens,
		m.cacheHits,
		m.cacheMisses,
		m.matchDecisions,
	)

	return m
}

func (m *Metrics) EmbeddingRequest() {
	if m == nil {
		return
	}
	m.embeddingRequests.Inc()
}

func (m *Metrics) EmbeddingFailure() {
	if m == nil {
		return
	}
	m.embeddingFailures.Inc()
}

func (m *Metrics) AddEmbeddingTokens(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.embeddingTokens.Add(float64(n))
}

func (m *Metrics) CacheHit(level string) {
	if m == nil {
		return
	}
	m.cacheHits.WithLabelValues(level).Inc()
}

func (m *Metrics) CacheMiss(level string) {
	if m == nil {
		return
	}
	m.cacheMisses.WithLabelValues(level).Inc()
}

func (m *Metrics) MatchDecision(status string) {
	if m == nil {
		return
	}
	m.matchDecisions.WithLabelValues(status).Inc()
}
