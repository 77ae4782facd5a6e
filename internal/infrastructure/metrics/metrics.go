package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/iho/stockledger/internal/domain"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Ledger metrics
	Mutations        *prometheus.CounterVec
	MutationDuration *prometheus.HistogramVec
	MutationFailures *prometheus.CounterVec
	CascadeSize      *prometheus.HistogramVec

	// API metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Rate limiting metrics
	RateLimitHits prometheus.Counter

	// Cache metrics
	CacheLookups *prometheus.CounterVec
}

// New creates all metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Mutations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockledger_mutations_total",
				Help: "Ledger mutations by operation and final state",
			},
			[]string{"operation", "state"},
		),
		MutationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stockledger_mutation_duration_seconds",
				Help:    "Duration of ledger mutations including lock waits",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		MutationFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockledger_mutation_failures_total",
				Help: "Rolled back ledger mutations by the stage they failed in and error kind",
			},
			[]string{"operation", "stage", "kind"},
		),
		CascadeSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stockledger_cascade_rewritten_entries",
				Help:    "Entries whose balance was rewritten by one mutation",
				Buckets: []float64{0, 1, 5, 10, 50, 100, 500, 1000, 5000},
			},
			[]string{"operation"},
		),

		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockledger_http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stockledger_http_duration_seconds",
				Help:    "HTTP request duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		RateLimitHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "stockledger_rate_limit_hits_total",
			Help: "Requests rejected by the rate limiter",
		}),

		CacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockledger_cache_lookups_total",
				Help: "Summary cache lookups by result",
			},
			[]string{"result"},
		),
	}
}

// ObserveMutation implements usecase.MetricsRecorder.
func (m *Metrics) ObserveMutation(op string, state domain.MutationState, elapsed time.Duration) {
	m.Mutations.WithLabelValues(op, string(state)).Inc()
	m.MutationDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// IncMutationFailure implements usecase.MetricsRecorder.
func (m *Metrics) IncMutationFailure(op string, stage domain.MutationState, kind string) {
	m.MutationFailures.WithLabelValues(op, string(stage), kind).Inc()
}

// ObserveCascade implements usecase.MetricsRecorder.
func (m *Metrics) ObserveCascade(op string, rewritten int) {
	m.CascadeSize.WithLabelValues(op).Observe(float64(rewritten))
}

// ObserveCacheLookup counts a summary cache hit or miss.
func (m *Metrics) ObserveCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}
