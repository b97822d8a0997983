// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Run metrics
	RunsTotal    *prometheus.CounterVec
	RunDuration  *prometheus.HistogramVec
	LastSuccess  prometheus.Gauge
	RunsSkipped  prometheus.Counter
	EntriesTotal *prometheus.GaugeVec

	// Identity metrics
	IdentitiesResolved  *prometheus.GaugeVec
	UnresolvedAddresses prometheus.Gauge
	LinkConflicts       prometheus.Counter

	// External call metrics
	LookupFailures  *prometheus.CounterVec
	OracleFallbacks *prometheus.CounterVec
	RPCCallLatency  *prometheus.HistogramVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance registered with reg.
// A nil reg uses the default registerer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "holder_tiers"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		RunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total number of runs by mode and status",
		}, []string{"mode", "status"}),
		RunDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "duration_seconds",
			Help:      "Run duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		}, []string{"mode"}),
		LastSuccess: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_run_timestamp",
			Help:      "Unix timestamp of the last successful run",
		}),
		RunsSkipped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_skipped_total",
			Help:      "Runs skipped because another run was in flight",
		}),
		EntriesTotal: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "entries_published",
			Help:      "Handles or leaderboard entries in the last published result",
		}, []string{"kind"}),

		IdentitiesResolved: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "identity",
			Name:      "members",
			Help:      "Identity members in the last run by provenance",
		}, []string{"provenance"}),
		UnresolvedAddresses: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "identity",
			Name:      "unresolved_addresses",
			Help:      "Observed addresses without an identity in the last run",
		}),
		LinkConflicts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "identity",
			Name:      "link_conflicts_total",
			Help:      "Addresses claimed by a second handle",
		}),

		LookupFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "external",
			Name:      "lookup_failures_total",
			Help:      "External lookups that failed every attempt, by stage",
		}, []string{"stage"}),
		OracleFallbacks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "oracle",
			Name:      "fallbacks_total",
			Help:      "Runs in which a symbol used the fallback multiplier",
		}, []string{"symbol"}),
		RPCCallLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),

		DBQueryDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("", nil)

// RecordRun records a finished run.
func (m *Metrics) RecordRun(mode, status string, durationSeconds float64, finishedUnix int64) {
	m.RunsTotal.WithLabelValues(mode, status).Inc()
	m.RunDuration.WithLabelValues(mode).Observe(durationSeconds)
	if status == StatusSuccess {
		m.LastSuccess.Set(float64(finishedUnix))
	}
}

// RecordIdentities publishes identity composition of a run.
func (m *Metrics) RecordIdentities(byProvenance map[string]int, unresolved, conflicts int) {
	for p, n := range byProvenance {
		m.IdentitiesResolved.WithLabelValues(p).Set(float64(n))
	}
	m.UnresolvedAddresses.Set(float64(unresolved))
	m.LinkConflicts.Add(float64(conflicts))
}

// RecordLookupFailures adds n exhausted lookups for stage.
func (m *Metrics) RecordLookupFailures(stage string, n int) {
	if n > 0 {
		m.LookupFailures.WithLabelValues(stage).Add(float64(n))
	}
}

// RecordOracleFallbacks counts symbols that fell back this run.
func (m *Metrics) RecordOracleFallbacks(symbols []string) {
	for _, s := range symbols {
		m.OracleFallbacks.WithLabelValues(s).Inc()
	}
}

// RecordPublished sets the size of the last published result.
func (m *Metrics) RecordPublished(kind string, n int) {
	m.EntriesTotal.WithLabelValues(kind).Set(float64(n))
}

// Run statuses.
const (
	StatusSuccess = "success"
	StatusRetry   = "retry_failure"
	StatusFailure = "failure"
)

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
