// Package observability provides Prometheus metrics and logger setup.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// RPC metrics
	RPCCallLatency   *prometheus.HistogramVec
	RPCCallsTotal    *prometheus.CounterVec
	EndpointFailures *prometheus.CounterVec
	EndpointHealthy  *prometheus.GaugeVec
	RateLimiterWait  prometheus.Histogram

	// Price metrics
	PriceLookups *prometheus.CounterVec

	// Analysis metrics
	HoldersScanned  prometheus.Counter
	WalletsAnalyzed *prometheus.CounterVec
	WalletLatency   prometheus.Histogram
	SessionsTotal   *prometheus.CounterVec
	SessionDuration *prometheus.HistogramVec
	ActiveSessions  prometheus.Gauge
	EventsStreamed  *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "solana_holder_scan"
	}

	return &Metrics{
		// RPC metrics
		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency in seconds, including retries",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "outcome"}),
		RPCCallsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_calls_total",
			Help:      "Total number of logical RPC calls by method and outcome",
		}, []string{"method", "outcome"}),
		EndpointFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "endpoint_failures_total",
			Help:      "Total number of failed RPC attempts by endpoint host and failure kind",
		}, []string{"endpoint", "kind"}),
		EndpointHealthy: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "endpoint_healthy",
			Help:      "1 if the endpoint is currently considered healthy, 0 otherwise",
		}, []string{"endpoint"}),
		RateLimiterWait: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rate_limiter_wait_seconds",
			Help:      "Time spent waiting for the outbound rate limiter",
			Buckets:   []float64{0, 0.05, 0.1, 0.3, 1, 3, 10, 30},
		}),

		// Price metrics
		PriceLookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "price",
			Name:      "lookups_total",
			Help:      "Total number of token price lookups by source and outcome",
		}, []string{"source", "outcome"}),

		// Analysis metrics
		HoldersScanned: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "holders_scanned_total",
			Help:      "Total number of qualifying holders returned by holder scans",
		}),
		WalletsAnalyzed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "wallets_analyzed_total",
			Help:      "Total number of analyzed wallets by outcome",
		}, []string{"outcome"}),
		WalletLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "wallet_latency_seconds",
			Help:      "Per-wallet analysis latency in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		SessionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "sessions_total",
			Help:      "Total number of analysis sessions by final state",
		}, []string{"state"}),
		SessionDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "session_duration_seconds",
			Help:      "Analysis session duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		}, []string{"state"}),
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "active_sessions",
			Help:      "Number of analysis sessions currently streaming",
		}),
		EventsStreamed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "events_total",
			Help:      "Total number of events pushed to clients by event type",
		}, []string{"event"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordRPCCall records the outcome and latency of one logical RPC call.
func RecordRPCCall(method, outcome string, seconds float64) {
	DefaultMetrics.RPCCallsTotal.WithLabelValues(method, outcome).Inc()
	DefaultMetrics.RPCCallLatency.WithLabelValues(method, outcome).Observe(seconds)
}

// RecordEndpointFailure increments the failure counter of an endpoint.
func RecordEndpointFailure(endpoint, kind string) {
	DefaultMetrics.EndpointFailures.WithLabelValues(endpoint, kind).Inc()
}

// SetEndpointHealth updates the health gauge of an endpoint.
func SetEndpointHealth(endpoint string, healthy bool) {
	value := 0.0
	if healthy {
		value = 1
	}
	DefaultMetrics.EndpointHealthy.WithLabelValues(endpoint).Set(value)
}

// RecordRateLimiterWait records time spent in the outbound rate limiter.
func RecordRateLimiterWait(seconds float64) {
	DefaultMetrics.RateLimiterWait.Observe(seconds)
}

// RecordPriceLookup records a token price lookup.
func RecordPriceLookup(source, outcome string) {
	DefaultMetrics.PriceLookups.WithLabelValues(source, outcome).Inc()
}

// RecordHoldersScanned adds the number of holders returned by a scan.
func RecordHoldersScanned(n int) {
	DefaultMetrics.HoldersScanned.Add(float64(n))
}

// RecordWalletAnalyzed records a wallet analysis outcome.
func RecordWalletAnalyzed(outcome string, seconds float64) {
	DefaultMetrics.WalletsAnalyzed.WithLabelValues(outcome).Inc()
	DefaultMetrics.WalletLatency.Observe(seconds)
}

// SessionStarted increments the active sessions gauge.
func SessionStarted() {
	DefaultMetrics.ActiveSessions.Inc()
}

// RecordSession records a finished analysis session.
func RecordSession(state string, durationSeconds float64) {
	DefaultMetrics.ActiveSessions.Dec()
	DefaultMetrics.SessionsTotal.WithLabelValues(state).Inc()
	DefaultMetrics.SessionDuration.WithLabelValues(state).Observe(durationSeconds)
}

// RecordEventStreamed counts an event written to a client stream.
func RecordEventStreamed(event string) {
	DefaultMetrics.EventsStreamed.WithLabelValues(event).Inc()
}
