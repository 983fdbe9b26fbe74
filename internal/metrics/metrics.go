// Package metrics holds the Prometheus collectors for the mutation and
// enrichment pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "wardrobe"

var (
	// DispatchAttempts counts mutation path attempts.
	// Labels: operation (create, update, delete), path (primary, fallback), outcome (success, error)
	DispatchAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "dispatch",
		Name:      "attempts_total",
		Help:      "Mutation attempts by operation, path and outcome",
	}, []string{"operation", "path", "outcome"})

	// DispatchFallbacks counts primary failures by failure class.
	DispatchFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "dispatch",
		Name:      "fallbacks_total",
		Help:      "Mutations routed to the server-mediated path, by failure class",
	}, []string{"operation", "class"})

	// UploadAttempts counts asset upload attempts.
	// Labels: path (primary, fallback), outcome (success, error)
	UploadAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "upload",
		Name:      "attempts_total",
		Help:      "Asset upload attempts by path and outcome",
	}, []string{"path", "outcome"})

	// ProviderCalls counts analysis provider calls.
	// Labels: provider, outcome (success, unavailable, bad_response, empty)
	ProviderCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "analysis",
		Name:      "provider_calls_total",
		Help:      "Analysis provider calls by provider and outcome",
	}, []string{"provider", "outcome"})

	// ProviderLatency measures analysis provider latency.
	ProviderLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "analysis",
		Name:      "provider_latency_seconds",
		Help:      "Analysis provider latency in seconds",
		Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
	}, []string{"provider"})

	// CacheLookups counts analysis cache lookups.
	// Labels: result (hit, miss, expired, error)
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "analysis",
		Name:      "cache_lookups_total",
		Help:      "Analysis cache lookups by result",
	}, []string{"result"})

	// HeuristicFallbacks counts analyses that fell back to filename inference.
	HeuristicFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "analysis",
		Name:      "heuristic_fallbacks_total",
		Help:      "Analyses where every provider failed",
	})

	// RelayRequests counts relay server requests.
	// Labels: endpoint (route), status (HTTP status code)
	RelayRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "relay",
		Name:      "requests_total",
		Help:      "Relay server requests by endpoint and status",
	}, []string{"endpoint", "status"})

	// IdempotentReplays counts relay mutations answered from a stored response.
	IdempotentReplays = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "relay",
		Name:      "idempotent_replays_total",
		Help:      "Relay mutations answered from the idempotency store",
	}, []string{"operation"})
)

// Outcome returns the outcome label for err.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
