// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FunctionInvocations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "function_invocations_total",
			Help: "Total number of callable function invocations",
		},
		[]string{"function", "status"},
	)

	FunctionFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "function_failures_total",
			Help: "Total number of failed function invocations",
		},
		[]string{"function", "error_code"},
	)

	FunctionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "function_duration_seconds",
			Help:    "Duration of function invocations in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"function"},
	)

	FunctionsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "function_invocations_active",
			Help: "Number of in-flight invocations per function",
		},
		[]string{"function"},
	)

	CRMRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_requests_total",
			Help: "CRM REST calls by operation and HTTP status class",
		},
		[]string{"operation", "status"},
	)

	CRMTokenMints = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_token_mints_total",
			Help: "JWT-bearer token exchanges by source (cache, mint) and outcome",
		},
		[]string{"source", "outcome"},
	)

	PushDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "push_deliveries_total",
			Help: "Push notification deliveries by outcome",
		},
		[]string{"outcome"},
	)
)

// StatusClass collapses an HTTP status into "2xx", "4xx", ... or "error".
func StatusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "error"
	}
}
