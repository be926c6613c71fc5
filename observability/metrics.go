package observability

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SwapMetrics tracks offer lifecycle activity and fee flow for the otc module.
type SwapMetrics struct {
	offers     *prometheus.CounterVec
	feesClaims prometheus.Counter
	failures   *prometheus.CounterVec
}

// RPCMetrics records request volume and latency for the JSON-RPC surface.
type RPCMetrics struct {
	requests *prometheus.CounterVec
	errors   *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

var (
	swapMetricsOnce sync.Once
	swapRegistry    *SwapMetrics

	rpcMetricsOnce sync.Once
	rpcRegistry    *RPCMetrics
)

// Swap returns the lazily-initialised swap metrics registry.
func Swap() *SwapMetrics {
	swapMetricsOnce.Do(func() {
		swapRegistry = &SwapMetrics{
			offers: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "otcswap",
				Subsystem: "offers",
				Name:      "transitions_total",
				Help:      "Offer lifecycle transitions segmented by resulting status.",
			}, []string{"status"}),
			feesClaims: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "otcswap",
				Subsystem: "fees",
				Name:      "claims_total",
				Help:      "Number of successful fee claims by the module owner.",
			}),
			failures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "otcswap",
				Subsystem: "offers",
				Name:      "failures_total",
				Help:      "Rejected offer operations segmented by operation.",
			}, []string{"operation"}),
		}
		prometheus.MustRegister(
			swapRegistry.offers,
			swapRegistry.feesClaims,
			swapRegistry.failures,
		)
	})
	return swapRegistry
}

// RecordTransition counts an offer reaching the supplied status.
func (m *SwapMetrics) RecordTransition(status string) {
	if m == nil {
		return
	}
	if status == "" {
		status = "unknown"
	}
	m.offers.WithLabelValues(status).Inc()
}

// RecordFeeClaim counts a successful fee settlement.
func (m *SwapMetrics) RecordFeeClaim() {
	if m == nil {
		return
	}
	m.feesClaims.Inc()
}

// RecordFailure counts a rejected mutation for the supplied operation name.
func (m *SwapMetrics) RecordFailure(operation string) {
	if m == nil {
		return
	}
	if operation == "" {
		operation = "unknown"
	}
	m.failures.WithLabelValues(operation).Inc()
}

// RPC returns the lazily-initialised RPC metrics registry.
func RPC() *RPCMetrics {
	rpcMetricsOnce.Do(func() {
		rpcRegistry = &RPCMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "otcswap",
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "Total JSON-RPC requests segmented by method and outcome.",
			}, []string{"method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "otcswap",
				Subsystem: "rpc",
				Name:      "errors_total",
				Help:      "Total JSON-RPC errors segmented by method and status code.",
			}, []string{"method", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "otcswap",
				Subsystem: "rpc",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"method"}),
		}
		prometheus.MustRegister(rpcRegistry.requests, rpcRegistry.errors, rpcRegistry.latency)
	})
	return rpcRegistry
}

// Observe records a finished RPC request. Status is the HTTP status written
// to the response.
func (m *RPCMetrics) Observe(method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if status >= 400 {
		outcome = "error"
	}
	m.requests.WithLabelValues(method, outcome).Inc()
	if status >= 400 {
		m.errors.WithLabelValues(method, fmt.Sprintf("%d", status)).Inc()
	}
	m.latency.WithLabelValues(method).Observe(duration.Seconds())
}
