// Package observability exposes Prometheus metrics for backend invocations.
package observability

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"aigateway/internal/core"
	"aigateway/internal/llmclient"
)

const statusSuccess = "success"

var (
	backendRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aigateway_backend_requests_total",
			Help: "Total number of backend invocations by provider, model, operation and outcome",
		},
		[]string{"provider", "model", "operation", "status"},
	)

	backendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aigateway_backend_request_duration_seconds",
			Help:    "Backend invocation latency in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"provider", "model", "operation"},
	)

	backendInFlight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "aigateway_backend_requests_in_flight",
			Help: "Backend invocations currently in progress",
		},
		[]string{"provider"},
	)
)

// NewPrometheusHooks returns hooks that record every backend invocation.
func NewPrometheusHooks() llmclient.Hooks {
	return llmclient.Hooks{
		OnRequestStart: func(ctx context.Context, info llmclient.RequestInfo) context.Context {
			backendInFlight.WithLabelValues(info.Provider).Inc()
			return ctx
		},
		OnRequestEnd: func(_ context.Context, info llmclient.ResponseInfo) {
			backendInFlight.WithLabelValues(info.Provider).Dec()
			backendRequests.WithLabelValues(info.Provider, info.Model, info.Operation, statusLabel(info.Err)).Inc()
			backendDuration.WithLabelValues(info.Provider, info.Model, info.Operation).Observe(info.Duration.Seconds())
		},
	}
}

func statusLabel(err error) string {
	if err == nil {
		return statusSuccess
	}
	var gwErr *core.GatewayError
	if errors.As(err, &gwErr) {
		return string(gwErr.Type)
	}
	return "error"
}
