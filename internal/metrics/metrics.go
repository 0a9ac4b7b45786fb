// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pitchgraph Contributors

// Package metrics holds the Prometheus instruments shared by the guard,
// the schema cache, the provider router and the HTTP server.
//
// A nil *Metrics is valid and records nothing, so components can be built
// without instrumentation in tests.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pitchgraph"

// Metrics is the set of instruments registered on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	guardRejections   *prometheus.CounterVec
	guardExecutions   *prometheus.CounterVec
	queryDuration     prometheus.Histogram
	resultRows        prometheus.Histogram
	unknownLabels     prometheus.Counter
	schemaRefreshes   *prometheus.CounterVec
	introspectFailure *prometheus.CounterVec
	providerRequests  *prometheus.CounterVec
	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
}

// New creates a Metrics instance with its own registry. Go runtime and
// process collectors are registered alongside the domain instruments.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.guardRejections = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "guard",
		Name:      "rejections_total",
		Help:      "Queries rejected by the guard, by rule.",
	}, []string{"rule"})

	m.guardExecutions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "guard",
		Name:      "executions_total",
		Help:      "Guarded executions by final envelope outcome.",
	}, []string{"outcome"})

	m.queryDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "graph",
		Name:      "query_duration_seconds",
		Help:      "Wall time of graph database query execution.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
	})

	m.resultRows = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "graph",
		Name:      "result_rows",
		Help:      "Number of rows returned per successful query.",
		Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 2000},
	})

	m.unknownLabels = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "guard",
		Name:      "unknown_labels_total",
		Help:      "Label tokens outside the allowlist (observed, never rejected).",
	})

	m.schemaRefreshes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "schema",
		Name:      "refreshes_total",
		Help:      "Schema cache refreshes by result (complete or partial).",
	}, []string{"result"})

	m.introspectFailure = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "schema",
		Name:      "introspection_failures_total",
		Help:      "Failed metadata calls during schema refresh, by category.",
	}, []string{"category"})

	m.providerRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "provider",
		Name:      "requests_total",
		Help:      "Language model requests by provider and outcome.",
	}, []string{"provider", "outcome"})

	m.httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by method, route and status code.",
	}, []string{"method", "route", "code"})

	m.httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.guardRejections,
		m.guardExecutions,
		m.queryDuration,
		m.resultRows,
		m.unknownLabels,
		m.schemaRefreshes,
		m.introspectFailure,
		m.providerRequests,
		m.httpRequests,
		m.httpDuration,
	)

	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

func (m *Metrics) GuardRejected(rule string) {
	if m == nil {
		return
	}
	m.guardRejections.WithLabelValues(rule).Inc()
}

// GuardExecuted records the final envelope outcome: ok, rejected,
// execution_error or empty.
func (m *Metrics) GuardExecuted(outcome string) {
	if m == nil {
		return
	}
	m.guardExecutions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) QueryObserved(d time.Duration, rows int) {
	if m == nil {
		return
	}
	m.queryDuration.Observe(d.Seconds())
	if rows > 0 {
		m.resultRows.Observe(float64(rows))
	}
}

func (m *Metrics) UnknownLabel() {
	if m == nil {
		return
	}
	m.unknownLabels.Inc()
}

func (m *Metrics) SchemaRefreshed(partial bool) {
	if m == nil {
		return
	}
	result := "complete"
	if partial {
		result = "partial"
	}
	m.schemaRefreshes.WithLabelValues(result).Inc()
}

func (m *Metrics) IntrospectionFailed(category string) {
	if m == nil {
		return
	}
	m.introspectFailure.WithLabelValues(category).Inc()
}

func (m *Metrics) ProviderRequest(provider, outcome string) {
	if m == nil {
		return
	}
	m.providerRequests.WithLabelValues(provider, outcome).Inc()
}

func (m *Metrics) HTTPRequest(method, route string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, statusText(code)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(d.Seconds())
}

func statusText(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
