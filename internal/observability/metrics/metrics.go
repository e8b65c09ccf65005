// Package metrics exposes the service's Prometheus instrumentation: HTTP
// request totals and latencies plus domain counters for recorded views,
// authentication failures, and rate-limit rejections.
package metrics

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamgate_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "streamgate_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	viewEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "streamgate_view_events_total",
		Help: "View events recorded.",
	})

	authFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamgate_auth_failures_total",
			Help: "Requests rejected by an access guard.",
		},
		[]string{"reason"},
	)

	rateLimitedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamgate_rate_limited_total",
			Help: "Requests rejected by the fixed-window rate limiter.",
		},
		[]string{"endpoint"},
	)
)

// Handler serves the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ViewRecorded counts one recorded view event.
func ViewRecorded() {
	viewEventsTotal.Inc()
}

// AuthFailure counts a guard rejection by reason ("missing" or "invalid").
func AuthFailure(reason string) {
	authFailuresTotal.WithLabelValues(reason).Inc()
}

// RateLimited counts a fixed-window rejection for the named endpoint.
func RateLimited(endpoint string) {
	rateLimitedTotal.WithLabelValues(endpoint).Inc()
}

// normalizePath collapses identifier-like path segments to ":id" so that the
// path label stays bounded by the route table rather than the key space of
// media IDs and arbitrary unrouted paths.
func normalizePath(path string) string {
	if path == "" || path == "/" {
		return "/"
	}
	parts := strings.Split(path, "/")
	for i, part := range parts {
		if part == "" {
			continue
		}
		if looksLikeIdentifier(part) {
			parts[i] = ":id"
		}
	}
	normalized := strings.Join(parts, "/")
	if !strings.HasPrefix(normalized, "/") {
		normalized = "/" + normalized
	}
	if strings.HasSuffix(normalized, "/") && len(normalized) > 1 {
		normalized = strings.TrimSuffix(normalized, "/")
	}
	return normalized
}

// looksLikeIdentifier reports whether a segment reads as a record ID (UUID,
// ULID, or numeric key) rather than a route word such as "analytics" or
// "stream-url".
func looksLikeIdentifier(segment string) bool {
	if len(segment) >= 16 {
		return true
	}
	digitCount := 0
	for _, r := range segment {
		if r >= '0' && r <= '9' {
			digitCount++
		}
	}
	return digitCount >= 3
}
