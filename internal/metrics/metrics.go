// Package metrics exposes Prometheus instrumentation for polling, queries and the HTTP API.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Poll results
const (
	PollOK      = "ok"
	PollError   = "error"
	PollSkipped = "skipped"
)

var (
	PollsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pitwall_polls_total",
			Help: "Full poll cycles by result",
		},
		[]string{"result"},
	)

	PollDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pitwall_poll_duration_seconds",
			Help:    "Wall-clock duration of a full poll cycle",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5, 7.5, 10},
		},
	)

	ServerQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pitwall_server_queries_total",
			Help: "Server status results merged into the cache, by status",
		},
		[]string{"status"},
	)

	ForceRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pitwall_force_refreshes_total",
			Help: "Force refresh requests by outcome (online, offline, not_found, error)",
		},
		[]string{"outcome"},
	)

	CachedServers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pitwall_cached_servers",
			Help: "Number of entries in the status cache",
		},
	)

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pitwall_api_requests_total",
			Help: "API requests by method, route pattern and status code",
		},
		[]string{"method", "route", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pitwall_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "route"},
	)

	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pitwall_rate_limit_hits_total",
			Help: "Requests rejected by the per-IP rate limiter",
		},
		[]string{"route"},
	)

	WebSocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pitwall_websocket_clients",
			Help: "Connected websocket clients",
		},
	)
)

// RecordPoll records one poll attempt.
func RecordPoll(d time.Duration, err error) {
	if err != nil {
		PollsTotal.WithLabelValues(PollError).Inc()
		return
	}
	PollsTotal.WithLabelValues(PollOK).Inc()
	PollDuration.Observe(d.Seconds())
}

// RecordAPIRequest records a finished HTTP request.
func RecordAPIRequest(method, route string, status int, d time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	APIRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
