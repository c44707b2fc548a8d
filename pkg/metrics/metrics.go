// Package metrics exposes the execution core's Prometheus instrumentation.
// The composition root (cmd/execbridge) feeds ObserveRequest from a
// pipeline response middleware, matching spec.md §4.11's note that
// response middleware "feeds C2 + metrics". The rate governor
// (pkg/ratelimit) does not feed metrics, and nothing in the module calls
// ObservePenalty or ObserveTokenRefresh.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Sink is the metrics surface, satisfied by Prometheus, by NoopSink in
// tests, or by any other backend.
type Sink interface {
	ObserveRequest(connectorID string, statusCode int, retriable bool)
	ObservePenalty(scope, connectorID string, seconds float64)
	ObserveTokenRefresh(connectorID string, success bool)
}

// Prometheus is the default Sink, registered against the given registerer
// (typically prometheus.DefaultRegisterer via promauto).
type Prometheus struct {
	requestsTotal  *prometheus.CounterVec
	penaltySeconds *prometheus.HistogramVec
	refreshesTotal *prometheus.CounterVec
}

// NewPrometheus builds and registers the execution core's metric families.
func NewPrometheus() *Prometheus {
	return &Prometheus{
		requestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "execbridge",
			Name:      "requests_total",
			Help:      "Outbound connector requests, labeled by connector, status, and retriable.",
		}, []string{"connector", "status_code", "retriable"}),
		penaltySeconds: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "execbridge",
			Name:      "rate_limit_penalty_seconds",
			Help:      "Scheduled rate-limit penalty sleep durations.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}, []string{"scope", "connector"}),
		refreshesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "execbridge",
			Name:      "token_refreshes_total",
			Help:      "OAuth token refresh attempts, labeled by connector and outcome.",
		}, []string{"connector", "success"}),
	}
}

func (p *Prometheus) ObserveRequest(connectorID string, statusCode int, retriable bool) {
	p.requestsTotal.WithLabelValues(connectorID, statusCodeLabel(statusCode), boolLabel(retriable)).Inc()
}

func (p *Prometheus) ObservePenalty(scope, connectorID string, seconds float64) {
	p.penaltySeconds.WithLabelValues(scope, connectorID).Observe(seconds)
}

func (p *Prometheus) ObserveTokenRefresh(connectorID string, success bool) {
	p.refreshesTotal.WithLabelValues(connectorID, boolLabel(success)).Inc()
}

func statusCodeLabel(statusCode int) string {
	if statusCode == 0 {
		return "transport_error"
	}
	return strconv.Itoa(statusCode)
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// NoopSink discards every observation, used where no metrics backend is
// wired (tests, the offline demo binary without a scrape endpoint).
type NoopSink struct{}

func (NoopSink) ObserveRequest(string, int, bool)        {}
func (NoopSink) ObservePenalty(string, string, float64)  {}
func (NoopSink) ObserveTokenRefresh(string, bool)        {}
