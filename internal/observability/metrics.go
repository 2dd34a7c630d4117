// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fokus Contributors

package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fokushq/fokus/internal/auth"
)

// Metrics holds the fokus Prometheus collectors.
type Metrics struct {
	Operations           *prometheus.CounterVec
	NotificationFailures *prometheus.CounterVec
	PasswordHash         *prometheus.HistogramVec
	HTTPRequests         *prometheus.CounterVec
	HTTPDuration         *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fokus_auth_operations_total",
				Help: "Account lifecycle operations by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		NotificationFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fokus_notification_failures_total",
				Help: "Lifecycle emails that could not be delivered, by kind",
			},
			[]string{"kind"},
		),
		PasswordHash: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fokus_password_hash_seconds",
				Help:    "Time spent hashing and verifying passwords",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"op"},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fokus_http_requests_total",
				Help: "API requests by status code and method",
			},
			[]string{"code", "method"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fokus_http_request_duration_seconds",
				Help:    "API request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"code", "method"},
		),
	}

	reg.MustRegister(m.Operations, m.NotificationFailures, m.PasswordHash, m.HTTPRequests, m.HTTPDuration)
	return m
}

// RecordOperation counts one finished service operation.
func (m *Metrics) RecordOperation(operation, outcome string) {
	m.Operations.WithLabelValues(operation, outcome).Inc()
}

// RecordNotificationFailure counts one undelivered email.
func (m *Metrics) RecordNotificationFailure(kind string) {
	m.NotificationFailures.WithLabelValues(kind).Inc()
}

// ObservePasswordHash records the duration of a hash or verify call.
func (m *Metrics) ObservePasswordHash(op string, d time.Duration) {
	m.PasswordHash.WithLabelValues(op).Observe(d.Seconds())
}

// InstrumentHandler wraps next with request count and latency metrics.
func (m *Metrics) InstrumentHandler(next http.Handler) http.Handler {
	return promhttp.InstrumentHandlerCounter(m.HTTPRequests,
		promhttp.InstrumentHandlerDuration(m.HTTPDuration, next))
}

var _ auth.Metrics = (*Metrics)(nil)
