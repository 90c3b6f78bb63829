// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the gateway.
//
// # Description
//
// Metrics cover the query pipeline (counts, latency, degradation),
// conversations (starts, completions, aborts), provider fallback
// behavior, and edge rejections. Exposed via the /metrics endpoint;
// use with Prometheus + Grafana for dashboards and alerting.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal
// locking.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all metrics
const metricsNamespace = "aleutian"

// Subsystem for gateway metrics
const gatewaySubsystem = "gateway"

// Metrics holds all Prometheus metrics for the gateway. Initialize once
// at startup via NewMetrics().
type Metrics struct {
	// QueriesTotal counts executed queries.
	// Labels: intent, status (success, partial, unavailable)
	QueriesTotal *prometheus.CounterVec

	// QueryDurationSeconds measures end-to-end query latency.
	// Labels: status
	QueryDurationSeconds *prometheus.HistogramVec

	// ConversationsTotal counts conversation lifecycle events.
	// Labels: event (started, continued, executed, aborted, expired)
	ConversationsTotal *prometheus.CounterVec

	// ProviderFailuresTotal counts provider call failures.
	// Labels: chain (embedding, synthesis), provider
	ProviderFailuresTotal *prometheus.CounterVec

	// RateLimitedTotal counts requests shed at the edge.
	// Labels: route
	RateLimitedTotal *prometheus.CounterVec

	// AuthRejectionsTotal counts auth failures.
	// Labels: reason (missing, mismatch)
	AuthRejectionsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all gateway metrics with the given
// registerer. Pass prometheus.DefaultRegisterer in production; tests use
// a fresh registry to avoid duplicate-registration panics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		QueriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: gatewaySubsystem,
				Name:      "queries_total",
				Help:      "Total queries executed, by intent and status.",
			},
			[]string{"intent", "status"},
		),
		QueryDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: gatewaySubsystem,
				Name:      "query_duration_seconds",
				Help:      "End-to-end query latency.",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"status"},
		),
		ConversationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: gatewaySubsystem,
				Name:      "conversations_total",
				Help:      "Conversation lifecycle events.",
			},
			[]string{"event"},
		),
		ProviderFailuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: gatewaySubsystem,
				Name:      "provider_failures_total",
				Help:      "Provider call failures, by chain and provider.",
			},
			[]string{"chain", "provider"},
		),
		RateLimitedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: gatewaySubsystem,
				Name:      "rate_limited_total",
				Help:      "Requests rejected by the edge rate limiter.",
			},
			[]string{"route"},
		),
		AuthRejectionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: gatewaySubsystem,
				Name:      "auth_rejections_total",
				Help:      "Requests rejected by API-key auth.",
			},
			[]string{"reason"},
		),
	}
}

// ObserveQuery records one executed query.
func (m *Metrics) ObserveQuery(intent, status string, duration time.Duration) {
	m.QueriesTotal.WithLabelValues(intent, status).Inc()
	m.QueryDurationSeconds.WithLabelValues(status).Observe(duration.Seconds())
}

// ObserveConversation records one conversation lifecycle event.
func (m *Metrics) ObserveConversation(event string) {
	m.ConversationsTotal.WithLabelValues(event).Inc()
}
