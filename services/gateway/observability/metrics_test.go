// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics_RegistersAllCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ObserveQuery("location", "success", 120*time.Millisecond)
	m.ObserveConversation("started")
	m.ProviderFailuresTotal.WithLabelValues("embedding", "primary").Inc()
	m.RateLimitedTotal.WithLabelValues("/api/v1/query").Inc()
	m.AuthRejectionsTotal.WithLabelValues("missing").Inc()

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		"aleutian_gateway_queries_total",
		"aleutian_gateway_query_duration_seconds",
		"aleutian_gateway_conversations_total",
		"aleutian_gateway_provider_failures_total",
		"aleutian_gateway_rate_limited_total",
		"aleutian_gateway_auth_rejections_total",
	} {
		assert.True(t, names[want], "missing metric family %s", want)
	}
}

func TestObserveQuery_CountsByIntentAndStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ObserveQuery("location", "success", 50*time.Millisecond)
	m.ObserveQuery("location", "success", 80*time.Millisecond)
	m.ObserveQuery("dependency", "partial", 200*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.QueriesTotal.WithLabelValues("location", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.QueriesTotal.WithLabelValues("dependency", "partial")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.QueriesTotal.WithLabelValues("location", "unavailable")))
}

func TestObserveConversation_CountsByEvent(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ObserveConversation("started")
	m.ObserveConversation("started")
	m.ObserveConversation("aborted")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ConversationsTotal.WithLabelValues("started")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ConversationsTotal.WithLabelValues("aborted")))
}

func TestNewMetrics_FreshRegistriesDoNotCollide(t *testing.T) {
	// Two instances registered against separate registries must not
	// panic on duplicate registration.
	assert.NotPanics(t, func() {
		NewMetrics(prometheus.NewRegistry())
		NewMetrics(prometheus.NewRegistry())
	})
}
