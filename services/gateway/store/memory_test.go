// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianInsight/services/gateway/datatypes"
)

func testState(id string) *datatypes.ConversationState {
	return &datatypes.ConversationState{
		ID:               id,
		OriginalQuery:    "How does it work?",
		Intent:           datatypes.IntentExplanation,
		Round:            1,
		MaxRounds:        datatypes.MaxClarificationRounds,
		Phase:            datatypes.PhaseAnalyzing,
		CollectedContext: map[string]string{},
		StartedAt:        time.Now().UTC(),
	}
}

func TestMemoryStore_ConversationRoundTrip(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, m.SaveConversation(ctx, testState("c1")))

	loaded, err := m.LoadConversation(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "c1", loaded.ID)
	assert.Equal(t, datatypes.PhaseAnalyzing, loaded.Phase)

	exists, err := m.ConversationExists(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, exists)

	ttl, err := m.ConversationTTL(ctx, "c1")
	require.NoError(t, err)
	assert.Greater(t, ttl, 59*time.Minute)
}

func TestMemoryStore_LoadReturnsACopy(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, m.SaveConversation(ctx, testState("c1")))

	first, err := m.LoadConversation(ctx, "c1")
	require.NoError(t, err)
	first.Round = 99

	second, err := m.LoadConversation(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 1, second.Round)
}

func TestMemoryStore_TTLExpiryIsLazy(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return base }

	require.NoError(t, m.SaveConversation(ctx, testState("c1")))

	m.now = func() time.Time { return base.Add(59 * time.Minute) }
	_, err := m.LoadConversation(ctx, "c1")
	require.NoError(t, err)

	m.now = func() time.Time { return base.Add(61 * time.Minute) }
	_, err = m.LoadConversation(ctx, "c1")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = m.ConversationTTL(ctx, "c1")
	assert.ErrorIs(t, err, ErrNotFound)

	exists, err := m.ConversationExists(ctx, "c1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestMemoryStore_DeleteIsIdempotent(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, m.SaveConversation(ctx, testState("c1")))

	require.NoError(t, m.DeleteConversation(ctx, "c1"))
	require.NoError(t, m.DeleteConversation(ctx, "c1"))
	require.NoError(t, m.DeleteConversation(ctx, "never-existed"))
}

func TestMemoryStore_ActiveConversationsSkipsExpired(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	m.now = func() time.Time { return base }
	require.NoError(t, m.SaveConversation(ctx, testState("old")))

	m.now = func() time.Time { return base.Add(30 * time.Minute) }
	require.NoError(t, m.SaveConversation(ctx, testState("fresh")))

	m.now = func() time.Time { return base.Add(90 * time.Minute) }
	active, err := m.ActiveConversations(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "fresh", active[0].ID)
}

func TestMemoryStore_FeedbackAttachment(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	ts := time.Now().UTC()

	require.NoError(t, m.SaveMetric(ctx, &datatypes.QueryMetric{
		RequestID: "req-1",
		Timestamp: ts,
	}))

	err := m.AttachFeedback(ctx, "missing", datatypes.QueryFeedback{Value: datatypes.FeedbackUseful})
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, m.AttachFeedback(ctx, "req-1", datatypes.QueryFeedback{
		Value:     datatypes.FeedbackUseful,
		Timestamp: ts,
	}))

	metric, err := m.LoadMetric(ctx, "req-1")
	require.NoError(t, err)
	require.NotNil(t, metric.Feedback)
	assert.Equal(t, datatypes.FeedbackUseful, metric.Feedback.Value)
}

func TestMemoryStore_MetricsWithFeedbackFilters(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	// With feedback, inside window.
	require.NoError(t, m.SaveMetric(ctx, &datatypes.QueryMetric{RequestID: "in", Timestamp: now}))
	require.NoError(t, m.AttachFeedback(ctx, "in", datatypes.QueryFeedback{Value: datatypes.FeedbackUseful}))
	// With feedback, before window.
	require.NoError(t, m.SaveMetric(ctx, &datatypes.QueryMetric{RequestID: "stale", Timestamp: now.Add(-48 * time.Hour)}))
	require.NoError(t, m.AttachFeedback(ctx, "stale", datatypes.QueryFeedback{Value: datatypes.FeedbackPartial}))
	// No feedback at all.
	require.NoError(t, m.SaveMetric(ctx, &datatypes.QueryMetric{RequestID: "pending", Timestamp: now}))

	out, err := m.MetricsWithFeedback(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "in", out[0].RequestID)
}

func TestMemoryStore_HealthSnapshotsArePruned(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	m.now = func() time.Time { return base }
	require.NoError(t, m.SaveHealthSnapshot(ctx, base, []byte(`{"status":"healthy"}`)))

	// Two hours later a new snapshot triggers pruning of the old one.
	later := base.Add(2 * time.Hour)
	m.now = func() time.Time { return later }
	require.NoError(t, m.SaveHealthSnapshot(ctx, later, []byte(`{"status":"degraded"}`)))

	m.mu.RLock()
	defer m.mu.RUnlock()
	assert.Len(t, m.health, 1)
	_, kept := m.health[later.UnixMilli()]
	assert.True(t, kept)
}
