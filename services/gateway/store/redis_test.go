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

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianInsight/services/gateway/datatypes"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	st := NewRedisStore(client)
	t.Cleanup(func() { st.Close() })
	return st, mr
}

func TestRedisStore_ConversationRoundTrip(t *testing.T) {
	st, _ := newTestRedisStore(t)
	ctx := context.Background()

	require.NoError(t, st.SaveConversation(ctx, testState("c1")))

	loaded, err := st.LoadConversation(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "c1", loaded.ID)
	assert.Equal(t, "How does it work?", loaded.OriginalQuery)

	ttl, err := st.ConversationTTL(ctx, "c1")
	require.NoError(t, err)
	assert.Greater(t, ttl, 59*time.Minute)
	assert.LessOrEqual(t, ttl, time.Hour)
}

func TestRedisStore_MissingConversation(t *testing.T) {
	st, _ := newTestRedisStore(t)
	ctx := context.Background()

	_, err := st.LoadConversation(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = st.ConversationTTL(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	exists, err := st.ConversationExists(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, exists)

	// Idempotent delete.
	require.NoError(t, st.DeleteConversation(ctx, "nope"))
}

func TestRedisStore_ConversationExpiry(t *testing.T) {
	st, mr := newTestRedisStore(t)
	ctx := context.Background()

	require.NoError(t, st.SaveConversation(ctx, testState("c1")))

	mr.FastForward(datatypes.ConversationTTL + time.Minute)

	_, err := st.LoadConversation(ctx, "c1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_ActiveConversations(t *testing.T) {
	st, _ := newTestRedisStore(t)
	ctx := context.Background()

	require.NoError(t, st.SaveConversation(ctx, testState("c1")))
	require.NoError(t, st.SaveConversation(ctx, testState("c2")))

	active, err := st.ActiveConversations(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 2)
}

func TestRedisStore_SaveMetricIndexesPendingFeedback(t *testing.T) {
	st, mr := newTestRedisStore(t)
	ctx := context.Background()
	ts := time.Now().UTC()

	require.NoError(t, st.SaveMetric(ctx, &datatypes.QueryMetric{
		RequestID: "req-1",
		Timestamp: ts,
	}))

	members, err := mr.ZMembers(feedbackPendingKey)
	require.NoError(t, err)
	assert.Equal(t, []string{"req-1"}, members)

	require.NoError(t, st.AttachFeedback(ctx, "req-1", datatypes.QueryFeedback{
		Value:     datatypes.FeedbackUseful,
		Timestamp: ts,
	}))

	// Feedback removes the id from the pending index.
	members, _ = mr.ZMembers(feedbackPendingKey)
	assert.Empty(t, members)

	metric, err := st.LoadMetric(ctx, "req-1")
	require.NoError(t, err)
	require.NotNil(t, metric.Feedback)
	assert.Equal(t, datatypes.FeedbackUseful, metric.Feedback.Value)
}

func TestRedisStore_AttachFeedbackPreservesTTL(t *testing.T) {
	st, mr := newTestRedisStore(t)
	ctx := context.Background()

	require.NoError(t, st.SaveMetric(ctx, &datatypes.QueryMetric{
		RequestID: "req-1",
		Timestamp: time.Now().UTC(),
	}))

	// Burn three days of the seven-day retention, then attach feedback.
	mr.FastForward(3 * 24 * time.Hour)
	require.NoError(t, st.AttachFeedback(ctx, "req-1", datatypes.QueryFeedback{
		Value: datatypes.FeedbackPartial,
	}))

	ttl := mr.TTL(metricKey("req-1"))
	assert.LessOrEqual(t, ttl, 4*24*time.Hour)
	assert.Greater(t, ttl, 3*24*time.Hour)
}

func TestRedisStore_AttachFeedbackMissingMetric(t *testing.T) {
	st, _ := newTestRedisStore(t)
	err := st.AttachFeedback(context.Background(), "missing", datatypes.QueryFeedback{
		Value: datatypes.FeedbackUseful,
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_MetricsWithFeedbackFilters(t *testing.T) {
	st, _ := newTestRedisStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, st.SaveMetric(ctx, &datatypes.QueryMetric{RequestID: "in", Timestamp: now}))
	require.NoError(t, st.AttachFeedback(ctx, "in", datatypes.QueryFeedback{Value: datatypes.FeedbackUseful}))

	require.NoError(t, st.SaveMetric(ctx, &datatypes.QueryMetric{RequestID: "stale", Timestamp: now.Add(-48 * time.Hour)}))
	require.NoError(t, st.AttachFeedback(ctx, "stale", datatypes.QueryFeedback{Value: datatypes.FeedbackUseful}))

	require.NoError(t, st.SaveMetric(ctx, &datatypes.QueryMetric{RequestID: "pending", Timestamp: now}))

	out, err := st.MetricsWithFeedback(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "in", out[0].RequestID)
}

func TestRedisStore_HealthSnapshotTTL(t *testing.T) {
	st, mr := newTestRedisStore(t)
	ctx := context.Background()
	at := time.Now().UTC()

	require.NoError(t, st.SaveHealthSnapshot(ctx, at, []byte(`{"status":"healthy"}`)))

	mr.FastForward(HealthHistoryTTL + time.Minute)
	keys := mr.Keys()
	assert.Empty(t, keys, "snapshots expire with the history TTL")
}

func TestRedisStore_Ping(t *testing.T) {
	st, mr := newTestRedisStore(t)
	require.NoError(t, st.Ping(context.Background()))

	mr.Close()
	assert.Error(t, st.Ping(context.Background()))
}
