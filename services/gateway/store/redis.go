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
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/AleutianAI/AleutianInsight/services/gateway/datatypes"
)

// RedisStore is the Redis-backed Store. Values are JSON documents under
// the keys documented in store.go; expiry is native Redis TTL.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a store over an existing Redis client. The
// caller owns connectivity checks; see NewFailoverStore.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func conversationKey(id string) string { return conversationKeyPrefix + id }
func metricKey(requestID string) string { return metricKeyPrefix + requestID }

func (r *RedisStore) SaveConversation(ctx context.Context, state *datatypes.ConversationState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("store: marshal conversation %s: %w", state.ID, err)
	}
	if err := r.client.Set(ctx, conversationKey(state.ID), data, datatypes.ConversationTTL).Err(); err != nil {
		return fmt.Errorf("store: save conversation %s: %w", state.ID, err)
	}
	return nil
}

func (r *RedisStore) LoadConversation(ctx context.Context, id string) (*datatypes.ConversationState, error) {
	data, err := r.client.Get(ctx, conversationKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: load conversation %s: %w", id, err)
	}
	var state datatypes.ConversationState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("store: decode conversation %s: %w", id, err)
	}
	return &state, nil
}

func (r *RedisStore) DeleteConversation(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, conversationKey(id)).Err(); err != nil {
		return fmt.Errorf("store: delete conversation %s: %w", id, err)
	}
	return nil
}

func (r *RedisStore) ConversationExists(ctx context.Context, id string) (bool, error) {
	n, err := r.client.Exists(ctx, conversationKey(id)).Result()
	if err != nil {
		return false, fmt.Errorf("store: check conversation %s: %w", id, err)
	}
	return n > 0, nil
}

func (r *RedisStore) ActiveConversations(ctx context.Context) ([]*datatypes.ConversationState, error) {
	var out []*datatypes.ConversationState
	iter := r.client.Scan(ctx, 0, conversationKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		data, err := r.client.Get(ctx, iter.Val()).Bytes()
		if errors.Is(err, redis.Nil) {
			continue // expired between SCAN and GET
		}
		if err != nil {
			return nil, fmt.Errorf("store: scan conversations: %w", err)
		}
		var state datatypes.ConversationState
		if err := json.Unmarshal(data, &state); err != nil {
			continue
		}
		out = append(out, &state)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("store: scan conversations: %w", err)
	}
	return out, nil
}

func (r *RedisStore) ConversationTTL(ctx context.Context, id string) (time.Duration, error) {
	ttl, err := r.client.TTL(ctx, conversationKey(id)).Result()
	if err != nil {
		return 0, fmt.Errorf("store: ttl for conversation %s: %w", id, err)
	}
	if ttl < 0 {
		// -2 key missing, -1 no expiry set; neither is a live conversation.
		return 0, ErrNotFound
	}
	return ttl, nil
}

func (r *RedisStore) SaveMetric(ctx context.Context, metric *datatypes.QueryMetric) error {
	data, err := json.Marshal(metric)
	if err != nil {
		return fmt.Errorf("store: marshal metric %s: %w", metric.RequestID, err)
	}
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, metricKey(metric.RequestID), data, datatypes.DefaultMetricTTL)
	pipe.ZAdd(ctx, feedbackPendingKey, redis.Z{
		Score:  float64(metric.Timestamp.UnixMilli()),
		Member: metric.RequestID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store: save metric %s: %w", metric.RequestID, err)
	}
	return nil
}

func (r *RedisStore) LoadMetric(ctx context.Context, requestID string) (*datatypes.QueryMetric, error) {
	data, err := r.client.Get(ctx, metricKey(requestID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: load metric %s: %w", requestID, err)
	}
	var metric datatypes.QueryMetric
	if err := json.Unmarshal(data, &metric); err != nil {
		return nil, fmt.Errorf("store: decode metric %s: %w", requestID, err)
	}
	return &metric, nil
}

func (r *RedisStore) AttachFeedback(ctx context.Context, requestID string, feedback datatypes.QueryFeedback) error {
	metric, err := r.LoadMetric(ctx, requestID)
	if err != nil {
		return err
	}
	metric.Feedback = &feedback

	data, err := json.Marshal(metric)
	if err != nil {
		return fmt.Errorf("store: marshal metric %s: %w", requestID, err)
	}

	// Preserve the remaining TTL instead of restarting the 7-day window.
	ttl, err := r.client.TTL(ctx, metricKey(requestID)).Result()
	if err != nil || ttl <= 0 {
		ttl = datatypes.DefaultMetricTTL
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, metricKey(requestID), data, ttl)
	pipe.ZRem(ctx, feedbackPendingKey, requestID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store: attach feedback to %s: %w", requestID, err)
	}
	return nil
}

func (r *RedisStore) MetricsWithFeedback(ctx context.Context, since time.Time) ([]*datatypes.QueryMetric, error) {
	var out []*datatypes.QueryMetric
	iter := r.client.Scan(ctx, 0, metricKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		data, err := r.client.Get(ctx, iter.Val()).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("store: scan metrics: %w", err)
		}
		var metric datatypes.QueryMetric
		if err := json.Unmarshal(data, &metric); err != nil {
			continue
		}
		if metric.Feedback == nil || metric.Timestamp.Before(since) {
			continue
		}
		out = append(out, &metric)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("store: scan metrics: %w", err)
	}
	return out, nil
}

func (r *RedisStore) SaveHealthSnapshot(ctx context.Context, at time.Time, snapshot []byte) error {
	key := healthHistoryPrefix + strconv.FormatInt(at.UnixMilli(), 10)
	if err := r.client.Set(ctx, key, snapshot, HealthHistoryTTL).Err(); err != nil {
		return fmt.Errorf("store: save health snapshot: %w", err)
	}
	return nil
}

// Ping verifies Redis connectivity.
func (r *RedisStore) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("store: redis unreachable: %w", err)
	}
	return nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

var _ Store = (*RedisStore)(nil)
