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
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/AleutianAI/AleutianInsight/services/gateway/datatypes"
)

// FailoverStore prefers Redis and downgrades to the in-process store
// when Redis is unreachable at construction or fails an operation later.
// The downgrade is one-way for the life of the process: state written to
// the memory store would be invisible to a recovered Redis, so flipping
// back would silently lose conversations mid-flight.
type FailoverStore struct {
	redis    *RedisStore
	memory   *MemoryStore
	degraded atomic.Bool
	logger   *slog.Logger
}

// NewFailoverStore connects to Redis at addr with a 2-second probe. If
// the probe fails the store starts degraded on the in-process fallback.
func NewFailoverStore(addr, password string, logger *slog.Logger) *FailoverStore {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})

	fs := &FailoverStore{
		redis:  NewRedisStore(client),
		memory: NewMemoryStore(),
		logger: logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := fs.redis.Ping(ctx); err != nil {
		fs.degraded.Store(true)
		logger.Warn("Redis unreachable at startup, using in-process store",
			"addr", addr, "error", err)
	}
	return fs
}

// Degraded reports whether the store is running on the in-process
// fallback. Surfaced by the health endpoint.
func (f *FailoverStore) Degraded() bool {
	return f.degraded.Load()
}

// downgrade flips to the in-process store, logging once per transition.
func (f *FailoverStore) downgrade(op string, err error) {
	if f.degraded.CompareAndSwap(false, true) {
		f.logger.Warn("Redis operation failed, downgrading to in-process store",
			"operation", op, "error", err)
	}
}

func (f *FailoverStore) SaveConversation(ctx context.Context, state *datatypes.ConversationState) error {
	if !f.degraded.Load() {
		if err := f.redis.SaveConversation(ctx, state); err == nil {
			return nil
		} else {
			f.downgrade("SaveConversation", err)
		}
	}
	return f.memory.SaveConversation(ctx, state)
}

func (f *FailoverStore) LoadConversation(ctx context.Context, id string) (*datatypes.ConversationState, error) {
	if !f.degraded.Load() {
		state, err := f.redis.LoadConversation(ctx, id)
		if err == nil || err == ErrNotFound {
			return state, err
		}
		f.downgrade("LoadConversation", err)
	}
	return f.memory.LoadConversation(ctx, id)
}

func (f *FailoverStore) DeleteConversation(ctx context.Context, id string) error {
	if !f.degraded.Load() {
		if err := f.redis.DeleteConversation(ctx, id); err == nil {
			return nil
		} else {
			f.downgrade("DeleteConversation", err)
		}
	}
	return f.memory.DeleteConversation(ctx, id)
}

func (f *FailoverStore) ConversationExists(ctx context.Context, id string) (bool, error) {
	if !f.degraded.Load() {
		ok, err := f.redis.ConversationExists(ctx, id)
		if err == nil {
			return ok, nil
		}
		f.downgrade("ConversationExists", err)
	}
	return f.memory.ConversationExists(ctx, id)
}

func (f *FailoverStore) ActiveConversations(ctx context.Context) ([]*datatypes.ConversationState, error) {
	if !f.degraded.Load() {
		states, err := f.redis.ActiveConversations(ctx)
		if err == nil {
			return states, nil
		}
		f.downgrade("ActiveConversations", err)
	}
	return f.memory.ActiveConversations(ctx)
}

func (f *FailoverStore) ConversationTTL(ctx context.Context, id string) (time.Duration, error) {
	if !f.degraded.Load() {
		ttl, err := f.redis.ConversationTTL(ctx, id)
		if err == nil || err == ErrNotFound {
			return ttl, err
		}
		f.downgrade("ConversationTTL", err)
	}
	return f.memory.ConversationTTL(ctx, id)
}

func (f *FailoverStore) SaveMetric(ctx context.Context, metric *datatypes.QueryMetric) error {
	if !f.degraded.Load() {
		if err := f.redis.SaveMetric(ctx, metric); err == nil {
			return nil
		} else {
			f.downgrade("SaveMetric", err)
		}
	}
	return f.memory.SaveMetric(ctx, metric)
}

func (f *FailoverStore) LoadMetric(ctx context.Context, requestID string) (*datatypes.QueryMetric, error) {
	if !f.degraded.Load() {
		metric, err := f.redis.LoadMetric(ctx, requestID)
		if err == nil || err == ErrNotFound {
			return metric, err
		}
		f.downgrade("LoadMetric", err)
	}
	return f.memory.LoadMetric(ctx, requestID)
}

func (f *FailoverStore) AttachFeedback(ctx context.Context, requestID string, feedback datatypes.QueryFeedback) error {
	if !f.degraded.Load() {
		err := f.redis.AttachFeedback(ctx, requestID, feedback)
		if err == nil || err == ErrNotFound {
			return err
		}
		f.downgrade("AttachFeedback", err)
	}
	return f.memory.AttachFeedback(ctx, requestID, feedback)
}

func (f *FailoverStore) MetricsWithFeedback(ctx context.Context, since time.Time) ([]*datatypes.QueryMetric, error) {
	if !f.degraded.Load() {
		metrics, err := f.redis.MetricsWithFeedback(ctx, since)
		if err == nil {
			return metrics, nil
		}
		f.downgrade("MetricsWithFeedback", err)
	}
	return f.memory.MetricsWithFeedback(ctx, since)
}

func (f *FailoverStore) SaveHealthSnapshot(ctx context.Context, at time.Time, snapshot []byte) error {
	if !f.degraded.Load() {
		if err := f.redis.SaveHealthSnapshot(ctx, at, snapshot); err == nil {
			return nil
		} else {
			f.downgrade("SaveHealthSnapshot", err)
		}
	}
	return f.memory.SaveHealthSnapshot(ctx, at, snapshot)
}

func (f *FailoverStore) Close() error {
	return f.redis.Close()
}

var _ Store = (*FailoverStore)(nil)
