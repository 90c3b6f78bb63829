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
	"sync"
	"time"

	"github.com/AleutianAI/AleutianInsight/services/gateway/datatypes"
)

// MemoryStore is the in-process fallback store. TTLs are tracked as
// deadlines and checked lazily on read; nothing expires in the
// background, so a long-degraded process holds state until explicit
// delete or restart.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]memoryEntry[*datatypes.ConversationState]
	metrics       map[string]memoryEntry[*datatypes.QueryMetric]
	health        map[int64][]byte
	now           func() time.Time
}

type memoryEntry[T any] struct {
	value    T
	deadline time.Time
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		conversations: make(map[string]memoryEntry[*datatypes.ConversationState]),
		metrics:       make(map[string]memoryEntry[*datatypes.QueryMetric]),
		health:        make(map[int64][]byte),
		now:           time.Now,
	}
}

func (m *MemoryStore) SaveConversation(_ context.Context, state *datatypes.ConversationState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *state
	m.conversations[state.ID] = memoryEntry[*datatypes.ConversationState]{
		value:    &cp,
		deadline: m.now().Add(datatypes.ConversationTTL),
	}
	return nil
}

func (m *MemoryStore) LoadConversation(_ context.Context, id string) (*datatypes.ConversationState, error) {
	m.mu.RLock()
	entry, ok := m.conversations[id]
	m.mu.RUnlock()
	if !ok || m.now().After(entry.deadline) {
		return nil, ErrNotFound
	}
	cp := *entry.value
	return &cp, nil
}

func (m *MemoryStore) DeleteConversation(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.conversations, id)
	return nil
}

func (m *MemoryStore) ConversationExists(ctx context.Context, id string) (bool, error) {
	_, err := m.LoadConversation(ctx, id)
	if err == ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (m *MemoryStore) ActiveConversations(_ context.Context) ([]*datatypes.ConversationState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	now := m.now()
	out := make([]*datatypes.ConversationState, 0, len(m.conversations))
	for _, entry := range m.conversations {
		if now.After(entry.deadline) {
			continue
		}
		cp := *entry.value
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MemoryStore) ConversationTTL(_ context.Context, id string) (time.Duration, error) {
	m.mu.RLock()
	entry, ok := m.conversations[id]
	m.mu.RUnlock()
	if !ok {
		return 0, ErrNotFound
	}
	remaining := entry.deadline.Sub(m.now())
	if remaining <= 0 {
		return 0, ErrNotFound
	}
	return remaining, nil
}

func (m *MemoryStore) SaveMetric(_ context.Context, metric *datatypes.QueryMetric) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *metric
	m.metrics[metric.RequestID] = memoryEntry[*datatypes.QueryMetric]{
		value:    &cp,
		deadline: m.now().Add(datatypes.DefaultMetricTTL),
	}
	return nil
}

func (m *MemoryStore) LoadMetric(_ context.Context, requestID string) (*datatypes.QueryMetric, error) {
	m.mu.RLock()
	entry, ok := m.metrics[requestID]
	m.mu.RUnlock()
	if !ok || m.now().After(entry.deadline) {
		return nil, ErrNotFound
	}
	cp := *entry.value
	return &cp, nil
}

func (m *MemoryStore) AttachFeedback(_ context.Context, requestID string, feedback datatypes.QueryFeedback) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.metrics[requestID]
	if !ok || m.now().After(entry.deadline) {
		return ErrNotFound
	}
	entry.value.Feedback = &feedback
	m.metrics[requestID] = entry
	return nil
}

func (m *MemoryStore) MetricsWithFeedback(_ context.Context, since time.Time) ([]*datatypes.QueryMetric, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	now := m.now()
	var out []*datatypes.QueryMetric
	for _, entry := range m.metrics {
		if now.After(entry.deadline) || entry.value.Feedback == nil {
			continue
		}
		if entry.value.Timestamp.Before(since) {
			continue
		}
		cp := *entry.value
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MemoryStore) SaveHealthSnapshot(_ context.Context, at time.Time, snapshot []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.health[at.UnixMilli()] = snapshot
	// Prune anything past the retention window while we hold the lock.
	cutoff := m.now().Add(-HealthHistoryTTL).UnixMilli()
	for ts := range m.health {
		if ts < cutoff {
			delete(m.health, ts)
		}
	}
	return nil
}

func (m *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
