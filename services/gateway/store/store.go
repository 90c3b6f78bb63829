// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store persists conversation state, query metrics, and health
// history. The Redis implementation is preferred; an in-process map
// serves as a degraded fallback when Redis is unreachable, and the
// failover wrapper switches between them transparently.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/AleutianAI/AleutianInsight/services/gateway/datatypes"
)

// Key layout in the external KV.
const (
	conversationKeyPrefix = "conversation:"
	metricKeyPrefix       = "metrics:query:"
	feedbackPendingKey    = "metrics:feedback:pending"
	healthHistoryPrefix   = "monitoring:health:history:"
)

// HealthHistoryTTL bounds how long health snapshots are retained.
const HealthHistoryTTL = time.Hour

// ErrNotFound is returned when a conversation or metric does not exist
// or has expired.
var ErrNotFound = errors.New("store: not found")

// Store is the keyed persistence contract. The Redis and in-memory
// implementations are interchangeable behind it.
//
// TTL semantics differ by implementation: Redis enforces expiry
// natively, the in-memory fallback checks deadlines lazily on read.
type Store interface {
	// SaveConversation writes the state and refreshes its TTL.
	SaveConversation(ctx context.Context, state *datatypes.ConversationState) error

	// LoadConversation returns ErrNotFound for missing or expired ids.
	LoadConversation(ctx context.Context, id string) (*datatypes.ConversationState, error)

	// DeleteConversation is idempotent: deleting a missing id succeeds.
	DeleteConversation(ctx context.Context, id string) error

	// ConversationExists reports whether the id is live.
	ConversationExists(ctx context.Context, id string) (bool, error)

	// ActiveConversations returns all live conversation states.
	ActiveConversations(ctx context.Context) ([]*datatypes.ConversationState, error)

	// ConversationTTL returns the remaining lifetime of a conversation.
	ConversationTTL(ctx context.Context, id string) (time.Duration, error)

	// SaveMetric writes a query metric with the metric TTL and adds its
	// request id to the pending-feedback index.
	SaveMetric(ctx context.Context, metric *datatypes.QueryMetric) error

	// LoadMetric returns ErrNotFound for missing or expired request ids.
	LoadMetric(ctx context.Context, requestID string) (*datatypes.QueryMetric, error)

	// AttachFeedback sets the feedback on a stored metric and removes
	// the request id from the pending-feedback index.
	AttachFeedback(ctx context.Context, requestID string, feedback datatypes.QueryFeedback) error

	// MetricsWithFeedback returns metrics carrying feedback newer than
	// since. Consumed by the offline confidence tuner.
	MetricsWithFeedback(ctx context.Context, since time.Time) ([]*datatypes.QueryMetric, error)

	// SaveHealthSnapshot records an aggregated health report keyed by
	// its timestamp, retained for HealthHistoryTTL.
	SaveHealthSnapshot(ctx context.Context, at time.Time, snapshot []byte) error

	// Close releases the underlying client.
	Close() error
}
