// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// FeedbackValue is the caller's verdict on a prior response.
type FeedbackValue string

const (
	FeedbackUseful    FeedbackValue = "useful"
	FeedbackNotUseful FeedbackValue = "not_useful"
	FeedbackPartial   FeedbackValue = "partial"
)

// DefaultMetricTTL is how long query metrics are retained in the store.
const DefaultMetricTTL = 7 * 24 * time.Hour

// QueryFeedback is attached to a QueryMetric after the fact.
type QueryFeedback struct {
	Value     FeedbackValue `json:"value"`
	Comment   string        `json:"comment,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// QueryMetric is the per-query record emitted after a response is
// serialized. The confidence tuner consumes these offline; it never
// writes them.
type QueryMetric struct {
	RequestID         string         `json:"requestId"`
	Timestamp         time.Time      `json:"timestamp"`
	QueryHash         string         `json:"queryHash"`
	SemanticCount     int            `json:"semanticCount"`
	StructuralCount   int            `json:"structuralCount"`
	AvgSemanticScore  float64        `json:"avgSemanticScore"`
	Confidence        float64        `json:"confidence"`
	AnswerLength      int            `json:"answerLength"`
	CitationCount     int            `json:"citationCount"`
	TotalMillis       int64          `json:"totalMillis"`
	Feedback          *QueryFeedback `json:"feedback,omitempty"`
}

// FeedbackRequest is the body of POST /feedback.
type FeedbackRequest struct {
	RequestID string        `json:"requestId" binding:"required"`
	Feedback  FeedbackValue `json:"feedback" binding:"required,oneof=useful not_useful partial"`
	Comment   string        `json:"comment"`
}

// HashQuery produces the stable query hash stored in metrics. Raw query
// text never lands in the metric record.
func HashQuery(query string) string {
	sum := sha256.Sum256([]byte(query))
	return hex.EncodeToString(sum[:16])
}
