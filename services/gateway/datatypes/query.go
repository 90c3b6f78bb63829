// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes defines the wire and domain types shared across the
// gateway: query requests and responses, evidence matches and
// relationships, conversation state, and query metrics.
//
// Response shapes are schema-stable. Fields are only ever added, never
// renamed, and list ordering is deterministic (score desc, then path asc,
// then id asc) so that identical inputs against identical backend state
// produce byte-identical JSON apart from timestamps, ids, and latencies.
package datatypes

import (
	"sort"
	"time"
)

// =============================================================================
// Enumerations
// =============================================================================

// QueryStatus is the overall outcome of a query.
type QueryStatus string

const (
	StatusSuccess     QueryStatus = "success"
	StatusPartial     QueryStatus = "partial"
	StatusUnavailable QueryStatus = "unavailable"
)

// QueryIntent is the classified intent of a query.
type QueryIntent string

const (
	IntentCode         QueryIntent = "code"
	IntentExplanation  QueryIntent = "explanation"
	IntentLocation     QueryIntent = "location"
	IntentRelationship QueryIntent = "relationship"
	IntentBoth         QueryIntent = "both"
	IntentUnknown      QueryIntent = "unknown"
)

// InteractionMode selects one-shot or conversational handling.
type InteractionMode string

const (
	ModeOneShot        InteractionMode = "one-shot"
	ModeConversational InteractionMode = "conversational"
)

// SynthesisMode selects raw evidence or a synthesized answer.
type SynthesisMode string

const (
	SynthesisRaw         SynthesisMode = "raw"
	SynthesisSynthesized SynthesisMode = "synthesized"
)

// ContentKind tags the origin of a semantic match.
type ContentKind string

const (
	KindCode     ContentKind = "code"
	KindDocument ContentKind = "document"
	KindComment  ContentKind = "comment"
)

// FallbackMessage is returned verbatim when no backend could be reached.
const FallbackMessage = "SYSTEM IS UNAVAILABLE, USE WEB & CODEBASE RESEARCH"

// =============================================================================
// Request
// =============================================================================

// QueryRequest is the body of POST /query and POST /conversation.
//
// RequestID is client-assigned; the edge fills in a UUID when it is
// absent. Mode and SynthesisMode are auto-detected / defaulted when empty.
type QueryRequest struct {
	Query         string          `json:"query" binding:"required"`
	RequestID     string          `json:"requestId"`
	Timestamp     time.Time       `json:"timestamp"`
	Project       string          `json:"project"`
	Context       []string        `json:"context"`
	Mode          InteractionMode `json:"mode" binding:"omitempty,oneof=one-shot conversational"`
	SynthesisMode SynthesisMode   `json:"synthesisMode" binding:"omitempty,oneof=raw synthesized"`
}

// =============================================================================
// Evidence
// =============================================================================

// LineRange is an inclusive 1-based line span within a source file.
type LineRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// SemanticMatch is one evidence snippet from the vector backend.
type SemanticMatch struct {
	ID        string      `json:"id"`
	Content   string      `json:"content"`
	Score     float64     `json:"score"`
	Source    string      `json:"source"`
	Kind      ContentKind `json:"kind"`
	LineRange *LineRange  `json:"lineRange,omitempty"`
	Language  string      `json:"language,omitempty"`
}

// StructuralRelationship is one directed triple from the graph backend.
//
// Path is the normalized traversal: alternating entity and relation
// tokens from source to target.
type StructuralRelationship struct {
	ID          string   `json:"id"`
	Source      string   `json:"source"`
	Relation    string   `json:"relation"`
	Target      string   `json:"target"`
	Path        []string `json:"path"`
	Explanation string   `json:"explanation,omitempty"`
	Score       float64  `json:"score"`
}

// SemanticResult bundles the vector backend's evidence for one query.
type SemanticResult struct {
	Summary string          `json:"summary"`
	Matches []SemanticMatch `json:"matches"`
}

// StructuralResult bundles the graph backend's evidence for one query.
type StructuralResult struct {
	Summary       string                   `json:"summary"`
	Relationships []StructuralRelationship `json:"relationships"`
}

// Citation points a synthesized answer back at a piece of returned
// evidence. Citations never reference sources outside the evidence set.
type Citation struct {
	Source    string      `json:"source"`
	LineRange *LineRange  `json:"lineRange,omitempty"`
	Relevance float64     `json:"relevance"`
	Kind      ContentKind `json:"kind"`
}

// SynthesizedAnswer is produced only in synthesized mode.
type SynthesizedAnswer struct {
	Markdown   string     `json:"markdown"`
	Confidence float64    `json:"confidence"`
	Citations  []Citation `json:"citations"`
}

// =============================================================================
// Response
// =============================================================================

// ResponseMeta reports which backends were actually called and how long
// everything took. Latencies are wall-clock milliseconds.
type ResponseMeta struct {
	QdrantQueried  bool  `json:"qdrantQueried"`
	Neo4jQueried   bool  `json:"neo4jQueried"`
	QdrantMillis   int64 `json:"qdrantMillis"`
	Neo4jMillis    int64 `json:"neo4jMillis"`
	TotalMillis    int64 `json:"totalMillis"`
	CacheHit       bool  `json:"cacheHit"`
	EmbeddingUsed  bool  `json:"embeddingUsed"`
	SynthesisTried bool  `json:"synthesisTried"`
}

// QueryResponse is the body returned by POST /query.
//
// Invariant: Status and Warnings are consistent with the per-backend
// queried flags in Meta (see SortEvidence and the orchestrator tests).
type QueryResponse struct {
	RequestID       string             `json:"requestId"`
	Status          QueryStatus        `json:"status"`
	Intent          QueryIntent        `json:"intent"`
	Semantic        SemanticResult     `json:"semantic"`
	Structural      StructuralResult   `json:"structural"`
	Answer          *SynthesizedAnswer `json:"answer,omitempty"`
	Warnings        []string           `json:"warnings,omitempty"`
	FallbackMessage string             `json:"fallbackMessage,omitempty"`
	Meta            ResponseMeta       `json:"meta"`
	Timestamp       time.Time          `json:"timestamp"`
}

// =============================================================================
// Deterministic ordering
// =============================================================================

// SortMatches orders matches by score desc, then source path asc, then id
// asc. The sort is total, so input order never leaks into output order.
func SortMatches(matches []SemanticMatch) {
	sort.Slice(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		return a.ID < b.ID
	})
}

// SortRelationships orders relationships by score desc, then source
// entity asc, then id asc.
func SortRelationships(rels []StructuralRelationship) {
	sort.Slice(rels, func(i, j int) bool {
		a, b := rels[i], rels[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		return a.ID < b.ID
	})
}
