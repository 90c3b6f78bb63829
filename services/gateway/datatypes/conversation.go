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

import "time"

// ConversationPhase is the lifecycle phase of a clarification conversation.
type ConversationPhase string

const (
	PhaseAnalyzing  ConversationPhase = "analyzing"
	PhaseClarifying ConversationPhase = "clarifying"
	PhaseExecuting  ConversationPhase = "executing"
	PhaseCompleted  ConversationPhase = "completed"
)

// MaxClarificationRounds bounds the number of question/answer exchanges
// before the gateway executes with whatever context has been gathered.
const MaxClarificationRounds = 3

// ConversationTTL is how long idle conversation state survives in the
// store. Every mutation refreshes it.
const ConversationTTL = time.Hour

// ClarificationQuestion is one question posed to the caller.
//
// The ID is stable across regeneration within a conversation: a question
// already answered (its id keyed in CollectedContext) is never asked again.
type ClarificationQuestion struct {
	ID          string   `json:"id"`
	Question    string   `json:"question"`
	Options     []string `json:"options,omitempty"`
	MultiChoice bool     `json:"multiChoice"`
	Required    bool     `json:"required"`
}

// ConversationMessage is one entry in the conversation history.
type ConversationMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ConversationState is the persisted state of one clarification
// conversation. It is created on first ambiguous-query contact, mutated
// only through the Controller, and destroyed on completion, abort, or TTL
// expiry.
type ConversationState struct {
	ID               string                `json:"id"`
	OriginalQuery    string                `json:"originalQuery"`
	Project          string                `json:"project,omitempty"`
	Intent           QueryIntent           `json:"intent"`
	SynthesisMode    SynthesisMode         `json:"synthesisMode,omitempty"`
	Round            int                   `json:"round"`
	MaxRounds        int                   `json:"maxRounds"`
	Phase            ConversationPhase     `json:"phase"`
	CollectedContext map[string]string     `json:"collectedContext"`
	History          []ConversationMessage `json:"history"`
	StartedAt        time.Time             `json:"startedAt"`
}

// ConversationResponse is returned when the gateway needs clarification
// before it can execute a query.
type ConversationResponse struct {
	ConversationID string                  `json:"conversationId"`
	Phase          ConversationPhase       `json:"phase"`
	Round          int                     `json:"round"`
	MaxRounds      int                     `json:"maxRounds"`
	Questions      []ClarificationQuestion `json:"questions"`
	Message        string                  `json:"message,omitempty"`
}

// ContinueRequest is the body of POST /conversation/{id}/continue.
type ContinueRequest struct {
	Answers map[string]string `json:"answers" binding:"required"`
}
