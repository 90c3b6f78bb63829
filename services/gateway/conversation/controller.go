// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianInsight/services/gateway/datatypes"
	"github.com/AleutianAI/AleutianInsight/services/gateway/store"
)

// ErrConversationNotFound is returned when a conversation id is missing,
// expired, or already completed.
var ErrConversationNotFound = errors.New("conversation: not found or expired")

// ExecutionRequest is handed back to the caller when a conversation is
// ready to execute. The controller never calls the orchestrator itself;
// the handler mediates, which keeps the dependency one-directional.
type ExecutionRequest struct {
	ConversationID string
	EnrichedQuery  string
	Project        string
	Intent         datatypes.QueryIntent
	SynthesisMode  datatypes.SynthesisMode
}

// Outcome is the result of a continuation: exactly one field is set.
type Outcome struct {
	Clarification *datatypes.ConversationResponse
	Execute       *ExecutionRequest
}

// Controller owns all ConversationState mutations. State is written
// through to the store on every mutation (refreshing the TTL) and cached
// in-process so continuation reads stay in single-digit milliseconds.
type Controller struct {
	store  store.Store
	logger *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
	cache map[string]cachedState

	newID func() string
	now   func() time.Time
}

type cachedState struct {
	state    *datatypes.ConversationState
	deadline time.Time
}

// NewController creates a controller over the given store.
func NewController(st store.Store, logger *slog.Logger) *Controller {
	return &Controller{
		store:  st,
		logger: logger,
		locks:  make(map[string]*sync.Mutex),
		cache:  make(map[string]cachedState),
		newID:  uuid.NewString,
		now:    time.Now,
	}
}

// lockFor serializes mutations per conversation id. Distinct
// conversations never contend.
func (c *Controller) lockFor(id string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.locks[id]
	if !ok {
		l = &sync.Mutex{}
		c.locks[id] = l
	}
	return l
}

func (c *Controller) forget(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.locks, id)
	delete(c.cache, id)
}

// cloneState deep-copies the mutable members so cache entries and
// callers never share the context map or the history backing array. A
// caller mutating a loaded state must not touch the cache until the
// mutation is saved.
func cloneState(state *datatypes.ConversationState) *datatypes.ConversationState {
	cp := *state
	cp.CollectedContext = make(map[string]string, len(state.CollectedContext))
	for k, v := range state.CollectedContext {
		cp.CollectedContext[k] = v
	}
	cp.History = append([]datatypes.ConversationMessage(nil), state.History...)
	return &cp
}

func (c *Controller) remember(state *datatypes.ConversationState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[state.ID] = cachedState{
		state:    cloneState(state),
		deadline: c.now().Add(datatypes.ConversationTTL),
	}
}

func (c *Controller) cached(id string) (*datatypes.ConversationState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.cache[id]
	if !ok || c.now().After(entry.deadline) {
		return nil, false
	}
	return cloneState(entry.state), true
}

// Start creates a conversation for an ambiguous query and returns the
// first round of clarifications.
func (c *Controller) Start(ctx context.Context, req datatypes.QueryRequest, intent datatypes.QueryIntent, classification Classification) (*datatypes.ConversationResponse, error) {
	now := c.now()
	state := &datatypes.ConversationState{
		ID:               c.newID(),
		OriginalQuery:    req.Query,
		Project:          req.Project,
		Intent:           intent,
		SynthesisMode:    req.SynthesisMode,
		Round:            1,
		MaxRounds:        datatypes.MaxClarificationRounds,
		Phase:            datatypes.PhaseAnalyzing,
		CollectedContext: make(map[string]string),
		History: []datatypes.ConversationMessage{
			{Role: "user", Content: req.Query, Timestamp: now},
		},
		StartedAt: now,
	}

	questions := GenerateQuestions(req.Query, classification, 1, state.CollectedContext)

	if err := c.save(ctx, state); err != nil {
		return nil, err
	}
	c.logger.Info("Conversation started",
		"conversationId", state.ID, "classification", string(classification))

	return &datatypes.ConversationResponse{
		ConversationID: state.ID,
		Phase:          state.Phase,
		Round:          state.Round,
		MaxRounds:      state.MaxRounds,
		Questions:      questions,
		Message:        "Your question needs clarification before I can search the codebase.",
	}, nil
}

// Continue merges answers into the conversation and either returns the
// next round of clarifications or an ExecutionRequest when the
// conversation is ready to run.
func (c *Controller) Continue(ctx context.Context, id string, answers map[string]string) (*Outcome, error) {
	l := c.lockFor(id)
	l.Lock()
	defer l.Unlock()

	state, err := c.load(ctx, id)
	if err != nil {
		return nil, err
	}

	now := c.now()
	for qid, answer := range answers {
		state.CollectedContext[qid] = answer
		state.History = append(state.History, datatypes.ConversationMessage{
			Role:      "user",
			Content:   fmt.Sprintf("%s: %s", qid, answer),
			Timestamp: now,
		})
	}

	// Round discipline: reaching maxRounds forces execution with
	// whatever context has been gathered.
	if state.Round >= state.MaxRounds {
		return c.finish(ctx, state)
	}

	state.Round++
	state.Phase = datatypes.PhaseClarifying

	classification := Classify(state.OriginalQuery)
	questions := GenerateQuestions(state.OriginalQuery, classification, state.Round, state.CollectedContext)
	if len(questions) == 0 {
		return c.finish(ctx, state)
	}

	if err := c.save(ctx, state); err != nil {
		return nil, err
	}

	return &Outcome{
		Clarification: &datatypes.ConversationResponse{
			ConversationID: state.ID,
			Phase:          state.Phase,
			Round:          state.Round,
			MaxRounds:      state.MaxRounds,
			Questions:      questions,
		},
	}, nil
}

// finish transitions to executing, removes the stored state, and hands
// the enriched query back for execution. Completed conversations are
// never loadable again.
func (c *Controller) finish(ctx context.Context, state *datatypes.ConversationState) (*Outcome, error) {
	state.Phase = datatypes.PhaseExecuting
	enriched := EnrichQuery(state.OriginalQuery, state.CollectedContext)

	if err := c.store.DeleteConversation(ctx, state.ID); err != nil {
		c.logger.Warn("Failed to delete completed conversation",
			"conversationId", state.ID, "error", err)
	}
	c.forget(state.ID)

	c.logger.Info("Conversation executing",
		"conversationId", state.ID, "rounds", state.Round,
		"contextKeys", len(state.CollectedContext))

	return &Outcome{
		Execute: &ExecutionRequest{
			ConversationID: state.ID,
			EnrichedQuery:  enriched,
			Project:        state.Project,
			Intent:         state.Intent,
			SynthesisMode:  state.SynthesisMode,
		},
	}, nil
}

// Abort deletes a conversation. Deleting a missing or expired id
// succeeds silently.
func (c *Controller) Abort(ctx context.Context, id string) error {
	l := c.lockFor(id)
	l.Lock()
	defer l.Unlock()

	if err := c.store.DeleteConversation(ctx, id); err != nil {
		return fmt.Errorf("conversation: abort %s: %w", id, err)
	}
	c.forget(id)
	return nil
}

// Active returns the live conversation states, for the stats endpoint.
func (c *Controller) Active(ctx context.Context) ([]*datatypes.ConversationState, error) {
	return c.store.ActiveConversations(ctx)
}

func (c *Controller) save(ctx context.Context, state *datatypes.ConversationState) error {
	if err := c.store.SaveConversation(ctx, state); err != nil {
		return fmt.Errorf("conversation: save %s: %w", state.ID, err)
	}
	c.remember(state)
	return nil
}

func (c *Controller) load(ctx context.Context, id string) (*datatypes.ConversationState, error) {
	if state, ok := c.cached(id); ok {
		return state, nil
	}
	state, err := c.store.LoadConversation(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("conversation: load %s: %w", id, err)
	}
	return state, nil
}
