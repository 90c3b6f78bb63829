// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package orchestrator executes one-shot queries: intent classification,
// parallel fan-out to the vector and graph backends, result assembly with
// deterministic ordering, degradation decisions, optional synthesis, and
// metric emission.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/AleutianAI/AleutianInsight/services/gateway/confidence"
	"github.com/AleutianAI/AleutianInsight/services/gateway/datatypes"
	"github.com/AleutianAI/AleutianInsight/services/gateway/observability"
	"github.com/AleutianAI/AleutianInsight/services/gateway/store"
	"github.com/AleutianAI/AleutianInsight/services/llm"
	"github.com/AleutianAI/AleutianInsight/services/llm/fallback"
)

// Per-backend deadline for substantive calls.
const backendDeadline = 30 * time.Second

// Default evidence limits per backend.
const (
	defaultSemanticLimit   = 10
	defaultStructuralLimit = 25
)

// =============================================================================
// Capability interfaces
// =============================================================================

// EmbeddingGenerator turns query text into a vector, with fallback
// metadata. Satisfied by *fallback.EmbeddingChain.
type EmbeddingGenerator interface {
	Embed(ctx context.Context, text string) (*fallback.EmbeddingResult, error)
}

// SemanticSearcher is the vector backend capability. Satisfied by
// *search.QdrantIndex.
type SemanticSearcher interface {
	Search(ctx context.Context, embedding []float32, project string, limit int) ([]datatypes.SemanticMatch, error)
	Ping(ctx context.Context) error
}

// StructuralSearcher is the graph backend capability. Satisfied by
// *graph.Neo4jGraph.
type StructuralSearcher interface {
	Search(ctx context.Context, query, project string, limit int) ([]datatypes.StructuralRelationship, error)
	Ping(ctx context.Context) error
}

// Synthesizer produces a natural-language answer from a prompt, with
// fallback metadata. Satisfied by *fallback.SynthesisChain.
type Synthesizer interface {
	Generate(ctx context.Context, prompt string, params llm.GenerationParams) (*fallback.SynthesisResult, error)
}

// =============================================================================
// Orchestrator
// =============================================================================

// Orchestrator owns all transient per-request state. It never touches
// ConversationState; the conversation controller hands it enriched
// queries through the HTTP layer.
type Orchestrator struct {
	embedder   EmbeddingGenerator
	semantic   SemanticSearcher
	structural StructuralSearcher
	synth      Synthesizer // nil when no synthesis chain is configured
	scorer     *confidence.Scorer
	store      store.Store
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// New wires an orchestrator. synth may be nil; synthesized-mode requests
// then degrade to raw evidence with a warning.
func New(embedder EmbeddingGenerator, semantic SemanticSearcher, structural StructuralSearcher,
	synth Synthesizer, scorer *confidence.Scorer, st store.Store,
	metrics *observability.Metrics, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		embedder:   embedder,
		semantic:   semantic,
		structural: structural,
		synth:      synth,
		scorer:     scorer,
		store:      st,
		metrics:    metrics,
		logger:     logger,
	}
}

// backendOutcome is the result of one backend's probe + substantive call.
type backendOutcome struct {
	queried bool // substantive call succeeded
	millis  int64
	err     error
}

// Execute runs the full one-shot pipeline for a validated request.
//
// # Description
//
// Classifies intent, computes the query embedding through the fallback
// chain, fans out to the vector and graph backends in parallel with
// independent deadlines, assembles sorted evidence, decides
// success/partial/unavailable, optionally synthesizes an answer, scores
// confidence, and emits a QueryMetric fire-and-forget.
//
// # Inputs
//
//   - ctx: request-scoped context; cancellation aborts in-flight backend
//     calls best-effort.
//   - req: validated request. RequestID must already be populated.
//
// # Outputs
//
//   - *datatypes.QueryResponse: always non-nil; degradation is expressed
//     in Status/Warnings, never as an error.
//
// # Limitations
//
//   - CacheHit is always false; response caching is not implemented.
func (o *Orchestrator) Execute(ctx context.Context, req datatypes.QueryRequest) *datatypes.QueryResponse {
	start := time.Now()

	resp := &datatypes.QueryResponse{
		RequestID: req.RequestID,
		Intent:    ClassifyIntent(req.Query),
		Semantic:  datatypes.SemanticResult{Matches: []datatypes.SemanticMatch{}},
		Structural: datatypes.StructuralResult{
			Relationships: []datatypes.StructuralRelationship{},
		},
		Timestamp: time.Now().UTC(),
	}

	// ----- Step: embedding ------------------------------------------------
	var embedding []float32
	embedResult, embedErr := o.embedder.Embed(ctx, req.Query)
	if embedErr != nil {
		// Non-fatal: the graph backend can still answer.
		resp.Warnings = append(resp.Warnings,
			"embedding unavailable: semantic search skipped")
		o.logger.Warn("Embedding chain exhausted",
			"requestId", req.RequestID, "error", embedErr)
	} else {
		embedding = embedResult.Vector
		resp.Meta.EmbeddingUsed = true
		resp.Warnings = append(resp.Warnings, embedResult.Warnings...)
	}

	// ----- Step: parallel probe + fan-out ---------------------------------
	var (
		wg         sync.WaitGroup
		vecProbe   error
		graphProbe error
		matches    []datatypes.SemanticMatch
		rels       []datatypes.StructuralRelationship
		vec        backendOutcome
		grph       backendOutcome
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		vecProbe = o.semantic.Ping(ctx)
	}()
	go func() {
		defer wg.Done()
		graphProbe = o.structural.Ping(ctx)
	}()

	if embedding != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			callCtx, cancel := context.WithTimeout(ctx, backendDeadline)
			defer cancel()
			t := time.Now()
			result, err := o.semantic.Search(callCtx, embedding, req.Project, defaultSemanticLimit)
			vec.millis = time.Since(t).Milliseconds()
			if err != nil {
				vec.err = err
				return
			}
			matches = result
			vec.queried = true
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		callCtx, cancel := context.WithTimeout(ctx, backendDeadline)
		defer cancel()
		t := time.Now()
		result, err := o.structural.Search(callCtx, req.Query, req.Project, defaultStructuralLimit)
		grph.millis = time.Since(t).Milliseconds()
		if err != nil {
			grph.err = err
			return
		}
		rels = result
		grph.queried = true
	}()

	wg.Wait()

	if vec.err != nil {
		o.logger.Warn("Vector backend failed",
			"requestId", req.RequestID, "error", vec.err, "probeError", vecProbe)
	}
	if grph.err != nil {
		o.logger.Warn("Graph backend failed",
			"requestId", req.RequestID, "error", grph.err, "probeError", graphProbe)
	}

	// ----- Step: assemble -------------------------------------------------
	datatypes.SortMatches(matches)
	datatypes.SortRelationships(rels)
	if matches != nil {
		resp.Semantic.Matches = matches
	}
	if rels != nil {
		resp.Structural.Relationships = rels
	}
	resp.Semantic.Summary = semanticSummary(len(matches), vec.queried)
	resp.Structural.Summary = structuralSummary(len(rels), grph.queried)

	resp.Meta.QdrantQueried = vec.queried
	resp.Meta.Neo4jQueried = grph.queried
	resp.Meta.QdrantMillis = vec.millis
	resp.Meta.Neo4jMillis = grph.millis

	// ----- Step: status ---------------------------------------------------
	switch {
	case vec.queried && grph.queried:
		resp.Status = datatypes.StatusSuccess
	case vec.queried || grph.queried:
		resp.Status = datatypes.StatusPartial
		if !vec.queried {
			resp.Warnings = append(resp.Warnings,
				"vector backend unavailable: semantic results omitted")
		}
		if !grph.queried {
			resp.Warnings = append(resp.Warnings,
				"graph backend unavailable: structural results omitted")
		}
	default:
		resp.Status = datatypes.StatusUnavailable
		resp.FallbackMessage = datatypes.FallbackMessage
	}

	// ----- Step: synthesis ------------------------------------------------
	if req.SynthesisMode == datatypes.SynthesisSynthesized && resp.Status != datatypes.StatusUnavailable {
		resp.Meta.SynthesisTried = true
		answer, warning := o.synthesize(ctx, req, resp)
		if warning != "" {
			resp.Warnings = append(resp.Warnings, warning)
		}
		resp.Answer = answer
	}

	// ----- Step: confidence -----------------------------------------------
	citationCount := 0
	if resp.Answer != nil {
		citationCount = len(resp.Answer.Citations)
	}
	factors := confidence.ExtractFactors(resp.Semantic.Matches, resp.Structural.Relationships, citationCount)
	score := o.scorer.Score(factors)
	if resp.Answer != nil {
		resp.Answer.Confidence = score
	}
	if resp.Status != datatypes.StatusUnavailable && o.scorer.ShouldWarn(score) {
		resp.Warnings = append(resp.Warnings,
			fmt.Sprintf("low confidence (%.2f): verify against the source", score))
	}

	resp.Meta.TotalMillis = time.Since(start).Milliseconds()
	if resp.Meta.TotalMillis < 1 {
		resp.Meta.TotalMillis = 1
	}

	o.observe(req, resp)
	o.emitMetric(req, resp, score, factors)
	return resp
}

// synthesize runs the synthesis chain over the assembled evidence.
// Failure never changes the response status: synthesis is not a backend.
func (o *Orchestrator) synthesize(ctx context.Context, req datatypes.QueryRequest, resp *datatypes.QueryResponse) (*datatypes.SynthesizedAnswer, string) {
	if o.synth == nil {
		return nil, "synthesis not configured: returning raw evidence"
	}
	if len(resp.Semantic.Matches) == 0 && len(resp.Structural.Relationships) == 0 {
		return nil, "no evidence to synthesize from: returning raw evidence"
	}

	prompt := buildPrompt(req.Query, resp.Semantic.Matches, resp.Structural.Relationships)
	result, err := o.synth.Generate(ctx, prompt, synthesisParams())
	if err != nil {
		o.logger.Warn("Synthesis chain exhausted",
			"requestId", req.RequestID, "error", err)
		return nil, "synthesis unavailable: returning raw evidence"
	}

	answer := &datatypes.SynthesizedAnswer{
		Markdown:  result.Text,
		Citations: extractCitations(result.Text, resp.Semantic.Matches, resp.Structural.Relationships),
	}
	return answer, ""
}

// observe records Prometheus counters and histograms for the request.
func (o *Orchestrator) observe(req datatypes.QueryRequest, resp *datatypes.QueryResponse) {
	if o.metrics == nil {
		return
	}
	o.metrics.ObserveQuery(string(resp.Intent), string(resp.Status),
		time.Duration(resp.Meta.TotalMillis)*time.Millisecond)
}

// emitMetric persists the QueryMetric fire-and-forget. The request is
// already answered by the time this write happens; a store failure is
// logged and dropped.
func (o *Orchestrator) emitMetric(req datatypes.QueryRequest, resp *datatypes.QueryResponse, score float64, factors confidence.Factors) {
	answerLength := 0
	citationCount := 0
	if resp.Answer != nil {
		answerLength = len(resp.Answer.Markdown)
		citationCount = len(resp.Answer.Citations)
	}
	metric := &datatypes.QueryMetric{
		RequestID:        req.RequestID,
		Timestamp:        time.Now().UTC(),
		QueryHash:        datatypes.HashQuery(req.Query),
		SemanticCount:    len(resp.Semantic.Matches),
		StructuralCount:  len(resp.Structural.Relationships),
		AvgSemanticScore: factors.SemanticMean,
		Confidence:       score,
		AnswerLength:     answerLength,
		CitationCount:    citationCount,
		TotalMillis:      resp.Meta.TotalMillis,
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := o.store.SaveMetric(ctx, metric); err != nil {
			o.logger.Warn("Failed to persist query metric",
				"requestId", metric.RequestID, "error", err)
		}
	}()
}

func semanticSummary(n int, queried bool) string {
	if !queried {
		return "semantic search unavailable"
	}
	if n == 0 {
		return "no matching snippets found"
	}
	return fmt.Sprintf("%d matching snippets", n)
}

func structuralSummary(n int, queried bool) string {
	if !queried {
		return "structural search unavailable"
	}
	if n == 0 {
		return "no relationships found"
	}
	return fmt.Sprintf("%d relationships", n)
}
