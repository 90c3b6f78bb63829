// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package confidence

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianInsight/services/gateway/datatypes"
	"github.com/AleutianAI/AleutianInsight/services/gateway/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestTuner(t *testing.T, st store.Store) (*Tuner, *Scorer, string) {
	t.Helper()
	dir := t.TempDir()
	configPath := filepath.Join(dir, "confidence_config.json")
	scorer := NewScorer(DefaultConfig())
	tuner := NewTuner(st, scorer, configPath, testLogger())
	tuner.recPath = filepath.Join(dir, RecommendationFile)
	tuner.now = func() time.Time {
		return time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)
	}
	return tuner, scorer, dir
}

// seedMetric stores one metric and optionally attaches feedback.
func seedMetric(t *testing.T, st store.Store, id string, at time.Time,
	semantic float64, structural, citations int, verdict datatypes.FeedbackValue) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, st.SaveMetric(ctx, &datatypes.QueryMetric{
		RequestID:        id,
		Timestamp:        at,
		QueryHash:        datatypes.HashQuery(id),
		SemanticCount:    structural + 1,
		StructuralCount:  structural,
		AvgSemanticScore: semantic,
		CitationCount:    citations,
		TotalMillis:      42,
	}))
	if verdict != "" {
		require.NoError(t, st.AttachFeedback(ctx, id, datatypes.QueryFeedback{
			Value:     verdict,
			Timestamp: at,
		}))
	}
}

func TestTuner_EmptyWindowIsANoOp(t *testing.T) {
	tuner, _, dir := newTestTuner(t, store.NewMemoryStore())

	result, err := tuner.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.Analyzed)
	assert.False(t, result.Applied)

	// No recommendation file either.
	_, err = os.Stat(filepath.Join(dir, RecommendationFile))
	assert.True(t, os.IsNotExist(err))
}

func TestTuner_StrongSignalAutoApplies(t *testing.T) {
	st := store.NewMemoryStore()
	tuner, scorer, _ := newTestTuner(t, st)
	recent := time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC)

	// Ten useful queries with strong evidence, ten not-useful with none:
	// every factor correlates perfectly with usefulness.
	for i := 0; i < 10; i++ {
		seedMetric(t, st, fmt.Sprintf("good-%d", i), recent, 1.0, 2, 3, datatypes.FeedbackUseful)
		seedMetric(t, st, fmt.Sprintf("bad-%d", i), recent, 0.0, 0, 0, datatypes.FeedbackNotUseful)
	}

	result, err := tuner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 20, result.Analyzed)
	assert.Equal(t, 10, result.UsefulSamples)
	assert.InDelta(t, 1.0, result.Correlations.Semantic, 1e-9)
	assert.InDelta(t, 1.0, result.Correlations.Structural, 1e-9)
	assert.InDelta(t, 1.0, result.Correlations.Citation, 1e-9)
	assert.InDelta(t, 1.0, result.Confidence, 1e-9)
	require.True(t, result.Applied)

	// Each weight moved up by the full delta step, then renormalized:
	// (0.8, 0.2, 0.3) / 1.3.
	assert.InDelta(t, 0.8/1.3, result.Proposed.Semantic, 1e-9)
	assert.InDelta(t, 0.2/1.3, result.Proposed.Structural, 1e-9)
	assert.InDelta(t, 0.3/1.3, result.Proposed.Citation, 1e-9)

	// The scorer picked up the new config and the version advanced.
	applied := scorer.Config()
	assert.Equal(t, 2, applied.Version)
	assert.Equal(t, "tuner", applied.UpdatedBy)
	assert.Equal(t, result.Proposed, applied.Weights)

	// And it was persisted for the next boot.
	loaded, err := LoadConfig(tuner.configPath)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Version)
}

func TestTuner_WeakSignalWritesRecommendation(t *testing.T) {
	st := store.NewMemoryStore()
	tuner, scorer, dir := newTestTuner(t, st)
	recent := time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC)

	// Only four samples: sample confidence is 4/20, well below the
	// auto-apply bar even with perfect correlation.
	for i := 0; i < 2; i++ {
		seedMetric(t, st, fmt.Sprintf("good-%d", i), recent, 1.0, 1, 3, datatypes.FeedbackUseful)
		seedMetric(t, st, fmt.Sprintf("bad-%d", i), recent, 0.0, 0, 0, datatypes.FeedbackNotUseful)
	}

	result, err := tuner.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, result.Applied)
	assert.Less(t, result.Confidence, autoApplyConfidence)
	assert.Equal(t, 1, scorer.Config().Version, "weights unchanged")

	data, err := os.ReadFile(filepath.Join(dir, RecommendationFile))
	require.NoError(t, err)
	var rec TuningResult
	require.NoError(t, json.Unmarshal(data, &rec))
	assert.Equal(t, 4, rec.Analyzed)
	assert.False(t, rec.Applied)
}

func TestTuner_RequiresMinimumUsefulSamples(t *testing.T) {
	st := store.NewMemoryStore()
	tuner, scorer, dir := newTestTuner(t, st)
	recent := time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC)

	// Twenty samples but only five useful: confidence can be high while
	// the useful floor is not met.
	for i := 0; i < 5; i++ {
		seedMetric(t, st, fmt.Sprintf("good-%d", i), recent, 1.0, 1, 3, datatypes.FeedbackUseful)
	}
	for i := 0; i < 15; i++ {
		seedMetric(t, st, fmt.Sprintf("bad-%d", i), recent, 0.0, 0, 0, datatypes.FeedbackNotUseful)
	}

	result, err := tuner.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, result.Applied)
	assert.Equal(t, 1, scorer.Config().Version)

	_, err = os.Stat(filepath.Join(dir, RecommendationFile))
	assert.NoError(t, err)
}

func TestFactorCorrelation_Clipping(t *testing.T) {
	useful := []*datatypes.QueryMetric{{AvgSemanticScore: 0.9}}
	rest := []*datatypes.QueryMetric{{AvgSemanticScore: 0.9}}
	assert.Zero(t, factorCorrelation(useful, rest, semanticFactor))

	// Rest dominates: correlation is negative.
	negative := factorCorrelation(
		[]*datatypes.QueryMetric{{AvgSemanticScore: 0.1}},
		[]*datatypes.QueryMetric{{AvgSemanticScore: 0.9}},
		semanticFactor)
	assert.Less(t, negative, 0.0)
	assert.GreaterOrEqual(t, negative, -1.0)

	// One empty side yields no signal.
	assert.Zero(t, factorCorrelation(nil, rest, semanticFactor))
}

func TestProposeWeights_Bounded(t *testing.T) {
	proposed := proposeWeights(
		Weights{Semantic: 0.05, Structural: 0.05, Citation: 0.9},
		Correlations{Semantic: -1, Structural: -1, Citation: 1})

	// Floor holds before renormalization, so no weight collapses to zero.
	assert.Greater(t, proposed.Semantic, 0.0)
	assert.Greater(t, proposed.Structural, 0.0)
	sum := proposed.Semantic + proposed.Structural + proposed.Citation
	assert.InDelta(t, 1.0, sum, 1e-9)
}
