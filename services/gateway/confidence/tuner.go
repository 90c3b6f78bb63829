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
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/AleutianAI/AleutianInsight/services/gateway/datatypes"
	"github.com/AleutianAI/AleutianInsight/services/gateway/store"
)

// Tuning window and decision constants.
const (
	tuningWindow        = 7 * 24 * time.Hour
	weightDeltaStep     = 0.1  // correlation is scaled by this per run
	weightFloor         = 0.05 // no weight may leave [floor, ceiling]
	weightCeiling       = 0.9
	autoApplyConfidence = 0.8
	minUsefulSamples    = 10
	// Sample-size confidence ramps linearly and saturates here.
	sampleSaturation = 20
)

// RecommendationFile is where a non-auto-applied proposal lands for
// human review.
const RecommendationFile = "confidence_recommendation.json"

// Correlations are the per-factor signal strengths against useful
// outcomes, each in [-1, 1].
type Correlations struct {
	Semantic   float64 `json:"semantic"`
	Structural float64 `json:"structural"`
	Citation   float64 `json:"citation"`
}

// TuningResult summarizes one tuner run.
type TuningResult struct {
	Analyzed      int          `json:"analyzed"`
	UsefulSamples int          `json:"usefulSamples"`
	Correlations  Correlations `json:"correlations"`
	Proposed      Weights      `json:"proposed"`
	Confidence    float64      `json:"confidence"`
	Applied       bool         `json:"applied"`
	GeneratedAt   time.Time    `json:"generatedAt"`
}

// Tuner adjusts scoring weights from accumulated feedback. It reads
// QueryMetrics but never writes them.
type Tuner struct {
	store      store.Store
	scorer     *Scorer
	configPath string
	recPath    string
	logger     *slog.Logger
	now        func() time.Time
}

// NewTuner creates a tuner that persists applied configs at configPath
// and writes recommendations next to it.
func NewTuner(st store.Store, scorer *Scorer, configPath string, logger *slog.Logger) *Tuner {
	return &Tuner{
		store:      st,
		scorer:     scorer,
		configPath: configPath,
		recPath:    RecommendationFile,
		logger:     logger,
		now:        time.Now,
	}
}

// Run executes one tuning pass over the feedback window. Weight changes
// are auto-applied only when the correlation signal is strong and backed
// by enough useful samples; otherwise a recommendation file is written
// for human review.
func (t *Tuner) Run(ctx context.Context) (*TuningResult, error) {
	since := t.now().Add(-tuningWindow)
	metrics, err := t.store.MetricsWithFeedback(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("confidence: load feedback metrics: %w", err)
	}

	result := &TuningResult{
		Analyzed:    len(metrics),
		GeneratedAt: t.now().UTC(),
	}
	if len(metrics) == 0 {
		return result, nil
	}

	var useful, rest []*datatypes.QueryMetric
	for _, m := range metrics {
		if m.Feedback != nil && m.Feedback.Value == datatypes.FeedbackUseful {
			useful = append(useful, m)
		} else {
			rest = append(rest, m)
		}
	}
	result.UsefulSamples = len(useful)

	result.Correlations = Correlations{
		Semantic:   factorCorrelation(useful, rest, semanticFactor),
		Structural: factorCorrelation(useful, rest, structuralFactor),
		Citation:   factorCorrelation(useful, rest, citationFactor),
	}

	current := t.scorer.Config()
	result.Proposed = proposeWeights(current.Weights, result.Correlations)

	meanAbs := (math.Abs(result.Correlations.Semantic) +
		math.Abs(result.Correlations.Structural) +
		math.Abs(result.Correlations.Citation)) / 3.0
	sampleConf := math.Min(float64(len(metrics))/sampleSaturation, 1.0)
	result.Confidence = meanAbs * sampleConf

	if result.Confidence >= autoApplyConfidence && result.UsefulSamples >= minUsefulSamples {
		next := current
		next.Version++
		next.UpdatedAt = t.now().UTC()
		next.UpdatedBy = "tuner"
		next.Weights = result.Proposed
		if err := SaveConfig(t.configPath, next); err != nil {
			return nil, err
		}
		t.scorer.Apply(next)
		result.Applied = true
		t.logger.Info("Confidence weights auto-applied",
			"version", next.Version,
			"semantic", next.Weights.Semantic,
			"structural", next.Weights.Structural,
			"citation", next.Weights.Citation)
		return result, nil
	}

	if err := t.writeRecommendation(result); err != nil {
		return nil, err
	}
	t.logger.Info("Confidence recommendation written for review",
		"path", t.recPath, "confidence", result.Confidence,
		"usefulSamples", result.UsefulSamples)
	return result, nil
}

func (t *Tuner) writeRecommendation(result *TuningResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("confidence: marshal recommendation: %w", err)
	}
	if err := os.WriteFile(t.recPath, data, 0o644); err != nil {
		return fmt.Errorf("confidence: write recommendation %s: %w", t.recPath, err)
	}
	return nil
}

// =============================================================================
// Correlation math
// =============================================================================

func semanticFactor(m *datatypes.QueryMetric) float64 {
	return clip01(m.AvgSemanticScore)
}

func structuralFactor(m *datatypes.QueryMetric) float64 {
	if m.StructuralCount > 0 {
		return 1.0
	}
	return 0.0
}

func citationFactor(m *datatypes.QueryMetric) float64 {
	return math.Min(float64(m.CitationCount)/3.0, 1.0)
}

// factorCorrelation is the difference of factor means between useful and
// non-useful outcomes, normalized by the larger mean and clipped to
// [-1, 1]. Positive means the factor tracks usefulness.
func factorCorrelation(useful, rest []*datatypes.QueryMetric, factor func(*datatypes.QueryMetric) float64) float64 {
	if len(useful) == 0 || len(rest) == 0 {
		return 0
	}
	usefulMean := mean(useful, factor)
	restMean := mean(rest, factor)
	maxMean := math.Max(usefulMean, restMean)
	if maxMean == 0 {
		return 0
	}
	corr := (usefulMean - restMean) / maxMean
	return math.Max(-1, math.Min(1, corr))
}

func mean(metrics []*datatypes.QueryMetric, factor func(*datatypes.QueryMetric) float64) float64 {
	var sum float64
	for _, m := range metrics {
		sum += factor(m)
	}
	return sum / float64(len(metrics))
}

// proposeWeights applies bounded deltas and renormalizes to sum 1.0.
func proposeWeights(current Weights, corr Correlations) Weights {
	bounded := func(w, c float64) float64 {
		next := w + c*weightDeltaStep
		if next < weightFloor {
			return weightFloor
		}
		if next > weightCeiling {
			return weightCeiling
		}
		return next
	}
	return Weights{
		Semantic:   bounded(current.Semantic, corr.Semantic),
		Structural: bounded(current.Structural, corr.Structural),
		Citation:   bounded(current.Citation, corr.Citation),
	}.Normalize()
}
