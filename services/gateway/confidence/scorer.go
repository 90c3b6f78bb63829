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
	"sync"

	"github.com/AleutianAI/AleutianInsight/services/gateway/datatypes"
)

// Scorer computes per-response confidence from evidence characteristics.
// The score is derived from what was actually returned, never from an
// LLM's self-report.
type Scorer struct {
	mu  sync.RWMutex
	cfg Config
}

// NewScorer creates a scorer with the given configuration.
func NewScorer(cfg Config) *Scorer {
	cfg.Weights = cfg.Weights.Normalize()
	return &Scorer{cfg: cfg}
}

// Config returns the active configuration.
func (s *Scorer) Config() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Apply swaps in a new configuration. Called by the tuner after an
// auto-applied weight change.
func (s *Scorer) Apply(cfg Config) {
	cfg.Weights = cfg.Weights.Normalize()
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
}

// Factors are the three raw inputs to the weighted sum.
type Factors struct {
	SemanticMean       float64 // mean similarity across matches, in [0,1]
	StructuralPresence float64 // 1.0 if any relationship returned, else 0
	CitationCount      int
}

// ExtractFactors derives the factor inputs from assembled evidence.
func ExtractFactors(matches []datatypes.SemanticMatch, rels []datatypes.StructuralRelationship, citations int) Factors {
	f := Factors{CitationCount: citations}
	if len(matches) > 0 {
		var sum float64
		for _, m := range matches {
			sum += m.Score
		}
		f.SemanticMean = clip01(sum / float64(len(matches)))
	}
	if len(rels) > 0 {
		f.StructuralPresence = 1.0
	}
	return f
}

// Score computes the weighted confidence:
//
//	w_s * semanticMean + w_p * structuralPresence + w_c * min(citations/3, 1)
func (s *Scorer) Score(f Factors) float64 {
	s.mu.RLock()
	w := s.cfg.Weights
	s.mu.RUnlock()

	citationFactor := float64(f.CitationCount) / 3.0
	if citationFactor > 1.0 {
		citationFactor = 1.0
	}

	score := w.Semantic*clip01(f.SemanticMean) +
		w.Structural*clip01(f.StructuralPresence) +
		w.Citation*citationFactor
	return clip01(score)
}

// Band classifies a score against the configured thresholds.
type Band string

const (
	BandHigh   Band = "high"
	BandMedium Band = "medium"
	BandLow    Band = "low"
	BandFloor  Band = "below-low"
)

// BandFor returns the behavioral band of a score.
func (s *Scorer) BandFor(score float64) Band {
	s.mu.RLock()
	t := s.cfg.Thresholds
	s.mu.RUnlock()
	switch {
	case score >= t.High:
		return BandHigh
	case score >= t.Medium:
		return BandMedium
	case score >= t.Low:
		return BandLow
	default:
		return BandFloor
	}
}

// ShouldWarn reports whether the orchestrator should append a
// low-confidence warning for this score.
func (s *Scorer) ShouldWarn(score float64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Behavior.WarnBelowLow && score < s.cfg.Thresholds.Low
}

// ShouldIncludeRawEvidence reports whether raw evidence must accompany a
// synthesized answer at this score.
func (s *Scorer) ShouldIncludeRawEvidence(score float64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Behavior.RawEvidenceBelowMedium && score < s.cfg.Thresholds.Medium
}

func clip01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
