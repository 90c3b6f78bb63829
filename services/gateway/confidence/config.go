// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package confidence computes per-response confidence scores and tunes
// the scoring weights offline from user feedback.
package confidence

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"time"
)

// Weights are the per-factor coefficients. They must sum to 1.0 after
// normalization.
type Weights struct {
	Semantic   float64 `json:"semantic"`
	Structural float64 `json:"structural"`
	Citation   float64 `json:"citation"`
}

// Thresholds partition the confidence range into behavioral bands.
type Thresholds struct {
	High   float64 `json:"high"`
	Medium float64 `json:"medium"`
	Low    float64 `json:"low"`
}

// Behavior controls what the orchestrator does in the lower bands.
type Behavior struct {
	WarnBelowLow           bool `json:"warnBelowLow"`
	RawEvidenceBelowMedium bool `json:"rawEvidenceBelowMedium"`
}

// Config is the versioned confidence configuration, persisted as JSON.
type Config struct {
	Version    int        `json:"version"`
	UpdatedAt  time.Time  `json:"updatedAt"`
	UpdatedBy  string     `json:"updatedBy"`
	Weights    Weights    `json:"weights"`
	Thresholds Thresholds `json:"thresholds"`
	Behavior   Behavior   `json:"behavior"`
}

// DefaultConfig returns the shipped configuration.
func DefaultConfig() Config {
	return Config{
		Version:   1,
		UpdatedAt: time.Now().UTC(),
		UpdatedBy: "default",
		Weights:   Weights{Semantic: 0.7, Structural: 0.1, Citation: 0.2},
		Thresholds: Thresholds{
			High:   0.8,
			Medium: 0.5,
			Low:    0.3,
		},
		Behavior: Behavior{
			WarnBelowLow:           true,
			RawEvidenceBelowMedium: true,
		},
	}
}

// Normalize rescales the weights to sum exactly 1.0. A degenerate
// all-zero weight set falls back to the defaults.
func (w Weights) Normalize() Weights {
	sum := w.Semantic + w.Structural + w.Citation
	if sum <= 0 {
		return DefaultConfig().Weights
	}
	return Weights{
		Semantic:   w.Semantic / sum,
		Structural: w.Structural / sum,
		Citation:   w.Citation / sum,
	}
}

// Validate rejects configurations a scorer cannot use.
func (c Config) Validate() error {
	sum := c.Weights.Semantic + c.Weights.Structural + c.Weights.Citation
	if math.Abs(sum-1.0) > 0.01 {
		return fmt.Errorf("confidence: weights sum to %.3f, expected 1.0", sum)
	}
	t := c.Thresholds
	if !(0 <= t.Low && t.Low <= t.Medium && t.Medium <= t.High && t.High <= 1) {
		return fmt.Errorf("confidence: thresholds must satisfy 0 <= low <= medium <= high <= 1")
	}
	return nil
}

// LoadConfig reads the config file at path. A missing file yields the
// defaults; a malformed or invalid file is an error.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("confidence: read config %s: %w", path, err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("confidence: parse config %s: %w", path, err)
	}
	cfg.Weights = cfg.Weights.Normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// SaveConfig writes the config as indented JSON.
func SaveConfig(path string, cfg Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("confidence: marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("confidence: write config %s: %w", path, err)
	}
	return nil
}
