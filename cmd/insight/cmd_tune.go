// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianInsight/services/gateway"
	"github.com/AleutianAI/AleutianInsight/services/gateway/confidence"
	"github.com/AleutianAI/AleutianInsight/services/gateway/store"
)

// tuneCmd runs one offline confidence-tuning pass over the accumulated
// feedback window. Intended for a cron job or manual invocation; the
// serving gateway picks up an auto-applied config on its next restart.
var tuneCmd = &cobra.Command{
	Use:   "tune",
	Short: "Run one confidence-tuning pass over recent feedback",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := gateway.ConfigFromEnv()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
			os.Exit(1)
		}

		logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
		st := store.NewFailoverStore(
			fmt.Sprintf("%s:%d", cfg.KVHost, cfg.KVPort), cfg.KVPassword, logger)
		defer st.Close()
		if st.Degraded() {
			fmt.Fprintln(os.Stderr, "tune: KV store unreachable; no feedback to analyze")
			os.Exit(1)
		}

		confCfg, err := confidence.LoadConfig(cfg.ConfidenceConfigPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "tune: load confidence config: %v\n", err)
			os.Exit(1)
		}
		scorer := confidence.NewScorer(confCfg)
		tuner := confidence.NewTuner(st, scorer, cfg.ConfidenceConfigPath, logger)

		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		result, err := tuner.Run(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "tune: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("analyzed %d metrics (%d useful)\n", result.Analyzed, result.UsefulSamples)
		fmt.Printf("correlations: semantic %.3f structural %.3f citation %.3f\n",
			result.Correlations.Semantic, result.Correlations.Structural, result.Correlations.Citation)
		fmt.Printf("proposed weights: semantic %.3f structural %.3f citation %.3f (confidence %.3f)\n",
			result.Proposed.Semantic, result.Proposed.Structural, result.Proposed.Citation, result.Confidence)
		if result.Applied {
			fmt.Println("weights auto-applied")
			return
		}
		if result.Analyzed > 0 {
			fmt.Printf("recommendation written to %s\n", confidence.RecommendationFile)
		}
	},
}
