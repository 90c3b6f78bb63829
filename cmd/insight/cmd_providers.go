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
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianInsight/services/gateway"
	"github.com/AleutianAI/AleutianInsight/services/llm"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "Provider chain diagnostics",
}

// providersCheckCmd exercises every configured provider once and prints
// a success/failure table. Used at deploy; exit code 0 iff at least one
// embedding and one synthesis provider respond.
var providersCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Exercise each configured provider once",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := gateway.ConfigFromEnv()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
			os.Exit(1)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CHAIN\tPROVIDER\tTYPE\tRESULT\tLATENCY\tDETAIL")

		embedOK := checkEmbedding(ctx, w, cfg.EmbeddingProviders)
		synthOK := checkSynthesis(ctx, w, cfg.SynthesisProviders)
		w.Flush()

		if !embedOK || !synthOK {
			fmt.Fprintln(os.Stderr, "provider check failed: need at least one working embedding and one working synthesis provider")
			os.Exit(1)
		}
		fmt.Println("provider check passed")
	},
}

func checkEmbedding(ctx context.Context, w *tabwriter.Writer, configs []llm.ProviderConfig) bool {
	ok := false
	for _, cfg := range configs {
		client, err := llm.NewEmbeddingClient(cfg)
		if err != nil {
			writeRow(w, "embedding", cfg, 0, err)
			continue
		}
		callCtx, cancel := context.WithTimeout(ctx, timeoutFor(cfg))
		start := time.Now()
		_, err = client.Embed(callCtx, "ping")
		cancel()
		writeRow(w, "embedding", cfg, time.Since(start), err)
		if err == nil {
			ok = true
		}
	}
	return ok
}

func checkSynthesis(ctx context.Context, w *tabwriter.Writer, configs []llm.ProviderConfig) bool {
	ok := false
	maxTokens := 8
	params := llm.GenerationParams{MaxTokens: &maxTokens}
	for _, cfg := range configs {
		client, err := llm.NewSynthesisClient(cfg)
		if err != nil {
			writeRow(w, "synthesis", cfg, 0, err)
			continue
		}
		callCtx, cancel := context.WithTimeout(ctx, timeoutFor(cfg))
		start := time.Now()
		_, err = client.Generate(callCtx, "Reply with the single word: ok", params)
		cancel()
		writeRow(w, "synthesis", cfg, time.Since(start), err)
		if err == nil {
			ok = true
		}
	}
	return ok
}

func timeoutFor(cfg llm.ProviderConfig) time.Duration {
	if cfg.Timeout > 0 {
		return cfg.Timeout
	}
	return 30 * time.Second
}

func writeRow(w *tabwriter.Writer, chain string, cfg llm.ProviderConfig, latency time.Duration, err error) {
	result, detail := "OK", ""
	if err != nil {
		result, detail = "FAIL", err.Error()
	}
	fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
		chain, cfg.Name, cfg.Type, result, latency.Round(time.Millisecond), detail)
}
