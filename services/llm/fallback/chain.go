// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package fallback implements the provider fallback engine: ordered
// chains of embedding and synthesis providers, tried in sequence until
// one succeeds, with a per-provider circuit breaker and health record.
package fallback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianInsight/services/llm"
)

// ErrNoProviders is returned by chain constructors given an empty config.
var ErrNoProviders = errors.New("fallback: no providers configured")

// ChainError aggregates the last error from every attempted provider.
type ChainError struct {
	Attempts map[string]string // provider name -> last error message
}

func (e *ChainError) Error() string {
	names := make([]string, 0, len(e.Attempts))
	for name := range e.Attempts {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %s", name, e.Attempts[name]))
	}
	return "all providers failed: " + strings.Join(parts, "; ")
}

// EmbeddingResult is a successful embedding plus fallback metadata.
type EmbeddingResult struct {
	Vector          []float32
	Provider        string
	Attempts        int
	FailedProviders []string
	Warnings        []string
}

// SynthesisResult is a successful generation plus fallback metadata.
type SynthesisResult struct {
	Text            string
	Provider        string
	Attempts        int
	FailedProviders []string
}

type embeddingProvider struct {
	cfg     llm.ProviderConfig
	client  llm.EmbeddingClient
	breaker *breaker
}

type synthesisProvider struct {
	cfg     llm.ProviderConfig
	client  llm.SynthesisClient
	breaker *breaker
}

// =============================================================================
// Embedding chain
// =============================================================================

// EmbeddingChain is an ordered list of embedding providers. The chain
// advertises a single target dimension; providers returning wider vectors
// are truncated with a warning, providers returning narrower vectors are
// treated as failed and the chain advances.
type EmbeddingChain struct {
	providers []*embeddingProvider
	dims      int
}

// NewEmbeddingChain builds a chain from ordered provider configs.
// dims is the chain-target embedding dimension and must match the vector
// backend; the caller validates that at startup.
func NewEmbeddingChain(configs []llm.ProviderConfig, dims int) (*EmbeddingChain, error) {
	if len(configs) == 0 {
		return nil, ErrNoProviders
	}
	if dims <= 0 {
		return nil, fmt.Errorf("fallback: embedding chain requires a positive target dimension")
	}

	providers := make([]*embeddingProvider, 0, len(configs))
	for _, cfg := range configs {
		client, err := llm.NewEmbeddingClient(cfg)
		if err != nil {
			return nil, fmt.Errorf("fallback: embedding provider %q: %w", cfg.Name, err)
		}
		if cfg.Dimensions != 0 && cfg.Dimensions != dims {
			return nil, fmt.Errorf("fallback: embedding provider %q advertises %d dimensions, chain target is %d",
				cfg.Name, cfg.Dimensions, dims)
		}
		providers = append(providers, &embeddingProvider{
			cfg:     cfg,
			client:  client,
			breaker: newBreaker(),
		})
	}
	return &EmbeddingChain{providers: providers, dims: dims}, nil
}

// Dimensions returns the chain-target embedding dimension.
func (c *EmbeddingChain) Dimensions() int { return c.dims }

// Embed tries each provider in order until one returns a usable vector.
func (c *EmbeddingChain) Embed(ctx context.Context, text string) (*EmbeddingResult, error) {
	result := &EmbeddingResult{}
	chainErr := &ChainError{Attempts: make(map[string]string)}

	for _, p := range c.providers {
		if !p.breaker.allow() {
			slog.Debug("Skipping embedding provider, breaker open", "provider", p.cfg.Name)
			chainErr.Attempts[p.cfg.Name] = "circuit breaker open"
			continue
		}
		result.Attempts++

		callCtx, cancel := context.WithTimeout(ctx, p.timeout())
		vector, err := p.client.Embed(callCtx, text)
		cancel()

		if err == nil && len(vector) < c.dims {
			err = fmt.Errorf("provider %q returned %d dimensions, expected %d", p.cfg.Name, len(vector), c.dims)
		}
		if err != nil {
			p.breaker.recordFailure(err)
			chainErr.Attempts[p.cfg.Name] = err.Error()
			result.FailedProviders = append(result.FailedProviders, p.cfg.Name)
			slog.Warn("Embedding provider failed, advancing chain",
				"provider", p.cfg.Name, "error", err)
			continue
		}

		if len(vector) > c.dims {
			result.Warnings = append(result.Warnings, fmt.Sprintf(
				"embedding provider %s returned %d dimensions, truncated to %d",
				p.cfg.Name, len(vector), c.dims))
			vector = vector[:c.dims]
		}

		p.breaker.recordSuccess()
		result.Vector = vector
		result.Provider = p.cfg.Name
		return result, nil
	}

	return nil, chainErr
}

// Health returns a snapshot of every provider's breaker state.
func (c *EmbeddingChain) Health() []ProviderHealth {
	out := make([]ProviderHealth, 0, len(c.providers))
	for i, p := range c.providers {
		out = append(out, p.breaker.snapshot(fmt.Sprintf("embedding-%d", i), p.cfg.Name))
	}
	return out
}

// Refresh re-probes every provider with a short call and resets breakers
// for the ones that respond. Intended for deploy hooks and the
// diagnostics CLI, not the request path.
func (c *EmbeddingChain) Refresh(ctx context.Context) {
	for _, p := range c.providers {
		callCtx, cancel := context.WithTimeout(ctx, p.timeout())
		_, err := p.client.Embed(callCtx, "ping")
		cancel()
		if err != nil {
			p.breaker.recordFailure(err)
			continue
		}
		p.breaker.reset()
		p.breaker.recordSuccess()
	}
}

func (p *embeddingProvider) timeout() time.Duration {
	if p.cfg.Timeout > 0 {
		return p.cfg.Timeout
	}
	return 30 * time.Second
}

// =============================================================================
// Synthesis chain
// =============================================================================

// SynthesisChain is an ordered list of synthesis providers.
type SynthesisChain struct {
	providers []*synthesisProvider
}

// NewSynthesisChain builds a chain from ordered provider configs.
func NewSynthesisChain(configs []llm.ProviderConfig) (*SynthesisChain, error) {
	if len(configs) == 0 {
		return nil, ErrNoProviders
	}
	providers := make([]*synthesisProvider, 0, len(configs))
	for _, cfg := range configs {
		client, err := llm.NewSynthesisClient(cfg)
		if err != nil {
			return nil, fmt.Errorf("fallback: synthesis provider %q: %w", cfg.Name, err)
		}
		providers = append(providers, &synthesisProvider{
			cfg:     cfg,
			client:  client,
			breaker: newBreaker(),
		})
	}
	return &SynthesisChain{providers: providers}, nil
}

// Generate tries each provider in order until one succeeds.
func (c *SynthesisChain) Generate(ctx context.Context, prompt string, params llm.GenerationParams) (*SynthesisResult, error) {
	result := &SynthesisResult{}
	chainErr := &ChainError{Attempts: make(map[string]string)}

	for _, p := range c.providers {
		if !p.breaker.allow() {
			slog.Debug("Skipping synthesis provider, breaker open", "provider", p.cfg.Name)
			chainErr.Attempts[p.cfg.Name] = "circuit breaker open"
			continue
		}
		result.Attempts++

		callCtx, cancel := context.WithTimeout(ctx, p.timeout())
		text, err := p.client.Generate(callCtx, prompt, params)
		cancel()

		if err != nil {
			p.breaker.recordFailure(err)
			chainErr.Attempts[p.cfg.Name] = err.Error()
			result.FailedProviders = append(result.FailedProviders, p.cfg.Name)
			slog.Warn("Synthesis provider failed, advancing chain",
				"provider", p.cfg.Name, "error", err)
			continue
		}

		p.breaker.recordSuccess()
		result.Text = text
		result.Provider = p.cfg.Name
		return result, nil
	}

	return nil, chainErr
}

// Health returns a snapshot of every provider's breaker state.
func (c *SynthesisChain) Health() []ProviderHealth {
	out := make([]ProviderHealth, 0, len(c.providers))
	for i, p := range c.providers {
		out = append(out, p.breaker.snapshot(fmt.Sprintf("synthesis-%d", i), p.cfg.Name))
	}
	return out
}

// Reset forces every breaker closed. Used on deploy when providers are
// known to have been restarted.
func (c *SynthesisChain) Reset() {
	for _, p := range c.providers {
		p.breaker.reset()
	}
}

func (p *synthesisProvider) timeout() time.Duration {
	if p.cfg.Timeout > 0 {
		return p.cfg.Timeout
	}
	return 60 * time.Second
}
