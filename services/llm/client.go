// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llm provides the provider clients used by the gateway's
// fallback chains: OpenAI-compatible, Anthropic-compatible, and local
// llama.cpp-style HTTP servers.
//
// Clients implement one or both capability interfaces. Synthesis and
// embedding are deliberately separate: an Anthropic-compatible endpoint
// has no embeddings API, and an embedding-only local server has no chat
// endpoint. The fallback package composes clients into ordered chains.
package llm

import (
	"context"
	"fmt"
	"time"
)

// GenerationParams are the optional sampling parameters for synthesis.
type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopK        *int     `json:"top_k"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`
}

// SynthesisClient generates text from a prompt.
type SynthesisClient interface {
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)
}

// EmbeddingClient produces a dense vector for a text.
type EmbeddingClient interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ProviderType selects the wire protocol a provider speaks.
type ProviderType string

const (
	// ProviderOpenAICompatible covers OpenAI itself and any server that
	// implements the /v1/chat/completions and /v1/embeddings contract
	// (vLLM, LiteLLM, Ollama's OpenAI facade, ...).
	ProviderOpenAICompatible ProviderType = "openai-compatible"

	// ProviderAnthropicCompatible covers the Anthropic /v1/messages
	// contract. Synthesis only.
	ProviderAnthropicCompatible ProviderType = "anthropic-compatible"

	// ProviderLocal covers a llama.cpp-style server exposing /completion
	// and /embedding.
	ProviderLocal ProviderType = "local"
)

// ProviderConfig describes one provider in a chain.
type ProviderConfig struct {
	// Name identifies the provider in health records and warnings.
	Name string

	// Type selects the client implementation.
	Type ProviderType

	// BaseURL is the provider endpoint. Required for anthropic-compatible
	// and local; optional for openai-compatible (defaults to api.openai.com).
	BaseURL string

	// Model is the model id sent on every request.
	Model string

	// APIKey authenticates the provider, if it requires one.
	APIKey string

	// Timeout is the per-call deadline for this provider.
	Timeout time.Duration

	// Headers are extra headers attached to every request.
	Headers map[string]string

	// Dimensions is the expected embedding width. Zero for synthesis-only
	// providers.
	Dimensions int
}

// NewSynthesisClient builds the synthesis client for a provider config.
func NewSynthesisClient(cfg ProviderConfig) (SynthesisClient, error) {
	switch cfg.Type {
	case ProviderOpenAICompatible:
		return NewOpenAICompatibleClient(cfg)
	case ProviderAnthropicCompatible:
		return NewAnthropicCompatibleClient(cfg)
	case ProviderLocal:
		return NewLocalClient(cfg)
	default:
		return nil, fmt.Errorf("unknown provider type %q for provider %q", cfg.Type, cfg.Name)
	}
}

// NewEmbeddingClient builds the embedding client for a provider config.
// Anthropic-compatible providers have no embeddings API and are rejected.
func NewEmbeddingClient(cfg ProviderConfig) (EmbeddingClient, error) {
	switch cfg.Type {
	case ProviderOpenAICompatible:
		return NewOpenAICompatibleClient(cfg)
	case ProviderLocal:
		return NewLocalClient(cfg)
	case ProviderAnthropicCompatible:
		return nil, fmt.Errorf("provider %q: anthropic-compatible endpoints do not serve embeddings", cfg.Name)
	default:
		return nil, fmt.Errorf("unknown provider type %q for provider %q", cfg.Type, cfg.Name)
	}
}
