// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// OpenAICompatibleClient talks to OpenAI or any server implementing the
// same chat-completions and embeddings contract. Implements both
// SynthesisClient and EmbeddingClient.
type OpenAICompatibleClient struct {
	client *openai.Client
	model  string
	name   string
}

// headerTransport injects static extra headers on every request.
type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	return t.base.RoundTrip(req)
}

// NewOpenAICompatibleClient builds a client for one provider config.
func NewOpenAICompatibleClient(cfg ProviderConfig) (*OpenAICompatibleClient, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("provider %q: model is required", cfg.Name)
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	httpClient := &http.Client{Timeout: timeout}
	if len(cfg.Headers) > 0 {
		httpClient.Transport = &headerTransport{base: http.DefaultTransport, headers: cfg.Headers}
	}
	clientCfg.HTTPClient = httpClient

	slog.Info("Initializing OpenAI-compatible client", "provider", cfg.Name, "model", cfg.Model)
	return &OpenAICompatibleClient{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		name:   cfg.Name,
	}, nil
}

// Generate implements the SynthesisClient interface.
func (o *OpenAICompatibleClient) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	if params.Temperature != nil {
		req.Temperature = *params.Temperature
	}
	if params.MaxTokens != nil {
		req.MaxCompletionTokens = *params.MaxTokens
	}
	if params.TopP != nil {
		req.TopP = *params.TopP
	}
	if len(params.Stop) > 0 {
		req.Stop = params.Stop
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("provider %q chat completion failed: %w", o.name, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("provider %q returned no choices", o.name)
	}
	return resp.Choices[0].Message.Content, nil
}

// Embed implements the EmbeddingClient interface.
func (o *OpenAICompatibleClient) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(o.model),
		Input: []string{text},
	})
	if err != nil {
		return nil, fmt.Errorf("provider %q embedding failed: %w", o.name, err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("provider %q returned no embedding data", o.name)
	}
	return resp.Data[0].Embedding, nil
}
