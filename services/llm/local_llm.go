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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// LocalClient talks to a llama.cpp-style HTTP server: /completion for
// text generation and /embedding for vectors. Implements both
// SynthesisClient and EmbeddingClient.
type LocalClient struct {
	httpClient *http.Client
	baseURL    string
	name       string
}

type localCompletionPayload struct {
	Prompt      string   `json:"prompt"`
	NPredict    int      `json:"n_predict"`
	Temperature *float32 `json:"temperature,omitempty"`
	TopK        *int     `json:"top_k,omitempty"`
	TopP        *float32 `json:"top_p,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

type localCompletionResponse struct {
	Content string `json:"content"`
}

type localEmbeddingPayload struct {
	Content string `json:"content"`
}

type localEmbeddingResponse struct {
	Embedding []float32 `json:"embedding"`
}

// NewLocalClient builds a client for one provider config.
func NewLocalClient(cfg ProviderConfig) (*LocalClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("provider %q: base URL is required for local providers", cfg.Name)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &LocalClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		name:       cfg.Name,
	}, nil
}

// Generate implements the SynthesisClient interface.
func (l *LocalClient) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	payload := localCompletionPayload{Prompt: prompt, NPredict: 512}
	if params.MaxTokens != nil {
		payload.NPredict = *params.MaxTokens
	}
	payload.Temperature = params.Temperature
	payload.TopK = params.TopK
	payload.TopP = params.TopP
	payload.Stop = params.Stop

	var out localCompletionResponse
	if err := l.post(ctx, "/completion", payload, &out); err != nil {
		return "", err
	}
	return out.Content, nil
}

// Embed implements the EmbeddingClient interface.
func (l *LocalClient) Embed(ctx context.Context, text string) ([]float32, error) {
	var out localEmbeddingResponse
	if err := l.post(ctx, "/embedding", localEmbeddingPayload{Content: text}, &out); err != nil {
		return nil, err
	}
	if len(out.Embedding) == 0 {
		return nil, fmt.Errorf("provider %q returned an empty embedding", l.name)
	}
	return out.Embedding, nil
}

func (l *LocalClient) post(ctx context.Context, path string, payload, out any) error {
	reqBodyBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal the payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		l.baseURL+path, bytes.NewBuffer(reqBodyBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("provider %q request failed: %w", l.name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("provider %q: failed to read response: %w", l.name, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("provider %q returned status %d: %s", l.name, resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("provider %q: failed to parse response: %w", l.name, err)
	}
	return nil
}
