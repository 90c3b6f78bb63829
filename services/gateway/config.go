// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package gateway

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianInsight/services/llm"
)

// Config is the gateway's full configuration, read from the environment
// at construction.
type Config struct {
	Port    int
	Version string

	// APIKey enables edge auth when non-empty. Production refuses to
	// start without one.
	APIKey     string
	Production bool

	VectorURL        string
	VectorAPIKey     string
	VectorCollection string
	// EmbeddingDimensions is the chain-target width; it must match the
	// vector collection.
	EmbeddingDimensions int

	GraphURI      string
	GraphUser     string
	GraphPassword string
	GraphDatabase string

	KVHost     string
	KVPort     int
	KVPassword string

	EmbeddingProviders []llm.ProviderConfig
	SynthesisProviders []llm.ProviderConfig

	QueryRateLimit        int
	ConversationRateLimit int
	RateLimitWindow       time.Duration

	// ProjectOverrides supplements GET /projects for air-gapped
	// deployments where the vector backend has no facet data.
	ProjectOverrides []string

	ConfidenceConfigPath string

	OTLPEndpoint string
}

// ConfigFromEnv reads the configuration from the environment and applies
// defaults.
func ConfigFromEnv() (Config, error) {
	cfg := Config{
		Port:                  envInt("PORT", 12310),
		Version:               envString("SERVICE_VERSION", "dev"),
		APIKey:                os.Getenv("API_KEY"),
		Production:            os.Getenv("NODE_ENV") == "production",
		VectorURL:             envString("VECTOR_URL", "http://localhost:6333"),
		VectorAPIKey:          os.Getenv("VECTOR_API_KEY"),
		VectorCollection:      envString("VECTOR_COLLECTION", "codebase"),
		EmbeddingDimensions:   envInt("EMBEDDING_DIMENSIONS", 768),
		GraphURI:              envString("GRAPH_URI", "bolt://localhost:7687"),
		GraphUser:             envString("GRAPH_USER", "neo4j"),
		GraphPassword:         os.Getenv("GRAPH_PASSWORD"),
		GraphDatabase:         os.Getenv("GRAPH_DATABASE"),
		KVHost:                envString("KV_HOST", "localhost"),
		KVPort:                envInt("KV_PORT", 6379),
		KVPassword:            os.Getenv("KV_PASSWORD"),
		QueryRateLimit:        envInt("RATE_LIMIT_MAX_REQUESTS", 100),
		ConversationRateLimit: envInt("RATE_LIMIT_CONVERSATION_MAX_REQUESTS", 50),
		RateLimitWindow:       time.Duration(envInt("RATE_LIMIT_WINDOW_MS", 60_000)) * time.Millisecond,
		ConfidenceConfigPath:  envString("CONFIDENCE_CONFIG_PATH", "confidence_config.json"),
		OTLPEndpoint:          os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if projects := os.Getenv("PROJECTS"); projects != "" {
		for _, p := range strings.Split(projects, ",") {
			if p = strings.TrimSpace(p); p != "" {
				cfg.ProjectOverrides = append(cfg.ProjectOverrides, p)
			}
		}
	}

	var err error
	cfg.EmbeddingProviders, err = providersFromEnv("EMBEDDING")
	if err != nil {
		return Config{}, err
	}
	cfg.SynthesisProviders, err = providersFromEnv("SYNTHESIS")
	if err != nil {
		return Config{}, err
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Production && c.APIKey == "" {
		return fmt.Errorf("gateway: API_KEY is required in production")
	}
	if c.EmbeddingDimensions <= 0 {
		return fmt.Errorf("gateway: EMBEDDING_DIMENSIONS must be positive")
	}
	for _, p := range c.EmbeddingProviders {
		if p.Dimensions != 0 && p.Dimensions != c.EmbeddingDimensions {
			return fmt.Errorf("gateway: embedding provider %q advertises %d dimensions, vector backend expects %d",
				p.Name, p.Dimensions, c.EmbeddingDimensions)
		}
	}
	return nil
}

// providersFromEnv builds an ordered provider chain for the given role
// ("EMBEDDING" or "SYNTHESIS").
//
// The chain is listed in <ROLE>_PROVIDERS as comma-separated names; each
// name X reads X_TYPE, X_URL, X_MODEL, X_API_KEY, X_TIMEOUT_MS and (for
// embedding) X_DIMENSIONS. The legacy single-provider form
// (<ROLE>_PROVIDER_TYPE / _URL / _MODEL / ...) is accepted as a chain of
// one.
func providersFromEnv(role string) ([]llm.ProviderConfig, error) {
	names := os.Getenv(role + "_PROVIDERS")
	if names == "" {
		return legacyProviderFromEnv(role)
	}

	var configs []llm.ProviderConfig
	for _, raw := range strings.Split(names, ",") {
		name := strings.TrimSpace(raw)
		if name == "" {
			continue
		}
		prefix := strings.ToUpper(name) + "_"
		cfg := llm.ProviderConfig{
			Name:       name,
			Type:       llm.ProviderType(envString(prefix+"TYPE", string(llm.ProviderOpenAICompatible))),
			BaseURL:    os.Getenv(prefix + "URL"),
			Model:      os.Getenv(prefix + "MODEL"),
			APIKey:     os.Getenv(prefix + "API_KEY"),
			Timeout:    time.Duration(envInt(prefix+"TIMEOUT_MS", 0)) * time.Millisecond,
			Dimensions: envInt(prefix+"DIMENSIONS", 0),
		}
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("gateway: provider %q listed in %s_PROVIDERS but %sURL is unset", name, role, prefix)
		}
		configs = append(configs, cfg)
	}
	return configs, nil
}

// legacyProviderFromEnv reads the old single-provider variables. An
// unset URL means no chain is configured for this role.
func legacyProviderFromEnv(role string) ([]llm.ProviderConfig, error) {
	url := os.Getenv(role + "_PROVIDER_URL")
	if url == "" {
		return nil, nil
	}
	return []llm.ProviderConfig{{
		Name:       strings.ToLower(role) + "-default",
		Type:       llm.ProviderType(envString(role+"_PROVIDER_TYPE", string(llm.ProviderOpenAICompatible))),
		BaseURL:    url,
		Model:      os.Getenv(role + "_PROVIDER_MODEL"),
		APIKey:     os.Getenv(role + "_PROVIDER_API_KEY"),
		Timeout:    time.Duration(envInt(role+"_PROVIDER_TIMEOUT_MS", 0)) * time.Millisecond,
		Dimensions: envInt(role+"_PROVIDER_DIMENSIONS", 0),
	}}, nil
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
