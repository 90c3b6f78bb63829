// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package search provides the Qdrant-backed semantic search adapter.
//
// Two historical indexers populated the collection with different payload
// schemas. The adapter detects which schema a point carries by its
// discriminator fields and converts both to datatypes.SemanticMatch, so
// nothing outside this package ever sees a raw payload.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"golang.org/x/sync/singleflight"

	"github.com/AleutianAI/AleutianInsight/services/gateway/datatypes"
)

// Config holds the connection settings for Qdrant.
type Config struct {
	URL        string // "http://localhost:6333" or "https://xyz.cloud.qdrant.io:6333"
	APIKey     string
	Collection string
	Dims       uint64
}

// QdrantIndex is the vector backend adapter. It implements the
// orchestrator's SemanticSearcher capability.
type QdrantIndex struct {
	client     *qdrant.Client
	collection string
	dims       uint64
	logger     *slog.Logger

	healthGroup singleflight.Group
	healthErr   atomic.Value // stores *error; inner error may be nil
	healthAt    atomic.Int64 // unix nanos of last check
}

// parseURL extracts host, port, and TLS flag from a Qdrant URL.
// Accepts forms like "https://host:6333", "http://host:6333", or "host:6334".
func parseURL(rawURL string) (host string, port int, useTLS bool, err error) {
	u, parseErr := url.Parse(rawURL)
	if parseErr != nil || u.Host == "" {
		return "", 0, false, fmt.Errorf("search: invalid qdrant URL: %q", rawURL)
	}

	useTLS = u.Scheme == "https"
	host = u.Hostname()

	if portStr := u.Port(); portStr != "" {
		p, err := strconv.Atoi(portStr)
		if err != nil {
			return "", 0, false, fmt.Errorf("search: invalid port in qdrant URL: %q", portStr)
		}
		// REST port 6333 implies gRPC port 6334.
		if p == 6333 {
			port = 6334
		} else {
			port = p
		}
	} else {
		port = 6334
	}

	return host, port, useTLS, nil
}

// NewQdrantIndex connects to the Qdrant server via gRPC.
func NewQdrantIndex(cfg Config, logger *slog.Logger) (*QdrantIndex, error) {
	host, port, useTLS, err := parseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("search: connect to qdrant at %s:%d: %w", host, port, err)
	}

	return &QdrantIndex{
		client:     client,
		collection: cfg.Collection,
		dims:       cfg.Dims,
		logger:     logger,
	}, nil
}

// Dimensions returns the vector width the collection was created with.
// The embedding chain target must equal this; startup fails otherwise.
func (q *QdrantIndex) Dimensions() int { return int(q.dims) }

// Search queries the collection for snippets similar to the embedding.
// project, when non-empty, restricts to points with a matching project
// payload field. Results are returned unsorted; the orchestrator applies
// the deterministic ordering.
func (q *QdrantIndex) Search(ctx context.Context, embedding []float32, project string, limit int) ([]datatypes.SemanticMatch, error) {
	if limit <= 0 {
		limit = 10
	}

	var filter *qdrant.Filter
	if project != "" {
		filter = &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch("project", project)},
		}
	}

	fetchLimit := uint64(limit)
	scored, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQueryDense(embedding),
		Filter:         filter,
		Limit:          &fetchLimit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("search: qdrant query: %w", err)
	}

	matches := make([]datatypes.SemanticMatch, 0, len(scored))
	for _, sp := range scored {
		match, ok := q.toMatch(sp)
		if !ok {
			continue
		}
		matches = append(matches, match)
	}
	return matches, nil
}

// toMatch normalizes one scored point into a SemanticMatch, accepting
// both indexer payload schemas.
func (q *QdrantIndex) toMatch(sp *qdrant.ScoredPoint) (datatypes.SemanticMatch, bool) {
	payload := payloadToMap(sp.Payload)

	match, ok := normalizePayload(payload)
	if !ok {
		q.logger.Warn("qdrant: point payload matches no known schema, skipping",
			"id", sp.Id.GetUuid())
		return datatypes.SemanticMatch{}, false
	}

	match.ID = sp.Id.GetUuid()
	if match.ID == "" {
		match.ID = strconv.FormatUint(sp.Id.GetNum(), 10)
	}
	match.Score = clamp01(float64(sp.Score))
	return match, true
}

// normalizePayload converts either indexer schema to the internal shape.
//
// Schema A (current indexer) discriminates on "file_path":
//
//	{content, file_path, chunk_type, language, start_line, end_line, project}
//
// Schema B (legacy indexer) discriminates on "source":
//
//	{text, source, kind, lang, lines: "12-40", project}
func normalizePayload(payload map[string]any) (datatypes.SemanticMatch, bool) {
	if _, ok := payload["file_path"]; ok {
		match := datatypes.SemanticMatch{
			Content:  asString(payload["content"]),
			Source:   asString(payload["file_path"]),
			Kind:     normalizeKind(asString(payload["chunk_type"])),
			Language: asString(payload["language"]),
		}
		start, okStart := asInt(payload["start_line"])
		end, okEnd := asInt(payload["end_line"])
		if okStart && okEnd && start > 0 {
			match.LineRange = &datatypes.LineRange{Start: start, End: end}
		}
		return match, true
	}

	if _, ok := payload["source"]; ok {
		match := datatypes.SemanticMatch{
			Content:  asString(payload["text"]),
			Source:   asString(payload["source"]),
			Kind:     normalizeKind(asString(payload["kind"])),
			Language: asString(payload["lang"]),
		}
		if lines := asString(payload["lines"]); lines != "" {
			if start, end, ok := parseLineSpan(lines); ok {
				match.LineRange = &datatypes.LineRange{Start: start, End: end}
			}
		}
		return match, true
	}

	return datatypes.SemanticMatch{}, false
}

// normalizeKind maps the indexers' kind vocabulary onto the response
// vocabulary. Unknown kinds default to code, the dominant content type.
func normalizeKind(raw string) datatypes.ContentKind {
	switch strings.ToLower(raw) {
	case "document", "doc", "markdown", "readme":
		return datatypes.KindDocument
	case "comment", "docstring":
		return datatypes.KindComment
	default:
		return datatypes.KindCode
	}
}

// parseLineSpan parses the legacy "12-40" span format.
func parseLineSpan(s string) (start, end int, ok bool) {
	parts := strings.SplitN(s, "-", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	start, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	end, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err1 != nil || err2 != nil || start <= 0 || end < start {
		return 0, 0, false
	}
	return start, end, true
}

// Projects lists the distinct project payload values in the collection.
// Backing for GET /projects.
func (q *QdrantIndex) Projects(ctx context.Context) ([]string, error) {
	limit := uint64(1000)
	resp, err := q.client.Facet(ctx, &qdrant.FacetCounts{
		CollectionName: q.collection,
		Key:            "project",
		Limit:          &limit,
	})
	if err != nil {
		return nil, fmt.Errorf("search: qdrant facet query: %w", err)
	}

	projects := make([]string, 0, len(resp))
	for _, hit := range resp {
		if v := hit.GetValue().GetStringValue(); v != "" {
			projects = append(projects, v)
		}
	}
	return projects, nil
}

// Ping returns nil if Qdrant is reachable. Results are cached for 5
// seconds; concurrent callers after expiry are deduplicated through
// singleflight so only one gRPC health check is in flight at a time.
func (q *QdrantIndex) Ping(ctx context.Context) error {
	if time.Since(time.Unix(0, q.healthAt.Load())) < 5*time.Second {
		return q.loadHealthErr()
	}

	// context.Background() rather than the caller's ctx: singleflight
	// reuses the first caller's context, and a cancelled first caller
	// would poison every waiter with a stale error.
	result, _, _ := q.healthGroup.Do("health", func() (any, error) {
		checkCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		_, err := q.client.HealthCheck(checkCtx)
		if err != nil {
			q.storeHealthErr(fmt.Errorf("search: qdrant unhealthy: %w", err))
		} else {
			q.storeHealthErr(nil)
		}
		q.healthAt.Store(time.Now().UnixNano())
		return q.loadHealthErr(), nil
	})
	if result == nil {
		return nil
	}
	return result.(error)
}

func (q *QdrantIndex) storeHealthErr(err error) {
	q.healthErr.Store(&err)
}

func (q *QdrantIndex) loadHealthErr() error {
	v := q.healthErr.Load()
	if v == nil {
		return nil
	}
	return *v.(*error)
}

// Close shuts down the Qdrant gRPC connection.
func (q *QdrantIndex) Close() error {
	return q.client.Close()
}

// =============================================================================
// Payload plumbing
// =============================================================================

func payloadToMap(payload map[string]*qdrant.Value) map[string]any {
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		switch kind := v.GetKind().(type) {
		case *qdrant.Value_StringValue:
			out[k] = kind.StringValue
		case *qdrant.Value_IntegerValue:
			out[k] = kind.IntegerValue
		case *qdrant.Value_DoubleValue:
			out[k] = kind.DoubleValue
		case *qdrant.Value_BoolValue:
			out[k] = kind.BoolValue
		}
	}
	return out
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case int:
		return n, true
	}
	return 0, false
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
