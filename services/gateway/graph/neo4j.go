// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph provides the Neo4j-backed structural search adapter.
//
// The knowledge graph holds code entities (classes, functions, modules)
// connected by typed relations (CALLS, IMPORTS, EXTENDS, DEPENDS_ON,
// CONTAINS). The adapter extracts candidate entity names from the query
// text, traverses their neighborhood, and returns normalized triples.
// Whatever shape the graph stores for traversal paths, only the
// normalized `source -[relation]-> target` token list leaves this package.
package graph

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/AleutianAI/AleutianInsight/services/gateway/datatypes"
)

// Config holds the connection settings for Neo4j.
type Config struct {
	URI      string // "bolt://host:7687" or "neo4j://host:7687"
	User     string
	Password string
	Database string // empty uses the server default
}

// Neo4jGraph is the graph backend adapter. It implements the
// orchestrator's StructuralSearcher capability.
type Neo4jGraph struct {
	driver   neo4j.DriverWithContext
	database string
	logger   *slog.Logger
}

// NewNeo4jGraph connects to Neo4j with basic auth.
func NewNeo4jGraph(cfg Config, logger *slog.Logger) (*Neo4jGraph, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.User, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("graph: create neo4j driver for %s: %w", cfg.URI, err)
	}
	return &Neo4jGraph{
		driver:   driver,
		database: cfg.Database,
		logger:   logger,
	}, nil
}

// identTokens matches the identifier-shaped words we treat as candidate
// entity names: CamelCase, snake_case, or dotted module paths.
var identTokens = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*(?:\.[A-Za-z_][A-Za-z0-9_]*)*`)

// stopWords are query words that look like identifiers but never name an
// entity.
var stopWords = map[string]struct{}{
	"what": {}, "which": {}, "where": {}, "who": {}, "how": {}, "why": {},
	"show": {}, "me": {}, "the": {}, "a": {}, "an": {}, "is": {}, "are": {},
	"does": {}, "do": {}, "on": {}, "of": {}, "in": {}, "to": {}, "and": {},
	"or": {}, "depends": {}, "depend": {}, "calls": {}, "call": {}, "uses": {},
	"use": {}, "used": {}, "by": {}, "from": {}, "with": {}, "for": {},
	"class": {}, "function": {}, "module": {}, "file": {}, "this": {},
	"that": {}, "explain": {}, "find": {}, "list": {}, "all": {},
}

// ExtractEntities pulls candidate entity names from free-form query text.
// Mixed-case and underscored tokens are kept as-is; plain lowercase words
// survive only if they are not stop words.
func ExtractEntities(query string) []string {
	seen := make(map[string]struct{})
	var entities []string
	for _, tok := range identTokens.FindAllString(query, -1) {
		lower := strings.ToLower(tok)
		if _, stop := stopWords[lower]; stop {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		entities = append(entities, tok)
	}
	return entities
}

// Search traverses the neighborhood of every entity named in the query
// and returns the relations found, scored by traversal depth (direct
// relations score 1.0, two-hop 0.5). Results are returned unsorted; the
// orchestrator applies the deterministic ordering.
func (g *Neo4jGraph) Search(ctx context.Context, query, project string, limit int) ([]datatypes.StructuralRelationship, error) {
	if limit <= 0 {
		limit = 25
	}
	entities := ExtractEntities(query)
	if len(entities) == 0 {
		return nil, nil
	}

	session := g.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeRead,
		DatabaseName: g.database,
	})
	defer session.Close(ctx)

	cypher := traversalQuery(project)
	params := map[string]any{
		"names": entities,
		"limit": limit,
	}
	if project != "" {
		params["project"] = project
	}

	records, err := neo4j.ExecuteRead(ctx, session,
		func(tx neo4j.ManagedTransaction) ([]*neo4j.Record, error) {
			result, err := tx.Run(ctx, cypher, params)
			if err != nil {
				return nil, err
			}
			return result.Collect(ctx)
		})
	if err != nil {
		return nil, fmt.Errorf("graph: neo4j traversal: %w", err)
	}

	rels := make([]datatypes.StructuralRelationship, 0, len(records))
	for _, record := range records {
		source := recordString(record, "source")
		relation := recordString(record, "relation")
		target := recordString(record, "target")
		if source == "" || relation == "" || target == "" {
			continue
		}
		rels = append(rels, datatypes.StructuralRelationship{
			ID:          fmt.Sprintf("%s|%s|%s", source, relation, target),
			Source:      source,
			Relation:    relation,
			Target:      target,
			Path:        BuildPath(source, relation, target),
			Explanation: recordString(record, "explanation"),
			Score:       directRelationScore(entities, source, target),
		})
	}

	g.logger.Debug("graph: traversal complete",
		"entities", len(entities), "relationships", len(rels))
	return rels, nil
}

// traversalQuery builds the neighborhood traversal. The name disjunction
// is parenthesized so the project scope, when present, binds to both
// branches: Cypher gives AND higher precedence than OR, and an unscoped
// src-side match must not leak relationships from other projects.
func traversalQuery(project string) string {
	cypher := `
		MATCH (src:Entity)-[rel]->(dst:Entity)
		WHERE (src.name IN $names OR dst.name IN $names)
	`
	if project != "" {
		cypher += " AND src.project = $project AND dst.project = $project"
	}
	cypher += `
		RETURN src.name AS source, type(rel) AS relation, dst.name AS target,
		       coalesce(rel.explanation, '') AS explanation
		LIMIT $limit
	`
	return cypher
}

// BuildPath produces the normalized traversal token list:
// entity, -[relation]->, entity.
func BuildPath(source, relation, target string) []string {
	return []string{source, fmt.Sprintf("-[%s]->", relation), target}
}

// directRelationScore scores a relation by whether a queried entity is an
// endpoint (1.0) or merely in the neighborhood (0.5).
func directRelationScore(entities []string, source, target string) float64 {
	for _, e := range entities {
		if e == source || e == target {
			return 1.0
		}
	}
	return 0.5
}

// Ping verifies connectivity with a bounded deadline.
func (g *Neo4jGraph) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := g.driver.VerifyConnectivity(ctx); err != nil {
		return fmt.Errorf("graph: neo4j unreachable: %w", err)
	}
	return nil
}

// Close shuts down the driver and its connection pool.
func (g *Neo4jGraph) Close(ctx context.Context) error {
	return g.driver.Close(ctx)
}

func recordString(record *neo4j.Record, key string) string {
	v, ok := record.Get(key)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}
