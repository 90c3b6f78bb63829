// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSortMatches_ScoreDescending(t *testing.T) {
	matches := []SemanticMatch{
		{ID: "a", Score: 0.5, Source: "b.go"},
		{ID: "b", Score: 0.9, Source: "a.go"},
		{ID: "c", Score: 0.7, Source: "c.go"},
	}
	SortMatches(matches)

	assert.Equal(t, "b", matches[0].ID)
	assert.Equal(t, "c", matches[1].ID)
	assert.Equal(t, "a", matches[2].ID)
}

func TestSortMatches_TiebreakSourceThenID(t *testing.T) {
	matches := []SemanticMatch{
		{ID: "z", Score: 0.5, Source: "pkg/b.go"},
		{ID: "a", Score: 0.5, Source: "pkg/a.go"},
		{ID: "b", Score: 0.5, Source: "pkg/a.go"},
	}
	SortMatches(matches)

	require.Equal(t, "pkg/a.go", matches[0].Source)
	assert.Equal(t, "a", matches[0].ID)
	assert.Equal(t, "b", matches[1].ID)
	assert.Equal(t, "pkg/b.go", matches[2].Source)
}

func TestSortMatches_InputOrderDoesNotLeak(t *testing.T) {
	build := func(order []int) []SemanticMatch {
		base := []SemanticMatch{
			{ID: "1", Score: 0.3, Source: "x.go"},
			{ID: "2", Score: 0.8, Source: "y.go"},
			{ID: "3", Score: 0.8, Source: "a.go"},
		}
		out := make([]SemanticMatch, 0, len(base))
		for _, i := range order {
			out = append(out, base[i])
		}
		return out
	}

	first := build([]int{0, 1, 2})
	second := build([]int{2, 0, 1})
	SortMatches(first)
	SortMatches(second)
	assert.Equal(t, first, second)
}

func TestSortRelationships_ScoreThenSourceThenID(t *testing.T) {
	rels := []StructuralRelationship{
		{ID: "x", Score: 0.5, Source: "B"},
		{ID: "y", Score: 1.0, Source: "A"},
		{ID: "a", Score: 0.5, Source: "B"},
	}
	SortRelationships(rels)

	assert.Equal(t, "y", rels[0].ID)
	assert.Equal(t, "a", rels[1].ID)
	assert.Equal(t, "x", rels[2].ID)
}

func TestHashQuery_StableAndOpaque(t *testing.T) {
	h1 := HashQuery("where is the auth middleware")
	h2 := HashQuery("where is the auth middleware")
	h3 := HashQuery("where is the auth middleware?")

	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
	assert.Len(t, h1, 32)
	assert.NotContains(t, h1, "auth")
}
