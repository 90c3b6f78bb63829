// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateQuestions_RoundOneAsksAspectAndScope(t *testing.T) {
	qs := GenerateQuestions("How does it work?", Ambiguous, 1, map[string]string{})

	require.Len(t, qs, 2)
	assert.Equal(t, questionAspect, qs[0].ID)
	assert.Equal(t, questionScope, qs[1].ID)
	assert.True(t, qs[0].Required)
	assert.NotEmpty(t, qs[0].Options)
}

func TestGenerateQuestions_RequiresContextAddsGoal(t *testing.T) {
	qs := GenerateQuestions("", RequiresContext, 1, map[string]string{})

	ids := make([]string, 0, len(qs))
	for _, q := range qs {
		ids = append(ids, q.ID)
	}
	assert.Contains(t, ids, questionGoal)
}

func TestGenerateQuestions_Deterministic(t *testing.T) {
	collected := map[string]string{questionScope: scopeSpecificComponent}
	first := GenerateQuestions("How does it work?", Ambiguous, 2, collected)
	second := GenerateQuestions("How does it work?", Ambiguous, 2, collected)
	assert.Equal(t, first, second)
}

func TestGenerateQuestions_SuppressesAnsweredIDs(t *testing.T) {
	collected := map[string]string{questionAspect: "Code implementation"}
	qs := GenerateQuestions("How does it work?", Ambiguous, 1, collected)

	for _, q := range qs {
		assert.NotEqual(t, questionAspect, q.ID)
	}
}

func TestGenerateQuestions_RoundTwoConditionsOnScope(t *testing.T) {
	collected := map[string]string{
		questionAspect: "Code implementation",
		questionScope:  scopeSpecificComponent,
		questionGoal:   "Fix a bug",
	}
	qs := GenerateQuestions("How does it work?", Ambiguous, 2, collected)

	require.NotEmpty(t, qs)
	assert.Equal(t, questionComponent, qs[0].ID)
	assert.True(t, qs[0].Required)
	assert.Empty(t, qs[0].Options) // free text
}

func TestGenerateQuestions_RoundThreeCatchAll(t *testing.T) {
	qs := GenerateQuestions("How does it work?", Ambiguous, 3, map[string]string{})
	require.Len(t, qs, 1)
	assert.Equal(t, questionDetails, qs[0].ID)
	assert.Empty(t, qs[0].Options)

	// Once answered, the catch-all is suppressed too.
	none := GenerateQuestions("How does it work?", Ambiguous, 3,
		map[string]string{questionDetails: "nothing else"})
	assert.Empty(t, none)
}

func TestEnrichQuery_AppendsContextClauses(t *testing.T) {
	enriched := EnrichQuery("How does it work?", map[string]string{
		questionAspect: "Code implementation",
		questionScope:  "Entire system",
		questionGoal:   "Understand existing behavior",
	})

	assert.Contains(t, enriched, "How does it work?")
	assert.Contains(t, enriched, "Focus: Code implementation")
	assert.Contains(t, enriched, "Scope: Entire system")
	assert.Contains(t, enriched, "Goal: Understand existing behavior")
}

func TestEnrichQuery_EmptyContextLeavesOriginal(t *testing.T) {
	assert.Equal(t, "How does it work?", EnrichQuery("How does it work?", nil))
}
