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
	"strings"

	"github.com/AleutianAI/AleutianInsight/services/gateway/datatypes"
)

// Stable question ids. An id already keyed in collectedContext is never
// asked again within a conversation.
const (
	questionAspect    = "aspect"
	questionScope     = "scope"
	questionGoal      = "goal"
	questionComponent = "component"
	questionRelation  = "relation"
	questionDetails   = "details"
)

const scopeSpecificComponent = "A specific component"

// GenerateQuestions produces the clarification set for one round. It is
// a pure function of (query, classification, round, collectedContext):
// the same inputs always yield the same questions in the same order.
func GenerateQuestions(query string, classification Classification, round int, collected map[string]string) []datatypes.ClarificationQuestion {
	var candidates []datatypes.ClarificationQuestion

	switch round {
	case 1:
		candidates = roundOneQuestions(query, classification)
	case 2:
		candidates = roundTwoQuestions(collected)
	default:
		candidates = roundThreeQuestions()
	}

	out := make([]datatypes.ClarificationQuestion, 0, len(candidates))
	for _, q := range candidates {
		if _, answered := collected[q.ID]; answered {
			continue
		}
		out = append(out, q)
	}
	return out
}

// roundOneQuestions asks the broad aspect/scope/goal questions. The goal
// question is only posed when the detector could not classify the query
// at all, keeping the common first round to two questions.
func roundOneQuestions(query string, classification Classification) []datatypes.ClarificationQuestion {
	questions := []datatypes.ClarificationQuestion{
		{
			ID:       questionAspect,
			Question: "Which aspect are you asking about?",
			Options: []string{
				"Code implementation",
				"Architecture and design",
				"Where something is located",
				"How components relate",
			},
			Required: true,
		},
		{
			ID:       questionScope,
			Question: "What is the scope of your question?",
			Options: []string{
				"Entire system",
				scopeSpecificComponent,
				"A specific file or function",
			},
			Required: true,
		},
	}
	if classification == RequiresContext || strings.TrimSpace(query) == "" {
		questions = append(questions, datatypes.ClarificationQuestion{
			ID:       questionGoal,
			Question: "What are you trying to accomplish?",
			Options: []string{
				"Understand existing behavior",
				"Fix a bug",
				"Add a feature",
				"Review or document",
			},
			Required: false,
		})
	}
	return questions
}

// roundTwoQuestions conditions follow-ups on the first round's answers.
func roundTwoQuestions(collected map[string]string) []datatypes.ClarificationQuestion {
	var questions []datatypes.ClarificationQuestion

	if collected[questionScope] == scopeSpecificComponent {
		questions = append(questions, datatypes.ClarificationQuestion{
			ID:       questionComponent,
			Question: "Which component? Name the class, module, or service.",
			Required: true,
		})
	}

	if strings.Contains(collected[questionAspect], "relate") {
		questions = append(questions, datatypes.ClarificationQuestion{
			ID:       questionRelation,
			Question: "Which relationship matters most?",
			Options: []string{
				"What it calls",
				"What calls it",
				"What it depends on",
				"What contains it",
			},
			Required: false,
		})
	}

	if _, ok := collected[questionGoal]; !ok {
		questions = append(questions, datatypes.ClarificationQuestion{
			ID:       questionGoal,
			Question: "What are you trying to accomplish?",
			Required: false,
		})
	}
	return questions
}

// roundThreeQuestions is the catch-all final round: one free-text
// question. GenerateQuestions suppresses it too once answered.
func roundThreeQuestions() []datatypes.ClarificationQuestion {
	return []datatypes.ClarificationQuestion{
		{
			ID:       questionDetails,
			Question: "Anything else that would narrow this down? (free text)",
			Required: false,
		},
	}
}

// EnrichQuery appends the collected context to the original query as
// Focus/Scope/Goal clauses. The enriched text is what the orchestrator
// executes in one-shot mode.
func EnrichQuery(original string, collected map[string]string) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(original))

	appendClause := func(label, id string) {
		if v, ok := collected[id]; ok && strings.TrimSpace(v) != "" {
			b.WriteString(". ")
			b.WriteString(label)
			b.WriteString(": ")
			b.WriteString(strings.TrimSpace(v))
		}
	}

	appendClause("Focus", questionAspect)
	appendClause("Focus", questionComponent)
	appendClause("Scope", questionScope)
	appendClause("Goal", questionGoal)
	appendClause("Goal", questionDetails)
	if v, ok := collected[questionRelation]; ok && strings.TrimSpace(v) != "" {
		b.WriteString(". Focus: ")
		b.WriteString(strings.TrimSpace(v))
	}
	return b.String()
}
