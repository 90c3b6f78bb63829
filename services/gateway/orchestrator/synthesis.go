// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package orchestrator

import (
	"fmt"
	"strings"

	"github.com/AleutianAI/AleutianInsight/services/gateway/datatypes"
	"github.com/AleutianAI/AleutianInsight/services/llm"
)

// Evidence caps for prompt construction. Keeps prompts inside modest
// local-model context windows.
const (
	promptMaxMatches       = 8
	promptMaxRelationships = 15
	promptMaxSnippetRunes  = 1500
)

// synthesisParams are the fixed generation settings for answer
// synthesis. Low temperature: the answer must stay grounded in evidence.
func synthesisParams() llm.GenerationParams {
	temp := float32(0.2)
	maxTokens := 1024
	return llm.GenerationParams{
		Temperature: &temp,
		MaxTokens:   &maxTokens,
	}
}

// buildPrompt renders the evidence into a grounded-answer prompt. The
// instruction requires the model to reference sources by path so that
// extractCitations can recover them afterwards.
func buildPrompt(query string, matches []datatypes.SemanticMatch, rels []datatypes.StructuralRelationship) string {
	var b strings.Builder
	b.WriteString("You are a codebase assistant. Answer the question using ONLY the evidence below.\n")
	b.WriteString("Reference evidence by its source path (e.g. `src/auth/service.py`) wherever you rely on it.\n")
	b.WriteString("If the evidence does not answer the question, say so.\n\n")
	b.WriteString("Question: ")
	b.WriteString(query)
	b.WriteString("\n\n")

	if len(matches) > 0 {
		b.WriteString("## Code evidence\n\n")
		for i, m := range matches {
			if i >= promptMaxMatches {
				break
			}
			fmt.Fprintf(&b, "### %s", m.Source)
			if m.LineRange != nil {
				fmt.Fprintf(&b, " (lines %d-%d)", m.LineRange.Start, m.LineRange.End)
			}
			b.WriteString("\n```")
			b.WriteString(m.Language)
			b.WriteString("\n")
			b.WriteString(truncateRunes(m.Content, promptMaxSnippetRunes))
			b.WriteString("\n```\n\n")
		}
	}

	if len(rels) > 0 {
		b.WriteString("## Relationship evidence\n\n")
		for i, r := range rels {
			if i >= promptMaxRelationships {
				break
			}
			fmt.Fprintf(&b, "- %s\n", strings.Join(r.Path, " "))
		}
		b.WriteString("\n")
	}

	b.WriteString("Answer in markdown:\n")
	return b.String()
}

// extractCitations recovers citations from the generated markdown by
// matching evidence sources against the text. A citation always maps
// onto a returned match or relationship; sources the model mentions that
// are not in the evidence set are dropped, so synthesis cannot invent
// sources.
func extractCitations(markdown string, matches []datatypes.SemanticMatch, rels []datatypes.StructuralRelationship) []datatypes.Citation {
	var citations []datatypes.Citation
	seen := make(map[string]struct{})

	// matches and rels arrive pre-sorted, so citation order is stable.
	for _, m := range matches {
		if m.Source == "" || !strings.Contains(markdown, m.Source) {
			continue
		}
		if _, dup := seen[m.Source]; dup {
			continue
		}
		seen[m.Source] = struct{}{}
		citations = append(citations, datatypes.Citation{
			Source:    m.Source,
			LineRange: m.LineRange,
			Relevance: m.Score,
			Kind:      m.Kind,
		})
	}

	for _, r := range rels {
		for _, entity := range []string{r.Source, r.Target} {
			if entity == "" || !strings.Contains(markdown, entity) {
				continue
			}
			if _, dup := seen[entity]; dup {
				continue
			}
			seen[entity] = struct{}{}
			citations = append(citations, datatypes.Citation{
				Source:    entity,
				Relevance: r.Score,
				Kind:      datatypes.KindCode,
			})
		}
	}

	return citations
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "…"
}
