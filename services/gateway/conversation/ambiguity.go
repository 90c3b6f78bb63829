// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package conversation implements the clarification controller: ambiguity
// detection, deterministic question generation, and the multi-round state
// machine persisted through the gateway store.
package conversation

import "strings"

// Classification is the ambiguity verdict for a query.
type Classification string

const (
	// Clear queries execute immediately in any mode.
	Clear Classification = "clear"
	// Ambiguous queries divert to clarification in conversational mode.
	Ambiguous Classification = "ambiguous"
	// RequiresContext queries cannot execute meaningfully without answers.
	RequiresContext Classification = "requires-context"
)

// Indicator word classes. Matching is whole-word over the lowercased
// query; each occurrence counts one hit.
var (
	pronounIndicators = []string{
		"it", "its", "they", "them", "their", "that", "this", "these", "those",
	}
	vagueIndicators = []string{
		"something", "stuff", "thing", "things", "somehow", "whatever",
		"somewhere", "anything",
	}
	broadIndicators = []string{
		"all", "everything", "every", "entire", "whole", "any",
	}
)

// clearOpeners are phrasings that signal a well-formed question. They
// raise confidence but never override indicator hits.
var clearOpeners = []string{
	"show me", "what is", "what are", "explain", "where is", "where are",
	"how does", "find", "list", "which",
}

// AmbiguityReport is the detector's full output. Classify returns the
// verdict alone; the report carries what the question generator needs.
type AmbiguityReport struct {
	Classification Classification
	Hits           []string // matched indicator words, query order
	ClearOpener    bool
	Confidence     float64 // detector's own confidence in the verdict
}

// Classify is the common-case shorthand for Analyze(query).Classification.
func Classify(query string) Classification {
	return Analyze(query).Classification
}

// Analyze scans the query for ambiguity indicators.
//
// Zero hits classify clear, one or two ambiguous, three or more
// requires-context. An empty query is requires-context outright.
func Analyze(query string) AmbiguityReport {
	trimmed := strings.TrimSpace(strings.ToLower(query))
	if trimmed == "" {
		return AmbiguityReport{Classification: RequiresContext, Confidence: 1.0}
	}

	words := strings.FieldsFunc(trimmed, func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9') && r != '_'
	})

	var hits []string
	for _, w := range words {
		if isIndicator(w) {
			hits = append(hits, w)
		}
	}

	report := AmbiguityReport{Hits: hits}
	for _, opener := range clearOpeners {
		if strings.HasPrefix(trimmed, opener) {
			report.ClearOpener = true
			break
		}
	}

	switch {
	case len(hits) == 0:
		report.Classification = Clear
		report.Confidence = 0.9
	case len(hits) <= 2:
		report.Classification = Ambiguous
		report.Confidence = 0.7
	default:
		report.Classification = RequiresContext
		report.Confidence = 0.8
	}
	if report.ClearOpener {
		report.Confidence = min(report.Confidence+0.1, 1.0)
	}
	return report
}

func isIndicator(word string) bool {
	for _, list := range [][]string{pronounIndicators, vagueIndicators, broadIndicators} {
		for _, ind := range list {
			if word == ind {
				return true
			}
		}
	}
	return false
}
