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
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  Classification
	}{
		{"clear question", "Where is the login handler defined?", Clear},
		{"one pronoun", "How does it work?", Ambiguous},
		{"two indicators", "Why does it do that?", Ambiguous},
		{"three indicators", "Show me everything about it and all of this", RequiresContext},
		{"empty", "", RequiresContext},
		{"whitespace only", "   \t ", RequiresContext},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.query))
		})
	}
}

func TestAnalyze_ClearOpenerRaisesConfidenceOnly(t *testing.T) {
	withOpener := Analyze("how does it work")
	without := Analyze("does it work somehow maybe")

	// Opener does not remove ambiguity.
	assert.Equal(t, Ambiguous, withOpener.Classification)
	assert.True(t, withOpener.ClearOpener)
	assert.False(t, without.ClearOpener)
	assert.Greater(t, withOpener.Confidence, 0.0)
}

func TestAnalyze_RecordsHitsInQueryOrder(t *testing.T) {
	report := Analyze("why does it break everything")
	assert.Equal(t, []string{"it", "everything"}, report.Hits)
}

func TestAnalyze_CaseInsensitive(t *testing.T) {
	assert.Equal(t, Ambiguous, Classify("HOW DOES IT WORK"))
}
