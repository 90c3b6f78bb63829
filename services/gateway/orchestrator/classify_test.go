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
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AleutianAI/AleutianInsight/services/gateway/datatypes"
)

func TestClassifyIntent(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  datatypes.QueryIntent
	}{
		{"relationship keyword", "What depends on AuthService?", datatypes.IntentRelationship},
		{"calls keyword", "who calls validateToken", datatypes.IntentRelationship},
		{"code keyword", "show the implementation of the retry loop", datatypes.IntentCode},
		{"function keyword", "find the function that parses headers", datatypes.IntentCode},
		{"explanation keyword", "why is the cache invalidated twice", datatypes.IntentExplanation},
		{"location keyword", "where is the rate limiter configured", datatypes.IntentLocation},
		{"no keywords", "user session timeout behavior", datatypes.IntentBoth},
		{"empty query", "   ", datatypes.IntentUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyIntent(tt.query))
		})
	}
}

func TestClassifyIntent_RelationshipWinsPrecedence(t *testing.T) {
	// Contains code, explanation, and relationship keywords at once.
	got := ClassifyIntent("explain the code that depends on the parser class")
	assert.Equal(t, datatypes.IntentRelationship, got)
}
