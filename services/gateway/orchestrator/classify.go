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
	"regexp"
	"strings"

	"github.com/AleutianAI/AleutianInsight/services/gateway/datatypes"
)

// Intent keyword patterns, matched against the lowercased query.
// Precedence on multiple hits: relationship > code > explanation >
// location; no hit at all defaults to both.
var (
	relationshipPattern = regexp.MustCompile(`(?i)\b(depends? on|dependenc\w*|calls?|called by|imports?|extends?|inherits?|implements?|uses|used by|relationship|connected|contains)\b`)
	codePattern         = regexp.MustCompile(`(?i)\b(implement\w*|code|function|method|class|snippet|signature|definition|source|algorithm)\b`)
	explanationPattern  = regexp.MustCompile(`(?i)\b(explain|why|how (does|do|is|are)|what (is|are|does)|describe|understand|meaning|purpose)\b`)
	locationPattern     = regexp.MustCompile(`(?i)\b(where|locate\w*|location|which file|find the file|path|directory|folder)\b`)
)

// ClassifyIntent infers the query intent from keyword patterns. An
// empty query has no classifiable intent.
func ClassifyIntent(query string) datatypes.QueryIntent {
	if strings.TrimSpace(query) == "" {
		return datatypes.IntentUnknown
	}
	switch {
	case relationshipPattern.MatchString(query):
		return datatypes.IntentRelationship
	case codePattern.MatchString(query):
		return datatypes.IntentCode
	case explanationPattern.MatchString(query):
		return datatypes.IntentExplanation
	case locationPattern.MatchString(query):
		return datatypes.IntentLocation
	default:
		return datatypes.IntentBoth
	}
}
