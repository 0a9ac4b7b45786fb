// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pitchgraph Contributors

package analyst

import "strings"

var (
	tacticalKeywords = []string{
		"analyze", "analysis", "tactical", "how did", "why did",
		"explain", "performance", "style", "approach", "battle",
		"strategy", "formation", "pressing", "buildup", "transition",
		"compare", "vs", "versus", "difference between",
	}
	listKeywords    = []string{"list", "all players", "all teams", "show me", "give me all", "names of", "who are"}
	explainKeywords = []string{"explain", "why", "reason", "because"}
)

// IsTactical reports whether a question asks for tactical analysis rather
// than a statistic. Matching is substring based, so "vs" also matches
// inside longer words.
func IsTactical(question string) bool {
	return containsAny(question, tacticalKeywords)
}

func wantsList(question string) bool {
	return containsAny(question, listKeywords)
}

func wantsExplanation(question string) bool {
	return containsAny(question, explainKeywords)
}

func containsAny(s string, keywords []string) bool {
	s = strings.ToLower(s)
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
