// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pitchgraph Contributors

package guard

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Rule names reported in rejections, logs and metrics.
const (
	RuleDisallowedOperation  = "disallowed_operation"
	RuleSingleStatement      = "single_statement"
	RuleReturnRequired       = "return_required"
	RuleUnknownRelationship  = "unknown_relationship"
	RuleHallucinatedProperty = "hallucinated_property"
	RuleSeasonProperty       = "season_property"
	RuleTeamProperty         = "team_property"
	RuleQueryTooLong         = "query_too_long"
)

// Pattern is a case-insensitive lexical check. Source is the pattern text
// as reported back to the caller.
type Pattern struct {
	Source string
	re     *regexp.Regexp
}

func mustPattern(source string) Pattern {
	return Pattern{Source: source, re: regexp.MustCompile(`(?i)` + source)}
}

// MatchString reports whether the pattern occurs in s.
func (p Pattern) MatchString(s string) bool {
	return p.re.MatchString(s)
}

// DisallowedPatterns are checked in order; the first match rejects.
var DisallowedPatterns = []Pattern{
	mustPattern(`\bCREATE\b`),
	mustPattern(`\bMERGE\b`),
	mustPattern(`\bSET\b`),
	mustPattern(`\bDELETE\b`),
	mustPattern(`\bREMOVE\b`),
	mustPattern(`\bDROP\b`),
	mustPattern(`\bCALL\s+dbms\b`),
	mustPattern(`\bCALL\s+apoc\b`),
	mustPattern(`;`),
	mustPattern(`\bLOAD\b`),
}

// PropertyRule rejects references to properties the graph does not have,
// with a message steering the model towards the real shape.
type PropertyRule struct {
	Name    string
	Pattern Pattern
	Message string
}

// PropertyRules are evaluated in order after the entity checks.
var PropertyRules = []PropertyRule{
	{
		Name:    RuleHallucinatedProperty,
		Pattern: mustPattern(`\b(home_team_goals|away_team_goals)\b`),
		Message: "Query uses hallucinated properties (home_team_goals/away_team_goals). Use split(m.score, '-') instead.",
	},
	{
		Name:    RuleSeasonProperty,
		Pattern: mustPattern(`\.season\b`),
		Message: "Query references 'season' property which does not exist.",
	},
	{
		Name:    RuleTeamProperty,
		Pattern: mustPattern(`\.(homeTeam|awayTeam)\b`),
		Message: "Query references non-existent properties (m.homeTeam / m.awayTeam). Use relationships -[:HOME_TEAM]-> instead.",
	},
}

var (
	returnPattern       = mustPattern(`\bRETURN\b`)
	limitPattern        = mustPattern(`\bLIMIT\s+\d+\b`)
	labelPattern        = regexp.MustCompile(`:([A-Za-z0-9_]+)`)
	relationshipPattern = regexp.MustCompile(`\[:([A-Za-z0-9_]+)\]`)
)

// invisibleCharReplacer strips zero-width and other invisible characters
// that could split a keyword without changing how it reads.
var invisibleCharReplacer = strings.NewReplacer(
	"\u200b", "", // zero-width space
	"\u200c", "", // zero-width non-joiner
	"\u200d", "", // zero-width joiner
	"\ufeff", "", // zero-width no-break space / BOM
	"\u00ad", "", // soft hyphen
	"\u034f", "", // combining grapheme joiner
	"\u180e", "", // Mongolian vowel separator
	"\u2060", "", // word joiner
	"\u2061", "", // invisible function application
	"\u2062", "", // invisible times
	"\u2063", "", // invisible separator
	"\u2064", "", // invisible plus
)

// normalize folds compatibility forms (full-width letters, ligatures) and
// drops invisible characters. Only used for scanning.
func normalize(s string) string {
	return norm.NFKC.String(invisibleCharReplacer.Replace(s))
}

// ContainsDisallowed returns the first disallowed pattern found in query
// or in its normalized form.
func ContainsDisallowed(query string) (Pattern, bool) {
	normalized := normalize(query)
	for _, p := range DisallowedPatterns {
		if p.MatchString(query) || p.MatchString(normalized) {
			return p, true
		}
	}
	return Pattern{}, false
}

// HasMultipleStatements reports whether query contains a statement
// separator anywhere, including inside string literals.
func HasMultipleStatements(query string) bool {
	return strings.Contains(query, ";") || strings.Contains(normalize(query), ";")
}

func HasReturn(query string) bool {
	return returnPattern.MatchString(query)
}

func HasLimit(query string) bool {
	return limitPattern.MatchString(query)
}

// AddLimitIfMissing appends a numeric bound when query has none. Trailing
// whitespace is trimmed first. A query that already carries a bound is
// returned unchanged, whatever its value.
func AddLimitIfMissing(query string, limit int) string {
	if HasLimit(query) {
		return query
	}
	return strings.TrimRightFunc(query, unicode.IsSpace) + "\nLIMIT " + strconv.Itoa(limit)
}

// LabelTokens returns every identifier following a colon, in order of
// appearance. This over-approximates labels: relationship types and map
// keys written without a space are included.
func LabelTokens(query string) []string {
	return submatches(labelPattern, query)
}

// RelationshipTokens returns the types named in bare [:TYPE] patterns.
// Variable-bound forms such as [r:TYPE] are not included.
func RelationshipTokens(query string) []string {
	return submatches(relationshipPattern, query)
}

func submatches(re *regexp.Regexp, s string) []string {
	matches := re.FindAllStringSubmatch(s, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m[1])
	}
	return out
}
