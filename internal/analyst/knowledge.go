// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pitchgraph Contributors

package analyst

import (
	_ "embed"
	"fmt"
	"slices"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	pgerr "github.com/lpararaa/pitchgraph/pkg/errors"
)

//go:embed knowledge.yaml
var defaultKnowledge []byte

// TeamProfile is the tactical background of one club.
type TeamProfile struct {
	Style      string   `yaml:"style"`
	Manager    string   `yaml:"manager"`
	KeyPlayers []string `yaml:"key_players"`
	Identity   string   `yaml:"identity"`
}

// Knowledge is the football background handed to the model alongside
// query results.
type Knowledge struct {
	Teams   map[string]TeamProfile `yaml:"teams"`
	Players map[string]string      `yaml:"players"`
	Trends  []string               `yaml:"trends"`

	teamNames   []string
	playerNames []string
}

// DefaultKnowledge returns the embedded knowledge base.
func DefaultKnowledge() (*Knowledge, error) {
	return ParseKnowledge(defaultKnowledge)
}

func ParseKnowledge(data []byte) (*Knowledge, error) {
	var k Knowledge
	if err := yaml.Unmarshal(data, &k); err != nil {
		return nil, pgerr.Wrapf(err, pgerr.CodeAnalystKnowledgeInvalid, "parsing knowledge base")
	}
	for name := range k.Teams {
		if strings.TrimSpace(name) == "" {
			return nil, pgerr.New(pgerr.CodeAnalystKnowledgeInvalid, "knowledge base has a team with an empty name")
		}
		k.teamNames = append(k.teamNames, name)
	}
	for name := range k.Players {
		k.playerNames = append(k.playerNames, name)
	}
	// map order is random; mentions are reported in a stable order
	sort.Strings(k.teamNames)
	sort.Strings(k.playerNames)
	return &k, nil
}

// Entities are the teams and players a question or result refers to.
type Entities struct {
	Teams   []string
	Players []string
}

func (e Entities) Empty() bool {
	return len(e.Teams) == 0 && len(e.Players) == 0
}

// Extract finds known teams and players named in the question (case
// insensitive) or in string values of the first result row (exact case).
func (k *Knowledge) Extract(question string, rows []map[string]any) Entities {
	var e Entities
	if k == nil {
		return e
	}

	q := strings.ToLower(question)
	for _, team := range k.teamNames {
		if strings.Contains(q, strings.ToLower(team)) {
			e.Teams = append(e.Teams, team)
		}
	}
	for _, player := range k.playerNames {
		if strings.Contains(q, strings.ToLower(player)) {
			e.Players = append(e.Players, player)
		}
	}

	if len(rows) == 0 {
		return e
	}
	keys := make([]string, 0, len(rows[0]))
	for key := range rows[0] {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		s, ok := rows[0][key].(string)
		if !ok {
			continue
		}
		for _, team := range k.teamNames {
			if strings.Contains(s, team) && !slices.Contains(e.Teams, team) {
				e.Teams = append(e.Teams, team)
			}
		}
		for _, player := range k.playerNames {
			if strings.Contains(s, player) && !slices.Contains(e.Players, player) {
				e.Players = append(e.Players, player)
			}
		}
	}
	return e
}

// Context renders the background for the given entities. Trends are
// included only when at least one entity is known.
func (k *Knowledge) Context(e Entities, withTrends bool) string {
	if k == nil || e.Empty() {
		return ""
	}

	var b strings.Builder
	for _, name := range e.Teams {
		t := k.Teams[name]
		fmt.Fprintf(&b, "\nTEAM CONTEXT - %s:\n", name)
		fmt.Fprintf(&b, "- Playing Style: %s\n", orNA(t.Style))
		fmt.Fprintf(&b, "- Manager: %s\n", orNA(t.Manager))
		fmt.Fprintf(&b, "- Tactical Identity: %s\n", orNA(t.Identity))
		fmt.Fprintf(&b, "- Key Players: %s\n", strings.Join(t.KeyPlayers, ", "))
	}
	for _, name := range e.Players {
		fmt.Fprintf(&b, "\nPLAYER PROFILE - %s: %s\n", name, k.Players[name])
	}
	if withTrends && len(k.Trends) > 0 {
		b.WriteString("\n2023-24 PREMIER LEAGUE TACTICAL TRENDS:\n")
		for _, trend := range k.Trends {
			b.WriteString("- " + trend + "\n")
		}
	}
	return b.String()
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
