// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pitchgraph Contributors

package analyst

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lpararaa/pitchgraph/internal/graph"
	"github.com/lpararaa/pitchgraph/internal/provider"
)

const cypherSystemPrompt = `You are a Neo4j engineer and Premier League analyst answering questions
about the 2023-24 English Premier League season (all 380 matches, August
2023 to May 2024). The database holds exactly one season; never ask which
season is meant and never filter on a season property.

GRAPH MODEL
- (:Player {id, name, position, ...})
- (:Team {name})
- (:Match {id, date, round, score, venue}) where score is "home-away", e.g. "2-1"
- (m:Match)-[:HOME_TEAM]->(t:Team) and (m:Match)-[:AWAY_TEAM]->(t:Team)
- (p:Player)-[r:PLAYED_IN]->(m:Match) where r carries per-match stats:
  r.team, r.goals, r.goalAssist, r.expectedGoals (x100), r.minutesPlayed,
  r.totalShots, r.keyPass, r.bigChanceCreated, r.totalPass, r.accuratePass,
  r.totalTackle, r.interceptionWon, r.totalClearance

RULES
- Read-only Cypher only. One statement, always with a RETURN clause.
- Goals per side come from split(m.score, '-'); there are no home or away
  goal properties and no m.homeTeam or m.awayTeam properties.
- Prefer aggregations over returning raw relationships.

TWO MODES
1. Data retrieval: specific stats ("How many goals did Haaland score?").
2. Opinion: subjective questions ("Who was the best player?"). Never ask
   the user to define "best". Decide the criteria yourself, fetch several
   metrics in one query and set "analysis_mode": "opinion".

RESPONSE FORMAT
Reply with one JSON object and nothing else:
{
  "cypher": "MATCH ... RETURN ...",
  "params": {},
  "explanation": "what the query fetches",
  "confidence": "high|medium|low",
  "analysis_mode": "data|opinion"
}
Only when the question is impossible to answer from this graph, reply with
{"clarify": "<question back to the user>"} instead.`

const opinionSystemPrompt = `You are a Premier League pundit who forms strong opinions backed by data.
Synthesize several metrics, give a clear verdict, acknowledge the closest
alternative and say why your choice still wins. Never answer "it depends"
without picking a side first. Write 6-8 sentences in one paragraph: verdict,
evidence from 3-4 metrics, tactical context, counterpoint, closing verdict.`

const tacticalSystemPrompt = `You are a senior tactical analyst writing for a football publication.
You already know how Premier League teams play, their managers'
philosophies and the profiles of key players. Lead with that knowledge,
then use the statistics to prove it. Connect individual numbers to team
systems, explain why results happened and compare them to the team's or
player's norms. Use proper football language: pressing triggers,
half-spaces, build-up patterns, transitions. Avoid generic statements and
never just repeat numbers without interpretation.`

// schemaSection appends the live schema so the model sees the relationship
// types the guard will accept.
func schemaSection(snap *graph.Snapshot) string {
	if snap == nil || (len(snap.Labels) == 0 && len(snap.RelationshipTypes) == 0) {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n\nLIVE SCHEMA\n")
	if len(snap.Labels) > 0 {
		b.WriteString("- Labels: " + strings.Join(snap.Labels, ", ") + "\n")
	}
	if len(snap.RelationshipTypes) > 0 {
		b.WriteString("- Relationship types: " + strings.Join(snap.RelationshipTypes, ", ") + "\n")
	}
	if len(snap.PropertyKeys) > 0 {
		b.WriteString("- Property keys: " + strings.Join(snap.PropertyKeys, ", ") + "\n")
	}
	return b.String()
}

func retryPrompt(cypher, message string) string {
	return fmt.Sprintf("The previous Cypher query failed.\nYour Query: %s\nDatabase Error: %s\nPlease fix the query and reply with the same JSON format.", cypher, message)
}

// conversation renders the last n turns as "ROLE: content" blocks.
func conversation(history []provider.Message, n int, fallback string) string {
	if len(history) == 0 {
		return fallback
	}
	if len(history) > n {
		history = history[len(history)-n:]
	}
	var b strings.Builder
	for _, msg := range history {
		fmt.Fprintf(&b, "%s: %s\n\n", strings.ToUpper(string(msg.Role)), msg.Content)
	}
	return b.String()
}

func dataJSON(rows []map[string]any) string {
	out, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", rows)
	}
	return string(out)
}

func opinionPrompt(question string, rows []map[string]any, history []provider.Message) string {
	return fmt.Sprintf(`%s
USER QUESTION: %s

RETRIEVED DATA:
%s

YOUR TASK:
Form a strong, data-backed opinion answering the question.
For "who was the best player" questions pick ONE player, justify it with
3-4 metrics from the data, mention tactical context and explain why your
choice edges out the closest competitors.
For "which team was better" questions declare a winner using comparative
stats (goals scored and conceded, xG, win rate) and playing styles.
Do not say "it depends" or "both are good". Write 6-8 sentences in one
cohesive paragraph.`,
		conversation(history, 4, "First question in conversation"), question, dataJSON(rows))
}

func tacticalPrompt(question string, rows []map[string]any, knowledge string, history []provider.Message) string {
	data := "No specific match data provided."
	if len(rows) > 0 {
		data = dataJSON(rows)
	}
	if knowledge == "" {
		knowledge = "General Premier League knowledge"
	}
	return fmt.Sprintf(`CONVERSATION HISTORY:
%s
TACTICAL CONTEXT (YOUR EXISTING KNOWLEDGE):
%s

CURRENT QUESTION:
%s

DATABASE STATS:
%s

YOUR TASK:
Start from what you know about these teams, players and managers, then
use the stats to prove your assessment. Explain why results happened
("This is because...", "The reason is..."), compare them to the usual
level of the team or player, and use tactical terminology.

STRUCTURE (5-8 sentences): tactical context of who these teams or players
are, what the stats reveal and why, then a tactical verdict.`,
		conversation(history, 4, "First question in conversation"), knowledge, question, data)
}

func explainPrompt(question string, rows []map[string]any, knowledge string, history []provider.Message) string {
	if knowledge == "" {
		knowledge = "General PL knowledge"
	}
	return fmt.Sprintf(`%s
YOUR FOOTBALL KNOWLEDGE:
%s

QUESTION: %s

DATA: %s

Write ONE PARAGRAPH (5-7 sentences) that opens with who these players or
teams are tactically, explains the stat in the context of their style and
gives the tactical reason why, comparing to their typical performance
where relevant. Do not just report the numbers.`,
		conversation(history, 4, "First question"), knowledge, question, dataJSON(rows))
}

func summaryPrompt(question string, rows []map[string]any) string {
	return fmt.Sprintf(`You are a Premier League expert analyst.
Provide a 6-8 sentence analytical paragraph that includes:
1. The direct answer
2. Context explaining significance
3. Related metrics
4. Tactical interpretation

User Question: %s
Data: %s

Write as one paragraph, no bullet points.`, question, dataJSON(rows))
}
