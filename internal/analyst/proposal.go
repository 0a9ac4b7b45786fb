// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pitchgraph Contributors

package analyst

import (
	"encoding/json"
	"math"
	"strings"
)

// ModeOpinion marks a proposal whose results need a verdict, not a summary.
const ModeOpinion = "opinion"

// Proposal is the model's answer to a question: a query to run, or a
// clarifying question to send back.
type Proposal struct {
	Cypher       string         `json:"cypher"`
	Query        string         `json:"query"`
	Params       map[string]any `json:"params"`
	Explanation  string         `json:"explanation"`
	Confidence   string         `json:"confidence"`
	AnalysisMode string         `json:"analysis_mode"`
	Clarify      string         `json:"clarify"`
}

// Statement returns the query text. Models use either key.
func (p Proposal) Statement() string {
	if p.Cypher != "" {
		return p.Cypher
	}
	return p.Query
}

// ParseProposal decodes model output. Text that is not a JSON object is
// searched for the span from the first "{" to the last "}". An empty
// object counts as unparseable.
func ParseProposal(text string) (Proposal, bool) {
	if p, ok := decodeProposal(text); ok {
		return p, true
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return Proposal{}, false
	}
	return decodeProposal(text[start : end+1])
}

func decodeProposal(text string) (Proposal, bool) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &raw); err != nil || len(raw) == 0 {
		return Proposal{}, false
	}

	var p Proposal
	for key, value := range raw {
		switch key {
		case "cypher":
			p.Cypher = asString(value)
		case "query":
			p.Query = asString(value)
		case "explanation":
			p.Explanation = asString(value)
		case "confidence":
			p.Confidence = asString(value)
		case "analysis_mode":
			p.AnalysisMode = asString(value)
		case "clarify":
			p.Clarify = asString(value)
		case "params":
			// null or non-object params are treated as none
			_ = json.Unmarshal(value, &p.Params)
			integralParams(p.Params)
		}
	}
	return p, true
}

// asString tolerates null and non-string values, which models emit for
// fields they consider unused.
func asString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// integralParams turns whole-number floats into int64. JSON numbers decode
// as float64, and Cypher rejects floats for LIMIT and SKIP.
func integralParams(params map[string]any) {
	for k, v := range params {
		if f, ok := v.(float64); ok && f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			params[k] = int64(f)
		}
	}
}
