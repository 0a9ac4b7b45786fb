// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pitchgraph Contributors

package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
)

// Normalize converts driver-native result rows into plain JSON values.
// Nodes and relationships become their property maps, paths become an
// alternating list of node and relationship maps, and temporal or spatial
// values become strings. Numbers survive the JSON round trip exactly as
// json.Number.
//
// If the converted rows cannot be serialized, the original rows are
// returned unchanged and the degradation is logged.
func Normalize(rows []map[string]any) []map[string]any {
	if len(rows) == 0 {
		return rows
	}

	converted := make([]map[string]any, len(rows))
	for i, row := range rows {
		converted[i] = convertMap(row)
	}

	raw, err := json.Marshal(converted)
	if err != nil {
		slog.Warn("result normalization degraded to native rows", "rows", len(rows), "error", err)
		return rows
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var out []map[string]any
	if err := dec.Decode(&out); err != nil {
		slog.Warn("result normalization degraded to native rows", "rows", len(rows), "error", err)
		return rows
	}
	return out
}

func convertMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = convertValue(v)
	}
	return out
}

func convertValue(v any) any {
	switch val := v.(type) {
	case nil, bool, string, int64, int, float64:
		return val
	case dbtype.Node:
		return convertMap(val.Props)
	case dbtype.Relationship:
		return convertMap(val.Props)
	case dbtype.Path:
		return convertPath(val)
	case time.Time:
		return val.Format(time.RFC3339Nano)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = convertValue(item)
		}
		return out
	case map[string]any:
		return convertMap(val)
	case fmt.Stringer:
		// dates, times, durations and points
		return val.String()
	default:
		return val
	}
}

func convertPath(p dbtype.Path) []any {
	out := make([]any, 0, len(p.Nodes)+len(p.Relationships))
	for i, node := range p.Nodes {
		out = append(out, convertMap(node.Props))
		if i < len(p.Relationships) {
			out = append(out, convertMap(p.Relationships[i].Props))
		}
	}
	return out
}
