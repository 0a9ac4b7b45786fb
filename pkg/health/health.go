// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pitchgraph Contributors

// Package health holds serializable health snapshots shared between the
// server, the CLI and the provider layer.
package health

import "time"

// Metrics is the point-in-time health of a language model provider.
type Metrics struct {
	FailureCount  int64      `json:"failure_count"`
	LastFailureAt *time.Time `json:"last_failure_at,omitempty"`
	CooldownUntil *time.Time `json:"cooldown_until,omitempty"`
	Available     bool       `json:"available"`
}

// State is the coarse condition of a dependency.
type State string

const (
	StateUp       State = "up"
	StateDegraded State = "degraded"
	StateDown     State = "down"
)

// Component reports one dependency of the service.
type Component struct {
	Name    string `json:"name"`
	State   State  `json:"state"`
	Message string `json:"message,omitempty"`
}

// Overall folds component states: any down component makes the service
// down, otherwise any degraded one makes it degraded.
func Overall(components []Component) State {
	state := StateUp
	for _, c := range components {
		switch c.State {
		case StateDown:
			return StateDown
		case StateDegraded:
			state = StateDegraded
		}
	}
	return state
}
