// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pitchgraph Contributors

package store

// StorageConfig controls which backend the store factory uses.
type StorageConfig struct {
	Backend string // "sqlite" (default) or "memory"
	Path    string // data directory; the sqlite backend writes queries.db here
}
