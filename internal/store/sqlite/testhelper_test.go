// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pitchgraph Contributors

package sqlite_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lpararaa/pitchgraph/internal/store/sqlite"
)

func newTestLog(t *testing.T) *sqlite.QueryLog {
	t.Helper()
	l, err := sqlite.NewQueryLog(filepath.Join(t.TempDir(), "queries.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}
