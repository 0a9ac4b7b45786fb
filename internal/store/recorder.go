// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pitchgraph Contributors

package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/lpararaa/pitchgraph/internal/guard"
)

const recordTimeout = 5 * time.Second

// Recorder returns a guard observer that appends every execution to log
// before Execute returns. Each write is bounded by recordTimeout and
// survives cancellation of the request context. Failures are logged and
// never reach the caller of Execute.
func Recorder(log QueryLog) guard.Observer {
	return func(ctx context.Context, ev guard.Event) {
		rec := &QueryRecord{
			Source:   ev.Source,
			Query:    ev.Query,
			Executed: ev.Executed,
			Status:   ev.Envelope.Status,
			Rule:     ev.Rule,
			Message:  ev.Envelope.Message,
			Rows:     len(ev.Envelope.Data),
			Duration: ev.Duration,
		}

		// the request may already be finished; the record should still land
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
		defer cancel()

		if err := log.Append(ctx, rec); err != nil {
			slog.Warn("recording query failed", "error", err, "source", ev.Source)
		}
	}
}
