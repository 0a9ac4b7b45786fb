// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Pitchgraph Contributors

// Package sqlite is the SQLite backend for the query log.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/lpararaa/pitchgraph/internal/store"
	pgerr "github.com/lpararaa/pitchgraph/pkg/errors"
	"github.com/lpararaa/pitchgraph/pkg/types"
)

var _ store.QueryLog = (*QueryLog)(nil)

// QueryLog implements store.QueryLog on a single SQLite database.
type QueryLog struct {
	db *sql.DB
}

// NewQueryLog opens (or creates) the database at dbPath and ensures the
// query_log table exists.
func NewQueryLog(dbPath string) (*QueryLog, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, pgerr.Wrapf(err, pgerr.CodeStoreDatabaseFailure, "opening query log db")
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, pgerr.Wrapf(err, pgerr.CodeStoreDatabaseFailure, "pinging query log db")
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, pgerr.Wrapf(err, pgerr.CodeStoreDatabaseFailure, "migrating query log db")
	}

	return &QueryLog{db: db}, nil
}

func migrate(db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS query_log (
	id          TEXT PRIMARY KEY,
	timestamp   TEXT NOT NULL,
	source      TEXT NOT NULL DEFAULT 'api',
	query       TEXT NOT NULL,
	executed    TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL,
	rule        TEXT NOT NULL DEFAULT '',
	message     TEXT NOT NULL DEFAULT '',
	row_count   INTEGER NOT NULL DEFAULT 0,
	duration_ns INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_query_log_timestamp ON query_log(timestamp);
CREATE INDEX IF NOT EXISTS idx_query_log_status    ON query_log(status);
CREATE INDEX IF NOT EXISTS idx_query_log_source    ON query_log(source);
`
	_, err := db.Exec(ddl)
	return err
}

const selectColumns = `SELECT id, timestamp, source, query, executed, status, rule, message, row_count, duration_ns FROM query_log`

func (l *QueryLog) Append(ctx context.Context, rec *store.QueryRecord) error {
	if err := store.Prepare(rec); err != nil {
		return err
	}

	const q = `INSERT INTO query_log (id, timestamp, source, query, executed, status, rule, message, row_count, duration_ns)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := l.db.ExecContext(ctx, q,
		rec.ID, formatTime(rec.Timestamp), string(rec.Source), rec.Query, rec.Executed,
		string(rec.Status), rec.Rule, rec.Message, rec.Rows, int64(rec.Duration),
	)
	if err != nil {
		return pgerr.Wrapf(err, pgerr.CodeStoreDatabaseFailure, "appending query record %s", rec.ID)
	}
	return nil
}

func (l *QueryLog) Get(ctx context.Context, id string) (*store.QueryRecord, error) {
	row := l.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pgerr.New(pgerr.CodeStoreEntryNotFound, "query record not found", pgerr.Field("id", id))
	}
	if err != nil {
		return nil, pgerr.Wrapf(err, pgerr.CodeStoreDatabaseFailure, "getting query record %s", id)
	}
	return rec, nil
}

func (l *QueryLog) List(ctx context.Context, filter store.QueryFilter) ([]*store.QueryRecord, error) {
	f, err := filter.Normalize()
	if err != nil {
		return nil, err
	}

	var qb strings.Builder
	qb.WriteString(selectColumns)

	var conditions []string
	var args []any

	if f.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.Source != "" {
		conditions = append(conditions, "source = ?")
		args = append(args, string(f.Source))
	}
	if !f.Since.IsZero() {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, formatTime(f.Since))
	}

	if len(conditions) > 0 {
		qb.WriteString(" WHERE ")
		qb.WriteString(strings.Join(conditions, " AND "))
	}

	// rowid breaks ties between records written within the same instant
	qb.WriteString(" ORDER BY timestamp DESC, rowid DESC LIMIT ? OFFSET ?")
	args = append(args, f.Limit, f.Offset)

	rows, err := l.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, pgerr.Wrapf(err, pgerr.CodeStoreDatabaseFailure, "querying query log")
	}
	defer rows.Close() //nolint:errcheck // error on read-path close is not actionable

	var out []*store.QueryRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, pgerr.Wrapf(err, pgerr.CodeStoreDatabaseFailure, "scanning query record")
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, pgerr.Wrapf(err, pgerr.CodeStoreDatabaseFailure, "iterating query log")
	}
	return out, nil
}

func (l *QueryLog) Stats(ctx context.Context) (store.Stats, error) {
	const q = `SELECT
	COUNT(*),
	COALESCE(SUM(CASE WHEN status = 'ok' THEN 1 ELSE 0 END), 0),
	COALESCE(SUM(CASE WHEN status = 'error' THEN 1 ELSE 0 END), 0),
	COALESCE(SUM(CASE WHEN status = 'error' AND rule != '' THEN 1 ELSE 0 END), 0),
	COALESCE(MAX(timestamp), '')
FROM query_log`

	var (
		s    store.Stats
		last string
	)
	if err := l.db.QueryRowContext(ctx, q).Scan(&s.Total, &s.OK, &s.Errors, &s.Rejected, &last); err != nil {
		return store.Stats{}, pgerr.Wrapf(err, pgerr.CodeStoreDatabaseFailure, "computing query log stats")
	}
	s.Last = parseTime(last)
	return s, nil
}

func (l *QueryLog) Close() error { return l.db.Close() }

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*store.QueryRecord, error) {
	var (
		rec                store.QueryRecord
		ts, source, status string
		duration           int64
	)
	if err := s.Scan(&rec.ID, &ts, &source, &rec.Query, &rec.Executed, &status,
		&rec.Rule, &rec.Message, &rec.Rows, &duration); err != nil {
		return nil, err
	}
	rec.Timestamp = parseTime(ts)
	rec.Source = types.QuerySource(source)
	rec.Status = types.Status(status)
	rec.Duration = time.Duration(duration)
	return &rec, nil
}

// formatTime stores UTC with a fixed-width fraction so text order matches
// time order.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02T15:04:05.000000000Z07:00")
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
