// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/persistence/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS audit_events (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	ts          TEXT NOT NULL,
	type        TEXT NOT NULL,
	actor       TEXT NOT NULL,
	resource    TEXT NOT NULL,
	result      TEXT NOT NULL,
	remote_addr TEXT NOT NULL DEFAULT '',
	request_id  TEXT NOT NULL DEFAULT '',
	details     TEXT NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS audit_events_ts ON audit_events(ts);
`

// SQLiteSink appends events to an audit_events table.
type SQLiteSink struct {
	db *sql.DB
}

// OpenSQLiteSink opens (or creates) the database at path and ensures the schema.
func OpenSQLiteSink(ctx context.Context, path string) (*SQLiteSink, error) {
	db, err := sqlite.Open(ctx, path, sqlite.DefaultConfig())
	if err != nil {
		return nil, err
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("audit: create schema: %w", err)
	}
	return &SQLiteSink{db: db}, nil
}

// Write inserts ev.
func (s *SQLiteSink) Write(ctx context.Context, ev Event) error {
	details := []byte("{}")
	if len(ev.Details) > 0 {
		b, err := json.Marshal(ev.Details)
		if err != nil {
			return fmt.Errorf("audit: encode details: %w", err)
		}
		details = b
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_events (ts, type, actor, resource, result, remote_addr, request_id, details)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.Timestamp.UTC().Format(time.RFC3339Nano), string(ev.Type), ev.Actor, ev.Resource,
		ev.Result, ev.RemoteAddr, ev.RequestID, string(details))
	if err != nil {
		return fmt.Errorf("audit: insert event: %w", err)
	}
	return nil
}

// Recent returns up to limit events, newest first.
func (s *SQLiteSink) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT ts, type, actor, resource, result, remote_addr, request_id, details
		 FROM audit_events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("audit: query events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			ev      Event
			ts      string
			typ     string
			details string
		)
		if err := rows.Scan(&ts, &typ, &ev.Actor, &ev.Resource, &ev.Result, &ev.RemoteAddr, &ev.RequestID, &details); err != nil {
			return nil, fmt.Errorf("audit: scan event: %w", err)
		}
		ev.Type = EventType(typ)
		if ev.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("audit: parse timestamp %q: %w", ts, err)
		}
		if details != "{}" {
			if err := json.Unmarshal([]byte(details), &ev.Details); err != nil {
				return nil, fmt.Errorf("audit: decode details: %w", err)
			}
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// Check reports database corruption found by quick_check.
func (s *SQLiteSink) Check(ctx context.Context) error {
	issues, err := sqlite.QuickCheck(ctx, s.db)
	if err != nil {
		return err
	}
	if len(issues) > 0 {
		return fmt.Errorf("audit: database check failed: %v", issues)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
