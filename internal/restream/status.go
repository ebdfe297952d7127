// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package restream

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/renameio/v2"
)

// Status tracks whether an encoder is currently publishing to the ingest app.
// Timestamps are null until the corresponding event has happened.
type Status struct {
	Active         bool    `json:"active"`
	StartedAt      *string `json:"started_at"`
	StartedAtEpoch *int64  `json:"started_at_epoch"`
	EndedAt        *string `json:"ended_at"`
	EndedAtEpoch   *int64  `json:"ended_at_epoch"`
	UpdatedAt      *string `json:"updated_at"`
	UpdatedAtEpoch *int64  `json:"updated_at_epoch"`
}

func stamp(t time.Time) (*string, *int64) {
	s := isoTime(t)
	e := t.Unix()
	return &s, &e
}

// StatusStore reads and writes stream-status.json.
type StatusStore struct {
	mu   sync.Mutex
	path string
}

// NewStatusStore returns a store for <dataDir>/stream-status.json.
func NewStatusStore(dataDir string) *StatusStore {
	return &StatusStore{path: filepath.Join(dataDir, "stream-status.json")}
}

// Path returns the status file location.
func (s *StatusStore) Path() string { return s.path }

// Load returns the stored status. A missing or unreadable file yields the
// idle zero value.
func (s *StatusStore) Load() Status {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return Status{}
	}
	var st Status
	if err := json.Unmarshal(data, &st); err != nil {
		return Status{}
	}
	return st
}

// MarkPublishing records a publish start at t.
func (s *StatusStore) MarkPublishing(t time.Time) (Status, error) {
	return s.update(t, func(st *Status) {
		st.Active = true
		st.StartedAt, st.StartedAtEpoch = stamp(t)
		st.EndedAt, st.EndedAtEpoch = nil, nil
	})
}

// MarkIdle records a publish end at t.
func (s *StatusStore) MarkIdle(t time.Time) (Status, error) {
	return s.update(t, func(st *Status) {
		st.Active = false
		st.EndedAt, st.EndedAtEpoch = stamp(t)
	})
}

// Ensure writes an idle status document when none exists yet.
func (s *StatusStore) Ensure(t time.Time) error {
	if _, err := os.Stat(s.path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat stream status: %w", err)
	}
	_, err := s.update(t, func(st *Status) { st.Active = false })
	return err
}

func (s *StatusStore) update(t time.Time, mutate func(*Status)) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.Load()
	mutate(&st)
	st.UpdatedAt, st.UpdatedAtEpoch = stamp(t)

	data, err := json.Marshal(st)
	if err != nil {
		return Status{}, fmt.Errorf("encode stream status: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return Status{}, fmt.Errorf("create data dir: %w", err)
	}
	if err := renameio.WriteFile(s.path, data, 0o644); err != nil {
		return Status{}, fmt.Errorf("write stream status: %w", err)
	}
	return st, nil
}
