// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package restream

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"

	xglog "github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/log"
	"github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/normalize"
	"github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/overlay"
)

// Options configures a Store.
type Options struct {
	// DataDir holds restream.json and the generated artifacts.
	DataDir string
	// TemplatePath seeds restream.json on first load when set.
	TemplatePath string
	// MaxOverlays caps the overlay list (overlay.DefaultMaxCount when zero).
	MaxOverlays int
	// Now overrides the clock in tests.
	Now func() time.Time
}

// Store owns restream.json. Writes are serialized and atomic; reads never
// observe a partially written file.
type Store struct {
	mu sync.Mutex

	path         string
	templatePath string
	publicPath   string
	hlsConfPath  string

	files     *overlay.Storage
	sanitizer overlay.Sanitizer
	status    *StatusStore
	now       func() time.Time
	logger    zerolog.Logger
}

// NewStore returns a Store for opts.DataDir.
func NewStore(opts Options) *Store {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Store{
		path:         filepath.Join(opts.DataDir, "restream.json"),
		templatePath: opts.TemplatePath,
		publicPath:   filepath.Join(opts.DataDir, "public-config.json"),
		hlsConfPath:  filepath.Join(opts.DataDir, "public-hls.conf"),
		files:        overlay.NewStorage(opts.DataDir),
		sanitizer:    overlay.NewSanitizer(opts.MaxOverlays),
		status:       NewStatusStore(opts.DataDir),
		now:          now,
		logger:       xglog.WithComponent("restream"),
	}
}

// Path returns the location of restream.json.
func (s *Store) Path() string { return s.path }

// Files returns the overlay image storage.
func (s *Store) Files() *overlay.Storage { return s.files }

// Sanitizer returns the overlay rules used by the store.
func (s *Store) Sanitizer() overlay.Sanitizer { return s.sanitizer }

// Status returns the stream status store kept next to the record.
func (s *Store) Status() *StatusStore { return s.status }

// Load reads the current record. A missing file is seeded from the template
// when one exists; otherwise DefaultRecord is returned. Overlay images still
// in the legacy location are migrated as a side effect.
func (s *Store) Load(ctx context.Context) (Record, error) {
	if err := s.seed(); err != nil {
		return Record{}, err
	}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultRecord(), nil
	}
	if err != nil {
		return Record{}, fmt.Errorf("read restream config: %w", err)
	}

	var p Patch
	if err := json.Unmarshal(data, &p); err != nil {
		return Record{}, fmt.Errorf("decode restream config: %w", err)
	}

	rec := DefaultRecord()
	if p.Destinations.Present {
		if items, ok := p.Destinations.Value.([]any); ok {
			rec.Destinations = SanitizeDestinations(items)
		} else {
			logger := xglog.WithContext(ctx, s.logger)
			logger.Warn().
				Str(xglog.FieldEvent, "restream.destinations_invalid").
				Msg("stored destinations are not a list, ignoring")
		}
	}
	if p.IngestKey.Present {
		rec.IngestKey = SanitizeIngestKey(p.IngestKey.Value)
	}
	if p.PublicLive.Present {
		rec.PublicLive = normalize.Truthy(p.PublicLive.Value)
	}
	if p.PublicHLS.Present {
		rec.PublicHLS = normalize.Truthy(p.PublicHLS.Value)
	}
	rec.Overlays = s.sanitizer.List(p.OverlayList(), nil)
	rec.Overlay = firstOverlay(rec.Overlays)

	s.files.Migrate(rec.Overlays)
	return rec, nil
}

func (s *Store) seed() error {
	if s.templatePath == "" {
		return nil
	}
	if _, err := os.Stat(s.path); err == nil || !errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	tmpl, err := os.ReadFile(s.templatePath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read restream template: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	if err := renameio.WriteFile(s.path, tmpl, 0o644); err != nil {
		return fmt.Errorf("seed restream config: %w", err)
	}
	s.logger.Info().
		Str(xglog.FieldEvent, "restream.seeded").
		Str(xglog.FieldPath, s.templatePath).
		Msg("seeded restream config from template")
	return nil
}

func firstOverlay(list []overlay.Overlay) overlay.Overlay {
	if len(list) == 0 {
		return overlay.Default()
	}
	return list[0]
}

// Save merges p into the stored record, writes it and regenerates the public
// visibility artifacts before returning.
func (s *Store) Save(ctx context.Context, p Patch) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.Load(ctx)
	if err != nil {
		return Record{}, err
	}
	next, err := s.merge(cur, p)
	if err != nil {
		return Record{}, err
	}
	if err := s.persist(ctx, next); err != nil {
		return Record{}, err
	}
	return next, nil
}

// UpdateOverlays runs fn on the stored overlay list and saves its result as an
// explicit list. Nothing is written when fn fails.
func (s *Store) UpdateOverlays(ctx context.Context, fn func([]overlay.Overlay) ([]overlay.Overlay, error)) ([]overlay.Overlay, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	list, err := fn(append([]overlay.Overlay(nil), cur.Overlays...))
	if err != nil {
		return nil, err
	}
	next, err := s.merge(cur, Patch{Overlays: overlay.ExplicitFrom(list)})
	if err != nil {
		return nil, err
	}
	if err := s.persist(ctx, next); err != nil {
		return nil, err
	}
	return next.Overlays, nil
}

func (s *Store) merge(cur Record, p Patch) (Record, error) {
	next := cur
	if p.Destinations.Present {
		items, ok := p.Destinations.Value.([]any)
		if !ok {
			return Record{}, ErrInvalidDestinations
		}
		next.Destinations = SanitizeDestinations(items)
	}
	if next.Destinations == nil {
		next.Destinations = []Destination{}
	}
	if p.IngestKey.Present {
		next.IngestKey = SanitizeIngestKey(p.IngestKey.Value)
	}
	if p.PublicLive.Present {
		next.PublicLive = normalize.Truthy(p.PublicLive.Value)
	}
	if p.PublicHLS.Present {
		next.PublicHLS = normalize.Truthy(p.PublicHLS.Value)
	}
	if list := p.OverlayList(); list.Present {
		next.Overlays = s.sanitizer.List(list, cur.Overlays)
		next.Overlay = firstOverlay(next.Overlays)
	}
	return next, nil
}

func (s *Store) persist(ctx context.Context, rec Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encode restream config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	logger := xglog.WithContext(ctx, s.logger)
	pendingFile, err := renameio.NewPendingFile(s.path, renameio.WithPermissions(0o644))
	if err != nil {
		return fmt.Errorf("create pending restream config: %w", err)
	}
	defer func() {
		if err := pendingFile.Cleanup(); err != nil {
			logger.Debug().Err(err).Msg("cleanup pending restream config")
		}
	}()
	if _, err := pendingFile.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write restream config: %w", err)
	}
	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace restream config: %w", err)
	}

	if err := writeVisibility(s.publicPath, s.hlsConfPath, rec.PublicLive, rec.PublicHLS, s.now()); err != nil {
		return err
	}

	logger.Info().
		Str(xglog.FieldEvent, "restream.saved").
		Int("destinations", len(rec.Destinations)).
		Int("overlays", len(rec.Overlays)).
		Bool("public_live", rec.PublicLive).
		Bool("public_hls", rec.PublicHLS).
		Msg("restream config saved")
	return nil
}

// IngestKey returns the stored ingest key ("" when publishing is ungated).
func (s *Store) IngestKey(ctx context.Context) (string, error) {
	rec, err := s.Load(ctx)
	if err != nil {
		return "", err
	}
	return rec.IngestKey, nil
}

// CheckIngestKey reports whether key may publish. An empty stored key accepts
// every publisher.
func (s *Store) CheckIngestKey(ctx context.Context, key string) (bool, error) {
	stored, err := s.IngestKey(ctx)
	if err != nil {
		return false, err
	}
	if stored == "" {
		return true, nil
	}
	return subtle.ConstantTimeCompare([]byte(strings.TrimSpace(key)), []byte(stored)) == 1, nil
}

// EnsureArtifacts writes the idle stream status and the visibility artifacts
// when they do not exist yet.
func (s *Store) EnsureArtifacts(ctx context.Context) error {
	now := s.now()
	if err := s.status.Ensure(now); err != nil {
		return err
	}
	if _, err := os.Stat(s.publicPath); err == nil {
		return nil
	}
	rec, err := s.Load(ctx)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.publicPath), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	return writeVisibility(s.publicPath, s.hlsConfPath, rec.PublicLive, rec.PublicHLS, now)
}
