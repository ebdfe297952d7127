// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package overlay

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"

	xglog "github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/log"
)

// Storage keeps overlay images in <data>/overlays. Older installs stored them
// directly in <data>; those files are still found and migrated on load.
type Storage struct {
	dir       string
	legacyDir string
	logger    zerolog.Logger
}

// NewStorage returns a Storage rooted at dataDir.
func NewStorage(dataDir string) *Storage {
	return &Storage{
		dir:       filepath.Join(dataDir, "overlays"),
		legacyDir: dataDir,
		logger:    xglog.WithComponent("overlay"),
	}
}

// Dir returns the overlay directory.
func (s *Storage) Dir() string { return s.dir }

// Path resolves a stored image. Legacy locations are consulted when the file
// is not in the overlay directory.
func (s *Storage) Path(name string) (string, error) {
	if NormalizeImageFile(name) != name {
		return "", ErrInvalidFilename
	}
	p := filepath.Join(s.dir, name)
	if _, err := os.Stat(p); err == nil {
		return p, nil
	}
	legacy := filepath.Join(s.legacyDir, name)
	if _, err := os.Stat(legacy); err == nil {
		return legacy, nil
	}
	return "", fs.ErrNotExist
}

// Write durably stores data under name.
func (s *Storage) Write(name string, data []byte) error {
	if NormalizeImageFile(name) != name {
		return ErrInvalidFilename
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create overlay dir: %w", err)
	}
	if err := renameio.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return fmt.Errorf("write overlay image: %w", err)
	}
	return nil
}

// Remove deletes name from the overlay directory, or from the legacy location
// when it only exists there. Missing files are not an error.
func (s *Storage) Remove(name string) error {
	if name == "" || NormalizeImageFile(name) != name {
		return nil
	}
	for _, dir := range []string{s.dir, s.legacyDir} {
		err := os.Remove(filepath.Join(dir, name))
		if err == nil {
			return nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove overlay image: %w", err)
		}
	}
	return nil
}

// RemoveFiles deletes the images referenced by list except those in keep.
func (s *Storage) RemoveFiles(list []Overlay, keep map[string]struct{}) error {
	var errs []error
	done := make(map[string]struct{}, len(list))
	for _, o := range list {
		name := NormalizeImageFile(o.ImageFile)
		if name == "" {
			continue
		}
		if _, ok := keep[name]; ok {
			continue
		}
		if _, ok := done[name]; ok {
			continue
		}
		done[name] = struct{}{}
		if err := s.Remove(name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Sweep deletes every image-named file in the overlay directory that is not
// in keep. Files that do not look like overlay images are left alone.
func (s *Storage) Sweep(keep map[string]struct{}) error {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read overlay dir: %w", err)
	}
	var errs []error
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if _, ok := keep[e.Name()]; ok {
			continue
		}
		if !ValidImageFile(e.Name()) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Migrate moves images referenced by list from the legacy location into the
// overlay directory. Failures are logged and skipped.
func (s *Storage) Migrate(list []Overlay) {
	if len(list) == 0 {
		return
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		s.logger.Warn().Err(err).Str(xglog.FieldEvent, "overlay.migrate_failed").Msg("cannot create overlay dir")
		return
	}
	for _, o := range list {
		name := NormalizeImageFile(o.ImageFile)
		if name == "" {
			continue
		}
		target := filepath.Join(s.dir, name)
		if _, err := os.Stat(target); err == nil {
			continue
		}
		legacy := filepath.Join(s.legacyDir, name)
		if _, err := os.Stat(legacy); err != nil {
			continue
		}
		if err := os.Rename(legacy, target); err != nil {
			s.logger.Warn().Err(err).
				Str(xglog.FieldEvent, "overlay.migrate_failed").
				Str(xglog.FieldPath, legacy).
				Msg("legacy overlay image not migrated")
			continue
		}
		s.logger.Info().
			Str(xglog.FieldEvent, "overlay.migrated").
			Str(xglog.FieldPath, target).
			Msg("moved legacy overlay image")
	}
}
