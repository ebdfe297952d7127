// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package overlay

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	xglog "github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/log"
)

// ListStore persists the overlay list. UpdateOverlays must run fn under the
// same lock as any other configuration write and save its result as an
// explicit list.
type ListStore interface {
	UpdateOverlays(ctx context.Context, fn func([]Overlay) ([]Overlay, error)) ([]Overlay, error)
}

// Upload is a decoded image upload.
type Upload struct {
	OverlayID     string
	MIME          string
	Data          []byte
	SuggestedName string
}

// StoredImage describes the result of a successful upload.
type StoredImage struct {
	OverlayID string `json:"overlay_id"`
	ImageFile string `json:"image_file"`
	ImageURL  string `json:"image_url"`
}

// ImageURLPrefix is where the admin UI fetches stored images from.
const ImageURLPrefix = "/admin/overlays/"

// Manager applies image actions to the stored overlay list.
type Manager struct {
	store     ListStore
	files     *Storage
	sanitizer Sanitizer
	maxBytes  int
	logger    zerolog.Logger
}

// NewManager wires a Manager.
func NewManager(store ListStore, files *Storage, sanitizer Sanitizer) *Manager {
	return &Manager{
		store:     store,
		files:     files,
		sanitizer: sanitizer,
		maxBytes:  MaxImageBytes,
		logger:    xglog.WithComponent("overlay"),
	}
}

// Files exposes the underlying image storage.
func (m *Manager) Files() *Storage { return m.files }

func indexOf(list []Overlay, id string) int {
	for i, o := range list {
		if o.ID == id {
			return i
		}
	}
	return -1
}

// StoreImage writes an uploaded image and points the overlay at it, creating
// the overlay when the id is new. The previously referenced file is removed
// only after the configuration has been saved.
func (m *Manager) StoreImage(ctx context.Context, up Upload) (StoredImage, error) {
	ext, ok := AllowedMIME[strings.ToLower(up.MIME)]
	if !ok {
		return StoredImage{}, ErrUnsupportedImage
	}
	if len(up.Data) > m.maxBytes {
		return StoredImage{}, ErrImageTooLarge
	}
	id := NormalizeID(up.OverlayID)
	if id == "" {
		id = m.sanitizer.newID()
	}

	var filename, previous string
	_, err := m.store.UpdateOverlays(ctx, func(list []Overlay) ([]Overlay, error) {
		idx := indexOf(list, id)
		if idx == -1 {
			if len(list) >= m.sanitizer.maxCount() {
				return nil, ErrTooManyOverlays
			}
			fresh := Default()
			fresh.ID = id
			list = append(list, fresh)
			idx = len(list) - 1
		}

		used := make(map[string]struct{}, len(list))
		for _, o := range list {
			if o.ID != id && o.ImageFile != "" {
				used[o.ImageFile] = struct{}{}
			}
		}
		fallback := fmt.Sprintf("overlay-%s.%s", id, ext)
		filename = SafeFilename(up.SuggestedName, ext, fallback)
		if _, taken := used[filename]; taken {
			filename = fmt.Sprintf("%s-%s.%s", strings.TrimSuffix(filename, "."+ext), id, ext)
		}
		if _, taken := used[filename]; taken || !ValidImageFile(filename) {
			filename = fallback
		}

		if err := m.files.Write(filename, up.Data); err != nil {
			return nil, err
		}
		previous = list[idx].ImageFile
		list[idx].ImageFile = filename
		return list, nil
	})
	if err != nil {
		return StoredImage{}, err
	}

	if previous != "" && previous != filename {
		if err := m.files.Remove(previous); err != nil {
			m.logger.Warn().Err(err).Str(xglog.FieldOverlayID, id).Msg("previous overlay image not removed")
		}
	}

	logger := xglog.WithContext(ctx, m.logger)
	logger.Info().
		Str(xglog.FieldEvent, "overlay.image_stored").
		Str(xglog.FieldOverlayID, id).
		Str("image_file", filename).
		Int("bytes", len(up.Data)).
		Msg("overlay image stored")

	return StoredImage{OverlayID: id, ImageFile: filename, ImageURL: ImageURLPrefix + filename}, nil
}

// Clear removes the image of one overlay and disables it.
func (m *Manager) Clear(ctx context.Context, overlayID string) error {
	id := NormalizeID(overlayID)
	if id == "" {
		return ErrOverlayIDRequired
	}
	_, err := m.store.UpdateOverlays(ctx, func(list []Overlay) ([]Overlay, error) {
		idx := indexOf(list, id)
		if idx == -1 {
			return nil, ErrOverlayNotFound
		}
		if err := m.files.Remove(list[idx].ImageFile); err != nil {
			return nil, err
		}
		list[idx].ImageFile = ""
		list[idx].Enabled = false
		return list, nil
	})
	if err != nil {
		return err
	}
	logger := xglog.WithContext(ctx, m.logger)
	logger.Info().
		Str(xglog.FieldEvent, "overlay.cleared").
		Str(xglog.FieldOverlayID, id).
		Msg("overlay image cleared")
	return nil
}

// ClearAll removes every stored overlay image and saves an empty list.
func (m *Manager) ClearAll(ctx context.Context) error {
	_, err := m.store.UpdateOverlays(ctx, func(list []Overlay) ([]Overlay, error) {
		// Referenced images may still sit in the legacy location, which
		// Sweep does not scan.
		if err := m.files.RemoveFiles(list, nil); err != nil {
			return nil, err
		}
		if err := m.files.Sweep(nil); err != nil {
			return nil, err
		}
		return []Overlay{}, nil
	})
	if err != nil {
		return err
	}
	logger := xglog.WithContext(ctx, m.logger)
	logger.Info().
		Str(xglog.FieldEvent, "overlay.cleared_all").
		Msg("all overlays cleared")
	return nil
}

// Delete removes an overlay and its image. Deleting the last overlay leaves a
// default one in its place.
func (m *Manager) Delete(ctx context.Context, overlayID string) error {
	id := NormalizeID(overlayID)
	if id == "" {
		return ErrOverlayIDRequired
	}
	_, err := m.store.UpdateOverlays(ctx, func(list []Overlay) ([]Overlay, error) {
		idx := indexOf(list, id)
		if idx == -1 {
			return nil, ErrOverlayNotFound
		}
		if err := m.files.Remove(list[idx].ImageFile); err != nil {
			return nil, err
		}
		list = append(list[:idx], list[idx+1:]...)
		if len(list) == 0 {
			list = []Overlay{DefaultPrimary()}
		}
		return list, nil
	})
	if err != nil {
		return err
	}
	logger := xglog.WithContext(ctx, m.logger)
	logger.Info().
		Str(xglog.FieldEvent, "overlay.deleted").
		Str(xglog.FieldOverlayID, id).
		Msg("overlay deleted")
	return nil
}
