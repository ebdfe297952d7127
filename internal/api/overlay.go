// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"errors"
	"io/fs"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/audit"
	xglog "github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/log"
	"github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/normalize"
	"github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/overlay"
)

// firstString returns the first non-empty text value among keys.
func firstString(body map[string]any, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(normalize.String(body[k])); v != "" {
			return v
		}
	}
	return ""
}

func (s *Server) handleOverlayImage(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := decodeBody(r, &body); err != nil {
		writeBadRequest(w, err)
		return
	}
	action := strings.ToLower(strings.TrimSpace(normalize.String(body["action"])))
	id := overlay.NormalizeID(body["overlay_id"])
	if id == "" {
		id = overlay.NormalizeID(body["id"])
	}
	ctx := r.Context()

	switch action {
	case "clear":
		if id == "" {
			err := s.deps.Overlays.ClearAll(ctx)
			s.deps.Audit.Mutation(ctx, audit.EventOverlayClear, "overlays", err, nil)
			if err != nil {
				s.overlayFailure(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"status": "cleared", "overlays": []any{}})
			return
		}
		err := s.deps.Overlays.Clear(ctx, id)
		s.deps.Audit.Mutation(ctx, audit.EventOverlayClear, "overlay/"+id, err, nil)
		if err != nil {
			s.overlayFailure(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "cleared", "overlay_id": id})

	case "delete":
		if id == "" {
			writeBadRequest(w, overlay.ErrOverlayIDRequired)
			return
		}
		err := s.deps.Overlays.Delete(ctx, id)
		s.deps.Audit.Mutation(ctx, audit.EventOverlayDelete, "overlay/"+id, err, nil)
		if err != nil {
			s.overlayFailure(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "overlay_id": id})

	default:
		mime, data, err := overlay.DecodeDataURL(normalize.String(body["data_url"]))
		if err != nil {
			writeBadRequest(w, err)
			return
		}
		stored, err := s.deps.Overlays.StoreImage(ctx, overlay.Upload{
			OverlayID:     id,
			MIME:          mime,
			Data:          data,
			SuggestedName: firstString(body, "original_name", "filename", "name"),
		})
		resource := "overlay/" + stored.OverlayID
		if stored.OverlayID == "" {
			resource = "overlay/" + id
		}
		s.deps.Audit.Mutation(ctx, audit.EventOverlayUpload, resource, err, map[string]string{"image_file": stored.ImageFile})
		if err != nil {
			s.overlayFailure(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"status":     "ok",
			"image_file": stored.ImageFile,
			"image_url":  stored.ImageURL,
			"overlay_id": stored.OverlayID,
		})
	}
}

func (s *Server) overlayFailure(w http.ResponseWriter, r *http.Request, err error) {
	if overlay.IsValidation(err) {
		writeBadRequest(w, err)
		return
	}
	logger := xglog.WithContext(r.Context(), s.logger)
	logger.Error().Err(err).
		Str(xglog.FieldEvent, "overlay.action_failed").
		Msg("overlay action failed")
	writeInternal(w)
}

// handleOverlayFile serves a stored overlay image for the admin preview.
func (s *Server) handleOverlayFile(w http.ResponseWriter, r *http.Request) {
	if s.deps.Images == nil {
		writeNotFound(w)
		return
	}
	path, err := s.deps.Images.Path(chi.URLParam(r, "file"))
	switch {
	case errors.Is(err, overlay.ErrInvalidFilename), errors.Is(err, fs.ErrNotExist):
		writeNotFound(w)
		return
	case err != nil:
		s.overlayFailure(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeFile(w, r, path)
}
