// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/audit"
	xglog "github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/log"
	"github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/normalize"
	"github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/restream"
)

func (s *Server) handleGetRestream(w http.ResponseWriter, r *http.Request) {
	rec, err := s.deps.Config.Load(r.Context())
	if err != nil {
		s.storageFailure(w, r, "restream.load_failed", err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleSaveRestream(w http.ResponseWriter, r *http.Request) {
	var patch restream.Patch
	if err := decodeBody(r, &patch); err != nil {
		writeBadRequest(w, err)
		return
	}
	rec, err := s.deps.Config.Save(r.Context(), patch)
	s.deps.Audit.Mutation(r.Context(), audit.EventConfigSaved, "/api/restream", err, map[string]string{
		"destinations": strconv.Itoa(len(rec.Destinations)),
		"overlays":     strconv.Itoa(len(rec.Overlays)),
	})
	if err != nil {
		if errors.Is(err, restream.ErrInvalidDestinations) {
			writeBadRequest(w, err)
			return
		}
		s.storageFailure(w, r, "restream.save_failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetIngest(w http.ResponseWriter, r *http.Request) {
	key, err := s.deps.Config.IngestKey(r.Context())
	if err != nil {
		s.storageFailure(w, r, "ingest.load_failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"ingest_key": key})
}

// handleSaveIngest replaces the ingest key and nothing else.
func (s *Server) handleSaveIngest(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := decodeBody(r, &body); err != nil {
		writeBadRequest(w, err)
		return
	}
	rec, err := s.deps.Config.Save(r.Context(), restream.Patch{IngestKey: normalize.Some(body["ingest_key"])})
	s.deps.Audit.Mutation(r.Context(), audit.EventIngestKeySaved, "/api/ingest", err, map[string]string{
		"gated": strconv.FormatBool(rec.IngestKey != ""),
	})
	if err != nil {
		s.storageFailure(w, r, "ingest.save_failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) storageFailure(w http.ResponseWriter, r *http.Request, event string, err error) {
	logger := xglog.WithContext(r.Context(), s.logger)
	logger.Error().Err(err).
		Str(xglog.FieldEvent, event).
		Msg("restream storage failed")
	writeInternal(w)
}
