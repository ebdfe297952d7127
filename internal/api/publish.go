// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/audit"
	xglog "github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/log"
	"github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/metrics"
)

// publishParams returns the callback parameters nginx sent: the query string,
// or the urlencoded body when the query is empty.
func publishParams(r *http.Request) url.Values {
	params := r.URL.Query()
	if len(params) > 0 {
		return params
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, 64*1024))
	if err != nil || len(body) == 0 {
		return params
	}
	parsed, err := url.ParseQuery(string(body))
	if err != nil {
		return params
	}
	return parsed
}

// publishKey prefers an explicit key parameter and falls back to the stream
// name, which carries the key when publishers use rtmp://host/ingest/<key>.
func publishKey(params url.Values) string {
	if key := params.Get("key"); key != "" {
		return strings.TrimSpace(key)
	}
	return strings.TrimSpace(params.Get("name"))
}

// handlePublish is the nginx on_publish callback. Any 2xx lets the publisher
// in; 403 rejects it.
func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	params := publishParams(r)
	logger := xglog.WithContext(r.Context(), s.logger).With().
		Str(xglog.FieldApp, params.Get("app")).
		Str(xglog.FieldRemoteAddr, params.Get("addr")).
		Logger()

	ok, err := s.deps.Config.CheckIngestKey(r.Context(), publishKey(params))
	if err != nil {
		logger.Error().Err(err).Str(xglog.FieldEvent, "publish.check_failed").Msg("ingest key check failed")
		writeInternal(w)
		return
	}
	if !ok {
		metrics.IncPublishEvent("denied")
		s.deps.Audit.Record(r.Context(), audit.Event{
			Type:       audit.EventPublishDenied,
			Actor:      "nginx",
			Resource:   "/api/publish",
			Result:     audit.ResultDenied,
			RemoteAddr: params.Get("addr"),
		})
		logger.Warn().Str(xglog.FieldEvent, "publish.denied").Msg("publisher rejected: ingest key mismatch")
		writeForbidden(w)
		return
	}

	metrics.IncPublishEvent("publish")
	if _, err := s.deps.Status.MarkPublishing(s.now()); err != nil {
		logger.Warn().Err(err).Str(xglog.FieldEvent, "publish.status_failed").Msg("stream status not written")
	}
	logger.Info().Str(xglog.FieldEvent, "publish.start").Msg("publisher accepted")
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handlePublishDone is the nginx on_publish_done callback.
func (s *Server) handlePublishDone(w http.ResponseWriter, r *http.Request) {
	logger := xglog.WithContext(r.Context(), s.logger)
	metrics.IncPublishEvent("publish_done")
	if _, err := s.deps.Status.MarkIdle(s.now()); err != nil {
		logger.Warn().Err(err).Str(xglog.FieldEvent, "publish.status_failed").Msg("stream status not written")
	}
	logger.Info().Str(xglog.FieldEvent, "publish.done").Msg("publisher left")
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
