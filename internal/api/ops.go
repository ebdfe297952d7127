// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/apply"
	"github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/audit"
	xglog "github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/log"
	"github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/metrics"
)

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Sampler.Sample(r.Context()))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report, err := s.deps.Health.Evaluate(r.Context())
	if err != nil {
		s.storageFailure(w, r, "health.evaluate_failed", err)
		return
	}
	metrics.ObserveHealth(report)
	writeJSON(w, http.StatusOK, report)
}

// handleApply runs the deploy script, optionally followed by a reconnect.
// The script keeps running when the client goes away.
func (s *Server) handleApply(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := apply.Options{Restart: q.Get("restart") == "1"}
	reconnect := q.Get("reconnect") == "1"

	ctx := context.WithoutCancel(r.Context())
	start := s.now()
	err := s.deps.Applier.Run(ctx, opts)
	metrics.ObserveApply(err == nil, s.now().Sub(start))
	s.deps.Audit.Mutation(ctx, audit.EventApply, "/api/restream/apply", err, map[string]string{
		"restart":   strconv.FormatBool(opts.Restart),
		"reconnect": strconv.FormatBool(reconnect),
	})
	if err != nil {
		logger := xglog.WithContext(ctx, s.logger)
		logger.Error().Err(err).
			Str(xglog.FieldEvent, "apply.failed").
			Msg("apply script failed")
		writeErrorMessage(w, http.StatusInternalServerError, fmt.Sprintf("apply failed: %v", err))
		return
	}

	payload := map[string]string{"status": "applied"}
	if reconnect {
		ok, result := s.trigger(ctx)
		if ok {
			payload["reconnect"] = "ok"
			payload["reconnect_result"] = result
		} else {
			payload["reconnect"] = "failed"
			payload["reconnect_error"] = result
		}
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleReconnect(w http.ResponseWriter, r *http.Request) {
	ok, result := s.trigger(r.Context())
	if !ok {
		writeErrorMessage(w, http.StatusInternalServerError, "reconnect failed: "+result)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reconnecting", "result": result})
}

func (s *Server) trigger(ctx context.Context) (bool, string) {
	ok, result := s.deps.Reconnect.Trigger(ctx)
	metrics.IncReconnect(ok)
	var err error
	if !ok {
		err = errors.New(result)
	}
	s.deps.Audit.Mutation(ctx, audit.EventReconnect, "/api/stream/reconnect", err, nil)
	return ok, result
}
