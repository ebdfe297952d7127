// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/audit"
	"github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/auth"
	xglog "github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/log"
	"github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/normalize"
)

// requireSession admits requests carrying a live session and stores the
// principal in the request context.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := auth.ExtractToken(r, s.settings().SessionCookie)
		if token == "" || s.deps.Sessions == nil {
			writeUnauthorized(w)
			return
		}
		user, err := s.deps.Sessions.Lookup(r.Context(), token)
		if err != nil {
			if !errors.Is(err, auth.ErrSessionNotFound) {
				// The access log's request logger carries the trace ids.
				xglog.FromContext(r.Context()).Error().Err(err).
					Str(xglog.FieldEvent, "auth.session_lookup_failed").
					Msg("session lookup failed")
			}
			writeUnauthorized(w)
			return
		}
		ctx := auth.WithPrincipal(r.Context(), auth.Principal{User: user, SessionID: auth.SessionID(token)})
		ctx = xglog.ContextWithUser(ctx, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := decodeBody(r, &body); err != nil {
		writeBadRequest(w, err)
		return
	}
	user := strings.TrimSpace(normalize.String(body["user"]))
	password := strings.TrimSpace(normalize.String(body["password"]))

	ok := user != "" && password != "" && s.deps.Verifier != nil && s.deps.Verifier.Verify(user, password)
	s.deps.Audit.Login(r.Context(), user, r.RemoteAddr, ok)
	if !ok {
		writeErrorMessage(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	logger := xglog.WithContext(r.Context(), s.logger)
	st := s.settings()
	sess, err := s.deps.Sessions.Create(r.Context(), user)
	if err != nil {
		logger.Error().Err(err).
			Str(xglog.FieldEvent, "auth.session_create_failed").
			Msg("session not created")
		writeInternal(w)
		return
	}
	logger.Info().
		Str(xglog.FieldEvent, "auth.login").
		Str(xglog.FieldUser, user).
		Str("session_id", auth.SessionID(sess.Token)).
		Msg("admin logged in")

	http.SetCookie(w, auth.SessionCookie(r, st.SessionCookie, sess.Token, st.SessionTTL))
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	st := s.settings()
	if token := auth.ExtractToken(r, st.SessionCookie); token != "" && s.deps.Sessions != nil {
		user, _ := s.deps.Sessions.Lookup(r.Context(), token)
		if err := s.deps.Sessions.Delete(r.Context(), token); err != nil {
			logger := xglog.WithContext(r.Context(), s.logger)
			logger.Warn().Err(err).
				Str(xglog.FieldEvent, "auth.session_delete_failed").
				Msg("session not deleted")
		}
		if user != "" {
			s.deps.Audit.Record(xglog.ContextWithUser(r.Context(), user), audit.Event{
				Type:       audit.EventLogout,
				Resource:   "/api/logout",
				Result:     audit.ResultSuccess,
				RemoteAddr: r.RemoteAddr,
			})
		}
	}
	http.SetCookie(w, auth.ExpiredCookie(r, st.SessionCookie))
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{"user": p.User})
}
