// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api serves the restream admin HTTP API and the nginx publish hooks.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/api/middleware"
	"github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/apply"
	"github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/audit"
	"github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/auth"
	"github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/health"
	xglog "github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/log"
	"github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/overlay"
	"github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/restream"
	"github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/sysmetrics"
)

// ConfigStore reads and patches the restream record.
type ConfigStore interface {
	Load(ctx context.Context) (restream.Record, error)
	Save(ctx context.Context, p restream.Patch) (restream.Record, error)
	IngestKey(ctx context.Context) (string, error)
	CheckIngestKey(ctx context.Context, key string) (bool, error)
}

// StatusTracker records publisher transitions reported by nginx.
type StatusTracker interface {
	MarkPublishing(t time.Time) (restream.Status, error)
	MarkIdle(t time.Time) (restream.Status, error)
}

// OverlayImages applies image actions to the overlay list.
type OverlayImages interface {
	StoreImage(ctx context.Context, up overlay.Upload) (overlay.StoredImage, error)
	Clear(ctx context.Context, overlayID string) error
	ClearAll(ctx context.Context) error
	Delete(ctx context.Context, overlayID string) error
}

// ImageFiles resolves stored overlay images.
type ImageFiles interface {
	Path(name string) (string, error)
}

// CredentialVerifier checks admin logins.
type CredentialVerifier interface {
	Verify(user, password string) bool
}

// MetricsSampler samples host resources.
type MetricsSampler interface {
	Sample(ctx context.Context) sysmetrics.Metrics
}

// HealthEvaluator builds stream health reports.
type HealthEvaluator interface {
	Evaluate(ctx context.Context) (health.Report, error)
}

// Applier runs the deploy script.
type Applier interface {
	Run(ctx context.Context, opts apply.Options) error
}

// Reconnector forces publishers to reconnect.
type Reconnector interface {
	Trigger(ctx context.Context) (bool, string)
}

// Settings are read from the live configuration on every request.
type Settings struct {
	SessionCookie string
	SessionTTL    time.Duration
}

// Deps wires a Server.
type Deps struct {
	Config    ConfigStore
	Status    StatusTracker
	Overlays  OverlayImages
	Images    ImageFiles
	Verifier  CredentialVerifier
	Sessions  auth.SessionStore
	Sampler   MetricsSampler
	Health    HealthEvaluator
	Applier   Applier
	Reconnect Reconnector
	Audit     *audit.Logger
	Probes    *health.Manager

	Settings func() Settings
	// LoginRateLimit bounds login attempts per client address and minute.
	LoginRateLimit int
	// TracingService enables inbound request spans when set.
	TracingService string
	Now            func() time.Time
}

// Server is the admin API.
type Server struct {
	deps   Deps
	now    func() time.Time
	logger zerolog.Logger
}

// New returns a Server for deps.
func New(deps Deps) *Server {
	if deps.Settings == nil {
		deps.Settings = func() Settings { return Settings{} }
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Server{deps: deps, now: now, logger: xglog.WithComponent("api")}
}

func (s *Server) settings() Settings {
	st := s.deps.Settings()
	if st.SessionCookie == "" {
		st.SessionCookie = auth.DefaultCookieName
	}
	if st.SessionTTL <= 0 {
		st.SessionTTL = auth.DefaultSessionTTL
	}
	return st
}

// Handler returns the routed admin API.
func (s *Server) Handler() http.Handler {
	r := middleware.NewRouter(middleware.StackConfig{
		EnableSecurityHeaders: true,
		EnableMetrics:         true,
		TracingService:        s.deps.TracingService,
		EnableLogging:         true,
	})
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) { writeNotFound(w) })
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) { writeNotFound(w) })

	r.Get("/healthz", s.handleLive)
	if s.deps.Probes != nil {
		r.Get("/readyz", s.deps.Probes.ServeReady)
	}

	r.Route("/api", func(r chi.Router) {
		r.With(s.loginLimiter()).Post("/login", s.handleLogin)
		r.Post("/logout", s.handleLogout)

		// nginx calls these without a session.
		r.Post("/publish", s.handlePublish)
		r.Post("/publish_done", s.handlePublishDone)

		r.Group(func(r chi.Router) {
			r.Use(s.requireSession)
			r.Get("/session", s.handleSession)
			r.Get("/restream", s.handleGetRestream)
			r.Post("/restream", s.handleSaveRestream)
			r.Get("/ingest", s.handleGetIngest)
			r.Post("/ingest", s.handleSaveIngest)
			r.Get("/metrics", s.handleMetrics)
			r.Get("/health", s.handleHealth)
			r.Post("/overlay/image", s.handleOverlayImage)
			r.Post("/restream/apply", s.handleApply)
			r.Post("/stream/reconnect", s.handleReconnect)
		})
	})

	r.With(s.requireSession).Get(overlay.ImageURLPrefix+"{file}", s.handleOverlayFile)
	return r
}

func (s *Server) loginLimiter() func(http.Handler) http.Handler {
	if s.deps.LoginRateLimit <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return middleware.PerMinute(s.deps.LoginRateLimit)
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	if s.deps.Probes != nil {
		s.deps.Probes.ServeLive(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
