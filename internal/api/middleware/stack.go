// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package middleware provides the HTTP middleware stack of the admin API.
package middleware

import (
	"github.com/go-chi/chi/v5"

	xglog "github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/log"
)

// StackConfig selects the cross-cutting middleware applied to every route.
type StackConfig struct {
	EnableSecurityHeaders bool
	EnableMetrics         bool
	// TracingService names the server spans; empty disables tracing.
	TracingService string
	EnableLogging  bool
	// RequestsPerMinute bounds each client address; zero disables the limit.
	RequestsPerMinute int
}

// NewRouter returns a chi router with the stack applied.
func NewRouter(cfg StackConfig) *chi.Mux {
	r := chi.NewRouter()
	ApplyStack(r, cfg)
	return r
}

// ApplyStack installs the middleware in order: panic recovery, request id,
// security headers, metrics, tracing, access log, rate limit.
func ApplyStack(r chi.Router, cfg StackConfig) {
	r.Use(Recoverer)
	r.Use(RequestID)
	if cfg.EnableSecurityHeaders {
		r.Use(SecurityHeaders)
	}
	if cfg.EnableMetrics {
		r.Use(Metrics)
	}
	if cfg.TracingService != "" {
		r.Use(Tracing(cfg.TracingService))
	}
	if cfg.EnableLogging {
		r.Use(xglog.Middleware())
	}
	if cfg.RequestsPerMinute > 0 {
		r.Use(PerMinute(cfg.RequestsPerMinute))
	}
}
