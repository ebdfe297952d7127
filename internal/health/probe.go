// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package health reports on the restream appliance: liveness and readiness
// probes for process supervisors, and the stream health report shown in the
// admin UI.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	xglog "github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/log"
)

// Status is the outcome of a probe.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// CheckResult is the result of one component check.
type CheckResult struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ProbeResponse is returned by the liveness and readiness endpoints.
type ProbeResponse struct {
	Status    Status                 `json:"status"`
	Ready     *bool                  `json:"ready,omitempty"`
	Version   string                 `json:"version,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// Checker is one component check.
type Checker interface {
	Name() string
	Check(ctx context.Context) CheckResult
}

// Manager runs the registered checkers for the probe endpoints.
type Manager struct {
	version  string
	checkers []Checker
	now      func() time.Time
}

// NewManager returns a Manager reporting version.
func NewManager(version string) *Manager {
	return &Manager{version: version, now: time.Now}
}

// RegisterChecker adds a checker. Not safe for use once serving.
func (m *Manager) RegisterChecker(c Checker) {
	m.checkers = append(m.checkers, c)
}

func (m *Manager) run(ctx context.Context) (map[string]CheckResult, Status) {
	results := make(map[string]CheckResult, len(m.checkers))
	overall := StatusHealthy
	for _, c := range m.checkers {
		res := c.Check(ctx)
		results[c.Name()] = res
		switch {
		case res.Status == StatusUnhealthy:
			overall = StatusUnhealthy
		case res.Status == StatusDegraded && overall == StatusHealthy:
			overall = StatusDegraded
		}
	}
	return results, overall
}

// Live reports that the process is up. Checks only run when verbose is set
// and never turn a liveness probe into a failure.
func (m *Manager) Live(ctx context.Context, verbose bool) ProbeResponse {
	resp := ProbeResponse{Status: StatusHealthy, Version: m.version, Timestamp: m.now()}
	if verbose && len(m.checkers) > 0 {
		resp.Checks, resp.Status = m.run(ctx)
	}
	return resp
}

// Ready reports whether the daemon can serve admin requests. Any unhealthy
// check makes it not ready; degraded checks do not.
func (m *Manager) Ready(ctx context.Context) ProbeResponse {
	checks, status := m.run(ctx)
	ready := status != StatusUnhealthy
	resp := ProbeResponse{Status: status, Ready: &ready, Version: m.version, Timestamp: m.now()}
	if len(checks) > 0 {
		resp.Checks = checks
	}
	return resp
}

// ServeLive handles GET /healthz. It always answers 200.
func (m *Manager) ServeLive(w http.ResponseWriter, r *http.Request) {
	resp := m.Live(r.Context(), r.URL.Query().Get("verbose") == "true")
	m.write(w, r, http.StatusOK, resp, "health.live")
}

// ServeReady handles GET /readyz with 503 when not ready.
func (m *Manager) ServeReady(w http.ResponseWriter, r *http.Request) {
	resp := m.Ready(r.Context())
	code := http.StatusOK
	if resp.Ready != nil && !*resp.Ready {
		code = http.StatusServiceUnavailable
	}
	m.write(w, r, code, resp, "health.ready")
}

func (m *Manager) write(w http.ResponseWriter, r *http.Request, code int, resp ProbeResponse, event string) {
	logger := xglog.WithComponentFromContext(r.Context(), "health")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error().Err(err).Str(xglog.FieldEvent, event+".encode_error").Msg("failed to encode probe response")
		return
	}
	logger.Debug().
		Str(xglog.FieldEvent, event).
		Str("status", string(resp.Status)).
		Msg("probe answered")
}

// DirChecker verifies that a directory exists and is writable.
type DirChecker struct {
	name string
	path string
}

// NewDirChecker returns a checker for path.
func NewDirChecker(name, path string) *DirChecker {
	return &DirChecker{name: name, path: path}
}

func (c *DirChecker) Name() string { return c.name }

func (c *DirChecker) Check(context.Context) CheckResult {
	if err := checkWritableDir(c.path); err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error(), Message: c.path}
	}
	return CheckResult{Status: StatusHealthy, Message: "writable"}
}

func checkWritableDir(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("directory does not exist: %s", path)
		}
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}
	probe, err := os.CreateTemp(path, ".write_test-*")
	if err != nil {
		return fmt.Errorf("directory is not writable: %s: %w", path, err)
	}
	name := probe.Name()
	_ = probe.Close()
	_ = os.Remove(filepath.Clean(name))
	return nil
}

// StatsChecker reports the media server statistics endpoint. An unreachable
// media server degrades the daemon without making it unready.
type StatsChecker struct {
	stats StatsFetcher
}

// NewStatsChecker returns a checker backed by stats.
func NewStatsChecker(stats StatsFetcher) *StatsChecker {
	return &StatsChecker{stats: stats}
}

func (c *StatsChecker) Name() string { return "rtmp_stats" }

func (c *StatsChecker) Check(ctx context.Context) CheckResult {
	if _, err := c.stats.Fetch(ctx); err != nil {
		return CheckResult{Status: StatusDegraded, Error: err.Error()}
	}
	return CheckResult{Status: StatusHealthy, Message: "reachable"}
}

// FuncChecker adapts a function to Checker. A failure reports failStatus.
type FuncChecker struct {
	name       string
	fn         func(context.Context) error
	failStatus Status
}

// NewFuncChecker returns a FuncChecker.
func NewFuncChecker(name string, failStatus Status, fn func(context.Context) error) *FuncChecker {
	return &FuncChecker{name: name, fn: fn, failStatus: failStatus}
}

func (c *FuncChecker) Name() string { return c.name }

func (c *FuncChecker) Check(ctx context.Context) CheckResult {
	if err := c.fn(ctx); err != nil {
		return CheckResult{Status: c.failStatus, Error: err.Error()}
	}
	return CheckResult{Status: StatusHealthy}
}
