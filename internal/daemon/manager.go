// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	xglog "github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/log"
)

// ShutdownHook is a function that performs cleanup during graceful shutdown.
// Hooks are executed in reverse registration order (LIFO).
type ShutdownHook func(ctx context.Context) error

// ServerConfig configures the admin and metrics listeners.
type ServerConfig struct {
	ListenAddr string
	// MetricsAddr serves Prometheus metrics; empty disables the listener.
	MetricsAddr     string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	MaxHeaderBytes  int
	ShutdownTimeout time.Duration
}

// DefaultServerConfig returns listener settings for the admin API. The write
// timeout outlasts the apply script so a deploy response is never cut off.
func DefaultServerConfig(listenAddr, metricsAddr string, applyTimeout time.Duration) ServerConfig {
	return ServerConfig{
		ListenAddr:      listenAddr,
		MetricsAddr:     metricsAddr,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    applyTimeout + 30*time.Second,
		IdleTimeout:     120 * time.Second,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Deps contains the handlers served by the Manager.
type Deps struct {
	Logger zerolog.Logger
	// APIHandler serves the admin API and the nginx callbacks.
	APIHandler http.Handler
	// MetricsHandler serves Prometheus metrics when MetricsAddr is set.
	MetricsHandler http.Handler
}

// Validate checks if the dependencies are valid.
func (d *Deps) Validate() error {
	if d.Logger.GetLevel() == zerolog.Disabled {
		return ErrMissingLogger
	}
	if d.APIHandler == nil {
		return ErrMissingAPIHandler
	}
	return nil
}

type namedHook struct {
	name string
	hook ShutdownHook
}

// Manager runs the HTTP listeners and the shutdown sequence.
type Manager struct {
	cfg  ServerConfig
	deps Deps

	mu            sync.Mutex
	apiServer     *http.Server
	metricsServer *http.Server
	apiAddr       string
	shutdownHooks []namedHook
	started       bool
	stopping      bool

	logger zerolog.Logger
}

// NewManager creates a Manager serving deps with cfg.
func NewManager(cfg ServerConfig, deps Deps) (*Manager, error) {
	if err := deps.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dependencies: %w", err)
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	return &Manager{
		cfg:    cfg,
		deps:   deps,
		logger: deps.Logger.With().Str(xglog.FieldComponent, "manager").Logger(),
	}, nil
}

// Addr returns the bound admin API address once Start has listened.
func (m *Manager) Addr() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.apiAddr
}

// Start binds the listeners and serves until ctx is cancelled or a server
// fails. Bind failures are returned before anything is served.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return ErrManagerStarted
	}
	m.started = true
	m.mu.Unlock()

	apiLn, err := net.Listen("tcp", m.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", m.cfg.ListenAddr, err)
	}
	var metricsLn net.Listener
	if m.cfg.MetricsAddr != "" && m.deps.MetricsHandler != nil {
		metricsLn, err = net.Listen("tcp", m.cfg.MetricsAddr)
		if err != nil {
			_ = apiLn.Close()
			return fmt.Errorf("listen metrics %s: %w", m.cfg.MetricsAddr, err)
		}
	}

	errChan := make(chan error, 2)

	m.mu.Lock()
	m.apiAddr = apiLn.Addr().String()
	m.apiServer = &http.Server{
		Handler:           m.deps.APIHandler,
		ReadTimeout:       m.cfg.ReadTimeout,
		ReadHeaderTimeout: m.cfg.ReadTimeout / 2,
		WriteTimeout:      m.cfg.WriteTimeout,
		IdleTimeout:       m.cfg.IdleTimeout,
		MaxHeaderBytes:    m.cfg.MaxHeaderBytes,
	}
	if metricsLn != nil {
		m.metricsServer = &http.Server{
			Handler:           m.deps.MetricsHandler,
			ReadHeaderTimeout: 5 * time.Second,
		}
	}
	m.mu.Unlock()

	m.serve("api", m.apiServer, apiLn, errChan)
	if metricsLn != nil {
		m.serve("metrics", m.metricsServer, metricsLn, errChan)
	}

	select {
	case err := <-errChan:
		m.logger.Error().Err(err).Str(xglog.FieldEvent, "daemon.server_failed").Msg("server error, initiating shutdown")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.cfg.ShutdownTimeout)
		defer cancel()
		if shutdownErr := m.Shutdown(shutdownCtx); shutdownErr != nil {
			return fmt.Errorf("server error and shutdown failure: %w", errors.Join(err, shutdownErr))
		}
		return err
	case <-ctx.Done():
		m.logger.Info().Str(xglog.FieldEvent, "daemon.shutdown_requested").Msg("shutdown signal received")
		return m.Shutdown(context.WithoutCancel(ctx))
	}
}

func (m *Manager) serve(name string, srv *http.Server, ln net.Listener, errChan chan<- error) {
	m.logger.Info().
		Str(xglog.FieldEvent, "daemon."+name+"_listening").
		Str("addr", ln.Addr().String()).
		Msg("server listening")
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("%s server: %w", name, err)
		}
	}()
}

// Shutdown stops the servers, then runs the hooks in reverse order.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.stopping {
		m.mu.Unlock()
		return nil
	}
	if !m.started {
		m.mu.Unlock()
		return ErrManagerNotStarted
	}
	m.stopping = true
	apiServer, metricsServer := m.apiServer, m.metricsServer
	hooks := append([]namedHook(nil), m.shutdownHooks...)
	m.mu.Unlock()

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.cfg.ShutdownTimeout)
	defer cancel()

	var errs []error
	if apiServer != nil {
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("API server shutdown: %w", err))
			_ = apiServer.Close()
		}
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("metrics server shutdown: %w", err))
			_ = metricsServer.Close()
		}
	}

	for i := len(hooks) - 1; i >= 0; i-- {
		h := hooks[i]
		start := time.Now()
		if err := h.hook(shutdownCtx); err != nil {
			m.logger.Error().Err(err).
				Str("hook", h.name).
				Dur(xglog.FieldDuration, time.Since(start)).
				Msg("shutdown hook failed")
			errs = append(errs, fmt.Errorf("hook %s: %w", h.name, err))
			continue
		}
		m.logger.Debug().Str("hook", h.name).Dur(xglog.FieldDuration, time.Since(start)).Msg("shutdown hook completed")
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}
	m.logger.Info().Str(xglog.FieldEvent, "daemon.stopped").Msg("daemon stopped cleanly")
	return nil
}

// RegisterShutdownHook registers a cleanup function to be called during shutdown.
// Hooks are executed in reverse registration order (LIFO).
func (m *Manager) RegisterShutdownHook(name string, hook ShutdownHook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shutdownHooks = append(m.shutdownHooks, namedHook{name: name, hook: hook})
}
