// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"

	xglog "github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/log"
)

// Reload sources.
const (
	SourceFile   = "file"
	SourceSignal = "sighup"
	SourceManual = "manual"
)

const debounce = 300 * time.Millisecond

// ReloadFunc observes every reload attempt. On failure next is the kept
// snapshot.
type ReloadFunc func(ctx context.Context, source string, prev, next AppConfig, err error)

// Holder keeps the live configuration snapshot.
type Holder struct {
	mu      sync.RWMutex
	current AppConfig
	loader  *Loader
	logger  zerolog.Logger

	hookMu sync.RWMutex
	hooks  []ReloadFunc
}

// NewHolder returns a Holder serving initial until the first reload.
func NewHolder(initial AppConfig, loader *Loader) *Holder {
	return &Holder{
		current: initial,
		loader:  loader,
		logger:  xglog.WithComponent("config"),
	}
}

// Get returns the current snapshot.
func (h *Holder) Get() AppConfig {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// OnReload registers fn for every reload attempt.
func (h *Holder) OnReload(fn ReloadFunc) {
	h.hookMu.Lock()
	defer h.hookMu.Unlock()
	h.hooks = append(h.hooks, fn)
}

// Reload loads and validates a new snapshot. On failure the current snapshot
// is kept and the error returned.
func (h *Holder) Reload(ctx context.Context, source string) error {
	next, err := h.loader.Load()

	h.mu.Lock()
	prev := h.current
	if err == nil {
		h.current = next
	}
	h.mu.Unlock()

	if err != nil {
		h.logger.Error().Err(err).
			Str(xglog.FieldEvent, "config.reload_failed").
			Str("source", source).
			Msg("configuration reload failed, keeping previous snapshot")
		h.notify(ctx, source, prev, prev, err)
		return fmt.Errorf("reload config: %w", err)
	}

	diff := cmp.Diff(prev.Masked(), next.Masked())
	evt := h.logger.Info().
		Str(xglog.FieldEvent, "config.reloaded").
		Str("source", source).
		Bool("changed", diff != "")
	if diff != "" {
		evt = evt.Str("diff", diff)
	}
	evt.Msg("configuration reloaded")
	if prev.Log.Level != next.Log.Level {
		xglog.SetLevel(next.Log.Level)
	}
	h.notify(ctx, source, prev, next, nil)
	return nil
}

func (h *Holder) notify(ctx context.Context, source string, prev, next AppConfig, err error) {
	h.hookMu.RLock()
	hooks := append([]ReloadFunc(nil), h.hooks...)
	h.hookMu.RUnlock()
	for _, fn := range hooks {
		fn(ctx, source, prev, next, err)
	}
}

// Watch reloads when the config file changes until ctx is done. The parent
// directory is watched so editors that replace the file are seen. Without a
// config file Watch just waits for ctx.
func (h *Holder) Watch(ctx context.Context) error {
	path := h.loader.Path()
	if path == "" {
		h.logger.Info().Str(xglog.FieldEvent, "config.watcher_disabled").Msg("no config file, watcher disabled")
		<-ctx.Done()
		return nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = w.Close() }()
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch config dir: %w", err)
	}
	h.logger.Info().
		Str(xglog.FieldEvent, "config.watcher_started").
		Str(xglog.FieldPath, abs).
		Msg("watching config file for changes")

	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				timer.Reset(debounce)
			}
		case <-timer.C:
			_ = h.Reload(ctx, SourceFile)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			h.logger.Warn().Err(err).Str(xglog.FieldEvent, "config.watcher_error").Msg("config watcher error")
		}
	}
}

// WatchSignals reloads on SIGHUP until ctx is done.
func (h *Holder) WatchSignals(ctx context.Context) error {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGHUP)
	defer signal.Stop(ch)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ch:
			_ = h.Reload(ctx, SourceSignal)
		}
	}
}
