// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/config"
	xglog "github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/log"
)

// Service is the server lifecycle App delegates to.
type Service interface {
	Start(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// App owns the long-lived runtime: the config watchers and the servers.
type App struct {
	logger  zerolog.Logger
	service Service
	holder  *config.Holder
}

// NewApp creates a new App orchestrator. A nil holder disables reloads.
func NewApp(logger zerolog.Logger, service Service, holder *config.Holder) *App {
	return &App{logger: logger, service: service, holder: holder}
}

// Run starts all owned background subsystems and blocks until ctx is
// cancelled or a server fails.
func (a *App) Run(ctx context.Context) error {
	if a.service == nil {
		return ErrMissingManager
	}

	g, ctx := errgroup.WithContext(ctx)

	if a.holder != nil {
		// The file watcher is best effort: without it reloads still work via SIGHUP.
		g.Go(func() error {
			if err := a.holder.Watch(ctx); err != nil {
				a.logger.Warn().Err(err).
					Str(xglog.FieldEvent, "config.watcher_start_failed").
					Msg("config watcher unavailable")
			}
			return nil
		})
		g.Go(func() error {
			return a.holder.WatchSignals(ctx)
		})
	}

	g.Go(func() error {
		err := a.service.Start(ctx)
		if err != nil {
			_ = a.service.Shutdown(context.Background())
		}
		return err
	})

	return g.Wait()
}
