// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/config"
	"github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/daemon"
	xglog "github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/log"
	"github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/version"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the admin API and the nginx callbacks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}
}

func runServe(cmd *cobra.Command, opts *rootOptions) error {
	// Safe defaults until the configuration is loaded.
	xglog.Configure(xglog.Config{Level: "info", Service: serviceName, Version: version.Version})
	logger := xglog.WithComponent("main")

	loader, cfg, err := loadConfig(opts)
	if err != nil {
		logger.Error().Err(err).
			Str(xglog.FieldEvent, "config.load_failed").
			Str(xglog.FieldPath, opts.configPath).
			Msg("failed to load configuration")
		return err
	}
	xglog.Reconfigure(xglog.Config{Level: cfg.Log.Level, Service: serviceName, Version: cfg.Version})
	logger = xglog.WithComponent("main")

	source := "env+defaults"
	if loader.Path() != "" {
		source = "file"
	}
	logger.Info().
		Str(xglog.FieldEvent, "config.loaded").
		Str("source", source).
		Str(xglog.FieldPath, loader.Path()).
		Str("version", version.String()).
		Msg("configuration loaded")

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := daemon.Build(ctx, config.NewHolder(cfg, loader))
	if err != nil {
		logger.Error().Err(err).Str(xglog.FieldEvent, "startup.failed").Msg("daemon startup failed")
		return err
	}
	return rt.App.Run(ctx)
}
