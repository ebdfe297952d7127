// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	xglog "github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/log"
)

// StartupOptions lists the paths checked before the daemon starts serving.
type StartupOptions struct {
	DataDir      string
	TemplatePath string
	ApplyScript  string
}

// PerformStartupChecks makes sure the data directory exists and is writable.
// Missing optional inputs (template, apply script, bash) are only logged since
// the daemon can serve without them.
func PerformStartupChecks(_ context.Context, opts StartupOptions) error {
	logger := xglog.WithComponent("startup-check")

	if err := os.MkdirAll(opts.DataDir, 0o750); err != nil {
		return fmt.Errorf("data directory check failed: %w", err)
	}
	if err := checkWritableDir(opts.DataDir); err != nil {
		return fmt.Errorf("data directory check failed: %w", err)
	}
	logger.Info().Str(xglog.FieldEvent, "startup.data_dir_ok").Str(xglog.FieldPath, opts.DataDir).Msg("data directory is writable")

	if opts.TemplatePath != "" {
		if err := checkFileReadable(opts.TemplatePath); err != nil {
			logger.Warn().Err(err).
				Str(xglog.FieldEvent, "startup.template_missing").
				Str(xglog.FieldPath, opts.TemplatePath).
				Msg("restream template not readable; built-in defaults will seed the configuration")
		}
	}

	if opts.ApplyScript != "" {
		if err := checkFileReadable(opts.ApplyScript); err != nil {
			logger.Warn().Err(err).
				Str(xglog.FieldEvent, "startup.apply_script_missing").
				Str(xglog.FieldPath, opts.ApplyScript).
				Msg("apply script not readable; /api/restream/apply will fail")
		}
		if _, err := exec.LookPath("bash"); err != nil {
			logger.Warn().Err(err).
				Str(xglog.FieldEvent, "startup.bash_missing").
				Msg("bash not found on PATH; /api/restream/apply will fail")
		}
	}
	return nil
}

func checkFileReadable(path string) error {
	f, err := os.Open(path) // #nosec G304 -- path comes from operator config
	if err != nil {
		return err
	}
	return f.Close()
}
