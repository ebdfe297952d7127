// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package apply runs the deployment script that renders the nginx
// configuration from the saved restream settings.
package apply

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	xglog "github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/log"
	"github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/procgroup"
	"github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/telemetry"
)

// DefaultTimeout bounds one script run.
const DefaultTimeout = 2 * time.Minute

const outputTail = 2048

var (
	// ErrScriptFailed wraps a non-zero exit or a failure to start the script.
	ErrScriptFailed = errors.New("apply script failed")
	// ErrInProgress is returned while another run is still executing.
	ErrInProgress = errors.New("apply already in progress")
)

// Options selects optional script behavior.
type Options struct {
	// Restart asks the script to restart nginx instead of reloading it.
	Restart bool
}

// Runner executes the apply script, one run at a time.
type Runner struct {
	script  string
	timeout time.Duration
	env     func() []string
	goos    string
	mu      sync.Mutex
	logger  zerolog.Logger
	tracer  trace.Tracer
}

// NewRunner returns a Runner for script. A non-positive timeout uses
// DefaultTimeout.
func NewRunner(script string, timeout time.Duration) *Runner {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Runner{
		script:  script,
		timeout: timeout,
		env:     os.Environ,
		goos:    runtime.GOOS,
		logger:  xglog.WithComponent("apply"),
		tracer:  telemetry.Tracer("restreamd/apply"),
	}
}

// Script returns the configured script path.
func (r *Runner) Script() string { return r.script }

// Run executes the script with bash and waits for it. Output is only
// interpreted as diagnostics; the exit status decides success.
func (r *Runner) Run(ctx context.Context, opts Options) (err error) {
	if !r.mu.TryLock() {
		return ErrInProgress
	}
	defer r.mu.Unlock()

	ctx, span := r.tracer.Start(ctx, "apply.run",
		trace.WithAttributes(attribute.Bool(telemetry.ApplyRestartKey, opts.Restart)))
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	logger := xglog.WithContext(ctx, r.logger)
	cmd := exec.CommandContext(ctx, "bash", r.script) // #nosec G204 -- script path comes from operator config
	procgroup.Set(cmd)
	cmd.Cancel = procgroup.Terminate(cmd)
	cmd.WaitDelay = 5 * time.Second
	cmd.Env = r.environ(opts)

	var out tailBuffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	start := time.Now()
	err = cmd.Run()
	dur := time.Since(start)
	if err != nil {
		if ctx.Err() != nil {
			err = fmt.Errorf("%w (%v)", err, ctx.Err())
		}
		logger.Error().
			Err(err).
			Str(xglog.FieldEvent, "apply.failed").
			Str(xglog.FieldPath, r.script).
			Dur(xglog.FieldDuration, dur).
			Str("output", out.String()).
			Msg("apply script failed")
		if tail := strings.TrimSpace(out.String()); tail != "" {
			return fmt.Errorf("%w: %w: %s", ErrScriptFailed, err, tail)
		}
		return fmt.Errorf("%w: %w", ErrScriptFailed, err)
	}

	logger.Info().
		Str(xglog.FieldEvent, "apply.completed").
		Str(xglog.FieldPath, r.script).
		Bool("restart", opts.Restart).
		Dur(xglog.FieldDuration, dur).
		Msg("apply script completed")
	return nil
}

func (r *Runner) environ(opts Options) []string {
	env := r.env()
	if opts.Restart {
		env = append(env, "RESTART_NGINX=1")
	}
	if r.goos == "darwin" && !hasKey(env, "LOCAL_MODE") {
		env = append(env, "LOCAL_MODE=1")
	}
	return env
}

func hasKey(env []string, key string) bool {
	for _, kv := range env {
		if k, _, _ := strings.Cut(kv, "="); k == key {
			return true
		}
	}
	return false
}

// tailBuffer keeps the last outputTail bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, _ := t.buf.Write(p)
	if extra := t.buf.Len() - outputTail; extra > 0 {
		t.buf.Next(extra)
	}
	return n, nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.buf.String()
}
