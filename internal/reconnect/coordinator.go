// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package reconnect forces encoders and relays to reconnect by dropping
// their publisher sessions on nginx-rtmp.
package reconnect

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	xglog "github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/log"
	"github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/rtmp"
	"github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/telemetry"
)

// ThrottledMessage is returned when a trigger arrives within MinInterval of
// the previous one.
const ThrottledMessage = "reconnect throttled, retry shortly"

// Control is the subset of rtmp.Client the coordinator needs.
type Control interface {
	Fetch(ctx context.Context) ([]byte, error)
	DropPublisher(ctx context.Context, app, name string) (string, error)
}

// Options names the applications involved in a reconnect.
type Options struct {
	// IngestApp receives encoder publishes (default "ingest").
	IngestApp string
	// LiveApp and StreamName identify the republished output
	// (defaults "live" and "stream").
	LiveApp    string
	StreamName string
	// MinInterval throttles back-to-back triggers; zero disables it.
	MinInterval time.Duration
}

// Coordinator drops stale publishers.
type Coordinator struct {
	control Control
	opts    Options
	limiter *rate.Limiter
	logger  zerolog.Logger
	tracer  trace.Tracer
}

// New returns a Coordinator.
func New(control Control, opts Options) *Coordinator {
	if opts.IngestApp == "" {
		opts.IngestApp = "ingest"
	}
	if opts.LiveApp == "" {
		opts.LiveApp = "live"
	}
	if opts.StreamName == "" {
		opts.StreamName = "stream"
	}
	c := &Coordinator{
		control: control,
		opts:    opts,
		logger:  xglog.WithComponent("reconnect"),
		tracer:  telemetry.Tracer("restreamd/reconnect"),
	}
	if opts.MinInterval > 0 {
		c.limiter = rate.NewLimiter(rate.Every(opts.MinInterval), 1)
	}
	return c
}

// Trigger drops every active ingest publisher, then the live output
// publisher. It reports success when at least one drop succeeded; the
// message joins the successful drops, or carries the last error otherwise.
// A failed stats fetch does not prevent the live drop.
func (c *Coordinator) Trigger(ctx context.Context) (bool, string) {
	ctx, span := c.tracer.Start(ctx, "reconnect.trigger")
	defer span.End()

	logger := xglog.WithContext(ctx, c.logger)
	if c.limiter != nil && !c.limiter.Allow() {
		logger.Warn().Str(xglog.FieldEvent, "reconnect.throttled").Msg("reconnect throttled")
		return false, ThrottledMessage
	}

	lastErr := "unknown error"
	var ingest []string
	xml, err := c.control.Fetch(ctx)
	if err != nil {
		lastErr = err.Error()
	} else {
		ingest = rtmp.ActiveStreamNames(xml, c.opts.IngestApp)
	}

	var dropped []string
	drop := func(app, name string) {
		ctx, dropSpan := c.tracer.Start(ctx, "reconnect.drop",
			trace.WithAttributes(telemetry.StreamAttributes(app, name)...))
		defer dropSpan.End()
		body, err := c.control.DropPublisher(ctx, app, name)
		if err != nil {
			telemetry.RecordError(dropSpan, err)
			lastErr = err.Error()
			return
		}
		dropped = append(dropped, fmt.Sprintf("%s:%s -> %s", app, name, body))
	}
	for _, name := range ingest {
		drop(c.opts.IngestApp, name)
	}
	drop(c.opts.LiveApp, c.opts.StreamName)
	span.SetAttributes(attribute.Int("reconnect.dropped", len(dropped)))

	if len(dropped) == 0 {
		span.SetStatus(codes.Error, lastErr)
		logger.Warn().
			Str(xglog.FieldEvent, "reconnect.failed").
			Int("ingest_streams", len(ingest)).
			Str("last_error", lastErr).
			Msg("reconnect failed")
		return false, lastErr
	}
	logger.Info().
		Str(xglog.FieldEvent, "reconnect.completed").
		Int("ingest_streams", len(ingest)).
		Int("dropped", len(dropped)).
		Msg("reconnect completed")
	return true, strings.Join(dropped, "; ")
}
