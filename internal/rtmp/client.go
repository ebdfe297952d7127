// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package rtmp talks to the nginx-rtmp control interface: the /stat XML
// document and the drop-publisher endpoint.
package rtmp

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	xglog "github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/log"
	"github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/telemetry"
)

// DefaultTimeout bounds each control endpoint call.
const DefaultTimeout = 4 * time.Second

// maxBodyBytes caps the statistics document; a busy server reports a few KiB.
const maxBodyBytes = 8 << 20

// Client calls the control interface, trying candidates in order.
type Client struct {
	endpoints Endpoints
	http      *http.Client
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// NewClient returns a Client. A nil httpClient gets DefaultTimeout.
func NewClient(endpoints Endpoints, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{
		endpoints: endpoints,
		http:      httpClient,
		logger:    xglog.WithComponent("rtmp"),
		tracer:    telemetry.Tracer("restreamd/rtmp"),
	}
}

// Fetch returns the first statistics document any candidate serves. When
// every candidate fails the error wraps ErrStatsUnavailable and the last
// failure.
func (c *Client) Fetch(ctx context.Context) ([]byte, error) {
	body, err := c.firstSuccess(ctx, "stat", c.endpoints.StatURLs())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStatsUnavailable, err)
	}
	return body, nil
}

// DropPublisher disconnects the publisher of app/name on the first candidate
// that accepts the call and returns its trimmed response.
func (c *Client) DropPublisher(ctx context.Context, app, name string) (string, error) {
	body, err := c.firstSuccess(ctx, "drop", c.endpoints.DropURLs(app, name))
	if err != nil {
		return "", fmt.Errorf("%w: %s/%s: %w", ErrDropFailed, app, name, err)
	}
	logger := xglog.WithContext(ctx, c.logger)
	logger.Info().
		Str(xglog.FieldEvent, "rtmp.publisher_dropped").
		Str(xglog.FieldApp, app).
		Str(xglog.FieldStreamName, name).
		Msg("publisher dropped")
	return strings.TrimSpace(string(body)), nil
}

func (c *Client) firstSuccess(ctx context.Context, op string, urls []string) ([]byte, error) {
	if len(urls) == 0 {
		return nil, ErrNoEndpoints
	}
	logger := xglog.WithContext(ctx, c.logger)
	var lastErr error
	for _, u := range urls {
		start := time.Now()
		body, err := c.get(ctx, op, u)
		observeRequest(op, err, time.Since(start))
		if err == nil {
			return body, nil
		}
		lastErr = err
		logger.Debug().
			Err(err).
			Str(xglog.FieldURL, u).
			Str("operation", op).
			Msg("control endpoint candidate failed")
		if ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

func (c *Client) get(ctx context.Context, op, u string) (_ []byte, err error) {
	ctx, span := c.tracer.Start(ctx, "rtmp."+op, trace.WithAttributes(
		attribute.String(telemetry.RTMPOperationKey, op),
		attribute.String(telemetry.RTMPEndpointKey, u),
	))
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &EndpointError{Operation: op, URL: u, Err: err}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &EndpointError{Operation: op, URL: u, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &EndpointError{Operation: op, URL: u, Status: resp.StatusCode}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &EndpointError{Operation: op, URL: u, Err: err}
	}
	return body, nil
}
