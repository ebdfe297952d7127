// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package httpx builds the outbound HTTP clients used to reach nginx-rtmp.
package httpx

import (
	"context"
	"io"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultClientTimeout       = 4 * time.Second
	maxDialTimeout             = 2 * time.Second
	defaultIdleConnTimeout     = 30 * time.Second
	defaultMaxIdleConns        = 8
	defaultMaxIdleConnsPerHost = 2
)

// NewClient returns a client bounded by timeout (4s when non-positive) whose
// transport emits client spans for each request.
func NewClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultClientTimeout
	}
	base := newTransport(min(timeout, maxDialTimeout))
	base.ResponseHeaderTimeout = timeout
	return &http.Client{Timeout: timeout, Transport: instrument(base)}
}

// NewLiveClient is NewClient with the request timeout read on every request,
// so configuration reloads apply without rebuilding the client.
func NewLiveClient(timeout func() time.Duration) *http.Client {
	return &http.Client{
		Transport: &timeoutTransport{
			base:    instrument(newTransport(maxDialTimeout)),
			timeout: timeout,
		},
	}
}

func newTransport(dial time.Duration) *http.Transport {
	return &http.Transport{
		Proxy:               nil,
		DialContext:         (&net.Dialer{Timeout: dial, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:        defaultMaxIdleConns,
		MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
		IdleConnTimeout:     defaultIdleConnTimeout,
		TLSHandshakeTimeout: dial,
	}
}

func instrument(base http.RoundTripper) http.RoundTripper {
	return otelhttp.NewTransport(base,
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return "rtmp " + r.Method + " " + r.URL.Path
		}),
	)
}

type timeoutTransport struct {
	base    http.RoundTripper
	timeout func() time.Duration
}

func (t *timeoutTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	timeout := t.timeout()
	if timeout <= 0 {
		timeout = defaultClientTimeout
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	resp, err := t.base.RoundTrip(r.WithContext(ctx))
	if err != nil {
		cancel()
		return nil, err
	}
	resp.Body = &cancelBody{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// cancelBody releases the request context once the body is closed.
type cancelBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelBody) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}
