// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestConfigEnabled(t *testing.T) {
	assert.False(t, Config{}.Enabled())
	assert.False(t, Config{Exporter: "none"}.Enabled())
	assert.True(t, Config{Exporter: "grpc"}.Enabled())
	assert.True(t, Config{Exporter: "HTTP"}.Enabled())
}

func TestNewProviderDisabled(t *testing.T) {
	p, err := NewProvider(context.Background(), Config{})
	require.NoError(t, err)
	assert.NoError(t, p.Shutdown(context.Background()))

	_, span := Tracer("test").Start(context.Background(), "noop")
	assert.False(t, span.SpanContext().IsValid())
	span.End()
}

func TestNewProviderRejectsUnknownExporter(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{Exporter: "zipkin"})
	assert.ErrorContains(t, err, "unsupported exporter type")
}

func TestNewProviderHTTP(t *testing.T) {
	p, err := NewProvider(context.Background(), Config{Exporter: "http", Endpoint: "127.0.0.1:4318", SamplingRate: 0})
	require.NoError(t, err)
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestSampler(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), sampler(1).Description())
	assert.Equal(t, sdktrace.NeverSample().Description(), sampler(0).Description())
	assert.Contains(t, sampler(0.25).Description(), "TraceIDRatioBased{0.25}")
}

func TestRecordError(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))

	_, span := tp.Tracer("test").Start(context.Background(), "op")
	RecordError(span, nil)
	RecordError(span, errors.New("drop failed"))
	span.End()

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "drop failed", spans[0].Status().Description)
	assert.Len(t, spans[0].Events(), 1)
}
