// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys used on restreamd spans.
const (
	StreamAppKey     = "stream.app"
	StreamNameKey    = "stream.name"
	RTMPOperationKey = "rtmp.operation"
	RTMPEndpointKey  = "rtmp.endpoint"
	HealthWarningKey = "health.warnings"
	HealthLevelKey   = "health.level"
	ApplyRestartKey  = "apply.restart"
)

// StreamAttributes identifies an RTMP application/stream pair.
func StreamAttributes(app, name string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(StreamAppKey, app),
		attribute.String(StreamNameKey, name),
	}
}

// RecordError marks span failed with err. A nil err is ignored.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
