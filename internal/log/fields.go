// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID = "request_id"
	FieldUser      = "user"
	FieldOverlayID = "overlay_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// Stream fields
	FieldApp        = "app"
	FieldStreamName = "stream_name"
	FieldCodec      = "codec"
	FieldFPS        = "fps"

	// Path / URL fields
	FieldPath    = "path"
	FieldBaseURL = "base_url"
	FieldURL     = "url"

	// HTTP fields
	FieldMethod     = "method"
	FieldStatus     = "status"
	FieldRemoteAddr = "remote_addr"
	FieldDuration   = "duration"
)
