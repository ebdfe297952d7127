// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package restream persists the restream configuration record and the files
// nginx reads from it.
package restream

import (
	"strings"

	"github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/normalize"
	"github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/overlay"
)

// Destination is one RTMP push target.
type Destination struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Enabled   bool   `json:"enabled"`
	RTMPURL   string `json:"rtmp_url"`
	StreamKey string `json:"stream_key"`
}

// Record is the persisted configuration document.
type Record struct {
	Destinations []Destination `json:"destinations"`
	IngestKey    string        `json:"ingest_key"`
	PublicLive   bool          `json:"public_live"`
	PublicHLS    bool          `json:"public_hls"`
	// Overlay mirrors Overlays[0] for admin UI builds that predate multiple overlays.
	Overlay  overlay.Overlay   `json:"overlay"`
	Overlays []overlay.Overlay `json:"overlays"`
}

// DefaultRecord is what Load returns before anything has been saved.
func DefaultRecord() Record {
	overlays := []overlay.Overlay{overlay.DefaultPrimary()}
	return Record{
		Destinations: []Destination{},
		PublicLive:   true,
		PublicHLS:    true,
		Overlay:      overlays[0],
		Overlays:     overlays,
	}
}

// Patch is a partial update. Keys absent from the request keep their stored
// value; explicit values replace it.
type Patch struct {
	Destinations normalize.Optional `json:"destinations"`
	IngestKey    normalize.Optional `json:"ingest_key"`
	PublicLive   normalize.Optional `json:"public_live"`
	PublicHLS    normalize.Optional `json:"public_hls"`
	Overlays     overlay.ListPatch  `json:"overlays"`
	// Overlay is the single-overlay form sent by older admin UI builds.
	Overlay normalize.Optional `json:"overlay"`
}

// OverlayList resolves the overlays key, falling back to the legacy single
// overlay object.
func (p Patch) OverlayList() overlay.ListPatch {
	if p.Overlays.Present {
		return p.Overlays
	}
	if m, ok := p.Overlay.Value.(map[string]any); p.Overlay.Present && ok {
		return overlay.Explicit(overlay.PatchFromMap(m))
	}
	return overlay.ListPatch{}
}

// SanitizeDestinations keeps the object entries of items, in order.
func SanitizeDestinations(items []any) []Destination {
	out := make([]Destination, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, Destination{
			ID:        normalize.CleanField(m["id"]),
			Name:      normalize.CleanField(m["name"]),
			Enabled:   normalize.Truthy(m["enabled"]),
			RTMPURL:   normalize.CleanField(m["rtmp_url"]),
			StreamKey: normalize.CleanField(m["stream_key"]),
		})
	}
	return out
}

// SanitizeIngestKey trims v; keys containing whitespace or directive
// separators are rejected as "" (no gate).
func SanitizeIngestKey(v any) string {
	key := strings.TrimSpace(normalize.String(v))
	if strings.ContainsAny(key, "\n\r; ") {
		return ""
	}
	return key
}
