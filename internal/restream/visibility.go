// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package restream

import (
	"bytes"
	"encoding/json"
	"fmt"
	"text/template"
	"time"

	"github.com/google/renameio/v2"
)

// isoLayout matches the UTC offset form the public pages already parse.
const isoLayout = "2006-01-02T15:04:05-07:00"

func isoTime(t time.Time) string {
	return t.UTC().Format(isoLayout)
}

// PublicConfig is served to the public player page.
type PublicConfig struct {
	PublicLive     bool   `json:"public_live"`
	PublicHLS      bool   `json:"public_hls"`
	UpdatedAtEpoch int64  `json:"updated_at_epoch"`
	UpdatedAt      string `json:"updated_at"`
}

var hlsConfTemplate = template.Must(template.New("public-hls.conf").Parse(
	"set $public_hls {{if .PublicHLS}}1{{else}}0{{end}};\n",
))

// writeVisibility regenerates public-config.json and the nginx include that
// gates HLS access.
func writeVisibility(configPath, confPath string, live, hls bool, now time.Time) error {
	cfg := PublicConfig{
		PublicLive:     live,
		PublicHLS:      hls,
		UpdatedAtEpoch: now.Unix(),
		UpdatedAt:      isoTime(now),
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode public config: %w", err)
	}
	if err := renameio.WriteFile(configPath, data, 0o644); err != nil {
		return fmt.Errorf("write public config: %w", err)
	}

	var buf bytes.Buffer
	if err := hlsConfTemplate.Execute(&buf, cfg); err != nil {
		return fmt.Errorf("render public hls conf: %w", err)
	}
	if err := renameio.WriteFile(confPath, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write public hls conf: %w", err)
	}
	return nil
}
