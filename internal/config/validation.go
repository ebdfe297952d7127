// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"net"
	"strings"

	"github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/validate"
)

// Validate rejects values the daemon cannot run with.
func Validate(cfg AppConfig) error {
	v := validate.New()

	v.NotEmpty("DataDir", cfg.DataDir)
	v.NotEmpty("API.Host", cfg.API.Host)
	v.Port("API.Port", cfg.API.Port)
	if cfg.API.MetricsAddr != "" {
		if _, port, err := net.SplitHostPort(cfg.API.MetricsAddr); err != nil {
			v.AddError("API.MetricsAddr", "must be host:port", cfg.API.MetricsAddr)
		} else if port == "" {
			v.AddError("API.MetricsAddr", "port must not be empty", cfg.API.MetricsAddr)
		}
	}
	v.NotEmpty("API.SessionCookie", cfg.API.SessionCookie)
	v.Positive("API.SessionTTL", cfg.API.SessionTTL)
	v.Range("API.LoginRateLimit", cfg.API.LoginRateLimit, 1, 10000)

	v.NotEmpty("Stream.App", cfg.Stream.App)
	v.NotEmpty("Stream.Name", cfg.Stream.Name)
	v.NotEmpty("Stream.IngestApp", cfg.Stream.IngestApp)

	if strings.TrimSpace(cfg.Control.URL) != "" {
		v.URL("Control.URL", cfg.Control.URL, "http", "https")
	}
	if cfg.Control.Port != 0 {
		v.Port("Control.Port", cfg.Control.Port)
	}
	v.Positive("Control.Timeout", cfg.Control.Timeout)

	v.Range("Overlay.MaxCount", cfg.Overlay.MaxCount, 1, 64)
	v.NotEmpty("Apply.Script", cfg.Apply.Script)
	v.Positive("Apply.Timeout", cfg.Apply.Timeout)
	v.NonNegative("Reconnect.MinInterval", cfg.Reconnect.MinInterval)

	v.FloatRange("Health.CPUWarning", cfg.Health.CPUWarning, 0, 100)
	v.FloatRange("Health.CPUCritical", cfg.Health.CPUCritical, 0, 100)
	if cfg.Health.CPUCritical < cfg.Health.CPUWarning {
		v.AddError("Health.CPUCritical", "must not be below Health.CPUWarning", cfg.Health.CPUCritical)
	}
	v.FloatRange("Health.MemoryWarning", cfg.Health.MemoryWarning, 0, 100)
	v.Range("Health.MaxEnabledOverlays", cfg.Health.MaxEnabledOverlays, 0, 64)

	v.OneOf("Log.Level", cfg.Log.Level, "trace", "debug", "info", "warn", "error")
	v.OneOf("Telemetry.Exporter", cfg.Telemetry.Exporter, "none", "grpc", "http")
	if !strings.EqualFold(cfg.Telemetry.Exporter, "none") {
		v.NotEmpty("Telemetry.Endpoint", cfg.Telemetry.Endpoint)
	}
	v.FloatRange("Telemetry.SamplingRate", cfg.Telemetry.SamplingRate, 0, 1)

	return v.Err()
}
