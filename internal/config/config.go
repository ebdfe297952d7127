// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config loads the restreamd daemon configuration from defaults, an
// optional YAML file and the environment, and keeps the live snapshot.
package config

import (
	"net"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/health"
	"github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/rtmp"
)

// AppConfig is the complete daemon configuration.
type AppConfig struct {
	DataDir   string          `yaml:"data_dir"`
	ConfigDir string          `yaml:"config_dir"`
	API       APIConfig       `yaml:"api"`
	Stream    StreamConfig    `yaml:"stream"`
	Control   ControlConfig   `yaml:"control"`
	Overlay   OverlayConfig   `yaml:"overlay"`
	Apply     ApplyConfig     `yaml:"apply"`
	Reconnect ReconnectConfig `yaml:"reconnect"`
	Health    HealthConfig    `yaml:"health"`
	Log       LogConfig       `yaml:"log"`
	Audit     AuditConfig     `yaml:"audit"`
	Telemetry TelemetryConfig `yaml:"telemetry"`

	Version string `yaml:"-"`
}

// APIConfig configures the admin listener and sessions.
type APIConfig struct {
	Host          string        `yaml:"host"`
	Port          int           `yaml:"port"`
	MetricsAddr   string        `yaml:"metrics_addr"`
	SessionCookie string        `yaml:"session_cookie"`
	SessionTTL    time.Duration `yaml:"session_ttl"`
	// SessionRedisAddr selects the Redis session store when set.
	SessionRedisAddr     string `yaml:"session_redis_addr"`
	SessionRedisPassword string `yaml:"session_redis_password"`
	// LoginRateLimit is the number of login attempts per minute per client.
	LoginRateLimit int `yaml:"login_rate_limit"`
}

// StreamConfig names the nginx-rtmp applications.
type StreamConfig struct {
	App       string `yaml:"app"`
	Name      string `yaml:"name"`
	IngestApp string `yaml:"ingest_app"`
}

// ControlConfig locates the nginx-rtmp stat and control endpoints.
type ControlConfig struct {
	URL       string        `yaml:"url"`
	Host      string        `yaml:"host"`
	Port      int           `yaml:"port"`
	LocalMode bool          `yaml:"local_mode"`
	Timeout   time.Duration `yaml:"timeout"`
}

// OverlayConfig bounds the overlay list.
type OverlayConfig struct {
	MaxCount int `yaml:"max_count"`
}

// ApplyConfig configures the deploy script.
type ApplyConfig struct {
	Script  string        `yaml:"script"`
	Timeout time.Duration `yaml:"timeout"`
}

// ReconnectConfig throttles reconnect triggers.
type ReconnectConfig struct {
	MinInterval time.Duration `yaml:"min_interval"`
}

// HealthConfig overrides health thresholds.
type HealthConfig struct {
	CPUWarning         float64 `yaml:"cpu_warning"`
	CPUCritical        float64 `yaml:"cpu_critical"`
	MemoryWarning      float64 `yaml:"memory_warning"`
	MaxEnabledOverlays int     `yaml:"max_enabled_overlays"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level"`
}

// AuditConfig enables the SQLite audit trail when DB is set.
type AuditConfig struct {
	DB string `yaml:"db"`
}

// TelemetryConfig configures OTLP tracing.
type TelemetryConfig struct {
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"sampling_rate"`
}

// Default returns the built-in configuration.
func Default() AppConfig {
	th := health.DefaultThresholds()
	return AppConfig{
		DataDir:   "data",
		ConfigDir: "config",
		API: APIConfig{
			Host:           "127.0.0.1",
			Port:           9090,
			MetricsAddr:    "127.0.0.1:9464",
			SessionCookie:  "rs_admin",
			SessionTTL:     24 * time.Hour,
			LoginRateLimit: 10,
		},
		Stream: StreamConfig{
			App:       "live",
			Name:      "stream",
			IngestApp: "ingest",
		},
		Control: ControlConfig{
			Timeout: rtmp.DefaultTimeout,
		},
		Overlay: OverlayConfig{MaxCount: 8},
		Apply: ApplyConfig{
			Script:  filepath.Join("scripts", "restream-apply.sh"),
			Timeout: 2 * time.Minute,
		},
		Reconnect: ReconnectConfig{MinInterval: 2 * time.Second},
		Health: HealthConfig{
			CPUWarning:         th.CPUWarning,
			CPUCritical:        th.CPUCritical,
			MemoryWarning:      th.MemoryWarning,
			MaxEnabledOverlays: th.MaxEnabledOverlays,
		},
		Log:       LogConfig{Level: "info"},
		Telemetry: TelemetryConfig{Exporter: "none", SamplingRate: 1},
	}
}

// ListenAddr is the admin API address.
func (c AppConfig) ListenAddr() string {
	return net.JoinHostPort(c.API.Host, strconv.Itoa(c.API.Port))
}

// TemplatePath is the seed for a missing restream.json.
func (c AppConfig) TemplatePath() string {
	return filepath.Join(c.ConfigDir, "restream.default.json")
}

// CredentialsPath and HtpasswdPath locate the admin credentials.
func (c AppConfig) CredentialsPath() string { return filepath.Join(c.DataDir, "admin.credentials") }

func (c AppConfig) HtpasswdPath() string { return filepath.Join(c.DataDir, "admin.htpasswd") }

// ResolverConfig maps the control settings onto rtmp.ResolverConfig.
func (c AppConfig) ResolverConfig() rtmp.ResolverConfig {
	return rtmp.ResolverConfig{
		ControlURL: c.Control.URL,
		Host:       c.Control.Host,
		Port:       c.Control.Port,
		LocalMode:  c.Control.LocalMode,
	}
}

// HealthThresholds applies the configured overrides to the defaults.
func (c AppConfig) HealthThresholds() health.Thresholds {
	th := health.DefaultThresholds()
	th.CPUWarning = c.Health.CPUWarning
	th.CPUCritical = c.Health.CPUCritical
	th.MemoryWarning = c.Health.MemoryWarning
	th.MaxEnabledOverlays = c.Health.MaxEnabledOverlays
	return th
}
