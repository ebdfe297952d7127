// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrUnknownConfigField marks a YAML key that AppConfig does not define.
var ErrUnknownConfigField = errors.New("unknown config field")

// Environment keys.
const (
	EnvDataDir              = "RESTREAM_DATA_DIR"
	EnvConfigDir            = "RESTREAM_CONFIG_DIR"
	EnvAdminHost            = "ADMIN_API_HOST"
	EnvAdminPort            = "ADMIN_API_PORT"
	EnvMetricsAddr          = "METRICS_ADDR"
	EnvStreamApp            = "STREAM_APP"
	EnvStreamName           = "STREAM_NAME"
	EnvIngestApp            = "INGEST_APP"
	EnvControlURL           = "CONTROL_URL"
	EnvControlHost          = "CONTROL_HOST"
	EnvControlPort          = "CONTROL_PORT"
	EnvLocalMode            = "LOCAL_MODE"
	EnvControlTimeout       = "CONTROL_TIMEOUT"
	EnvOverlayMaxCount      = "OVERLAY_MAX_COUNT"
	EnvSessionCookie        = "ADMIN_SESSION_COOKIE"
	EnvSessionTTL           = "ADMIN_SESSION_TTL"
	EnvSessionRedisAddr     = "SESSION_REDIS_ADDR"
	EnvSessionRedisPassword = "SESSION_REDIS_PASSWORD"
	EnvLoginRateLimit       = "ADMIN_LOGIN_RATE_LIMIT"
	EnvApplyScript          = "APPLY_SCRIPT"
	EnvApplyTimeout         = "APPLY_TIMEOUT"
	EnvReconnectInterval    = "RECONNECT_MIN_INTERVAL"
	EnvLogLevel             = "LOG_LEVEL"
	EnvAuditDB              = "AUDIT_DB"
	EnvOTelExporter         = "OTEL_EXPORTER"
	EnvOTelEndpoint         = "OTEL_ENDPOINT"
	EnvOTelSampling         = "OTEL_SAMPLING"
	EnvHealthCPUWarning     = "HEALTH_CPU_WARNING"
	EnvHealthCPUCritical    = "HEALTH_CPU_CRITICAL"
	EnvHealthMemoryWarning  = "HEALTH_MEMORY_WARNING"
	EnvHealthMaxOverlays    = "HEALTH_MAX_ENABLED_OVERLAYS"
)

// Loader builds an AppConfig with precedence env > file > defaults.
type Loader struct {
	configPath string
	version    string
}

// NewLoader returns a Loader. configPath may be empty.
func NewLoader(configPath, version string) *Loader {
	return &Loader{configPath: configPath, version: version}
}

// Path returns the YAML file path, if any.
func (l *Loader) Path() string { return l.configPath }

// Load reads and validates the configuration.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Default()

	if l.configPath != "" {
		if err := l.loadFile(&cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}
	mergeEnv(&cfg)

	if abs, err := filepath.Abs(cfg.DataDir); err == nil {
		cfg.DataDir = abs
	}
	if abs, err := filepath.Abs(cfg.ConfigDir); err == nil {
		cfg.ConfigDir = abs
	}
	if cfg.Audit.DB != "" && !filepath.IsAbs(cfg.Audit.DB) {
		cfg.Audit.DB = filepath.Join(cfg.DataDir, cfg.Audit.DB)
	}
	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile overlays the YAML file onto cfg. Unknown keys are rejected; a
// missing file is not an error.
func (l *Loader) loadFile(cfg *AppConfig) error {
	data, err := os.ReadFile(l.configPath)
	if errors.Is(err, fs.ErrNotExist) {
		logger := envLogger()
		logger.Info().
			Str("event", "config.file_missing").
			Str("path", l.configPath).
			Msg("config file not found, using defaults and environment")
		return nil
	}
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		var te *yaml.TypeError
		if errors.As(err, &te) {
			for _, msg := range te.Errors {
				if strings.Contains(msg, "not found in type") {
					return fmt.Errorf("%w: %s: %s", ErrUnknownConfigField, l.configPath, msg)
				}
			}
		}
		return fmt.Errorf("parse %s: %w", l.configPath, err)
	}
	return nil
}

func mergeEnv(cfg *AppConfig) {
	cfg.DataDir = ParseString(EnvDataDir, cfg.DataDir)
	cfg.ConfigDir = ParseString(EnvConfigDir, cfg.ConfigDir)

	cfg.API.Host = ParseString(EnvAdminHost, cfg.API.Host)
	cfg.API.Port = ParseInt(EnvAdminPort, cfg.API.Port)
	cfg.API.MetricsAddr = ParseString(EnvMetricsAddr, cfg.API.MetricsAddr)
	cfg.API.SessionCookie = ParseString(EnvSessionCookie, cfg.API.SessionCookie)
	cfg.API.SessionTTL = ParseDuration(EnvSessionTTL, cfg.API.SessionTTL)
	cfg.API.SessionRedisAddr = ParseString(EnvSessionRedisAddr, cfg.API.SessionRedisAddr)
	cfg.API.SessionRedisPassword = ParseString(EnvSessionRedisPassword, cfg.API.SessionRedisPassword)
	cfg.API.LoginRateLimit = ParseInt(EnvLoginRateLimit, cfg.API.LoginRateLimit)

	cfg.Stream.App = ParseString(EnvStreamApp, cfg.Stream.App)
	cfg.Stream.Name = ParseString(EnvStreamName, cfg.Stream.Name)
	cfg.Stream.IngestApp = ParseString(EnvIngestApp, cfg.Stream.IngestApp)

	cfg.Control.URL = ParseString(EnvControlURL, cfg.Control.URL)
	cfg.Control.Host = ParseString(EnvControlHost, cfg.Control.Host)
	cfg.Control.Port = ParseInt(EnvControlPort, cfg.Control.Port)
	cfg.Control.LocalMode = ParseBool(EnvLocalMode, cfg.Control.LocalMode)
	cfg.Control.Timeout = ParseDuration(EnvControlTimeout, cfg.Control.Timeout)

	cfg.Overlay.MaxCount = ParseInt(EnvOverlayMaxCount, cfg.Overlay.MaxCount)

	cfg.Apply.Script = ParseString(EnvApplyScript, cfg.Apply.Script)
	cfg.Apply.Timeout = ParseDuration(EnvApplyTimeout, cfg.Apply.Timeout)
	cfg.Reconnect.MinInterval = ParseDuration(EnvReconnectInterval, cfg.Reconnect.MinInterval)

	cfg.Health.CPUWarning = ParseFloat(EnvHealthCPUWarning, cfg.Health.CPUWarning)
	cfg.Health.CPUCritical = ParseFloat(EnvHealthCPUCritical, cfg.Health.CPUCritical)
	cfg.Health.MemoryWarning = ParseFloat(EnvHealthMemoryWarning, cfg.Health.MemoryWarning)
	cfg.Health.MaxEnabledOverlays = ParseInt(EnvHealthMaxOverlays, cfg.Health.MaxEnabledOverlays)

	cfg.Log.Level = ParseString(EnvLogLevel, cfg.Log.Level)
	cfg.Audit.DB = ParseString(EnvAuditDB, cfg.Audit.DB)

	cfg.Telemetry.Exporter = ParseString(EnvOTelExporter, cfg.Telemetry.Exporter)
	cfg.Telemetry.Endpoint = ParseString(EnvOTelEndpoint, cfg.Telemetry.Endpoint)
	cfg.Telemetry.SamplingRate = ParseFloat(EnvOTelSampling, cfg.Telemetry.SamplingRate)
}

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is
// ignored.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}
