// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	xglog "github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/log"
)

func envLogger() zerolog.Logger { return xglog.WithComponent("config") }

func sensitive(key string) bool {
	k := strings.ToLower(key)
	return strings.Contains(k, "password") || strings.Contains(k, "secret") || strings.Contains(k, "token")
}

// lookup returns the trimmed value of key; empty values count as unset.
func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func logDefault(logger zerolog.Logger, key string) {
	logger.Debug().Str("key", key).Str("source", "default").Msg("using default value")
}

func logInvalid(logger zerolog.Logger, key, value, kind string) {
	logger.Warn().
		Str(xglog.FieldEvent, "config.env_invalid").
		Str("key", key).
		Str("value", value).
		Msgf("invalid %s in environment variable, using default", kind)
}

// ParseString returns the environment value of key or def.
func ParseString(key, def string) string {
	logger := envLogger()
	v, ok := lookup(key)
	if !ok {
		logDefault(logger, key)
		return def
	}
	evt := logger.Debug().Str("key", key).Str("source", "environment")
	if sensitive(key) {
		evt = evt.Bool("sensitive", true)
	} else {
		evt = evt.Str("value", v)
	}
	evt.Msg("using environment variable")
	return v
}

// ParseInt returns the integer value of key, or def when unset or invalid.
func ParseInt(key string, def int) int {
	logger := envLogger()
	v, ok := lookup(key)
	if !ok {
		logDefault(logger, key)
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		logInvalid(logger, key, v, "integer")
		return def
	}
	logger.Debug().Str("key", key).Int("value", i).Str("source", "environment").Msg("using environment variable")
	return i
}

// ParseFloat returns the float value of key, or def when unset or invalid.
func ParseFloat(key string, def float64) float64 {
	logger := envLogger()
	v, ok := lookup(key)
	if !ok {
		logDefault(logger, key)
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		logInvalid(logger, key, v, "float")
		return def
	}
	logger.Debug().Str("key", key).Float64("value", f).Str("source", "environment").Msg("using environment variable")
	return f
}

// ParseDuration accepts Go durations ("5s") and bare integers, which are
// read as seconds.
func ParseDuration(key string, def time.Duration) time.Duration {
	logger := envLogger()
	v, ok := lookup(key)
	if !ok {
		logDefault(logger, key)
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		secs, aerr := strconv.Atoi(v)
		if aerr != nil {
			logInvalid(logger, key, v, "duration")
			return def
		}
		d = time.Duration(secs) * time.Second
	}
	logger.Debug().Str("key", key).Dur("value", d).Str("source", "environment").Msg("using environment variable")
	return d
}

// ParseBool accepts true/false, 1/0, yes/no and on/off.
func ParseBool(key string, def bool) bool {
	logger := envLogger()
	v, ok := lookup(key)
	if !ok {
		logDefault(logger, key)
		return def
	}
	switch strings.ToLower(v) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	}
	logInvalid(logger, key, v, "boolean")
	return def
}
