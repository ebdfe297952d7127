// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

// Masked returns a copy of cfg with secrets replaced, for display.
func (c AppConfig) Masked() AppConfig {
	if c.API.SessionRedisPassword != "" {
		c.API.SessionRedisPassword = "***"
	}
	return c
}
