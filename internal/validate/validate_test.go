// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package validate

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatorAccumulates(t *testing.T) {
	v := New()
	v.Port("AdminPort", 0)
	v.Range("MaxOverlays", 5, 1, 16)
	v.FloatRange("CPUWarning", 120, 0, 100)
	v.Positive("ControlTimeout", 0)
	v.NonNegative("ReconnectMinInterval", -time.Second)
	v.NotEmpty("StreamApp", "  ")
	v.OneOf("OTelExporter", "zipkin", "none", "grpc", "http")
	v.URL("ControlURL", "ftp://host", "http", "https")

	require.False(t, v.IsValid())
	err := v.Err()
	require.Error(t, err)

	var ve ValidationError
	require.True(t, errors.As(err, &ve))
	fields := make([]string, 0, len(ve.Errors()))
	for _, e := range ve.Errors() {
		fields = append(fields, e.Field)
	}
	assert.Equal(t, []string{"AdminPort", "CPUWarning", "ControlTimeout", "ReconnectMinInterval", "StreamApp", "OTelExporter", "ControlURL"}, fields)
	assert.Contains(t, err.Error(), "validation failed for AdminPort")
}

func TestValidatorPasses(t *testing.T) {
	v := New()
	v.Port("AdminPort", 8090)
	v.URL("ControlURL", "http://127.0.0.1:8080/stat", "http", "https")
	v.OneOf("OTelExporter", "GRPC", "none", "grpc", "http")
	assert.True(t, v.IsValid())
	assert.NoError(t, v.Err())
}

func TestURLWithoutHost(t *testing.T) {
	v := New()
	v.URL("ControlURL", "/stat")
	require.Error(t, v.Err())
	assert.Contains(t, v.Err().Error(), "must have a host")
}
