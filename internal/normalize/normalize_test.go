// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package normalize

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToken(t *testing.T) {
	assert.Equal(t, "top-left", Token("  Top-Left\t"))
	assert.Equal(t, "px", Token("\u200bPX\ufeff"))
}

func TestInt(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want int
	}{
		{"float truncates", 12.9, 12},
		{"negative clamps to lower bound", -12.9, 0},
		{"numeric string", " 42 ", 42},
		{"decimal string", "29.97", 29},
		{"clamped high", 5000.0, 2000},
		{"clamped low", -1.0, 0},
		{"huge float clamps high", 1e20, 2000},
		{"huge negative float clamps low", -1e20, 0},
		{"exponent string clamps high", "1e19", 2000},
		{"infinity string falls back", "Inf", 7},
		{"bool true", true, 1},
		{"garbage", "abc", 7},
		{"nil", nil, 7},
		{"object", map[string]any{}, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Int(tt.in, 0, 2000, 7))
		})
	}
}

func TestIntTruncatesTowardZero(t *testing.T) {
	assert.Equal(t, -12, Int(-12.9, -2000, 2000, 7))
	assert.Equal(t, 12, Int(12.9, -2000, 2000, 7))
	assert.Equal(t, -2000, Int(-1e300, -2000, 2000, 7))
}

func TestFloat(t *testing.T) {
	assert.InDelta(t, 0.5, Float("0.5", 0, 1, 1), 1e-9)
	assert.InDelta(t, 1.0, Float(3.0, 0, 1, 0.2), 1e-9)
	assert.InDelta(t, 0.2, Float("NaN", 0, 1, 0.2), 1e-9)
	assert.InDelta(t, 0.2, Float("", 0, 1, 0.2), 1e-9)
}

func TestTruthy(t *testing.T) {
	assert.True(t, Truthy(true))
	assert.True(t, Truthy("false"))
	assert.True(t, Truthy(1.0))
	assert.True(t, Truthy([]any{1.0}))
	assert.False(t, Truthy(nil))
	assert.False(t, Truthy(""))
	assert.False(t, Truthy(0.0))
	assert.False(t, Truthy([]any{}))
	assert.False(t, Truthy(map[string]any{}))
}

func TestCleanField(t *testing.T) {
	assert.Equal(t, "rtmp://a.example/live", CleanField("  rtmp://a.example/live "))
	assert.Equal(t, "", CleanField("key;rm -rf"))
	assert.Equal(t, "", CleanField("line\nbreak"))
	assert.Equal(t, "", CleanField(nil))
	assert.Equal(t, "12", CleanField(12.0))
}

func TestParsePtr(t *testing.T) {
	s := func(v string) *string { return &v }

	assert.Nil(t, ParseIntPtr(nil))
	assert.Nil(t, ParseIntPtr(s("n/a")))
	require.NotNil(t, ParseIntPtr(s("1920")))
	assert.Equal(t, 1920, *ParseIntPtr(s("1920")))
	assert.Equal(t, 29, *ParseIntPtr(s("29.97")))
	assert.Equal(t, math.MaxInt32, *ParseIntPtr(s("1e20")))
	assert.Equal(t, math.MinInt32, *ParseIntPtr(s("-1e20")))

	assert.Nil(t, ParseFloatPtr(s("")))
	require.NotNil(t, ParseFloatPtr(s(" 29.97 ")))
	assert.InDelta(t, 29.97, *ParseFloatPtr(s(" 29.97 ")), 1e-9)
}

func TestRound(t *testing.T) {
	assert.Equal(t, 12.35, Round(12.345678, 2))
	assert.Equal(t, 12.3, Round(12.345678, 1))
}

func TestOptionalDistinguishesAbsentFromNull(t *testing.T) {
	var payload struct {
		A Optional `json:"a"`
		B Optional `json:"b"`
		C Optional `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a": null, "b": "x"}`), &payload))

	assert.True(t, payload.A.Present)
	assert.Nil(t, payload.A.Value)
	assert.True(t, payload.B.Present)
	assert.Equal(t, "x", payload.B.Value)
	assert.False(t, payload.C.Present)
}
