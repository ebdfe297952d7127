// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package overlay

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("gen%05d", n)
	}
}

func testSanitizer() Sanitizer {
	return Sanitizer{MaxCount: DefaultMaxCount, NewID: sequentialIDs()}
}

func decodeList(t *testing.T, raw string) ListPatch {
	t.Helper()
	var payload struct {
		Overlays ListPatch `json:"overlays"`
	}
	require.NoError(t, json.Unmarshal([]byte(raw), &payload))
	return payload.Overlays
}

func TestListAbsentKeepsExisting(t *testing.T) {
	s := testSanitizer()
	existing := []Overlay{
		{ID: "logo1", Enabled: true, ImageFile: "logo.png", Position: PositionBottomLeft, OffsetX: 10, OffsetY: 12, SizeMode: SizePixels, SizeValue: 240, Opacity: 0.5, Rotate: 15},
	}

	got := s.List(ListPatch{}, existing)

	if diff := cmp.Diff(existing, got); diff != "" {
		t.Fatalf("absent list changed existing overlays (-want +got):\n%s", diff)
	}
}

func TestListExplicitEmptyClears(t *testing.T) {
	s := testSanitizer()
	got := s.List(decodeList(t, `{"overlays": []}`), []Overlay{DefaultPrimary()})
	assert.Empty(t, got)
	assert.NotNil(t, got)
}

func TestListNeverEmptyWithoutExplicitList(t *testing.T) {
	s := testSanitizer()
	got := s.List(ListPatch{}, nil)
	require.Len(t, got, 1)
	assert.Equal(t, DefaultPrimary(), got[0])
}

func TestListNullOrNonArrayIsAbsent(t *testing.T) {
	assert.False(t, decodeList(t, `{"overlays": null}`).Present)
	assert.False(t, decodeList(t, `{"overlays": "nope"}`).Present)
	assert.False(t, decodeList(t, `{}`).Present)

	lp := decodeList(t, `{"overlays": [1, "x", {"id": "abcd"}]}`)
	require.True(t, lp.Present)
	require.Len(t, lp.Items, 1)
	assert.Equal(t, "abcd", lp.Items[0].ID.Value)
}

func TestListIDsAreUnique(t *testing.T) {
	s := testSanitizer()
	lp := decodeList(t, `{"overlays": [{"id": "logo1"}, {"id": "logo1"}, {}, {"id": "primary"}]}`)

	got := s.List(lp, nil)

	require.Len(t, got, 4)
	seen := map[string]bool{}
	for _, o := range got {
		assert.True(t, ValidID(o.ID), o.ID)
		assert.False(t, seen[o.ID], "duplicate id %s", o.ID)
		seen[o.ID] = true
	}
	assert.Equal(t, "logo1", got[0].ID)
	assert.Equal(t, "gen00001", got[1].ID)
	assert.Equal(t, "overlay-3", got[2].ID)
	assert.Equal(t, "primary", got[3].ID)
}

func TestListFallbackIDs(t *testing.T) {
	s := testSanitizer()
	got := s.List(decodeList(t, `{"overlays": [{"id": "a b"}, {"id": "no"}]}`), nil)
	require.Len(t, got, 2)
	assert.Equal(t, "primary", got[0].ID)
	assert.Equal(t, "overlay-2", got[1].ID)
}

func TestListMergesOverExistingByID(t *testing.T) {
	s := testSanitizer()
	existing := []Overlay{{ID: "logo1", ImageFile: "logo.png", Position: PositionBottomLeft, OffsetX: 5, OffsetY: 6, SizeMode: SizePercent, SizeValue: 30, Opacity: 0.5}}

	got := s.List(decodeList(t, `{"overlays": [{"id": "logo1", "enabled": true}]}`), existing)

	require.Len(t, got, 1)
	want := existing[0]
	want.Enabled = true
	assert.Equal(t, want, got[0])
}

func TestListTruncatesToMaxCount(t *testing.T) {
	s := testSanitizer()
	s.MaxCount = 3
	lp := Explicit(make([]Patch, 10)...)

	got := s.List(lp, nil)

	assert.Len(t, got, 3)
}

func TestItemClampsValues(t *testing.T) {
	s := testSanitizer()
	var p Patch
	require.NoError(t, json.Unmarshal([]byte(`{
		"enabled": "yes",
		"image_file": "../etc/passwd.png",
		"position": " TOP-LEFT ",
		"offset_x": 5000,
		"offset_y": "-3",
		"size_value": "250",
		"opacity": "2",
		"rotate": -400
	}`), &p))

	got := s.Item(p, Default(), "primary")

	assert.Equal(t, "primary", got.ID)
	assert.True(t, got.Enabled)
	assert.Empty(t, got.ImageFile)
	assert.Equal(t, PositionTopLeft, got.Position)
	assert.Equal(t, MaxOffset, got.OffsetX)
	assert.Equal(t, MinOffset, got.OffsetY)
	assert.Equal(t, MaxSizePercent, got.SizeValue)
	assert.Equal(t, 1.0, got.Opacity)
	assert.Equal(t, MinRotate, got.Rotate)
}

func TestItemClampsHugeMagnitudes(t *testing.T) {
	s := testSanitizer()
	var p Patch
	require.NoError(t, json.Unmarshal([]byte(`{
		"offset_x": 1e20,
		"offset_y": -1e20,
		"rotate": 1e20,
		"size_mode": "px",
		"size_value": "1e19"
	}`), &p))

	got := s.Item(p, DefaultPrimary(), "")

	assert.Equal(t, MaxOffset, got.OffsetX)
	assert.Equal(t, MinOffset, got.OffsetY)
	assert.Equal(t, MaxRotate, got.Rotate)
	assert.Equal(t, SizePixels, got.SizeMode)
	assert.Equal(t, float64(MaxSizePixels), got.SizeValue)
}

func TestItemInvalidValuesKeepPrevious(t *testing.T) {
	s := testSanitizer()
	base := Default()
	base.ID = "logo1"
	base.Position = PositionCenter
	base.OffsetX = 40

	var p Patch
	require.NoError(t, json.Unmarshal([]byte(`{"position": "middle", "offset_x": "wide", "size_mode": "em"}`), &p))
	got := s.Item(p, base, "")

	assert.Equal(t, PositionCenter, got.Position)
	assert.Equal(t, 40, got.OffsetX)
	assert.Equal(t, SizePercent, got.SizeMode)
	assert.Equal(t, 18.0, got.SizeValue)
}

func TestItemSizeModeTransitionReclamps(t *testing.T) {
	tests := []struct {
		name  string
		base  Overlay
		patch string
		mode  SizeMode
		want  float64
	}{
		{
			name:  "px to percent without value",
			base:  Overlay{ID: "logo1", SizeMode: SizePixels, SizeValue: 400},
			patch: `{"size_mode": "percent"}`,
			mode:  SizePercent,
			want:  100,
		},
		{
			name:  "percent to px without value",
			base:  Overlay{ID: "logo1", SizeMode: SizePercent, SizeValue: 5.5},
			patch: `{"size_mode": "px"}`,
			mode:  SizePixels,
			want:  16,
		},
		{
			name:  "px value is truncated",
			base:  Overlay{ID: "logo1", SizeMode: SizePercent, SizeValue: 18},
			patch: `{"size_mode": "px", "size_value": 120.9}`,
			mode:  SizePixels,
			want:  120,
		},
		{
			name:  "percent keeps fractions",
			base:  Overlay{ID: "logo1", SizeMode: SizePixels, SizeValue: 120},
			patch: `{"size_mode": "percent", "size_value": "12.5"}`,
			mode:  SizePercent,
			want:  12.5,
		},
		{
			name:  "unusable value falls back to clamped current",
			base:  Overlay{ID: "logo1", SizeMode: SizePixels, SizeValue: 3000},
			patch: `{"size_value": null}`,
			mode:  SizePixels,
			want:  2000,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p Patch
			require.NoError(t, json.Unmarshal([]byte(tt.patch), &p))
			got := testSanitizer().Item(p, tt.base, "")
			assert.Equal(t, tt.mode, got.SizeMode)
			assert.Equal(t, tt.want, got.SizeValue)
		})
	}
}

func TestNormalizeImageFile(t *testing.T) {
	assert.Equal(t, "logo.png", NormalizeImageFile(" logo.png "))
	assert.Equal(t, "Logo_2.JPEG", NormalizeImageFile("Logo_2.JPEG"))
	assert.Empty(t, NormalizeImageFile("sub/logo.png"))
	assert.Empty(t, NormalizeImageFile(`sub\logo.png`))
	assert.Empty(t, NormalizeImageFile(".hidden.png"))
	assert.Empty(t, NormalizeImageFile("logo.gif"))
	assert.Empty(t, NormalizeImageFile(nil))
}

func TestSafeFilename(t *testing.T) {
	tests := []struct {
		in, ext, want string
	}{
		{"My Logo (final).PNG", "png", "MyLogofinal.png"},
		{"Café.webp", "webp", "Cafe.webp"},
		{"../../etc/brand.jpeg", "jpg", "brand.jpg"},
		{`C:\Users\me\badge.png`, "png", "badge.png"},
		{"...", "png", "fallback.png"},
		{"", "png", "fallback.png"},
		{"__.png", "png", "fallback.png"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SafeFilename(tt.in, tt.ext, "fallback."+tt.ext))
		})
	}
}

func TestGenerateID(t *testing.T) {
	id := GenerateID()
	assert.Len(t, id, 8)
	assert.True(t, ValidID(id))
	assert.NotEqual(t, id, GenerateID())
}
