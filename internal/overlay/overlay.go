// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package overlay validates overlay definitions and owns the image files they
// reference.
package overlay

import (
	"regexp"

	"github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/normalize"
)

// Position anchors an overlay inside the output frame.
type Position string

const (
	PositionTopLeft      Position = "top-left"
	PositionTopRight     Position = "top-right"
	PositionBottomLeft   Position = "bottom-left"
	PositionBottomRight  Position = "bottom-right"
	PositionCenter       Position = "center"
	PositionTopCenter    Position = "top-center"
	PositionBottomCenter Position = "bottom-center"
	PositionCenterLeft   Position = "center-left"
	PositionCenterRight  Position = "center-right"
	PositionCustom       Position = "custom"
)

var positions = map[Position]struct{}{
	PositionTopLeft: {}, PositionTopRight: {}, PositionBottomLeft: {}, PositionBottomRight: {},
	PositionCenter: {}, PositionTopCenter: {}, PositionBottomCenter: {},
	PositionCenterLeft: {}, PositionCenterRight: {}, PositionCustom: {},
}

// ParsePosition matches v case-insensitively against the known anchors.
func ParsePosition(v any) (Position, bool) {
	p := Position(normalize.Token(normalize.String(v)))
	_, ok := positions[p]
	return p, ok
}

// SizeMode selects how SizeValue is interpreted.
type SizeMode string

const (
	SizePercent SizeMode = "percent"
	SizePixels  SizeMode = "px"
)

// ParseSizeMode matches v case-insensitively against the known size modes.
func ParseSizeMode(v any) (SizeMode, bool) {
	m := SizeMode(normalize.Token(normalize.String(v)))
	switch m {
	case SizePercent, SizePixels:
		return m, true
	}
	return "", false
}

// Value bounds.
const (
	MinOffset       = 0
	MaxOffset       = 2000
	MinSizePercent  = 1.0
	MaxSizePercent  = 100.0
	MinSizePixels   = 16
	MaxSizePixels   = 2000
	MinRotate       = -180
	MaxRotate       = 180
	DefaultMaxCount = 8
	MaxImageBytes   = 5 * 1024 * 1024
	PrimaryID       = "primary"
)

var (
	idPattern       = regexp.MustCompile(`^[A-Za-z0-9_-]{4,32}$`)
	filenamePattern = regexp.MustCompile(`(?i)^[A-Za-z0-9][A-Za-z0-9._-]{0,127}\.(png|jpe?g|webp)$`)
)

// AllowedMIME maps accepted upload content types to the stored file extension.
var AllowedMIME = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpg",
	"image/jpg":  "jpg",
	"image/webp": "webp",
}

// Overlay is one image layer composited onto the live output.
type Overlay struct {
	ID        string   `json:"id"`
	Enabled   bool     `json:"enabled"`
	ImageFile string   `json:"image_file"`
	Position  Position `json:"position"`
	OffsetX   int      `json:"offset_x"`
	OffsetY   int      `json:"offset_y"`
	SizeMode  SizeMode `json:"size_mode"`
	SizeValue float64  `json:"size_value"`
	Opacity   float64  `json:"opacity"`
	Rotate    int      `json:"rotate"`
}

// Default returns the documented defaults with an empty id.
func Default() Overlay {
	return Overlay{
		Position:  PositionTopRight,
		OffsetX:   24,
		OffsetY:   24,
		SizeMode:  SizePercent,
		SizeValue: 18,
		Opacity:   1.0,
	}
}

// DefaultPrimary is the overlay synthesized when a list would otherwise be empty.
func DefaultPrimary() Overlay {
	o := Default()
	o.ID = PrimaryID
	return o
}

// ValidID reports whether id is a well-formed overlay id.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

// ValidImageFile reports whether name is an acceptable stored image filename.
func ValidImageFile(name string) bool {
	return filenamePattern.MatchString(name)
}

// CountEnabled returns how many overlays are enabled.
func CountEnabled(list []Overlay) int {
	n := 0
	for _, o := range list {
		if o.Enabled {
			n++
		}
	}
	return n
}
