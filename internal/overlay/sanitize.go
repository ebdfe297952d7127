// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package overlay

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/normalize"
)

// Patch is a partial overlay update. Fields that were absent from the request
// keep the base value.
type Patch struct {
	ID        normalize.Optional `json:"id"`
	Enabled   normalize.Optional `json:"enabled"`
	ImageFile normalize.Optional `json:"image_file"`
	Position  normalize.Optional `json:"position"`
	OffsetX   normalize.Optional `json:"offset_x"`
	OffsetY   normalize.Optional `json:"offset_y"`
	SizeMode  normalize.Optional `json:"size_mode"`
	SizeValue normalize.Optional `json:"size_value"`
	Opacity   normalize.Optional `json:"opacity"`
	Rotate    normalize.Optional `json:"rotate"`
}

// PatchFromMap builds a Patch from a decoded JSON object, keeping key presence.
func PatchFromMap(m map[string]any) Patch {
	get := func(key string) normalize.Optional {
		v, ok := m[key]
		return normalize.Optional{Present: ok, Value: v}
	}
	return Patch{
		ID:        get("id"),
		Enabled:   get("enabled"),
		ImageFile: get("image_file"),
		Position:  get("position"),
		OffsetX:   get("offset_x"),
		OffsetY:   get("offset_y"),
		SizeMode:  get("size_mode"),
		SizeValue: get("size_value"),
		Opacity:   get("opacity"),
		Rotate:    get("rotate"),
	}
}

// PatchFrom returns a Patch that sets every field of o.
func PatchFrom(o Overlay) Patch {
	return Patch{
		ID:        normalize.Some(o.ID),
		Enabled:   normalize.Some(o.Enabled),
		ImageFile: normalize.Some(o.ImageFile),
		Position:  normalize.Some(string(o.Position)),
		OffsetX:   normalize.Some(float64(o.OffsetX)),
		OffsetY:   normalize.Some(float64(o.OffsetY)),
		SizeMode:  normalize.Some(string(o.SizeMode)),
		SizeValue: normalize.Some(o.SizeValue),
		Opacity:   normalize.Some(o.Opacity),
		Rotate:    normalize.Some(float64(o.Rotate)),
	}
}

// ListPatch is the overlays key of an update. Present is false when the key
// was absent (or null), which keeps the stored list.
type ListPatch struct {
	Present bool
	Items   []Patch
}

// Explicit wraps items as a present list.
func Explicit(items ...Patch) ListPatch {
	if items == nil {
		items = []Patch{}
	}
	return ListPatch{Present: true, Items: items}
}

// ExplicitFrom wraps fully specified overlays as a present list.
func ExplicitFrom(list []Overlay) ListPatch {
	items := make([]Patch, 0, len(list))
	for _, o := range list {
		items = append(items, PatchFrom(o))
	}
	return ListPatch{Present: true, Items: items}
}

// UnmarshalJSON accepts an array of objects; non-object entries are skipped.
// Non-array values leave the list absent.
func (l *ListPatch) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*l = ListPatchFromValue(raw)
	return nil
}

// ListPatchFromValue converts a decoded JSON value into a ListPatch.
func ListPatchFromValue(v any) ListPatch {
	items, ok := v.([]any)
	if !ok {
		return ListPatch{}
	}
	out := ListPatch{Present: true, Items: make([]Patch, 0, len(items))}
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			out.Items = append(out.Items, PatchFromMap(m))
		}
	}
	return out
}

// Sanitizer applies the overlay rules. The zero value is usable.
type Sanitizer struct {
	// MaxCount caps list length; values below one mean DefaultMaxCount.
	MaxCount int
	// NewID generates ids for overlays without a usable one.
	NewID func() string
}

// NewSanitizer returns a Sanitizer capped at maxCount overlays.
func NewSanitizer(maxCount int) Sanitizer {
	return Sanitizer{MaxCount: maxCount, NewID: GenerateID}
}

func (s Sanitizer) maxCount() int {
	if s.MaxCount < 1 {
		return DefaultMaxCount
	}
	return s.MaxCount
}

func (s Sanitizer) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return GenerateID()
}

// Item merges p over base and clamps every field. fallbackID is used when
// neither p nor base carries a valid id.
func (s Sanitizer) Item(p Patch, base Overlay, fallbackID string) Overlay {
	merged := base
	merged.ImageFile = NormalizeImageFile(merged.ImageFile)
	if _, ok := positions[merged.Position]; !ok {
		merged.Position = PositionTopRight
	}
	if merged.SizeMode != SizePercent && merged.SizeMode != SizePixels {
		merged.SizeMode = SizePercent
	}

	id := ""
	if p.ID.Present {
		id = NormalizeID(p.ID.Value)
	}
	if id == "" {
		id = NormalizeID(merged.ID)
	}
	if id == "" && fallbackID != "" {
		id = NormalizeID(fallbackID)
	}
	if id == "" {
		id = s.newID()
	}
	merged.ID = id

	if p.Enabled.Present {
		merged.Enabled = normalize.Truthy(p.Enabled.Value)
	}
	if p.ImageFile.Present {
		merged.ImageFile = NormalizeImageFile(p.ImageFile.Value)
	}
	if p.Position.Present {
		if pos, ok := ParsePosition(p.Position.Value); ok {
			merged.Position = pos
		}
	}
	if p.OffsetX.Present {
		merged.OffsetX = normalize.Int(p.OffsetX.Value, MinOffset, MaxOffset, merged.OffsetX)
	}
	if p.OffsetY.Present {
		merged.OffsetY = normalize.Int(p.OffsetY.Value, MinOffset, MaxOffset, merged.OffsetY)
	}
	if p.SizeMode.Present {
		if mode, ok := ParseSizeMode(p.SizeMode.Value); ok {
			merged.SizeMode = mode
		}
	}
	if p.SizeMode.Present || p.SizeValue.Present {
		var raw any
		if p.SizeValue.Present {
			raw = p.SizeValue.Value
		}
		merged.SizeValue = clampSize(merged.SizeMode, raw, merged.SizeValue)
	}
	if p.Opacity.Present {
		merged.Opacity = normalize.Float(p.Opacity.Value, 0, 1, merged.Opacity)
	}
	if p.Rotate.Present {
		merged.Rotate = normalize.Int(p.Rotate.Value, MinRotate, MaxRotate, merged.Rotate)
	}
	return merged
}

// clampSize bounds raw (or current, when raw is unusable) into the range of mode.
func clampSize(mode SizeMode, raw any, current float64) float64 {
	if mode == SizePixels {
		n := normalize.Int(raw, MinSizePixels, MaxSizePixels, int(current))
		return float64(normalize.ClampInt(n, MinSizePixels, MaxSizePixels))
	}
	f := normalize.Float(raw, MinSizePercent, MaxSizePercent, current)
	return normalize.ClampFloat(f, MinSizePercent, MaxSizePercent)
}

// List sanitizes an overlays update against the currently stored list.
//
// An absent patch re-sanitizes existing. Items are merged over the existing
// overlay with the same id, ids are made unique, and the result is capped at
// MaxCount. An empty result is returned as-is only when the caller sent an
// explicit list; otherwise a single default overlay is synthesized.
func (s Sanitizer) List(patch ListPatch, existing []Overlay) []Overlay {
	cleanedExisting := make([]Overlay, 0, len(existing))
	for i, o := range existing {
		cleanedExisting = append(cleanedExisting, s.Item(PatchFrom(o), Default(), fallbackID(i)))
	}
	byID := make(map[string]Overlay, len(cleanedExisting))
	for _, o := range cleanedExisting {
		if _, dup := byID[o.ID]; !dup {
			byID[o.ID] = o
		}
	}

	explicit := patch.Present
	items := patch.Items
	if !patch.Present {
		items = make([]Patch, 0, len(cleanedExisting))
		for _, o := range cleanedExisting {
			items = append(items, PatchFrom(o))
		}
	}

	limit := s.maxCount()
	cleaned := make([]Overlay, 0, min(len(items), limit))
	seen := make(map[string]struct{}, len(items))
	for i, p := range items {
		base := Default()
		if p.ID.Present {
			if candidate := NormalizeID(p.ID.Value); candidate != "" {
				if e, ok := byID[candidate]; ok {
					base = e
				}
			}
		}
		o := s.Item(p, base, fallbackID(i))
		for {
			if _, dup := seen[o.ID]; !dup {
				break
			}
			o.ID = s.newID()
		}
		seen[o.ID] = struct{}{}
		cleaned = append(cleaned, o)
		if len(cleaned) >= limit {
			break
		}
	}

	if len(cleaned) == 0 {
		if explicit {
			return []Overlay{}
		}
		return []Overlay{s.Item(Patch{}, Default(), PrimaryID)}
	}
	return cleaned
}

func fallbackID(index int) string {
	if index == 0 {
		return PrimaryID
	}
	return fmt.Sprintf("overlay-%d", index+1)
}

// NormalizeID returns the trimmed id when it is well-formed, else "".
func NormalizeID(v any) string {
	id := strings.TrimSpace(normalize.String(v))
	if !ValidID(id) {
		return ""
	}
	return id
}

// GenerateID returns eight random hex characters.
func GenerateID() string {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(fmt.Sprintf("overlay: crypto/rand failed: %v", err))
	}
	return hex.EncodeToString(b[:])
}

// NormalizeImageFile returns v when it is a bare, well-formed image filename.
func NormalizeImageFile(v any) string {
	name := strings.TrimSpace(normalize.String(v))
	if name == "" || strings.ContainsAny(name, `/\`) {
		return ""
	}
	if !ValidImageFile(name) {
		return ""
	}
	return name
}

var fold = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// SafeFilename derives "<stem>.<ext>" from a client supplied name. Accents are
// folded, anything outside [A-Za-z0-9._-] is dropped, and fallback is returned
// when nothing usable remains.
func SafeFilename(suggested, ext, fallback string) string {
	name := strings.TrimSpace(suggested)
	if name == "" {
		return fallback
	}
	name = path.Base(strings.ReplaceAll(name, `\`, "/"))
	stem := strings.TrimSuffix(name, path.Ext(name))
	if stem == "" {
		stem = name
	}
	if folded, _, err := transform.String(fold, stem); err == nil {
		stem = folded
	}
	stem = strings.Map(func(r rune) rune {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			return r
		}
		return -1
	}, stem)
	stem = strings.Trim(stem, "._-")
	if stem == "" {
		return fallback
	}
	candidate := stem + "." + ext
	if !ValidImageFile(candidate) {
		return fallback
	}
	return candidate
}
