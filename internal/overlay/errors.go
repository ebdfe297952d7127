// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package overlay

import "errors"

var (
	// ErrOverlayIDRequired is returned when an action needs an overlay id.
	ErrOverlayIDRequired = errors.New("overlay_id required")

	// ErrOverlayNotFound is returned when no overlay has the requested id.
	ErrOverlayNotFound = errors.New("overlay not found")

	// ErrInvalidDataURL is returned for uploads that are not base64 data URLs.
	ErrInvalidDataURL = errors.New("invalid data url")

	// ErrUnsupportedImage is returned for content types outside the allow-list.
	ErrUnsupportedImage = errors.New("unsupported image type")

	// ErrImageTooLarge is returned when the decoded image exceeds the ceiling.
	ErrImageTooLarge = errors.New("image too large")

	// ErrTooManyOverlays is returned when an upload would add an overlay past the limit.
	ErrTooManyOverlays = errors.New("overlay limit reached")

	// ErrInvalidFilename is returned for filenames that fail validation.
	ErrInvalidFilename = errors.New("invalid overlay filename")
)

// IsValidation reports whether err is a client-side input problem.
func IsValidation(err error) bool {
	return errors.Is(err, ErrOverlayIDRequired) ||
		errors.Is(err, ErrOverlayNotFound) ||
		errors.Is(err, ErrInvalidDataURL) ||
		errors.Is(err, ErrUnsupportedImage) ||
		errors.Is(err, ErrImageTooLarge) ||
		errors.Is(err, ErrTooManyOverlays) ||
		errors.Is(err, ErrInvalidFilename)
}
