// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package restream

import "errors"

// ErrInvalidDestinations is returned when destinations is present but not a list.
var ErrInvalidDestinations = errors.New("destinations must be a list")
