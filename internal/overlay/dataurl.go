// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package overlay

import (
	"encoding/base64"
	"strings"
)

// DecodeDataURL splits a "data:<mime>;base64,<payload>" string.
func DecodeDataURL(s string) (string, []byte, error) {
	s = strings.TrimSpace(s)
	header, payload, ok := strings.Cut(s, ",")
	if !ok || !strings.HasPrefix(header, "data:") || !strings.Contains(header, ";base64") {
		return "", nil, ErrInvalidDataURL
	}
	mime, _, _ := strings.Cut(strings.TrimPrefix(header, "data:"), ";")
	data, err := base64.StdEncoding.Strict().DecodeString(payload)
	if err != nil {
		return "", nil, ErrInvalidDataURL
	}
	return strings.ToLower(strings.TrimSpace(mime)), data, nil
}
