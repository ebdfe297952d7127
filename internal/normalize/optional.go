// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package normalize

import (
	"bytes"
	"encoding/json"
)

// Optional records whether a JSON object key was present and keeps its
// loosely typed value. An explicit null is present with a nil Value.
type Optional struct {
	Present bool
	Value   any
}

// Some returns a present Optional holding v.
func Some(v any) Optional {
	return Optional{Present: true, Value: v}
}

// UnmarshalJSON implements json.Unmarshaler.
func (o *Optional) UnmarshalJSON(b []byte) error {
	o.Present = true
	o.Value = nil
	dec := json.NewDecoder(bytes.NewReader(b))
	return dec.Decode(&o.Value)
}

// MarshalJSON implements json.Marshaler.
func (o Optional) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.Value)
}

// IsZero lets encoders with omitzero skip absent values.
func (o Optional) IsZero() bool {
	return !o.Present
}
