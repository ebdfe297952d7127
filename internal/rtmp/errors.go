// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package rtmp

import (
	"errors"
	"fmt"
)

var (
	// ErrStatsUnavailable means no candidate returned a statistics document.
	ErrStatsUnavailable = errors.New("RTMP stats unavailable")
	// ErrDropFailed means no candidate accepted a drop-publisher call.
	ErrDropFailed = errors.New("drop publisher failed")
	// ErrNoEndpoints means the resolver produced no candidate URLs.
	ErrNoEndpoints = errors.New("no control endpoints configured")
)

// EndpointError describes one failed call to a control endpoint.
type EndpointError struct {
	Operation string
	URL       string
	Status    int
	Err       error
}

func (e *EndpointError) Error() string {
	msg := fmt.Sprintf("rtmp: %s %s", e.Operation, e.URL)
	if e.Status > 0 {
		msg = fmt.Sprintf("%s: HTTP %d", msg, e.Status)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *EndpointError) Unwrap() error {
	return e.Err
}
