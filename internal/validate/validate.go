// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package validate accumulates field validation errors.
package validate

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"
)

// Error is one failed field check.
type Error struct {
	Field   string
	Value   any
	Message string
}

func (e Error) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
}

// ValidationError bundles every failed check.
type ValidationError struct {
	errors []Error
}

// Errors returns the individual failures.
func (e ValidationError) Errors() []Error { return e.errors }

func (e ValidationError) Error() string {
	msgs := make([]string, len(e.errors))
	for i, err := range e.errors {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Validator collects errors from successive checks.
type Validator struct {
	errors []Error
}

// New returns an empty Validator.
func New() *Validator { return &Validator{} }

// AddError records a failure for field.
func (v *Validator) AddError(field, message string, value any) {
	v.errors = append(v.errors, Error{Field: field, Value: value, Message: message})
}

// IsValid reports whether no check failed.
func (v *Validator) IsValid() bool { return len(v.errors) == 0 }

// Err returns a ValidationError, or nil when every check passed.
func (v *Validator) Err() error {
	if len(v.errors) == 0 {
		return nil
	}
	return ValidationError{errors: slices.Clone(v.errors)}
}

// URL checks an absolute URL with one of the allowed schemes.
func (v *Validator) URL(field, value string, schemes ...string) {
	u, err := url.Parse(value)
	switch {
	case err != nil:
		v.AddError(field, fmt.Sprintf("invalid URL: %v", err), value)
	case u.Host == "":
		v.AddError(field, "URL must have a host", value)
	case len(schemes) > 0 && !slices.Contains(schemes, u.Scheme):
		v.AddError(field, fmt.Sprintf("unsupported URL scheme %q (allowed: %v)", u.Scheme, schemes), value)
	}
}

// Port checks 1..65535.
func (v *Validator) Port(field string, port int) {
	if port <= 0 || port > 65535 {
		v.AddError(field, fmt.Sprintf("port must be between 1 and 65535, got %d", port), port)
	}
}

// Range checks an inclusive integer range.
func (v *Validator) Range(field string, value, lo, hi int) {
	if value < lo || value > hi {
		v.AddError(field, fmt.Sprintf("value must be between %d and %d, got %d", lo, hi, value), value)
	}
}

// FloatRange checks an inclusive float range.
func (v *Validator) FloatRange(field string, value, lo, hi float64) {
	if value < lo || value > hi {
		v.AddError(field, fmt.Sprintf("value must be between %g and %g, got %g", lo, hi, value), value)
	}
}

// Positive checks d > 0.
func (v *Validator) Positive(field string, d time.Duration) {
	if d <= 0 {
		v.AddError(field, fmt.Sprintf("duration must be positive, got %s", d), d)
	}
}

// NonNegative checks d >= 0.
func (v *Validator) NonNegative(field string, d time.Duration) {
	if d < 0 {
		v.AddError(field, fmt.Sprintf("duration must not be negative, got %s", d), d)
	}
}

// NotEmpty rejects blank strings.
func (v *Validator) NotEmpty(field, value string) {
	if strings.TrimSpace(value) == "" {
		v.AddError(field, "must not be empty", value)
	}
}

// OneOf checks value against a fixed set (case-insensitive).
func (v *Validator) OneOf(field, value string, allowed ...string) {
	for _, a := range allowed {
		if strings.EqualFold(a, value) {
			return
		}
	}
	v.AddError(field, fmt.Sprintf("must be one of %v, got %q", allowed, value), value)
}
