// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package auth

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// DefaultCookieName is the admin session cookie.
const DefaultCookieName = "rs_admin"

// Principal is the authenticated caller of an admin request.
type Principal struct {
	User string
	// SessionID identifies the session in logs without exposing the token.
	SessionID string
}

type principalKey struct{}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the principal stored by the auth middleware.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// ExtractToken returns the session token of r: the session cookie, else an
// Authorization bearer token.
func ExtractToken(r *http.Request, cookieName string) string {
	if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(h[len("Bearer "):])
	}
	return ""
}

// SecureRequest reports whether the session cookie must carry Secure: the
// request came through an https proxy, or it is not addressed to localhost.
func SecureRequest(r *http.Request) bool {
	if r.Header.Get("X-Forwarded-Proto") == "https" {
		return true
	}
	host := r.Host
	return host != "" && !strings.HasPrefix(host, "localhost") && !strings.HasPrefix(host, "127.0.0.1")
}

// SessionCookie builds the cookie carrying token.
func SessionCookie(r *http.Request, name, token string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   SecureRequest(r),
		SameSite: http.SameSiteStrictMode,
	}
}

// ExpiredCookie clears the session cookie in the browser.
func ExpiredCookie(r *http.Request, name string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   SecureRequest(r),
		SameSite: http.SameSiteStrictMode,
	}
}
