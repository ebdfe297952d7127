// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package rtmp

import (
	"net"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/net/idna"
)

// DefaultHost is the control host used when none is configured.
const DefaultHost = "127.0.0.1"

// Endpoints produces the ordered candidate URLs for the control interface.
type Endpoints interface {
	StatURLs() []string
	DropURLs(app, name string) []string
}

// ResolverConfig selects the control endpoint candidates.
type ResolverConfig struct {
	// ControlURL, when it has a scheme and host, is the only candidate.
	ControlURL string
	Host       string
	// Port, when non-zero, is the only candidate port.
	Port int
	// LocalMode prefers 8080 over 80: local installs expose nginx directly
	// while production installs sit behind a proxy on 80.
	LocalMode bool
}

// Resolver computes control endpoint candidates from a ResolverConfig.
type Resolver struct {
	cfg ResolverConfig
}

// NewResolver returns a Resolver for cfg.
func NewResolver(cfg ResolverConfig) Resolver {
	return Resolver{cfg: cfg}
}

// BaseURLs returns the candidate base URLs in the order they are tried.
func (r Resolver) BaseURLs() []string {
	if r.cfg.ControlURL != "" {
		if u, err := url.Parse(r.cfg.ControlURL); err == nil && u.Scheme != "" && u.Host != "" {
			return []string{u.Scheme + "://" + u.Host}
		}
	}

	host := normalizeHost(r.cfg.Host)
	var ports []int
	switch {
	case r.cfg.Port > 0:
		ports = []int{r.cfg.Port}
	case r.cfg.LocalMode:
		ports = []int{8080, 80}
	default:
		ports = []int{80, 8080}
	}

	urls := make([]string, 0, len(ports))
	for _, port := range ports {
		if port == 80 {
			if strings.Contains(host, ":") {
				urls = append(urls, "http://["+host+"]")
			} else {
				urls = append(urls, "http://"+host)
			}
			continue
		}
		urls = append(urls, "http://"+net.JoinHostPort(host, strconv.Itoa(port)))
	}
	return urls
}

// StatURLs returns the statistics document candidates.
func (r Resolver) StatURLs() []string {
	bases := r.BaseURLs()
	out := make([]string, len(bases))
	for i, base := range bases {
		out[i] = base + "/stat"
	}
	return out
}

// DropURLs returns the drop-publisher candidates for one stream.
func (r Resolver) DropURLs(app, name string) []string {
	bases := r.BaseURLs()
	// nginx does not decode '+' in query arguments.
	query := "?app=" + app + "&name=" + strings.ReplaceAll(url.QueryEscape(name), "+", "%20")
	out := make([]string, len(bases))
	for i, base := range bases {
		out[i] = base + "/control/drop/publisher" + query
	}
	return out
}

// normalizeHost lower-cases and punycode-encodes host names. IP literals and
// names idna rejects are used as configured.
func normalizeHost(host string) string {
	host = strings.TrimSpace(host)
	if host == "" {
		return DefaultHost
	}
	host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	if net.ParseIP(host) != nil {
		return host
	}
	if ascii, err := idna.Lookup.ToASCII(host); err == nil && ascii != "" {
		return ascii
	}
	return host
}
