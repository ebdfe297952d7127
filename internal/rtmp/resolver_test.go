// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package rtmp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolverBaseURLs(t *testing.T) {
	tests := []struct {
		name string
		cfg  ResolverConfig
		want []string
	}{
		{
			name: "production defaults",
			cfg:  ResolverConfig{},
			want: []string{"http://127.0.0.1", "http://127.0.0.1:8080"},
		},
		{
			name: "local mode prefers 8080",
			cfg:  ResolverConfig{LocalMode: true},
			want: []string{"http://127.0.0.1:8080", "http://127.0.0.1"},
		},
		{
			name: "explicit port is the only candidate",
			cfg:  ResolverConfig{Host: "nginx", Port: 8081, LocalMode: true},
			want: []string{"http://nginx:8081"},
		},
		{
			name: "explicit port 80 omits suffix",
			cfg:  ResolverConfig{Host: "nginx", Port: 80},
			want: []string{"http://nginx"},
		},
		{
			name: "control url wins",
			cfg:  ResolverConfig{ControlURL: "https://media.example.com:8443/some/path?x=1", Host: "ignored", Port: 9},
			want: []string{"https://media.example.com:8443"},
		},
		{
			name: "control url without scheme falls back",
			cfg:  ResolverConfig{ControlURL: "media.example.com", Host: "nginx", Port: 8080},
			want: []string{"http://nginx:8080"},
		},
		{
			name: "host is normalized",
			cfg:  ResolverConfig{Host: " Media.Example.COM ", Port: 80},
			want: []string{"http://media.example.com"},
		},
		{
			name: "unicode host becomes punycode",
			cfg:  ResolverConfig{Host: "bücher.example", Port: 8080},
			want: []string{"http://xn--bcher-kva.example:8080"},
		},
		{
			name: "ipv6 literal",
			cfg:  ResolverConfig{Host: "::1"},
			want: []string{"http://[::1]", "http://[::1]:8080"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewResolver(tt.cfg).BaseURLs())
		})
	}
}

func TestResolverStatAndDropURLs(t *testing.T) {
	r := NewResolver(ResolverConfig{LocalMode: true})

	assert.Equal(t, []string{
		"http://127.0.0.1:8080/stat",
		"http://127.0.0.1/stat",
	}, r.StatURLs())

	assert.Equal(t, []string{
		"http://127.0.0.1:8080/control/drop/publisher?app=ingest&name=my%20stream%26x%3D1",
		"http://127.0.0.1/control/drop/publisher?app=ingest&name=my%20stream%26x%3D1",
	}, r.DropURLs("ingest", "my stream&x=1"))
}
