package safeurl

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsHTTPOrHTTPS(t *testing.T) {
	tests := []struct {
		url   string
		allow bool
	}{
		{"http://example.com/", true},
		{"https://example.com/path", true},
		{"HTTP://x", true},
		{"https://cdn.example.com/live/abc_fhd.flv", true},
		{"file:///etc/passwd", false},
		{"ftp://example.com", false},
		{"", false},
		{"not-a-url", false},
		{"javascript:alert(1)", false},
		{"/relative/path.m3u8", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.allow, IsHTTPOrHTTPS(tt.url), "IsHTTPOrHTTPS(%q)", tt.url)
	}
}

func TestHost(t *testing.T) {
	assert.Equal(t, "cdn.example.com", Host("https://CDN.example.com:8443/live/x.flv"))
	assert.Equal(t, "", Host("://bad"))
}

func TestMatchesDomain(t *testing.T) {
	assert.True(t, MatchesDomain("cdn.example.com", "example.com"))
	assert.True(t, MatchesDomain("example.com", "Example.COM"))
	assert.False(t, MatchesDomain("notexample.com", "example.com"))
	assert.False(t, MatchesDomain("cdn.example.com", ""))
}
