package safeurl

import (
	"net/url"
	"strings"
)

// IsHTTPOrHTTPS returns true if u is a valid absolute URL with scheme http or
// https and a non-empty host. The relay and the prober both refuse anything
// else (file://, ftp://, relative paths) so a crafted playlist line cannot
// reach local files or odd schemes.
func IsHTTPOrHTTPS(u string) bool {
	parsed, err := url.Parse(u)
	if err != nil {
		return false
	}
	if parsed.Host == "" {
		return false
	}
	s := parsed.Scheme
	return s == "http" || s == "https"
}

// Host returns the lower-cased hostname of u without port, or "" when u is
// not parseable. Routing overrides match against this value.
func Host(u string) string {
	parsed, err := url.Parse(u)
	if err != nil {
		return ""
	}
	return strings.ToLower(parsed.Hostname())
}

// MatchesDomain reports whether host equals domain or is a subdomain of it.
// Both are compared case-insensitively; an empty domain never matches.
func MatchesDomain(host, domain string) bool {
	host = strings.ToLower(strings.TrimSpace(host))
	domain = strings.ToLower(strings.TrimSpace(domain))
	if host == "" || domain == "" {
		return false
	}
	return host == domain || strings.HasSuffix(host, "."+domain)
}
