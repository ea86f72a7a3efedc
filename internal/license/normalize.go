package license

import (
	"errors"
	"net"
	"strings"
)

// ErrEmptyDomain is returned when normalization is handed nothing usable.
var ErrEmptyDomain = errors.New("domain is empty")

// NormalizeDomain canonicalizes a free-text domain or URL into a comparable
// hostname: lowercase, no scheme, no credentials, no www. prefix, no port, no
// path, query or fragment, no trailing dot. The function is pure; two surface
// forms of the same domain always normalize identically.
func NormalizeDomain(raw string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return "", ErrEmptyDomain
	}

	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	s = strings.TrimPrefix(s, "//")

	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	if i := strings.LastIndex(s, "@"); i >= 0 {
		s = s[i+1:]
	}
	if host, _, err := net.SplitHostPort(s); err == nil {
		s = host
	}

	s = strings.TrimSuffix(s, ".")
	s = strings.TrimPrefix(s, "www.")

	if s == "" {
		return "", ErrEmptyDomain
	}
	return s, nil
}
