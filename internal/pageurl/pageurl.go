// Package pageurl derives the cache key for a page: host + path with the
// scheme, query, fragment, leading "www." and trailing slashes removed.
package pageurl

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/pscheid92/pagerating/internal/domain"
)

var schemePrefix = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.-]*://`)

// Normalize returns the NormalizedURL for raw. It is idempotent, so a
// normalized key can be passed back in and comes out unchanged.
func Normalize(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", domain.ErrInvalidPageURL)
	}

	if !schemePrefix.MatchString(trimmed) {
		trimmed = "http://" + strings.TrimPrefix(trimmed, "//")
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidPageURL, err)
	}

	host := strings.ToLower(u.Host)
	for strings.HasPrefix(host, "www.") {
		host = strings.TrimPrefix(host, "www.")
	}
	if host == "" {
		return "", fmt.Errorf("%w: missing host in %q", domain.ErrInvalidPageURL, raw)
	}

	path := strings.TrimRight(u.EscapedPath(), "/")
	return host + path, nil
}

// MustNormalize is Normalize for inputs known to be valid.
func MustNormalize(raw string) string {
	key, err := Normalize(raw)
	if err != nil {
		panic(err)
	}
	return key
}
