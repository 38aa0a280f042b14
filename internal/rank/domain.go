// Package rank resolves the search position of a domain for a keyword.
package rank

import (
	"errors"
	"strings"
)

// ErrInvalidURL is returned when no domain can be derived from a URL.
var ErrInvalidURL = errors.New("invalid url")

// ExtractDomain reduces rawURL to the bare host used for result matching:
// an http:// or https:// prefix and a leading "www." are stripped and the
// remainder is cut at the first '/', '?' or '#'. The result is lowercased.
func ExtractDomain(rawURL string) (string, error) {
	s := strings.TrimSpace(rawURL)

	lower := strings.ToLower(s)
	for _, scheme := range []string{"https://", "http://"} {
		if strings.HasPrefix(lower, scheme) {
			s = s[len(scheme):]
			break
		}
	}
	if len(s) >= 4 && strings.EqualFold(s[:4], "www.") {
		s = s[4:]
	}
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}

	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "", ErrInvalidURL
	}
	return s, nil
}
