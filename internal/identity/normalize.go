// Package identity normalizes the various ways a client may reference a
// wallet public key and verifies the signatures identities present during
// authentication.
package identity

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
)

// pubkeyPattern matches a bare base58-encoded wallet public key, 32-44
// characters.
var pubkeyPattern = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]{32,44}$`)

// ErrInvalidIdentity is returned when a string cannot be normalized into a
// valid identity.
var ErrInvalidIdentity = errors.New("identity: invalid or unrecognized identity string")

// Normalize accepts a bare pubkey, a "#/dm/<pubkey>" fragment, or an HTTPS
// URL whose last path segment or fragment resolves to one of the above, and
// returns the bare pubkey.
func Normalize(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidIdentity
	}

	if IsValid(raw) {
		return raw, nil
	}

	if strings.Contains(raw, "#/dm/") {
		if pk := afterDM(raw); pk != "" {
			return pk, nil
		}
	}

	if u, err := url.Parse(raw); err == nil {
		if frag := u.Fragment; frag != "" {
			if pk := afterDM("#" + frag); pk != "" {
				return pk, nil
			}
			if pk := lastSegment(frag); IsValid(pk) {
				return pk, nil
			}
		}
		if pk := lastSegment(u.Path); IsValid(pk) {
			return pk, nil
		}
	}

	return "", ErrInvalidIdentity
}

// IsValid reports whether s is a syntactically valid base58 wallet pubkey.
func IsValid(s string) bool {
	return pubkeyPattern.MatchString(s)
}

func afterDM(s string) string {
	idx := strings.Index(s, "#/dm/")
	if idx < 0 {
		return ""
	}
	candidate := s[idx+len("#/dm/"):]
	candidate = lastSegment(candidate)
	if IsValid(candidate) {
		return candidate
	}
	return ""
}

func lastSegment(path string) string {
	path = strings.TrimRight(path, "/")
	parts := strings.Split(path, "/")
	return parts[len(parts)-1]
}
