// Package profile implements the nickname directory: identity ↔ nickname
// ↔ encryption public key, with nickname uniqueness enforced as a
// bijection and a 7-day change cooldown.
package profile

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

// ChangeCooldown is the minimum interval between successful nickname
// changes for a given identity.
const ChangeCooldown = 7 * 24 * time.Hour

var nicknamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]{2,15}$`)

var (
	// ErrInvalidNickname is returned when a nickname fails the pattern or
	// blocklist check.
	ErrInvalidNickname = errors.New("profile: invalid nickname")
	// ErrNicknameTaken is returned when the nickname maps to a different
	// identity already.
	ErrNicknameTaken = errors.New("profile: nickname already claimed")
	// ErrCooldownActive is returned when a change is attempted before the
	// cooldown has elapsed.
	ErrCooldownActive = errors.New("profile: nickname change cooldown active")
	// ErrNotFound is returned when a profile lookup misses.
	ErrNotFound = errors.New("profile: not found")
)

// Profile is the directory record for one identity.
type Profile struct {
	Pubkey              string `json:"pubkey"`
	Nickname            string `json:"nickname,omitempty"`
	DisplayName         string `json:"displayName,omitempty"`
	EncryptionPublicKey string `json:"encryptionPublicKey,omitempty"`
	CreatedAt           int64  `json:"createdAt"`
	UpdatedAt           int64  `json:"updatedAt"`
	NicknameChangedAt   int64  `json:"nicknameChangedAt,omitempty"`
}

// NormalizeNickname strips a leading '@', lowercases, and validates against
// the nickname pattern and blocklist. It does not check uniqueness.
func NormalizeNickname(raw string) (string, error) {
	n := strings.TrimPrefix(strings.TrimSpace(raw), "@")
	n = strings.ToLower(n)
	if !nicknamePattern.MatchString(n) {
		return "", ErrInvalidNickname
	}
	if isBlocked(n) {
		return "", ErrInvalidNickname
	}
	return n, nil
}

// CooldownRemaining returns how long until a nickname change is allowed
// again, or zero if none is outstanding.
func CooldownRemaining(nicknameChangedAt int64, now time.Time) time.Duration {
	if nicknameChangedAt == 0 {
		return 0
	}
	elapsed := now.Sub(time.UnixMilli(nicknameChangedAt))
	if elapsed >= ChangeCooldown {
		return 0
	}
	return ChangeCooldown - elapsed
}

func msToTime(ms int64) time.Time {
	return time.UnixMilli(ms)
}

func displayNameFor(nickname string) string {
	if nickname == "" {
		return ""
	}
	return "@" + nickname
}
