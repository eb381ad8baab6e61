// Package authutil issues and resolves session bearer tokens: a signed
// JWT whose claims carry the authenticated identity, with a per-call,
// clamped TTL rather than a fixed lifetime.
package authutil

import (
	"errors"
	"os"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MinSessionTTL and MaxSessionTTL bound the session lifetime clients may
// request.
const (
	MinSessionTTL     = 15 * time.Minute
	MaxSessionTTL     = 12 * time.Hour
	DefaultSessionTTL = 1 * time.Hour
)

var (
	secretOnce sync.Once
	secretKey  []byte
)

func getSecret() []byte {
	secretOnce.Do(func() {
		key := os.Getenv("WALLETMSG_SESSION_SECRET")
		if key == "" {
			key = "dev-secret-change-me"
		}
		secretKey = []byte(key)
	})
	return secretKey
}

// ClampSessionTTL clamps requested to [MinSessionTTL, MaxSessionTTL],
// substituting DefaultSessionTTL when requested is zero or negative.
func ClampSessionTTL(requested time.Duration) time.Duration {
	if requested <= 0 {
		requested = DefaultSessionTTL
	}
	if requested < MinSessionTTL {
		return MinSessionTTL
	}
	if requested > MaxSessionTTL {
		return MaxSessionTTL
	}
	return requested
}

// IssueSession returns a signed bearer token for pubkey valid for ttl
// (already expected to be clamped by the caller).
func IssueSession(pubkey string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": pubkey,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(getSecret())
}

// ResolveSession parses and validates a bearer token, returning the
// identity it was issued for, or ok=false for any invalid/expired token.
func ResolveSession(tokenStr string) (pubkey string, ok bool) {
	if tokenStr == "" {
		return "", false
	}
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, isHMAC := token.Method.(*jwt.SigningMethodHMAC); !isHMAC {
			return nil, errors.New("unexpected signing method")
		}
		return getSecret(), nil
	})
	if err != nil || !token.Valid {
		return "", false
	}
	claims, isMap := token.Claims.(jwt.MapClaims)
	if !isMap {
		return "", false
	}
	sub, isString := claims["sub"].(string)
	if !isString || sub == "" {
		return "", false
	}
	return sub, true
}
