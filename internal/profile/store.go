package profile

import "context"

// Store is the directory backend. Two implementations exist: a Postgres
// one (postgres.go) used when DATABASE_URL is set, and an embedded bbolt
// one (bbolt.go) otherwise — both satisfy the same bijection and cooldown
// invariants, by different concurrency mechanisms.
type Store interface {
	// GetOwn returns the profile for pubkey, or an empty, unsaved profile
	// carrying only pubkey when none is stored.
	GetOwn(ctx context.Context, pubkey string) (Profile, error)
	// LookupByNickname resolves a normalized nickname to its profile.
	// Returns ErrNotFound if unclaimed.
	LookupByNickname(ctx context.Context, nickname string) (Profile, error)
	// LookupByPubkey returns the profile for pubkey. Returns ErrNotFound
	// if the identity has never touched the directory.
	LookupByPubkey(ctx context.Context, pubkey string) (Profile, error)
	// SetNickname claims nickname for pubkey, enforcing uniqueness and a
	// cooldown between changes. now is injected for testability.
	SetNickname(ctx context.Context, pubkey, nickname string, now int64) (Profile, error)
	// SetEncryptionPublicKey updates the identity's encryption key.
	SetEncryptionPublicKey(ctx context.Context, pubkey, publicKey string, now int64) (Profile, error)
	Close() error
}
