package profile

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *BoltStore {
	t.Helper()
	dir := t.TempDir()
	s, err := OpenBoltStore(filepath.Join(dir, "profiles.db"))
	if err != nil {
		t.Fatalf("OpenBoltStore: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSetNicknameClaimsAndSetsDisplayName(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UnixMilli()

	p, err := s.SetNickname(ctx, "ALICE_PUBKEY", "alice", now)
	if err != nil {
		t.Fatalf("SetNickname: %v", err)
	}
	if p.DisplayName != "@alice" {
		t.Fatalf("expected display name @alice, got %q", p.DisplayName)
	}

	looked, err := s.LookupByNickname(ctx, "alice")
	if err != nil {
		t.Fatalf("LookupByNickname: %v", err)
	}
	if looked.Pubkey != "ALICE_PUBKEY" {
		t.Fatalf("expected pubkey ALICE_PUBKEY, got %q", looked.Pubkey)
	}
}

func TestSetNicknameRejectsTakenByAnotherIdentity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UnixMilli()

	if _, err := s.SetNickname(ctx, "ALICE_PUBKEY", "alpha", now); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	_, err := s.SetNickname(ctx, "BOB_PUBKEY", "alpha", now)
	if err != ErrNicknameTaken {
		t.Fatalf("expected ErrNicknameTaken, got %v", err)
	}
}

func TestSetNicknameEnforcesCooldown(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UnixMilli()

	if _, err := s.SetNickname(ctx, "ALICE_PUBKEY", "alpha", now); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	soon := time.Now().Add(time.Hour).UnixMilli()
	_, err := s.SetNickname(ctx, "ALICE_PUBKEY", "beta", soon)
	if err != ErrCooldownActive {
		t.Fatalf("expected ErrCooldownActive, got %v", err)
	}
}

func TestSetNicknameAllowsUnchangedReclaim(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UnixMilli()

	if _, err := s.SetNickname(ctx, "ALICE_PUBKEY", "alpha", now); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	soon := time.Now().Add(time.Minute).UnixMilli()
	p, err := s.SetNickname(ctx, "ALICE_PUBKEY", "alpha", soon)
	if err != nil {
		t.Fatalf("re-setting same nickname should not fail cooldown: %v", err)
	}
	if p.Nickname != "alpha" {
		t.Fatalf("expected nickname alpha, got %q", p.Nickname)
	}
}

func TestSetNicknameAfterCooldownElapsesSucceeds(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().Add(-8 * 24 * time.Hour).UnixMilli()

	if _, err := s.SetNickname(ctx, "ALICE_PUBKEY", "alpha", now); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	later := time.Now().UnixMilli()
	p, err := s.SetNickname(ctx, "ALICE_PUBKEY", "beta", later)
	if err != nil {
		t.Fatalf("expected cooldown to have elapsed: %v", err)
	}
	if p.Nickname != "beta" {
		t.Fatalf("expected nickname beta, got %q", p.Nickname)
	}

	// old nickname mapping must be released
	_, err = s.LookupByNickname(ctx, "alpha")
	if err != ErrNotFound {
		t.Fatalf("expected old nickname to be released, got err=%v", err)
	}
}

func TestLookupByNicknameUnknownReturnsNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.LookupByNickname(context.Background(), "doesnotexist")
	if err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSetEncryptionPublicKeyOnFreshIdentity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UnixMilli()

	p, err := s.SetEncryptionPublicKey(ctx, "ALICE_PUBKEY", "ABCDEF", now)
	if err != nil {
		t.Fatalf("SetEncryptionPublicKey: %v", err)
	}
	if p.EncryptionPublicKey != "ABCDEF" {
		t.Fatalf("expected encryption key ABCDEF, got %q", p.EncryptionPublicKey)
	}
}

func TestGetOwnReturnsEmptyProfileForUnknownIdentity(t *testing.T) {
	s := newTestStore(t)
	p, err := s.GetOwn(context.Background(), "NEW_PUBKEY")
	if err != nil {
		t.Fatalf("GetOwn: %v", err)
	}
	if p.Pubkey != "NEW_PUBKEY" || p.Nickname != "" {
		t.Fatalf("expected empty profile shell, got %+v", p)
	}
}
