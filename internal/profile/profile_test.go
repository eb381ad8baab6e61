package profile

import (
	"testing"
	"time"
)

func TestNormalizeNicknameStripsAtAndLowercases(t *testing.T) {
	n, err := NormalizeNickname("@Alice99")
	if err != nil {
		t.Fatalf("NormalizeNickname: %v", err)
	}
	if n != "alice99" {
		t.Fatalf("expected alice99, got %q", n)
	}
}

func TestNormalizeNicknameRejectsBadPattern(t *testing.T) {
	cases := []string{"al", "9alice", "Alice Bob", "a-b", "", "thisnicknameiswaytoolongtofit"}
	for _, c := range cases {
		if _, err := NormalizeNickname(c); err != ErrInvalidNickname {
			t.Errorf("NormalizeNickname(%q): expected ErrInvalidNickname, got %v", c, err)
		}
	}
}

func TestNormalizeNicknameRejectsBlocklistSubstringBothWays(t *testing.T) {
	cases := []string{
		"solink_support_2", // contains blocked term "support"
		"admin",            // exact blocked term
		"sol",              // blocked term "solana"/"solink" contains this
	}
	for _, c := range cases {
		if _, err := NormalizeNickname(c); err != ErrInvalidNickname {
			t.Errorf("NormalizeNickname(%q): expected blocklist rejection, got %v", c, err)
		}
	}
}

func TestCooldownRemaining(t *testing.T) {
	now := time.Now()
	changedAt := now.Add(-3 * 24 * time.Hour).UnixMilli()

	remaining := CooldownRemaining(changedAt, now)
	if remaining <= 0 || remaining > 4*24*time.Hour {
		t.Fatalf("expected roughly 4 days remaining, got %v", remaining)
	}

	if got := CooldownRemaining(0, now); got != 0 {
		t.Fatalf("expected zero remaining for never-changed profile, got %v", got)
	}

	past := now.Add(-8 * 24 * time.Hour).UnixMilli()
	if got := CooldownRemaining(past, now); got != 0 {
		t.Fatalf("expected zero remaining once cooldown elapsed, got %v", got)
	}
}
