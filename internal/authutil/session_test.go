package authutil

import (
	"testing"
	"time"
)

func TestIssueAndResolveSession(t *testing.T) {
	token, err := IssueSession("ALICE_PK", ClampSessionTTL(time.Hour))
	if err != nil {
		t.Fatalf("IssueSession error: %v", err)
	}
	pubkey, ok := ResolveSession(token)
	if !ok {
		t.Fatalf("expected ResolveSession to succeed")
	}
	if pubkey != "ALICE_PK" {
		t.Fatalf("expected ALICE_PK, got %s", pubkey)
	}
}

func TestResolveSessionRejectsInvalid(t *testing.T) {
	if _, ok := ResolveSession(""); ok {
		t.Fatalf("expected failure for empty token")
	}
	token, err := IssueSession("BOB_PK", ClampSessionTTL(0))
	if err != nil {
		t.Fatalf("IssueSession error: %v", err)
	}
	if _, ok := ResolveSession(token + "x"); ok {
		t.Fatalf("expected failure for tampered token")
	}
}

func TestClampSessionTTL(t *testing.T) {
	cases := []struct {
		in   time.Duration
		want time.Duration
	}{
		{0, DefaultSessionTTL},
		{-time.Second, DefaultSessionTTL},
		{time.Second, MinSessionTTL},
		{24 * time.Hour, MaxSessionTTL},
		{time.Hour, time.Hour},
	}
	for _, c := range cases {
		if got := ClampSessionTTL(c.in); got != c.want {
			t.Fatalf("ClampSessionTTL(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}
