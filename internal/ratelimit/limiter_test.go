package ratelimit

import (
	"testing"
	"time"
)

func TestAdmitWithinLimit(t *testing.T) {
	l := New(3, time.Minute)
	for i := 0; i < 3; i++ {
		if !l.Admit("alice", "send") {
			t.Fatalf("expected admit %d to succeed", i)
		}
	}
}

func TestAdmitDeniesOverLimit(t *testing.T) {
	l := New(3, time.Minute)
	for i := 0; i < 3; i++ {
		l.Admit("alice", "send")
	}
	if l.Admit("alice", "send") {
		t.Fatalf("expected 4th admit to be denied")
	}
}

func TestAdmitIsolatedPerIdentityAndAction(t *testing.T) {
	l := New(1, time.Minute)
	if !l.Admit("alice", "send") {
		t.Fatalf("expected alice send to succeed")
	}
	if !l.Admit("bob", "send") {
		t.Fatalf("expected bob send to succeed independently")
	}
	if !l.Admit("alice", "voice") {
		t.Fatalf("expected alice voice to succeed independently of send")
	}
}
