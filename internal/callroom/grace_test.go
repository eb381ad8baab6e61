package callroom

import (
	"sync"
	"testing"
	"time"
)

func TestGraceTrackerFiresAfterDeadline(t *testing.T) {
	var mu sync.Mutex
	var fired []string
	g := newGraceTracker(func(participantID string) {
		mu.Lock()
		fired = append(fired, participantID)
		mu.Unlock()
	})
	defer g.Stop()

	g.mu.Lock()
	g.pending["ALICE"] = pendingGrace{deadline: time.Now().Add(-time.Millisecond)}
	g.mu.Unlock()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(fired)
		mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(fired) != 1 || fired[0] != "ALICE" {
		t.Fatalf("expected ALICE to fire once, got %v", fired)
	}
}

func TestGraceTrackerCancelPreventsFire(t *testing.T) {
	var mu sync.Mutex
	var fired []string
	g := newGraceTracker(func(participantID string) {
		mu.Lock()
		fired = append(fired, participantID)
		mu.Unlock()
	})
	defer g.Stop()

	// An already-past deadline would fire on the first sweep (~1 s) unless
	// Cancel removes it.
	g.ArmAt("BOB", time.Now().Add(-time.Millisecond))
	g.Cancel("BOB")

	time.Sleep(1200 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if len(fired) != 0 {
		t.Fatalf("expected no fire after cancel, got %v", fired)
	}
}
