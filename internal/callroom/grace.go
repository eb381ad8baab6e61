package callroom

import (
	"sync"
	"time"
)

// GracePeriod is how long an abnormally closed transport has to re-attach
// before the room finalizes the call.
const GracePeriod = 5 * time.Second

const sweepInterval = 1 * time.Second

type pendingGrace struct {
	deadline time.Time
}

// graceTracker is the abnormal-disconnect alarm: a mutex-guarded map swept
// by a ticking goroutine that finalizes a call whose participant never
// reconnected within GracePeriod.
type graceTracker struct {
	mu      sync.Mutex
	pending map[string]pendingGrace
	fire    func(participantID string)
	quit    chan struct{}
}

func newGraceTracker(fire func(participantID string)) *graceTracker {
	g := &graceTracker{
		pending: make(map[string]pendingGrace),
		fire:    fire,
		quit:    make(chan struct{}),
	}
	go g.loop()
	return g
}

// Arm starts (or restarts) the grace timer for participantID.
func (g *graceTracker) Arm(participantID string) {
	g.ArmAt(participantID, time.Now().Add(GracePeriod))
}

// ArmAt starts the grace timer for participantID with an explicit
// deadline, used to restore a durably persisted disconnect alarm whose
// deadline may already be in the past — the next sweep then fires it
// immediately, same as a normal expiry.
func (g *graceTracker) ArmAt(participantID string, deadline time.Time) {
	g.mu.Lock()
	g.pending[participantID] = pendingGrace{deadline: deadline}
	g.mu.Unlock()
}

// Cancel removes any pending grace timer for participantID, called when the
// participant re-attaches.
func (g *graceTracker) Cancel(participantID string) {
	g.mu.Lock()
	delete(g.pending, participantID)
	g.mu.Unlock()
}

func (g *graceTracker) loop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			g.sweep()
		case <-g.quit:
			return
		}
	}
}

func (g *graceTracker) sweep() {
	now := time.Now()
	var expired []string

	g.mu.Lock()
	for id, p := range g.pending {
		if now.Before(p.deadline) {
			continue
		}
		delete(g.pending, id)
		expired = append(expired, id)
	}
	g.mu.Unlock()

	for _, id := range expired {
		g.fire(id)
	}
}

func (g *graceTracker) Stop() {
	close(g.quit)
}
