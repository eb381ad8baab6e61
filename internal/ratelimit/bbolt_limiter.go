package ratelimit

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/solace-labs/wallet-messenger/internal/kvstore"
)

const bucketName = "ratelimit"

type persistedWindow struct {
	Count   int       `json:"count"`
	ResetAt time.Time `json:"resetAt"`
}

// DurableLimiter is a bbolt-backed variant of Limiter for deployments that
// want rate-limit state to survive a restart (RATE_LIMIT_PERSIST=1),
// using the same kvstore open/bucket/db.Update shape as this server's
// other durable components.
type DurableLimiter struct {
	mu     sync.Mutex
	db     *kvstore.DB
	limit  int
	window time.Duration
}

// OpenDurableLimiter opens (or creates) a bbolt file at path for counter
// persistence.
func OpenDurableLimiter(path string, limit int, window time.Duration) (*DurableLimiter, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	db, err := kvstore.Open(path, bucketName)
	if err != nil {
		return nil, err
	}
	return &DurableLimiter{db: db, limit: limit, window: window}, nil
}

// Close closes the underlying bbolt handle.
func (d *DurableLimiter) Close() error { return d.db.Close() }

// Admit mirrors Limiter.Admit but persists the counter across restarts. A
// bbolt read/write failure is logged and admits the event rather than
// blocking traffic on a storage hiccup, matching this server's best-effort
// posture for non-critical side state elsewhere (analytics, notifications).
func (d *DurableLimiter) Admit(identity, action string) bool {
	now := time.Now()
	bucket := now.Truncate(d.window)
	key := fmt.Sprintf("%s|%s|%d", identity, action, bucket.UnixNano())

	d.mu.Lock()
	defer d.mu.Unlock()

	var w persistedWindow
	found, err := d.db.GetJSON(bucketName, key, &w)
	if err != nil {
		log.Printf("ratelimit: read %s failed: %v", key, err)
		return true
	}
	if !found {
		w = persistedWindow{ResetAt: bucket.Add(d.window)}
	}
	if w.Count >= d.limit {
		return false
	}
	w.Count++
	if err := d.db.PutJSON(bucketName, key, w); err != nil {
		log.Printf("ratelimit: persist %s failed: %v", key, err)
	}
	return true
}
