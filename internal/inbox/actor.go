package inbox

import (
	"context"
	"errors"
	"time"
)

// ErrEnvelopeIDRequired is returned by Store when the envelope has no id.
var ErrEnvelopeIDRequired = errors.New("inbox: envelope id required")

type storeCmd struct {
	envelope Envelope
	reply    chan error
}

type pullCmd struct {
	limit int
	reply chan []Envelope
}

type ackCmd struct {
	ids   map[string]struct{}
	reply chan struct{}
}

// Actor owns one recipient's queue and processes store/pull/ack commands
// one at a time on a single goroutine: a per-key goroutine and command
// channel, with one live Actor per key owned by the Manager below.
type Actor struct {
	recipient string
	store     *Store
	ttl       time.Duration

	cache     []Envelope
	hydrated  bool
	storeCh   chan storeCmd
	pullCh    chan pullCmd
	ackCh     chan ackCmd
	done      chan struct{}
}

func newActor(recipient string, store *Store, ttl time.Duration) *Actor {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	a := &Actor{
		recipient: recipient,
		store:     store,
		ttl:       ttl,
		storeCh:   make(chan storeCmd),
		pullCh:    make(chan pullCmd),
		ackCh:     make(chan ackCmd),
		done:      make(chan struct{}),
	}
	go a.loop()
	return a
}

func (a *Actor) loop() {
	for {
		select {
		case cmd := <-a.storeCh:
			cmd.reply <- a.handleStore(cmd.envelope)
		case cmd := <-a.pullCh:
			cmd.reply <- a.handlePull(cmd.limit)
		case cmd := <-a.ackCh:
			a.handleAck(cmd.ids)
			close(cmd.reply)
		case <-a.done:
			return
		}
	}
}

// Store enqueues envelope, idempotent on envelope.ID.
func (a *Actor) Store(ctx context.Context, envelope Envelope) error {
	if envelope.ID == "" {
		return ErrEnvelopeIDRequired
	}
	reply := make(chan error, 1)
	select {
	case a.storeCh <- storeCmd{envelope: envelope, reply: reply}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pull returns up to limit oldest envelopes currently queued, clamped to
// [1, MaxPullLimit]. It does not remove anything (delivery is
// at-least-once; clients ack explicitly).
func (a *Actor) Pull(ctx context.Context, limit int) ([]Envelope, error) {
	reply := make(chan []Envelope, 1)
	select {
	case a.pullCh <- pullCmd{limit: clampLimit(limit), reply: reply}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case envelopes := <-reply:
		return envelopes, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Ack removes envelopes whose id is in ids.
func (a *Actor) Ack(ctx context.Context, ids []string) error {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	reply := make(chan struct{})
	select {
	case a.ackCh <- ackCmd{ids: set, reply: reply}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-reply:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the actor's goroutine. The actor registry (Manager) calls
// this for every live actor when it is itself closed.
func (a *Actor) Close() {
	close(a.done)
}

func (a *Actor) handleStore(envelope Envelope) error {
	a.hydrate()
	evicted := a.evictExpired()

	for _, existing := range a.cache {
		if existing.ID == envelope.ID {
			if evicted {
				a.persist()
			}
			return nil
		}
	}
	a.cache = append(a.cache, envelope)
	a.persist()
	return nil
}

func (a *Actor) handlePull(limit int) []Envelope {
	a.hydrate()
	if a.evictExpired() {
		a.persist()
	}
	if limit > len(a.cache) {
		limit = len(a.cache)
	}
	out := make([]Envelope, limit)
	copy(out, a.cache[:limit])
	return out
}

func (a *Actor) handleAck(ids map[string]struct{}) {
	a.hydrate()
	changed := false
	kept := a.cache[:0]
	for _, e := range a.cache {
		if _, remove := ids[e.ID]; remove {
			changed = true
			continue
		}
		kept = append(kept, e)
	}
	a.cache = kept
	if changed {
		a.persist()
	}
}

func (a *Actor) hydrate() {
	if a.hydrated {
		return
	}
	a.hydrated = true
	if a.store == nil {
		return
	}
	loaded, err := a.store.Load(a.recipient)
	if err == nil {
		a.cache = loaded
	}
}

// evictExpired removes envelopes whose TTL has elapsed and reports whether
// anything was removed.
func (a *Actor) evictExpired() bool {
	now := time.Now()
	changed := false
	kept := a.cache[:0]
	for _, e := range a.cache {
		if e.Expired(now) {
			changed = true
			continue
		}
		kept = append(kept, e)
	}
	a.cache = kept
	return changed
}

func (a *Actor) persist() {
	if a.store == nil {
		return
	}
	_ = a.store.Save(a.recipient, a.cache)
}

func clampLimit(limit int) int {
	if limit < 1 {
		return 1
	}
	if limit > MaxPullLimit {
		return MaxPullLimit
	}
	return limit
}
