package gateway

import (
	"context"
	"time"

	"github.com/solace-labs/wallet-messenger/internal/inbox"
)

// pollUntil retries fn on a fixed interval until it returns a non-empty
// result or wait has elapsed.
func pollUntil(ctx context.Context, wait time.Duration, fn func(context.Context) ([]inbox.Envelope, error)) ([]inbox.Envelope, error) {
	messages, err := fn(ctx)
	if err != nil {
		return nil, err
	}
	if len(messages) > 0 || wait <= 0 {
		return messages, nil
	}

	deadline := time.Now().Add(wait)
	ticker := time.NewTicker(pollStep)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return messages, nil
		case <-ticker.C:
			messages, err = fn(ctx)
			if err != nil {
				return nil, err
			}
			if len(messages) > 0 || time.Now().After(deadline) {
				return messages, nil
			}
		}
	}
}
