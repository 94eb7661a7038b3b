package store

import (
	"context"
	"time"
)

// connectAttempts and connectDelay bound the connection check of the
// network backends.
const connectAttempts = 3

var connectDelay = 500 * time.Millisecond

// retryConnect calls ping until it succeeds, up to connectAttempts times
// with exponential backoff. It gives up early when ctx is done.
func retryConnect(ctx context.Context, ping func(context.Context) error) error {
	delay := connectDelay
	var lastErr error

	for i := 0; i < connectAttempts; i++ {
		if lastErr = ping(ctx); lastErr == nil {
			return nil
		}
		if i < connectAttempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
				delay *= 2
			}
		}
	}
	return lastErr
}
