package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetryConnect(t *testing.T) {
	old := connectDelay
	connectDelay = time.Millisecond
	defer func() { connectDelay = old }()

	calls := 0
	err := retryConnect(context.Background(), func(context.Context) error {
		calls++
		if calls < 2 {
			return errors.New("refused")
		}
		return nil
	})
	if err != nil || calls != 2 {
		t.Errorf("retryConnect() = %v after %d calls, want nil after 2", err, calls)
	}

	calls = 0
	err = retryConnect(context.Background(), func(context.Context) error {
		calls++
		return errors.New("refused")
	})
	if err == nil || calls != connectAttempts {
		t.Errorf("retryConnect() = %v after %d calls, want error after %d", err, calls, connectAttempts)
	}

	connectDelay = time.Hour
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = retryConnect(ctx, func(context.Context) error { return errors.New("refused") })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("retryConnect(cancelled) = %v, want context.Canceled", err)
	}
}
