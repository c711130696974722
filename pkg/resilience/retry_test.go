package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastConfig() RetryConfig {
	return RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "flaky", fastConfig(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Fatalf("Retry = %v after %d calls", err, calls)
	}
}

func TestRetryExhausted(t *testing.T) {
	boom := errors.New("down")
	calls := 0
	err := Retry(context.Background(), "down", fastConfig(), func() error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) || calls != 3 {
		t.Fatalf("Retry = %v after %d calls", err, calls)
	}
}

func TestRetryPermanent(t *testing.T) {
	boom := errors.New("bad request")
	calls := 0
	err := Retry(context.Background(), "perm", fastConfig(), func() error {
		calls++
		return Permanent(boom)
	})
	if err != boom || calls != 1 {
		t.Fatalf("Retry = %v after %d calls, want immediate %v", err, calls, boom)
	}
}

func TestRetryCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Retry(ctx, "cancelled", fastConfig(), func() error { return errors.New("x") })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Retry = %v, want context.Canceled", err)
	}
}

func TestComputeDelayCapped(t *testing.T) {
	cfg := RetryConfig{InitialDelay: time.Second, MaxDelay: 2 * time.Second, Multiplier: 10, JitterFraction: 0.1}
	if d := computeDelay(5, cfg); d > 2*time.Second {
		t.Errorf("delay %v exceeds max", d)
	}
}
