package onboarding

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCooldownLimiterLifecycle(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	limiter := newResendCooldownLimiter(rdb, "tcd")
	ctx := context.Background()

	if err := limiter.Check(ctx, "alice"); err != nil {
		t.Fatalf("fresh scope must pass Check: %v", err)
	}

	if err := limiter.Arm(ctx, "alice", time.Minute); err != nil {
		t.Fatalf("Arm failed: %v", err)
	}
	if err := limiter.Check(ctx, "alice"); !errors.Is(err, errCooldownActive) {
		t.Fatalf("expected errCooldownActive, got %v", err)
	}

	remaining, err := limiter.Remaining(ctx, "alice")
	if err != nil {
		t.Fatalf("Remaining failed: %v", err)
	}
	if remaining <= 0 || remaining > time.Minute {
		t.Fatalf("unexpected remaining window: %v", remaining)
	}

	// Scopes are independent.
	if err := limiter.Check(ctx, "bob"); err != nil {
		t.Fatalf("other scope must pass Check: %v", err)
	}

	mr.FastForward(time.Minute + time.Second)

	if err := limiter.Check(ctx, "alice"); err != nil {
		t.Fatalf("expired window must pass Check: %v", err)
	}
	remaining, err = limiter.Remaining(ctx, "alice")
	if err != nil {
		t.Fatalf("Remaining failed: %v", err)
	}
	if remaining != 0 {
		t.Fatalf("expected zero remaining, got %v", remaining)
	}
}
