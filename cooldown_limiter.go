package onboarding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	errCooldownActive      = errors.New("cooldown active")
	errCooldownUnavailable = errors.New("cooldown backend unavailable")
)

// resendCooldownLimiter enforces the fixed resend windows of the
// verification gate and the recovery flow. The cooldown is a UX
// throttle, not a security boundary: it only prevents the engine from
// calling the provider again, it does not invalidate links or codes the
// provider already issued.
type resendCooldownLimiter struct {
	redis  *redis.Client
	prefix string
}

func newResendCooldownLimiter(redisClient *redis.Client, prefix string) *resendCooldownLimiter {
	return &resendCooldownLimiter{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (l *resendCooldownLimiter) key(scope string) string {
	return l.prefix + ":" + scope
}

// Remaining reports how long the cooldown for scope still holds. Zero
// means a send is allowed now.
func (l *resendCooldownLimiter) Remaining(ctx context.Context, scope string) (time.Duration, error) {
	ttl, err := l.redis.PTTL(ctx, l.key(scope)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", errCooldownUnavailable, err)
	}
	if ttl <= 0 {
		// -1 (no expiry) and -2 (no key) both mean no active cooldown.
		return 0, nil
	}
	return ttl, nil
}

// Check returns errCooldownActive while the window holds.
func (l *resendCooldownLimiter) Check(ctx context.Context, scope string) error {
	remaining, err := l.Remaining(ctx, scope)
	if err != nil {
		return err
	}
	if remaining > 0 {
		return errCooldownActive
	}
	return nil
}

// Arm starts the cooldown window. The window is armed once the send was
// admitted; a failing provider call afterwards does not clear it.
func (l *resendCooldownLimiter) Arm(ctx context.Context, scope string, window time.Duration) error {
	if err := l.redis.Set(ctx, l.key(scope), "1", window).Err(); err != nil {
		return fmt.Errorf("%w: %v", errCooldownUnavailable, err)
	}
	return nil
}

func mapCooldownError(err error) error {
	switch {
	case errors.Is(err, errCooldownActive):
		return ErrResendCooldown
	case errors.Is(err, errCooldownUnavailable):
		return ErrProviderUnavailable
	default:
		return ErrProviderUnavailable
	}
}
