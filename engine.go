package onboarding

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Engine orchestrates the identity and onboarding lifecycle on top of an
// external identity provider and account document store. Engines are
// built once via Builder and are safe for concurrent use.
type Engine struct {
	config Config

	provider IdentityProvider
	accounts AccountStore
	uploader ImageUploader
	notifier Notifier

	challengeStore   *otpChallengeStore
	verifyCooldown   *resendCooldownLimiter
	recoveryCooldown *resendCooldownLimiter

	audit   *auditDispatcher
	metrics *Metrics

	// activeChallenge tracks the single live phone challenge. Starting a
	// new challenge invalidates the previous handle.
	activeChallengeMu sync.Mutex
	activeChallengeID string
	activeConfirmer   OTPConfirmer
}

// Close flushes and stops the audit dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were discarded because the
// buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of all counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// ensureAccount guarantees at-most-once account-document creation for an
// identity. The id is provider-issued and stable, so the check-then-act
// race between concurrent sign-ins resolves at the store: the losing
// Upsert observes the winner's document and does not overwrite it.
func (e *Engine) ensureAccount(ctx context.Context, identity *Identity) (*Account, bool, error) {
	existing, err := e.accounts.Get(ctx, identity.ID)
	switch {
	case err == nil:
		e.metricInc(MetricAccountCreateSkipped)
		return existing, false, nil
	case errors.Is(err, ErrAccountNotFound):
		// Fall through to create.
	default:
		return nil, false, err
	}

	account := newAccountFromIdentity(identity, e.config.Account.DefaultRole)
	created, err := e.accounts.Upsert(ctx, account)
	if err != nil {
		return nil, false, err
	}
	if !created {
		// Lost the race: another sign-in created the document first.
		existing, err := e.accounts.Get(ctx, identity.ID)
		if err != nil {
			return nil, false, err
		}
		e.metricInc(MetricAccountCreateSkipped)
		return existing, false, nil
	}

	e.metricInc(MetricAccountCreated)
	e.emitAudit(ctx, auditEventAccountCreated, true, identity.ID, nil, func() map[string]string {
		return map[string]string{
			"email": identity.Email,
		}
	})
	return account, true, nil
}

func newAccountFromIdentity(identity *Identity, role Role) *Account {
	now := time.Now().UTC()
	return &Account{
		ID:               identity.ID,
		DisplayName:      identity.DisplayName,
		Email:            identity.Email,
		PhoneNumber:      identity.PhoneNumber,
		PhotoURL:         identity.PhotoURL,
		EmailVerified:    identity.EmailVerified,
		ProfileCompleted: false,
		Role:             role,
		Status:           AccountActive,
		CreatedAt:        now,
		LastLoginAt:      now,
	}
}

// touchLastLogin updates lastLoginAt on a best-effort basis. It must
// never block or fail the sign-in path; failures are audited only.
func (e *Engine) touchLastLogin(ctx context.Context, account *Account) {
	if !e.config.Account.TouchLastLogin || account == nil {
		return
	}

	now := time.Now().UTC()
	updated, err := e.accounts.Update(ctx, account.ID, UpdateAccountInput{LastLoginAt: &now})
	if err != nil {
		e.emitAudit(ctx, auditEventLastLoginSkipped, false, account.ID, ErrStoreUnavailable, nil)
		return
	}
	*account = *updated
}

func mapChallengeStoreError(err error) error {
	switch {
	case errors.Is(err, errChallengeNotFound):
		return ErrChallengeConsumed
	case errors.Is(err, errChallengeExpired):
		return ErrCodeExpired
	case errors.Is(err, errChallengeExceeded):
		return ErrChallengeAttempts
	case errors.Is(err, errChallengeBackend):
		return ErrProviderUnavailable
	default:
		return ErrProviderUnavailable
	}
}
