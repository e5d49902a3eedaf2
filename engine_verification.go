package onboarding

import (
	"context"
	"errors"
)

// VerificationState reports the gate state for an identity: whether the
// account mirror says the email is verified and how long until the next
// resend is allowed.
func (e *Engine) VerificationState(ctx context.Context, identityID string) (VerificationState, error) {
	if e == nil || e.accounts == nil || e.verifyCooldown == nil {
		return VerificationState{}, ErrEngineNotReady
	}

	state := VerificationState{}

	account, err := e.accounts.Get(ctx, identityID)
	if err != nil && !errors.Is(err, ErrAccountNotFound) {
		return VerificationState{}, mapStoreError(err)
	}
	if account != nil {
		state.Verified = account.EmailVerified
	}

	remaining, err := e.verifyCooldown.Remaining(ctx, identityID)
	if err != nil {
		return VerificationState{}, mapCooldownError(err)
	}
	state.ResendAvailableIn = remaining

	return state, nil
}

// ResendVerificationEmail sends another verification email unless the
// cooldown window still holds. The window is armed as soon as the send
// is admitted; a provider failure afterwards is reported to the caller
// but deliberately leaves the cooldown in place, so failures cannot be
// used to spin the resend loop.
func (e *Engine) ResendVerificationEmail(ctx context.Context, identityID string) (VerificationState, error) {
	if e == nil || e.provider == nil || e.verifyCooldown == nil {
		return VerificationState{}, ErrEngineNotReady
	}
	if identityID == "" {
		return VerificationState{}, ErrUserNotFound
	}

	if err := e.verifyCooldown.Check(ctx, identityID); err != nil {
		mapped := mapCooldownError(err)
		if errors.Is(mapped, ErrResendCooldown) {
			remaining, _ := e.verifyCooldown.Remaining(ctx, identityID)
			e.metricInc(MetricVerificationResendBlocked)
			e.emitAudit(ctx, auditEventResendCooldownRejected, false, identityID, mapped, func() map[string]string {
				return map[string]string{
					"scope": "verification",
				}
			})
			return VerificationState{ResendAvailableIn: remaining}, mapped
		}
		return VerificationState{}, mapped
	}

	if err := e.verifyCooldown.Arm(ctx, identityID, e.config.Verification.ResendCooldown); err != nil {
		return VerificationState{}, mapCooldownError(err)
	}

	state := VerificationState{ResendAvailableIn: e.config.Verification.ResendCooldown}

	if err := e.provider.SendVerificationEmail(ctx, identityID); err != nil {
		mapped := mapProviderError(err)
		e.emitAudit(ctx, auditEventVerificationResend, false, identityID, mapped, nil)
		return state, mapped
	}

	e.metricInc(MetricVerificationResend)
	e.emitAudit(ctx, auditEventVerificationResend, true, identityID, nil, nil)
	return state, nil
}

// RecheckVerification reloads the identity from the provider and
// re-reads its verified flag. When the flag flipped, the account
// document's mirror is updated best-effort; a failed mirror write never
// hides the verified result from the caller. An unverified identity is
// not an error.
func (e *Engine) RecheckVerification(ctx context.Context, identityID string) (VerificationState, error) {
	if e == nil || e.provider == nil || e.accounts == nil || e.verifyCooldown == nil {
		return VerificationState{}, ErrEngineNotReady
	}

	identity, err := e.provider.Reload(ctx, identityID)
	if err != nil {
		mapped := mapProviderError(err)
		e.emitAudit(ctx, auditEventVerificationRecheck, false, identityID, mapped, nil)
		return VerificationState{}, mapped
	}

	remaining, cooldownErr := e.verifyCooldown.Remaining(ctx, identityID)
	if cooldownErr != nil {
		remaining = 0
	}
	state := VerificationState{
		Verified:          identity.EmailVerified,
		ResendAvailableIn: remaining,
	}

	if identity.EmailVerified {
		verified := true
		if _, err := e.accounts.Update(ctx, identityID, UpdateAccountInput{EmailVerified: &verified}); err != nil {
			// Mirror is eventually consistent; the next recheck or
			// session refresh converges it.
			e.emitAudit(ctx, auditEventVerificationMirror, false, identityID, mapStoreError(err), nil)
		}
		e.metricInc(MetricVerificationConfirmed)
	}

	e.emitAudit(ctx, auditEventVerificationRecheck, true, identityID, nil, func() map[string]string {
		if identity.EmailVerified {
			return map[string]string{"verified": "true"}
		}
		return map[string]string{"verified": "false"}
	})
	return state, nil
}
