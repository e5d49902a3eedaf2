package onboarding

import (
	"context"
	"errors"
	"strings"

	"github.com/muhammadadmiral/growthify-onboarding/internal"
)

// RequestPasswordReset asks the provider to email a reset link and
// returns the state the "check your inbox" screen needs: an obfuscated
// echo of the address and the resend cooldown. The cooldown is keyed by
// the address and armed once the send is admitted; a provider failure
// afterwards does not clear it. Whether the address exists at the
// provider is never revealed here.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) (ResetRequestState, error) {
	if e == nil || e.provider == nil || e.recoveryCooldown == nil {
		return ResetRequestState{}, ErrEngineNotReady
	}

	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || !strings.Contains(email, "@") {
		return ResetRequestState{}, ErrInvalidCredentials
	}

	echo := internal.ObfuscateEmail(email)

	if err := e.recoveryCooldown.Check(ctx, email); err != nil {
		mapped := mapCooldownError(err)
		if errors.Is(mapped, ErrResendCooldown) {
			remaining, _ := e.recoveryCooldown.Remaining(ctx, email)
			e.metricInc(MetricResetResendBlocked)
			e.emitAudit(ctx, auditEventResendCooldownRejected, false, "", mapped, func() map[string]string {
				return map[string]string{
					"scope": "recovery",
					"email": echo,
				}
			})
			return ResetRequestState{EmailEcho: echo, ResendAvailableIn: remaining}, mapped
		}
		return ResetRequestState{}, mapped
	}

	if err := e.recoveryCooldown.Arm(ctx, email, e.config.Recovery.ResendCooldown); err != nil {
		return ResetRequestState{}, mapCooldownError(err)
	}

	state := ResetRequestState{
		EmailEcho:         echo,
		ResendAvailableIn: e.config.Recovery.ResendCooldown,
	}

	if err := e.provider.SendPasswordReset(ctx, email, e.config.Recovery.RedirectURL); err != nil {
		mapped := mapProviderError(err)
		// An unknown address is reported as success to the caller; the
		// audit trail keeps the real outcome.
		if errors.Is(mapped, ErrUserNotFound) {
			e.emitAudit(ctx, auditEventResetRequest, false, "", mapped, func() map[string]string {
				return map[string]string{
					"email": echo,
				}
			})
			return state, nil
		}
		e.emitAudit(ctx, auditEventResetRequest, false, "", mapped, func() map[string]string {
			return map[string]string{
				"email": echo,
			}
		})
		return state, mapped
	}

	e.metricInc(MetricResetRequest)
	e.emitAudit(ctx, auditEventResetRequest, true, "", nil, func() map[string]string {
		return map[string]string{
			"email": echo,
		}
	})
	return state, nil
}

// ResetResendAvailableIn reports the remaining recovery cooldown for an
// address, for countdown displays on the "sent" screen.
func (e *Engine) ResetResendAvailableIn(ctx context.Context, email string) (ResetRequestState, error) {
	if e == nil || e.recoveryCooldown == nil {
		return ResetRequestState{}, ErrEngineNotReady
	}

	email = strings.TrimSpace(strings.ToLower(email))
	remaining, err := e.recoveryCooldown.Remaining(ctx, email)
	if err != nil {
		return ResetRequestState{}, mapCooldownError(err)
	}
	return ResetRequestState{
		EmailEcho:         internal.ObfuscateEmail(email),
		ResendAvailableIn: remaining,
	}, nil
}

// ChangePassword sets a new password for a signed-in identity. The
// provider may demand a recent credential verification; that surfaces
// as ErrReauthRequired and the caller should re-run a sign-in before
// retrying.
func (e *Engine) ChangePassword(ctx context.Context, identityID, newPassword string) error {
	if e == nil || e.provider == nil {
		return ErrEngineNotReady
	}
	if identityID == "" {
		return ErrUserNotFound
	}
	if newPassword == "" {
		return ErrWeakPassword
	}

	if err := e.provider.ChangePassword(ctx, identityID, newPassword); err != nil {
		mapped := mapProviderError(err)
		if errors.Is(mapped, ErrReauthRequired) {
			e.metricInc(MetricPasswordChangeReauth)
		}
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, identityID, mapped, nil)
		return mapped
	}

	e.metricInc(MetricPasswordChangeSuccess)
	e.emitAudit(ctx, auditEventPasswordChangeSuccess, true, identityID, nil, nil)
	return nil
}

// ReauthenticateAndChangePassword re-verifies the password credential
// and immediately retries the change, covering the common
// ErrReauthRequired recovery path in one call.
func (e *Engine) ReauthenticateAndChangePassword(ctx context.Context, email, currentPassword, newPassword string) error {
	if e == nil || e.provider == nil {
		return ErrEngineNotReady
	}

	identity, err := e.provider.SignIn(ctx, email, currentPassword)
	if err != nil {
		mapped := mapProviderError(err)
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, "", mapped, func() map[string]string {
			return map[string]string{
				"reason": "reauth_failed",
			}
		})
		return mapped
	}

	return e.ChangePassword(ctx, identity.ID, newPassword)
}
