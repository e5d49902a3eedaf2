package onboarding

import (
	"context"
	"errors"
	"fmt"
)

// RegisterWithPassword creates a password credential at the identity
// provider, fires off the verification email, and upserts the account
// document. A failed verification email never fails the registration;
// it is reported through SignInResult.Warning.
func (e *Engine) RegisterWithPassword(ctx context.Context, name, email, password string) (*SignInResult, error) {
	if e == nil || e.provider == nil || e.accounts == nil {
		return nil, ErrEngineNotReady
	}
	if name == "" || email == "" || password == "" {
		e.metricInc(MetricRegisterFailure)
		e.emitAudit(ctx, auditEventRegisterFailure, false, "", ErrInvalidCredentials, func() map[string]string {
			return map[string]string{
				"email":  email,
				"reason": "empty_field",
			}
		})
		return nil, ErrInvalidCredentials
	}

	identity, err := e.provider.CreateAccount(ctx, email, password)
	if err != nil {
		mapped := mapProviderError(err)
		e.metricInc(MetricRegisterFailure)
		e.emitAudit(ctx, auditEventRegisterFailure, false, "", mapped, func() map[string]string {
			return map[string]string{
				"email": email,
			}
		})
		return nil, mapped
	}

	// Provider-created identities carry no display name yet; the form
	// value is authoritative for the account document.
	identity.DisplayName = name

	result := &SignInResult{Identity: identity}

	if e.config.Verification.SendOnRegister {
		if err := e.provider.SendVerificationEmail(ctx, identity.ID); err != nil {
			result.Warning = fmt.Errorf("%w: verification email not sent", mapProviderError(err))
			e.emitAudit(ctx, auditEventVerificationResend, false, identity.ID, mapProviderError(err), func() map[string]string {
				return map[string]string{
					"trigger": "register",
				}
			})
		} else {
			e.metricInc(MetricVerificationResend)
		}
	}

	account, created, err := e.ensureAccount(ctx, identity)
	if err != nil {
		// The credential exists but the document write failed. The next
		// sign-in reconciles by re-running the idempotent upsert, so the
		// caller may simply retry.
		mapped := mapStoreError(err)
		e.metricInc(MetricRegisterFailure)
		e.emitAudit(ctx, auditEventRegisterFailure, false, identity.ID, mapped, func() map[string]string {
			return map[string]string{
				"reason": "account_upsert_failed",
			}
		})
		return nil, mapped
	}

	result.Account = account
	result.AccountCreated = created

	e.metricInc(MetricRegisterSuccess)
	e.emitAudit(ctx, auditEventRegisterSuccess, true, identity.ID, nil, func() map[string]string {
		return map[string]string{
			"email": email,
		}
	})
	return result, nil
}

// SignInWithPassword delegates credential verification to the provider,
// reconciles a possibly missing account document, and updates
// lastLoginAt on a best-effort basis.
func (e *Engine) SignInWithPassword(ctx context.Context, email, password string) (*SignInResult, error) {
	if e == nil || e.provider == nil || e.accounts == nil {
		return nil, ErrEngineNotReady
	}

	identity, err := e.provider.SignIn(ctx, email, password)
	if err != nil {
		mapped := mapProviderError(err)
		e.metricInc(MetricSignInFailure)
		e.emitAudit(ctx, auditEventSignInFailure, false, "", mapped, func() map[string]string {
			return map[string]string{
				"email":  email,
				"method": string(ProviderPassword),
			}
		})
		return nil, mapped
	}

	return e.finishSignIn(ctx, identity, ProviderPassword)
}

// SignInWithOAuth runs the provider's OAuth flow and guarantees the
// account document exists exactly once per identity id, seeding it from
// provider-supplied display data on first contact. Duplicate concurrent
// sign-ins for the same new identity resolve to one document: the id is
// provider-issued and stable, so the second call's existence check
// observes the first call's write.
func (e *Engine) SignInWithOAuth(ctx context.Context, provider Provider) (*SignInResult, error) {
	if e == nil || e.provider == nil || e.accounts == nil {
		return nil, ErrEngineNotReady
	}

	identity, err := e.provider.SignInWithProvider(ctx, provider)
	if err != nil {
		mapped := mapProviderError(err)
		e.metricInc(MetricSignInFailure)
		e.emitAudit(ctx, auditEventSignInFailure, false, "", mapped, func() map[string]string {
			return map[string]string{
				"method": string(provider),
			}
		})
		return nil, mapped
	}

	return e.finishSignIn(ctx, identity, provider)
}

// finishSignIn is the shared tail of every successful credential
// verification: ensure the document, refuse deactivated accounts, and
// touch lastLoginAt without letting that update fail the sign-in.
func (e *Engine) finishSignIn(ctx context.Context, identity *Identity, method Provider) (*SignInResult, error) {
	account, created, err := e.ensureAccount(ctx, identity)
	if err != nil {
		mapped := mapStoreError(err)
		e.metricInc(MetricSignInFailure)
		e.emitAudit(ctx, auditEventSignInFailure, false, identity.ID, mapped, func() map[string]string {
			return map[string]string{
				"method": string(method),
				"reason": "account_reconcile_failed",
			}
		})
		return nil, mapped
	}

	if account.Status == AccountDeactivated {
		e.metricInc(MetricSignInFailure)
		e.emitAudit(ctx, auditEventSignInFailure, false, identity.ID, ErrAccountDeactivated, func() map[string]string {
			return map[string]string{
				"method": string(method),
			}
		})
		return nil, ErrAccountDeactivated
	}

	if !created {
		e.touchLastLogin(ctx, account)
	}

	e.metricInc(MetricSignInSuccess)
	e.emitAudit(ctx, auditEventSignInSuccess, true, identity.ID, nil, func() map[string]string {
		return map[string]string{
			"method":          string(method),
			"account_created": fmt.Sprintf("%t", created),
		}
	})

	return &SignInResult{
		Identity:       identity,
		Account:        account,
		AccountCreated: created,
	}, nil
}

// mapProviderError normalizes identity provider failures onto the
// public taxonomy. Known sentinels pass through; everything else is a
// retryable provider failure.
func mapProviderError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrWrongPassword),
		errors.Is(err, ErrEmailInUse),
		errors.Is(err, ErrWeakPassword),
		errors.Is(err, ErrCaptcha),
		errors.Is(err, ErrInvalidCode),
		errors.Is(err, ErrCodeExpired),
		errors.Is(err, ErrReauthRequired):
		return err
	default:
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
}

// mapStoreError normalizes account store failures.
func mapStoreError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, ErrAccountNotFound),
		errors.Is(err, ErrProfileAlreadyCompleted):
		return err
	case errors.Is(err, ErrStoreUnavailable):
		return err
	default:
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
}
