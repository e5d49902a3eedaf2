package onboarding

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/muhammadadmiral/growthify-onboarding/internal"
)

// e164Pattern accepts the international phone format the provider
// expects: a plus sign, then 7 to 15 digits with no leading zero.
var e164Pattern = regexp.MustCompile(`^\+[1-9][0-9]{6,14}$`)

// PhoneChallenge is the caller's handle on one live OTP challenge.
// Handles are single-use: a successful Verify consumes the challenge,
// and starting a new challenge invalidates every earlier handle.
type PhoneChallenge struct {
	id             string
	phoneNumber    string
	verificationID string
	expiresAt      time.Time
}

// ID returns the opaque challenge identifier.
func (c *PhoneChallenge) ID() string {
	if c == nil {
		return ""
	}
	return c.id
}

// ExpiresAt returns the moment the challenge stops accepting codes.
func (c *PhoneChallenge) ExpiresAt() time.Time {
	if c == nil {
		return time.Time{}
	}
	return c.expiresAt
}

// SendPhoneOTP renders the captcha, asks the provider to text a code to
// phoneNumber, and registers the resulting challenge. Any previously
// live challenge is invalidated first; only the newest handle can ever
// be verified. A rejected send resets the captcha widget so the caller
// can retry with a fresh render.
func (e *Engine) SendPhoneOTP(ctx context.Context, phoneNumber string, captcha Captcha) (*PhoneChallenge, error) {
	if e == nil || e.provider == nil || e.challengeStore == nil {
		return nil, ErrEngineNotReady
	}
	if captcha == nil {
		return nil, ErrCaptchaNotReady
	}
	if !e164Pattern.MatchString(phoneNumber) {
		e.emitAudit(ctx, auditEventOTPSendFailure, false, "", ErrInvalidCredentials, func() map[string]string {
			return map[string]string{
				"reason": "invalid_phone_format",
			}
		})
		return nil, fmt.Errorf("%w: phone number must be in international format", ErrInvalidCredentials)
	}

	token, err := captcha.Render(ctx)
	if err != nil {
		captcha.Reset()
		mapped := fmt.Errorf("%w: %v", ErrCaptcha, err)
		e.emitAudit(ctx, auditEventOTPSendFailure, false, "", mapped, nil)
		return nil, mapped
	}
	if token == "" {
		captcha.Reset()
		e.emitAudit(ctx, auditEventOTPSendFailure, false, "", ErrCaptchaNotReady, nil)
		return nil, ErrCaptchaNotReady
	}

	confirmer, err := e.provider.SendOTP(ctx, phoneNumber, token)
	if err != nil {
		// The token is spent whether the provider accepted it or not; the
		// widget must be re-rendered before the next attempt.
		captcha.Reset()
		mapped := mapProviderError(err)
		e.emitAudit(ctx, auditEventOTPSendFailure, false, "", mapped, nil)
		return nil, mapped
	}

	cid, err := internal.NewChallengeID()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	challengeID := cid.String()
	expiresAt := time.Now().Add(e.config.PhoneOTP.ChallengeTTL)

	record := &otpChallengeRecord{
		VerificationID: confirmer.VerificationID(),
		PhoneNumber:    phoneNumber,
		ExpiresAt:      expiresAt.Unix(),
	}
	if err := e.challengeStore.Save(ctx, challengeID, record, e.config.PhoneOTP.ChallengeTTL); err != nil {
		e.emitAudit(ctx, auditEventOTPSendFailure, false, "", ErrProviderUnavailable, nil)
		return nil, mapChallengeStoreError(err)
	}

	e.swapActiveChallenge(ctx, challengeID, confirmer)

	e.metricInc(MetricOTPSent)
	e.emitAudit(ctx, auditEventOTPSent, true, "", nil, func() map[string]string {
		return map[string]string{
			"challenge_id": challengeID,
		}
	})

	return &PhoneChallenge{
		id:             challengeID,
		phoneNumber:    phoneNumber,
		verificationID: confirmer.VerificationID(),
		expiresAt:      expiresAt,
	}, nil
}

// swapActiveChallenge installs the new live challenge and tears down the
// previous one, including its Redis record, so stale handles fail with
// ErrChallengeConsumed rather than racing the new code.
func (e *Engine) swapActiveChallenge(ctx context.Context, challengeID string, confirmer OTPConfirmer) {
	e.activeChallengeMu.Lock()
	previous := e.activeChallengeID
	e.activeChallengeID = challengeID
	e.activeConfirmer = confirmer
	e.activeChallengeMu.Unlock()

	if previous != "" {
		_, _ = e.challengeStore.Consume(ctx, previous)
	}
}

// VerifyPhoneOTP exchanges the code the user received for a signed-in
// identity and its account document. The challenge is consumed exactly
// once: a second verify on the same handle, or any verify on a handle
// superseded by a newer SendPhoneOTP, fails with ErrChallengeConsumed.
// Wrong codes count against the attempt budget; reaching it destroys
// the challenge.
func (e *Engine) VerifyPhoneOTP(ctx context.Context, challenge *PhoneChallenge, code string) (*SignInResult, error) {
	if e == nil || e.provider == nil || e.challengeStore == nil {
		return nil, ErrEngineNotReady
	}
	if challenge == nil || challenge.id == "" {
		return nil, ErrChallengeNotFound
	}
	if code == "" {
		return nil, ErrInvalidCode
	}

	e.activeChallengeMu.Lock()
	confirmer := e.activeConfirmer
	isActive := e.activeChallengeID == challenge.id
	e.activeChallengeMu.Unlock()

	if !isActive || confirmer == nil {
		e.metricInc(MetricOTPHandleReplay)
		e.emitAudit(ctx, auditEventOTPVerifyFailure, false, "", ErrChallengeConsumed, func() map[string]string {
			return map[string]string{
				"challenge_id": challenge.id,
				"reason":       "superseded",
			}
		})
		return nil, ErrChallengeConsumed
	}

	if _, err := e.challengeStore.Get(ctx, challenge.id); err != nil {
		mapped := mapChallengeStoreError(err)
		if errors.Is(mapped, ErrChallengeConsumed) {
			e.metricInc(MetricOTPHandleReplay)
		} else {
			e.metricInc(MetricOTPVerifyFailure)
		}
		e.emitAudit(ctx, auditEventOTPVerifyFailure, false, "", mapped, func() map[string]string {
			return map[string]string{
				"challenge_id": challenge.id,
			}
		})
		return nil, mapped
	}

	identity, err := confirmer.Confirm(ctx, code)
	if err != nil {
		return nil, e.failOTPAttempt(ctx, challenge.id, err)
	}

	consumed, err := e.challengeStore.Consume(ctx, challenge.id)
	if err != nil {
		return nil, mapChallengeStoreError(err)
	}
	if !consumed {
		// A concurrent verify on the same handle won the delete.
		e.metricInc(MetricOTPHandleReplay)
		e.emitAudit(ctx, auditEventOTPVerifyFailure, false, identity.ID, ErrChallengeConsumed, nil)
		return nil, ErrChallengeConsumed
	}

	e.clearActiveChallenge(challenge.id)

	e.metricInc(MetricOTPVerifySuccess)
	e.emitAudit(ctx, auditEventOTPVerifySuccess, true, identity.ID, nil, func() map[string]string {
		return map[string]string{
			"challenge_id": challenge.id,
		}
	})

	return e.finishSignIn(ctx, identity, ProviderPhone)
}

// failOTPAttempt classifies a rejected confirmation and charges the
// attempt budget for wrong codes. The handle stays live until the
// budget is spent; the caller may retry with the same handle.
func (e *Engine) failOTPAttempt(ctx context.Context, challengeID string, confirmErr error) error {
	mapped := mapProviderError(confirmErr)

	if errors.Is(mapped, ErrInvalidCode) {
		exceeded, err := e.challengeStore.RecordFailure(ctx, challengeID, e.config.PhoneOTP.MaxAttempts)
		if err != nil {
			mapped = mapChallengeStoreError(err)
		} else if exceeded {
			e.clearActiveChallenge(challengeID)
			mapped = ErrChallengeAttempts
		}
	}

	e.metricInc(MetricOTPVerifyFailure)
	e.emitAudit(ctx, auditEventOTPVerifyFailure, false, "", mapped, func() map[string]string {
		return map[string]string{
			"challenge_id": challengeID,
		}
	})
	return mapped
}

func (e *Engine) clearActiveChallenge(challengeID string) {
	e.activeChallengeMu.Lock()
	if e.activeChallengeID == challengeID {
		e.activeChallengeID = ""
		e.activeConfirmer = nil
	}
	e.activeChallengeMu.Unlock()
}
