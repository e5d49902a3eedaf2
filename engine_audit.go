package onboarding

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventRegisterSuccess        = "register_success"
	auditEventRegisterFailure        = "register_failure"
	auditEventSignInSuccess          = "sign_in_success"
	auditEventSignInFailure          = "sign_in_failure"
	auditEventAccountCreated         = "account_created"
	auditEventAccountCreateSkipped   = "account_create_skipped"
	auditEventLastLoginSkipped       = "last_login_update_skipped"
	auditEventAccountStatusChanged   = "account_status_changed"
	auditEventVerificationResend     = "verification_resend"
	auditEventVerificationRecheck    = "verification_recheck"
	auditEventVerificationMirror     = "verification_mirror_skipped"
	auditEventOTPSent                = "otp_sent"
	auditEventOTPSendFailure         = "otp_send_failure"
	auditEventOTPVerifySuccess       = "otp_verify_success"
	auditEventOTPVerifyFailure       = "otp_verify_failure"
	auditEventResetRequest           = "password_reset_request"
	auditEventPasswordChangeSuccess  = "password_change_success"
	auditEventPasswordChangeFailure  = "password_change_failure"
	auditEventWizardCommitSuccess    = "wizard_commit_success"
	auditEventWizardCommitFailure    = "wizard_commit_failure"
	auditEventWizardUploadSkipped    = "wizard_photo_upload_skipped"
	auditEventWizardNotifySkipped    = "wizard_notify_skipped"
	auditEventSessionTransition      = "session_transition"
	auditEventSessionDegraded        = "session_degraded"
	auditEventSessionStaleDiscarded  = "session_stale_discarded"
	auditEventResendCooldownRejected = "resend_cooldown_rejected"
)

// AuditErrorCode is the compact error classification recorded on events.
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrUserNotFound       AuditErrorCode = "user_not_found"
	auditErrWrongPassword      AuditErrorCode = "wrong_password"
	auditErrEmailInUse         AuditErrorCode = "email_in_use"
	auditErrWeakPassword       AuditErrorCode = "weak_password"
	auditErrCaptcha            AuditErrorCode = "captcha_failed"
	auditErrInvalidCode        AuditErrorCode = "invalid_code"
	auditErrCodeExpired        AuditErrorCode = "code_expired"
	auditErrChallengeConsumed  AuditErrorCode = "challenge_consumed"
	auditErrChallengeAttempts  AuditErrorCode = "challenge_attempts_exceeded"
	auditErrReauthRequired     AuditErrorCode = "reauth_required"
	auditErrCooldown           AuditErrorCode = "cooldown_active"
	auditErrProfileCompleted   AuditErrorCode = "profile_already_completed"
	auditErrValidation         AuditErrorCode = "validation_failed"
	auditErrDeactivated        AuditErrorCode = "account_deactivated"
	auditErrProvider           AuditErrorCode = "provider_unavailable"
	auditErrStore              AuditErrorCode = "store_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	accountID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		AccountID: accountID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrUserNotFound):
		return auditErrUserNotFound
	case errors.Is(err, ErrWrongPassword):
		return auditErrWrongPassword
	case errors.Is(err, ErrEmailInUse):
		return auditErrEmailInUse
	case errors.Is(err, ErrWeakPassword):
		return auditErrWeakPassword
	case errors.Is(err, ErrCaptcha),
		errors.Is(err, ErrCaptchaNotReady):
		return auditErrCaptcha
	case errors.Is(err, ErrInvalidCode):
		return auditErrInvalidCode
	case errors.Is(err, ErrCodeExpired):
		return auditErrCodeExpired
	case errors.Is(err, ErrChallengeConsumed),
		errors.Is(err, ErrChallengeNotFound):
		return auditErrChallengeConsumed
	case errors.Is(err, ErrChallengeAttempts):
		return auditErrChallengeAttempts
	case errors.Is(err, ErrReauthRequired):
		return auditErrReauthRequired
	case errors.Is(err, ErrResendCooldown):
		return auditErrCooldown
	case errors.Is(err, ErrProfileAlreadyCompleted):
		return auditErrProfileCompleted
	case errors.Is(err, ErrWizardValidation),
		errors.Is(err, ErrWizardCommitted):
		return auditErrValidation
	case errors.Is(err, ErrAccountDeactivated):
		return auditErrDeactivated
	case errors.Is(err, ErrProviderUnavailable):
		return auditErrProvider
	case errors.Is(err, ErrStoreUnavailable),
		errors.Is(err, ErrAccountNotFound):
		return auditErrStore
	default:
		return auditErrInternal
	}
}
