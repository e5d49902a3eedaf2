package onboarding

import "errors"

var (
	// ErrInvalidCredentials is returned when the identity provider rejects
	// a credential pair without distinguishing the failing part.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserNotFound is returned when no identity exists for the supplied
	// email address.
	ErrUserNotFound = errors.New("user not found")
	// ErrWrongPassword is returned when the identity exists but the
	// password does not match.
	ErrWrongPassword = errors.New("wrong password")
	// ErrEmailInUse is returned when registration targets an email address
	// already bound to an identity, regardless of the sign-in method that
	// created it.
	ErrEmailInUse = errors.New("email already in use")
	// ErrWeakPassword is returned when the provider rejects a password
	// against its strength policy.
	ErrWeakPassword = errors.New("password too weak")
	// ErrCaptcha is returned when the CAPTCHA widget fails to initialize
	// or its token is rejected by the provider.
	ErrCaptcha = errors.New("captcha challenge failed")
	// ErrCaptchaNotReady is returned when an OTP send is attempted before
	// the CAPTCHA widget has rendered.
	ErrCaptchaNotReady = errors.New("captcha not ready")
	// ErrInvalidCode is returned when an OTP code does not match the live
	// challenge.
	ErrInvalidCode = errors.New("invalid verification code")
	// ErrCodeExpired is returned when the OTP challenge has expired.
	ErrCodeExpired = errors.New("verification code expired")
	// ErrChallengeConsumed is returned when a confirmation handle is
	// presented after it has already been consumed or superseded.
	ErrChallengeConsumed = errors.New("challenge already consumed")
	// ErrChallengeNotFound is returned when no live OTP challenge exists.
	ErrChallengeNotFound = errors.New("challenge not found")
	// ErrChallengeAttempts is returned when the OTP challenge ran out of
	// confirmation attempts and a new send is required.
	ErrChallengeAttempts = errors.New("challenge attempts exceeded")
	// ErrReauthRequired is returned by ChangePassword when the provider
	// demands a fresh credential before accepting the new password.
	ErrReauthRequired = errors.New("recent authentication required")
	// ErrResendCooldown is returned when a resend is attempted inside the
	// cooldown window. The provider is not called in that case.
	ErrResendCooldown = errors.New("resend cooldown active")
	// ErrProfileAlreadyCompleted is returned when a wizard commit races a
	// completed profile. ProfileCompleted never reverts.
	ErrProfileAlreadyCompleted = errors.New("profile already completed")
	// ErrWizardValidation is returned by Wizard.Next when the current step
	// fails validation; field messages are kept on the wizard.
	ErrWizardValidation = errors.New("wizard step validation failed")
	// ErrWizardCommitted is returned when a wizard is reused after its
	// final commit succeeded.
	ErrWizardCommitted = errors.New("wizard already committed")
	// ErrWizardAwaitingCommit is returned by Wizard.Next on the last step:
	// the answers validated, but only Commit finishes the wizard.
	ErrWizardAwaitingCommit = errors.New("wizard awaiting commit")
	// ErrAccountDeactivated is returned on sign-in for accounts with a
	// deactivated status.
	ErrAccountDeactivated = errors.New("account deactivated")
	// ErrAccountNotFound is returned by AccountStore.Get when no document
	// exists for the identity id.
	ErrAccountNotFound = errors.New("account not found")
	// ErrProviderUnavailable wraps network or unclassified identity
	// provider failures. Operations failing with it are safely retryable.
	ErrProviderUnavailable = errors.New("identity provider unavailable")
	// ErrStoreUnavailable wraps account-store read/write failures.
	ErrStoreUnavailable = errors.New("account store unavailable")
	// ErrTokenInvalid is returned when a provider identity token fails
	// verification.
	ErrTokenInvalid = errors.New("invalid identity token")
	// ErrEngineNotReady is returned when an operation runs before the
	// engine was fully built.
	ErrEngineNotReady = errors.New("engine not initialized")
)
