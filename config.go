package onboarding

import (
	"errors"
	"time"
)

// Config defines the engine's behavior. It is copied at Build time and
// treated as immutable afterwards.
type Config struct {
	Account       AccountConfig
	Verification  VerificationConfig
	PhoneOTP      PhoneOTPConfig
	Recovery      RecoveryConfig
	Wizard        WizardConfig
	Session       SessionConfig
	IdentityToken IdentityTokenConfig
	Audit         AuditConfig
	Metrics       MetricsConfig
}

/*
====================================
ACCOUNT CONFIG
====================================
*/

// AccountConfig governs account-document creation and sign-in bookkeeping.
type AccountConfig struct {
	// DefaultRole is assigned to every account the engine creates.
	DefaultRole Role
	// TouchLastLogin enables the best-effort lastLoginAt update on every
	// successful sign-in. Failures never block the sign-in path.
	TouchLastLogin bool
}

/*
====================================
VERIFICATION CONFIG
====================================
*/

// VerificationConfig governs the email verification gate.
type VerificationConfig struct {
	// ResendCooldown is the window during which a second verification
	// email resend is rejected without calling the provider.
	ResendCooldown time.Duration
	// SendOnRegister controls the fire-and-forget verification email
	// after password registration.
	SendOnRegister bool
}

/*
====================================
PHONE OTP CONFIG
====================================
*/

// PhoneOTPConfig governs the CAPTCHA-gated phone challenge flow.
type PhoneOTPConfig struct {
	// ChallengeTTL bounds the life of an OTP confirmation handle.
	ChallengeTTL time.Duration
	// MaxAttempts is the number of Confirm attempts per challenge before
	// a new send is required.
	MaxAttempts int
}

/*
====================================
RECOVERY CONFIG
====================================
*/

// RecoveryConfig governs the password recovery flow.
type RecoveryConfig struct {
	// ResendCooldown mirrors the verification gate's resend throttle.
	ResendCooldown time.Duration
	// RedirectURL is bound into the emailed reset link.
	RedirectURL string
}

/*
====================================
WIZARD CONFIG
====================================
*/

// WizardConfig governs profile-completion validation.
type WizardConfig struct {
	// Genders is the enumerated set accepted by the personal step.
	Genders []string
	// NotifyOnComplete enables the best-effort welcome notification
	// after the final commit.
	NotifyOnComplete bool
}

func (c WizardConfig) allowsGender(gender string) bool {
	for _, allowed := range c.Genders {
		if gender == allowed {
			return true
		}
	}
	return false
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig governs the session manager.
type SessionConfig struct {
	// FetchTimeout bounds each account fetch triggered by an identity
	// emission or Refresh call.
	FetchTimeout time.Duration
}

// IdentityTokenConfig configures verification of provider-issued
// identity tokens consumed by the HTTP middleware.
type IdentityTokenConfig struct {
	// SigningKey is the HMAC key shared with the provider, or empty when
	// token verification is unused.
	SigningKey []byte
	// Issuer, when set, must match the token's iss claim.
	Issuer string
	// Leeway tolerates clock skew during expiry checks.
	Leeway time.Duration
}

// AuditConfig configures the buffered audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig configures the in-process counters.
type MetricsConfig struct {
	Enabled bool
}

// DefaultConfig returns the configuration New seeds the builder with.
// Override individual fields and pass the result to WithConfig.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Account: AccountConfig{
			DefaultRole:    RoleUser,
			TouchLastLogin: true,
		},
		Verification: VerificationConfig{
			ResendCooldown: 60 * time.Second,
			SendOnRegister: true,
		},
		PhoneOTP: PhoneOTPConfig{
			ChallengeTTL: 5 * time.Minute,
			MaxAttempts:  3,
		},
		Recovery: RecoveryConfig{
			ResendCooldown: 60 * time.Second,
		},
		Wizard: WizardConfig{
			Genders:          []string{"Female", "Male", "Non-binary", "Prefer not to say"},
			NotifyOnComplete: false,
		},
		Session: SessionConfig{
			FetchTimeout: 10 * time.Second,
		},
		IdentityToken: IdentityTokenConfig{
			Leeway: 30 * time.Second,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Validate rejects configurations the engine cannot run with.
func (c Config) Validate() error {
	if c.Account.DefaultRole == "" {
		return errors.New("Account.DefaultRole must be set")
	}
	if c.Account.DefaultRole != RoleUser && c.Account.DefaultRole != RoleAdmin {
		return errors.New("Account.DefaultRole must be user or admin")
	}
	if c.Verification.ResendCooldown <= 0 {
		return errors.New("Verification.ResendCooldown must be positive")
	}
	if c.Recovery.ResendCooldown <= 0 {
		return errors.New("Recovery.ResendCooldown must be positive")
	}
	if c.PhoneOTP.ChallengeTTL <= 0 {
		return errors.New("PhoneOTP.ChallengeTTL must be positive")
	}
	if c.PhoneOTP.MaxAttempts <= 0 {
		return errors.New("PhoneOTP.MaxAttempts must be positive")
	}
	if len(c.Wizard.Genders) == 0 {
		return errors.New("Wizard.Genders must not be empty")
	}
	if c.Session.FetchTimeout <= 0 {
		return errors.New("Session.FetchTimeout must be positive")
	}
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit.BufferSize must be positive when audit is enabled")
	}
	return nil
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Wizard.Genders = append([]string(nil), cfg.Wizard.Genders...)
	out.IdentityToken.SigningKey = cloneBytes(cfg.IdentityToken.SigningKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
