// Package onboarding orchestrates the identity and onboarding
// lifecycle of the Growthify app: registration and sign-in over an
// external identity provider, the email verification gate, the
// CAPTCHA-gated phone OTP flow, password recovery, the profile
// completion wizard, session tracking, and route guarding.
//
// The engine never stores credentials. The external provider owns
// identities, passwords, and tokens; an external document store owns
// one account document per identity. The engine's own state is
// ephemeral and lives in Redis: OTP challenge records and resend
// cooldown windows.
//
// Build an Engine with the Builder:
//
//	engine, err := onboarding.New().
//		WithRedis(redisClient).
//		WithIdentityProvider(provider).
//		WithAccountStore(store).
//		Build()
//
// Operations return sentinel errors (ErrWrongPassword, ErrEmailInUse,
// ErrResendCooldown, ...) that callers match with errors.Is.
package onboarding
