package onboarding

import (
	"context"
	"errors"
	"testing"
)

type mockCaptcha struct {
	token      string
	renderErr  error
	resetCalls int
}

func (c *mockCaptcha) Render(context.Context) (string, error) {
	if c.renderErr != nil {
		return "", c.renderErr
	}
	return c.token, nil
}

func (c *mockCaptcha) Reset() {
	c.resetCalls++
}

type mockOTPConfirmer struct {
	verificationID string
	code           string
	identity       *Identity
	confirmErr     error
	confirmCalls   int
}

func (m *mockOTPConfirmer) VerificationID() string {
	return m.verificationID
}

func (m *mockOTPConfirmer) Confirm(_ context.Context, code string) (*Identity, error) {
	m.confirmCalls++
	if m.confirmErr != nil {
		return nil, m.confirmErr
	}
	if code != m.code {
		return nil, ErrInvalidCode
	}
	clone := *m.identity
	return &clone, nil
}

func phoneTestIdentity() *Identity {
	return &Identity{
		ID:          "phone-1",
		PhoneNumber: "+15551230001",
		Providers:   []Provider{ProviderPhone},
	}
}

func TestSendPhoneOTPRejectsBadFormat(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	engine := newTestEngine(t, rdb, newMockIdentityProvider(), newMemoryAccountStore())

	_, err := engine.SendPhoneOTP(context.Background(), "555-1234", &mockCaptcha{token: "tok"})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestSendPhoneOTPCaptchaFailureResetsWidget(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	provider := newMockIdentityProvider()
	engine := newTestEngine(t, rdb, provider, newMemoryAccountStore())

	captcha := &mockCaptcha{renderErr: errors.New("widget load failed")}
	_, err := engine.SendPhoneOTP(context.Background(), "+15551230001", captcha)
	if !errors.Is(err, ErrCaptcha) {
		t.Fatalf("expected ErrCaptcha, got %v", err)
	}
	if captcha.resetCalls != 1 {
		t.Fatal("failed render must reset the widget")
	}
	if provider.otpCalls != 0 {
		t.Fatal("provider must not be called without a captcha token")
	}
}

func TestSendPhoneOTPProviderRejectionResetsWidget(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	provider := newMockIdentityProvider()
	provider.sendOTPErr = ErrCaptcha
	engine := newTestEngine(t, rdb, provider, newMemoryAccountStore())

	captcha := &mockCaptcha{token: "tok"}
	_, err := engine.SendPhoneOTP(context.Background(), "+15551230001", captcha)
	if !errors.Is(err, ErrCaptcha) {
		t.Fatalf("expected ErrCaptcha, got %v", err)
	}
	if captcha.resetCalls != 1 {
		t.Fatal("spent token must reset the widget")
	}
}

func TestVerifyPhoneOTPHappyPathConsumesChallenge(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	provider := newMockIdentityProvider()
	provider.confirmer = &mockOTPConfirmer{
		verificationID: "v-1",
		code:           "123456",
		identity:       phoneTestIdentity(),
	}
	store := newMemoryAccountStore()
	engine := newTestEngine(t, rdb, provider, store)

	challenge, err := engine.SendPhoneOTP(context.Background(), "+15551230001", &mockCaptcha{token: "tok"})
	if err != nil {
		t.Fatalf("SendPhoneOTP failed: %v", err)
	}

	result, err := engine.VerifyPhoneOTP(context.Background(), challenge, "123456")
	if err != nil {
		t.Fatalf("VerifyPhoneOTP failed: %v", err)
	}
	if !result.AccountCreated {
		t.Fatal("first phone sign-in must create the account")
	}
	if result.Account.PhoneNumber != "+15551230001" {
		t.Fatalf("expected phone on the account, got %q", result.Account.PhoneNumber)
	}

	// The handle is single-use.
	if _, err := engine.VerifyPhoneOTP(context.Background(), challenge, "123456"); !errors.Is(err, ErrChallengeConsumed) {
		t.Fatalf("expected ErrChallengeConsumed on replay, got %v", err)
	}
	if engine.metrics.Get(MetricOTPVerifySuccess) != 1 {
		t.Fatal("expected exactly one successful verification")
	}
}

func TestVerifyPhoneOTPWrongCodeChargesAttempts(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	provider := newMockIdentityProvider()
	provider.confirmer = &mockOTPConfirmer{
		verificationID: "v-1",
		code:           "123456",
		identity:       phoneTestIdentity(),
	}
	engine := newTestEngine(t, rdb, provider, newMemoryAccountStore())

	challenge, err := engine.SendPhoneOTP(context.Background(), "+15551230001", &mockCaptcha{token: "tok"})
	if err != nil {
		t.Fatalf("SendPhoneOTP failed: %v", err)
	}

	// MaxAttempts is 3: two wrong codes stay retryable, the third
	// destroys the challenge.
	for i := 0; i < 2; i++ {
		if _, err := engine.VerifyPhoneOTP(context.Background(), challenge, "000000"); !errors.Is(err, ErrInvalidCode) {
			t.Fatalf("attempt %d: expected ErrInvalidCode, got %v", i+1, err)
		}
	}
	if _, err := engine.VerifyPhoneOTP(context.Background(), challenge, "000000"); !errors.Is(err, ErrChallengeAttempts) {
		t.Fatalf("expected ErrChallengeAttempts, got %v", err)
	}

	// Exhausted challenges cannot be revived with the right code.
	if _, err := engine.VerifyPhoneOTP(context.Background(), challenge, "123456"); !errors.Is(err, ErrChallengeConsumed) {
		t.Fatalf("expected ErrChallengeConsumed after exhaustion, got %v", err)
	}
}

func TestSendPhoneOTPInvalidatesPreviousChallenge(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	provider := newMockIdentityProvider()
	provider.confirmer = &mockOTPConfirmer{
		verificationID: "v-1",
		code:           "123456",
		identity:       phoneTestIdentity(),
	}
	engine := newTestEngine(t, rdb, provider, newMemoryAccountStore())

	first, err := engine.SendPhoneOTP(context.Background(), "+15551230001", &mockCaptcha{token: "tok"})
	if err != nil {
		t.Fatalf("first SendPhoneOTP failed: %v", err)
	}
	second, err := engine.SendPhoneOTP(context.Background(), "+15551230001", &mockCaptcha{token: "tok2"})
	if err != nil {
		t.Fatalf("second SendPhoneOTP failed: %v", err)
	}

	if _, err := engine.VerifyPhoneOTP(context.Background(), first, "123456"); !errors.Is(err, ErrChallengeConsumed) {
		t.Fatalf("expected superseded handle to fail, got %v", err)
	}
	if _, err := engine.VerifyPhoneOTP(context.Background(), second, "123456"); err != nil {
		t.Fatalf("newest handle must verify: %v", err)
	}
}

func TestVerifyPhoneOTPExpiredChallenge(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	provider := newMockIdentityProvider()
	provider.confirmer = &mockOTPConfirmer{
		verificationID: "v-1",
		code:           "123456",
		identity:       phoneTestIdentity(),
	}
	engine := newTestEngine(t, rdb, provider, newMemoryAccountStore())

	challenge, err := engine.SendPhoneOTP(context.Background(), "+15551230001", &mockCaptcha{token: "tok"})
	if err != nil {
		t.Fatalf("SendPhoneOTP failed: %v", err)
	}

	// Rewrite the record with an expiry in the past; the wall clock is
	// what the store checks, not the Redis TTL.
	record := &otpChallengeRecord{
		VerificationID: "v-1",
		PhoneNumber:    "+15551230001",
		ExpiresAt:      1,
	}
	if err := engine.challengeStore.Save(context.Background(), challenge.ID(), record, engine.config.PhoneOTP.ChallengeTTL); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if _, err := engine.VerifyPhoneOTP(context.Background(), challenge, "123456"); !errors.Is(err, ErrCodeExpired) {
		t.Fatalf("expected ErrCodeExpired, got %v", err)
	}
}
