package onboarding

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// IdentityTokenClaims is the subset of provider ID token claims the
// engine consumes.
type IdentityTokenClaims struct {
	jwt.RegisteredClaims
	Email         string `json:"email,omitempty"`
	EmailVerified bool   `json:"email_verified,omitempty"`
}

// IdentityID returns the token's subject, the provider identity id.
func (c *IdentityTokenClaims) IdentityID() string {
	return c.Subject
}

// VerifyIdentityToken validates a provider-issued ID token and returns
// its claims. This is how server-side callers, the HTTP middleware in
// particular, resolve the identity behind a bearer token without a
// session manager. Token issuance stays with the provider; the engine
// only verifies.
func (e *Engine) VerifyIdentityToken(tokenString string) (*IdentityTokenClaims, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	cfg := e.config.IdentityToken
	if len(cfg.SigningKey) == 0 {
		return nil, fmt.Errorf("%w: token verification not configured", ErrEngineNotReady)
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(cfg.Leeway),
	}
	if cfg.Issuer != "" {
		options = append(options, jwt.WithIssuer(cfg.Issuer))
	}

	claims := &IdentityTokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return cfg.SigningKey, nil
	}, options...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}
