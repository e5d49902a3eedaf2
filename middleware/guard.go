// Package middleware adapts the onboarding engine's route guard to
// net/http handlers.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	onboarding "github.com/muhammadadmiral/growthify-onboarding"
)

type accountContextKey struct{}

// AccountFromContext returns the account resolved by Guard for the
// current request.
func AccountFromContext(ctx context.Context) (*onboarding.Account, bool) {
	account, ok := ctx.Value(accountContextKey{}).(*onboarding.Account)
	return account, ok
}

// Guard authenticates requests with a provider-issued bearer token,
// resolves the account document, and applies the route requirements.
// Unsatisfied prerequisites answer 403 with a Location header naming
// the screen that satisfies them, so API clients can drive the same
// redirects the in-app guard produces.
func Guard(engine *onboarding.Engine, route onboarding.RouteRequirements) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			session, account, err := resolveSession(r, engine)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			switch decision := onboarding.Guard(session, route); decision {
			case onboarding.GuardAllow:
			case onboarding.GuardRedirectSignIn:
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			case onboarding.GuardRedirectVerifyEmail, onboarding.GuardRedirectWizard, onboarding.GuardWait:
				w.Header().Set("Location", redirectTarget(decision))
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			default:
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}

			ctx := r.Context()
			if account != nil {
				ctx = context.WithValue(ctx, accountContextKey{}, account)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// resolveSession rebuilds a session snapshot from the request's bearer
// token. A missing or invalid token yields an anonymous session; a
// store outage yields a degraded one, mirroring the session manager's
// behavior. A missing account document is not an outage and yields a
// healthy identity-only session.
func resolveSession(r *http.Request, engine *onboarding.Engine) (onboarding.Session, *onboarding.Account, error) {
	token, ok := bearerToken(r.Header.Get("Authorization"))
	if !ok {
		return onboarding.Session{State: onboarding.SessionAnonymous}, nil, nil
	}

	claims, err := engine.VerifyIdentityToken(token)
	if err != nil {
		if errors.Is(err, onboarding.ErrTokenInvalid) {
			return onboarding.Session{State: onboarding.SessionAnonymous}, nil, nil
		}
		return onboarding.Session{}, nil, err
	}

	identity := &onboarding.Identity{
		ID:            claims.IdentityID(),
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
	}

	account, err := engine.Account(r.Context(), identity.ID)
	if err != nil {
		if errors.Is(err, onboarding.ErrAccountNotFound) {
			// Not an outage: the document does not exist yet, so the guard
			// can route to the wizard rather than hold the request.
			return onboarding.Session{
				State:    onboarding.SessionAuthenticated,
				Identity: identity,
			}, nil, nil
		}
		return onboarding.Session{
			State:    onboarding.SessionAuthenticated,
			Identity: identity,
			Degraded: true,
		}, nil, nil
	}

	return onboarding.Session{
		State:    onboarding.SessionAuthenticated,
		Identity: identity,
		Account:  account,
	}, account, nil
}

func redirectTarget(decision onboarding.GuardDecision) string {
	switch decision {
	case onboarding.GuardRedirectVerifyEmail:
		return "/verify-email"
	case onboarding.GuardRedirectWizard:
		return "/complete-profile"
	default:
		return "/"
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
