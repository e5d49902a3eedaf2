package onboarding

// GuardDecision is the route guard's verdict for one navigation.
type GuardDecision uint8

const (
	// GuardWait means the session is still resolving; hold the navigation
	// rather than redirecting on incomplete information.
	GuardWait GuardDecision = iota
	// GuardAllow admits the navigation.
	GuardAllow
	// GuardRedirectSignIn sends the visitor to the sign-in screen.
	GuardRedirectSignIn
	// GuardRedirectVerifyEmail sends the visitor to the verification gate.
	GuardRedirectVerifyEmail
	// GuardRedirectWizard sends the visitor to the profile wizard.
	GuardRedirectWizard
)

func (d GuardDecision) String() string {
	switch d {
	case GuardWait:
		return "wait"
	case GuardAllow:
		return "allow"
	case GuardRedirectSignIn:
		return "redirect_sign_in"
	case GuardRedirectVerifyEmail:
		return "redirect_verify_email"
	case GuardRedirectWizard:
		return "redirect_wizard"
	default:
		return "unknown"
	}
}

// RouteRequirements describes what a route demands of the session.
// Requirements imply each other left to right: RequireProfile implies
// RequireVerified, which implies RequireAuth.
type RouteRequirements struct {
	RequireAuth     bool
	RequireVerified bool
	RequireProfile  bool
	RequireRole     Role
}

// Guard decides whether a session may enter a route. The decision is a
// pure function of the snapshot: a loading session waits, missing
// prerequisites redirect to the screen that satisfies them, and a
// degraded session is admitted on identity-derived requirements only.
func Guard(session Session, route RouteRequirements) GuardDecision {
	needsAuth := route.RequireAuth || route.RequireVerified || route.RequireProfile || route.RequireRole != ""

	if !needsAuth {
		return GuardAllow
	}

	switch session.State {
	case SessionLoading:
		return GuardWait
	case SessionAnonymous:
		return GuardRedirectSignIn
	}

	if route.RequireVerified || route.RequireProfile {
		verified := session.Identity != nil && session.Identity.EmailVerified
		if !verified && session.Account != nil {
			verified = session.Account.EmailVerified
		}
		if !verified {
			return GuardRedirectVerifyEmail
		}
	}

	if route.RequireProfile {
		if session.Account == nil {
			if session.Degraded {
				// The completed flag is unknowable during an outage, so wait
				// for a refresh instead of bouncing the user into the wizard.
				return GuardWait
			}
			// No document at all means the profile was never started.
			return GuardRedirectWizard
		}
		if !session.Account.ProfileCompleted {
			return GuardRedirectWizard
		}
	}

	if route.RequireRole != "" {
		if session.Account == nil {
			if session.Degraded {
				return GuardWait
			}
			return GuardRedirectSignIn
		}
		if session.Account.Role != route.RequireRole {
			return GuardRedirectSignIn
		}
	}

	return GuardAllow
}
