package onboarding

import (
	"context"
	"time"
)

// Provider identifies a sign-in method linked to an identity.
type Provider string

const (
	// ProviderPassword is an email+password credential.
	ProviderPassword Provider = "password"
	// ProviderGoogle is the Google OAuth method.
	ProviderGoogle Provider = "google"
	// ProviderFacebook is the Facebook OAuth method.
	ProviderFacebook Provider = "facebook"
	// ProviderApple is the Apple OAuth method.
	ProviderApple Provider = "apple"
	// ProviderPhone is the phone OTP method.
	ProviderPhone Provider = "phone"
)

// Role is the product-level role stored on the account document.
type Role string

const (
	// RoleUser is the default role for every new account.
	RoleUser Role = "user"
	// RoleAdmin marks administrative accounts.
	RoleAdmin Role = "admin"
)

// AccountStatus is the lifecycle status of an account document.
type AccountStatus string

const (
	// AccountActive accounts may sign in and use the application.
	AccountActive AccountStatus = "active"
	// AccountDeactivated accounts are refused at sign-in.
	AccountDeactivated AccountStatus = "deactivated"
)

// Identity is the external provider's notion of a signed-in principal.
// It is read-only to this system; the provider owns every field.
type Identity struct {
	ID            string
	Email         string
	DisplayName   string
	PhotoURL      string
	PhoneNumber   string
	EmailVerified bool
	Providers     []Provider
}

// Goals holds the optional per-category goal selections captured by the
// profile wizard. Empty strings mean the category was not chosen.
type Goals struct {
	Fitness string `bson:"fitness,omitempty" json:"fitness,omitempty"`
	Weight  string `bson:"weight,omitempty" json:"weight,omitempty"`
	Mindset string `bson:"mindset,omitempty" json:"mindset,omitempty"`
	Habit   string `bson:"habit,omitempty" json:"habit,omitempty"`
}

// Empty reports whether no goal category was selected.
func (g Goals) Empty() bool {
	return g.Fitness == "" && g.Weight == "" && g.Mindset == "" && g.Habit == ""
}

// Profile carries the fields populated by the completion wizard.
type Profile struct {
	Phone      string   `bson:"phone" json:"phone"`
	BirthDate  string   `bson:"birthDate" json:"birthDate"`
	Gender     string   `bson:"gender" json:"gender"`
	Occupation string   `bson:"occupation,omitempty" json:"occupation,omitempty"`
	Location   string   `bson:"location,omitempty" json:"location,omitempty"`
	Interests  []string `bson:"interests" json:"interests"`
	Goals      Goals    `bson:"goals" json:"goals"`
	PhotoURL   string   `bson:"photoUrl,omitempty" json:"photoUrl,omitempty"`
}

// Account is the per-identity document owned by this system. Exactly one
// exists per Identity.ID; creation is idempotent and never overwrites.
type Account struct {
	ID               string        `bson:"_id" json:"id"`
	DisplayName      string        `bson:"displayName" json:"displayName"`
	Email            string        `bson:"email" json:"email"`
	PhoneNumber      string        `bson:"phoneNumber,omitempty" json:"phoneNumber,omitempty"`
	PhotoURL         string        `bson:"photoUrl,omitempty" json:"photoUrl,omitempty"`
	EmailVerified    bool          `bson:"emailVerified" json:"emailVerified"`
	ProfileCompleted bool          `bson:"profileCompleted" json:"profileCompleted"`
	Role             Role          `bson:"role" json:"role"`
	Status           AccountStatus `bson:"status" json:"status"`
	CreatedAt        time.Time     `bson:"createdAt" json:"createdAt"`
	LastLoginAt      time.Time     `bson:"lastLoginAt" json:"lastLoginAt"`
	Profile          Profile       `bson:"profile" json:"profile"`
}

// UpdateAccountInput is a partial account update. Nil fields are left
// untouched. ProfileCompleted is deliberately absent: the wizard commit
// is the only writer of that flag, through AccountStore.CompleteProfile.
type UpdateAccountInput struct {
	DisplayName   *string
	PhoneNumber   *string
	PhotoURL      *string
	EmailVerified *bool
	LastLoginAt   *time.Time
	Status        *AccountStatus
}

// AccountStore is the external document store holding one account per
// identity id. Implementations must make Upsert insert-if-absent (an
// existing document is read, never overwritten) and CompleteProfile a
// conditional update that fails once ProfileCompleted is set.
type AccountStore interface {
	Get(ctx context.Context, id string) (*Account, error)
	Upsert(ctx context.Context, account *Account) (created bool, err error)
	Update(ctx context.Context, id string, input UpdateAccountInput) (*Account, error)
	CompleteProfile(ctx context.Context, id string, profile Profile, displayName string) (*Account, error)
}

// OTPConfirmer is the single-use confirmation handle returned by an OTP
// send. Confirm exchanges the code the user received for an identity.
type OTPConfirmer interface {
	VerificationID() string
	Confirm(ctx context.Context, code string) (*Identity, error)
}

// Captcha is the bot-mitigation widget that must produce a token before
// an OTP can be sent. Render binds the widget to the caller's UI anchor;
// a widget whose token was rejected cannot be reused and must be Reset
// and rendered again.
type Captcha interface {
	Render(ctx context.Context) (token string, err error)
	Reset()
}

// IdentityProvider is the external credential authority. All credential
// verification and token issuance happens behind this interface; the
// engine orchestrates calls and never stores secrets itself.
type IdentityProvider interface {
	CreateAccount(ctx context.Context, email, password string) (*Identity, error)
	SignIn(ctx context.Context, email, password string) (*Identity, error)
	SignInWithProvider(ctx context.Context, provider Provider) (*Identity, error)
	SendOTP(ctx context.Context, phoneNumber, captchaToken string) (OTPConfirmer, error)
	SendVerificationEmail(ctx context.Context, identityID string) error
	Reload(ctx context.Context, identityID string) (*Identity, error)
	SendPasswordReset(ctx context.Context, email, redirectURL string) error
	ChangePassword(ctx context.Context, identityID, newPassword string) error
}

// IdentityWatcher exposes the provider's identity change stream. A nil
// emission means the principal signed out.
type IdentityWatcher interface {
	Watch(ctx context.Context) (<-chan *Identity, error)
}

// ImageUploader stores a profile photo and returns its public URL. The
// wizard treats upload failures as non-fatal.
type ImageUploader interface {
	Upload(ctx context.Context, name string, data []byte) (url string, err error)
}

// Notifier delivers best-effort product notifications, such as the
// welcome message sent after onboarding completes.
type Notifier interface {
	OnboardingCompleted(ctx context.Context, account *Account) error
}

// SignInResult is returned by the registration orchestrator's sign-in
// and registration operations.
type SignInResult struct {
	Identity *Identity
	Account  *Account

	// AccountCreated reports whether this call created the account
	// document. At most one call per identity id ever reports true.
	AccountCreated bool

	// Warning carries a non-fatal side-effect failure, such as the
	// verification email not going out. The primary operation succeeded.
	Warning error
}

// VerificationState is the gate state exposed to verification screens.
type VerificationState struct {
	Verified bool
	// ResendAvailableIn is zero when a resend is allowed now, otherwise
	// the remaining cooldown.
	ResendAvailableIn time.Duration
}

// ResetRequestState is returned by RequestPasswordReset for the "sent"
// screen: an obfuscated echo of the target email plus the cooldown.
type ResetRequestState struct {
	EmailEcho         string
	ResendAvailableIn time.Duration
}
