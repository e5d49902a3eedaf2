// Package notify delivers product notifications over Resend.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/resend/resend-go/v2"

	onboarding "github.com/muhammadadmiral/growthify-onboarding"
)

// ResendNotifier sends the onboarding-complete welcome email through
// the Resend API. It satisfies the engine's Notifier interface; the
// engine treats delivery failures as non-fatal.
type ResendNotifier struct {
	client *resend.Client
	from   string
}

// NewResendNotifier creates a notifier. from is the sender address, for
// example "Growthify <hello@growthify.app>".
func NewResendNotifier(apiKey, from string) (*ResendNotifier, error) {
	if apiKey == "" {
		return nil, errors.New("resend api key required")
	}
	if from == "" {
		return nil, errors.New("sender address required")
	}
	return &ResendNotifier{
		client: resend.NewClient(apiKey),
		from:   from,
	}, nil
}

// OnboardingCompleted sends the welcome email after the profile wizard
// commits.
func (n *ResendNotifier) OnboardingCompleted(ctx context.Context, account *onboarding.Account) error {
	if account == nil || account.Email == "" {
		return errors.New("account email required")
	}

	name := account.DisplayName
	if name == "" {
		name = "there"
	}

	params := &resend.SendEmailRequest{
		From:    n.from,
		To:      []string{account.Email},
		Subject: "Welcome to Growthify",
		Html: fmt.Sprintf(`
			<div style="font-family: sans-serif; max-width: 480px; margin: 0 auto; padding: 24px;">
				<h2 style="color: #333;">You're all set, %s!</h2>
				<p>Your profile is complete and your plan is ready.</p>
				<p>Open the app to start your first session.</p>
				<p style="color: #aaa; font-size: 12px;">
					You're receiving this because you just finished setting up your Growthify account.
				</p>
			</div>
		`, name),
	}

	if _, err := n.client.Emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("send welcome email: %w", err)
	}
	return nil
}
