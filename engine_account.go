package onboarding

import "context"

// Account fetches the account document for an identity id.
func (e *Engine) Account(ctx context.Context, id string) (*Account, error) {
	if e == nil || e.accounts == nil {
		return nil, ErrEngineNotReady
	}
	account, err := e.accounts.Get(ctx, id)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return account, nil
}

// SetAccountStatus activates or deactivates an account. Deactivated
// accounts are refused at the next sign-in; live sessions are not
// revoked, that stays with the identity provider.
func (e *Engine) SetAccountStatus(ctx context.Context, id string, status AccountStatus) (*Account, error) {
	if e == nil || e.accounts == nil {
		return nil, ErrEngineNotReady
	}
	if status != AccountActive && status != AccountDeactivated {
		return nil, ErrInvalidCredentials
	}

	account, err := e.accounts.Update(ctx, id, UpdateAccountInput{Status: &status})
	if err != nil {
		return nil, mapStoreError(err)
	}

	e.emitAudit(ctx, auditEventAccountStatusChanged, true, id, nil, func() map[string]string {
		return map[string]string{
			"status": string(status),
		}
	})
	return account, nil
}
