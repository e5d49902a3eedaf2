package onboarding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// WizardStep identifies one screen of the profile completion wizard.
type WizardStep uint8

const (
	// StepBasics captures display name and phone number.
	StepBasics WizardStep = iota
	// StepPersonal captures birth date, gender, occupation and location.
	StepPersonal
	// StepInterests captures the interest selection.
	StepInterests
	// StepGoals captures the per-category goal selection and the optional
	// profile photo, and is the only step that can commit.
	StepGoals
)

func (s WizardStep) String() string {
	switch s {
	case StepBasics:
		return "basics"
	case StepPersonal:
		return "personal"
	case StepInterests:
		return "interests"
	case StepGoals:
		return "goals"
	default:
		return "unknown"
	}
}

// Wizard accumulates the profile completion answers step by step and
// writes them in a single commit. Each step must validate before the
// wizard advances; a failed commit leaves the wizard on the last step
// with every answer intact so the user can retry. A Wizard is not safe
// for concurrent use.
type Wizard struct {
	engine    *Engine
	accountID string
	step      WizardStep
	committed bool

	displayName string
	phone       string
	birthDate   string
	gender      string
	occupation  string
	location    string
	interests   []string
	goals       Goals
	photo       []byte
}

// NewWizard starts a profile completion wizard for an account. Accounts
// that already completed their profile are rejected up front rather
// than at commit time.
func (e *Engine) NewWizard(ctx context.Context, accountID string) (*Wizard, error) {
	if e == nil || e.accounts == nil {
		return nil, ErrEngineNotReady
	}

	account, err := e.accounts.Get(ctx, accountID)
	if err != nil {
		return nil, mapStoreError(err)
	}
	if account.ProfileCompleted {
		return nil, ErrProfileAlreadyCompleted
	}

	return &Wizard{
		engine:      e,
		accountID:   accountID,
		displayName: account.DisplayName,
		phone:       account.PhoneNumber,
	}, nil
}

// Step returns the wizard's current step.
func (w *Wizard) Step() WizardStep {
	return w.step
}

// SetBasics records the display name and phone number answers.
func (w *Wizard) SetBasics(displayName, phone string) {
	w.displayName = strings.TrimSpace(displayName)
	w.phone = strings.TrimSpace(phone)
}

// SetPersonal records the personal details answers. Occupation and
// location are optional.
func (w *Wizard) SetPersonal(birthDate, gender, occupation, location string) {
	w.birthDate = strings.TrimSpace(birthDate)
	w.gender = strings.TrimSpace(gender)
	w.occupation = strings.TrimSpace(occupation)
	w.location = strings.TrimSpace(location)
}

// SetInterests records the interest selection, dropping blanks.
func (w *Wizard) SetInterests(interests []string) {
	cleaned := make([]string, 0, len(interests))
	for _, interest := range interests {
		if trimmed := strings.TrimSpace(interest); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	w.interests = cleaned
}

// SetGoals records the per-category goal selection.
func (w *Wizard) SetGoals(goals Goals) {
	w.goals = goals
}

// SetPhoto attaches raw profile photo bytes. The photo is optional and
// its upload is best-effort at commit time.
func (w *Wizard) SetPhoto(data []byte) {
	w.photo = data
}

// Next validates the current step and advances. On the last step there
// is nothing to advance to: it returns ErrWizardAwaitingCommit so
// step-driving callers cannot mistake a validated final step for a
// finished wizard.
func (w *Wizard) Next() error {
	if w.committed {
		return ErrWizardCommitted
	}
	if err := w.validateStep(w.step); err != nil {
		return err
	}
	if w.step == StepGoals {
		return ErrWizardAwaitingCommit
	}
	w.step++
	return nil
}

// Back returns to the previous step without validating. Answers already
// given are kept.
func (w *Wizard) Back() {
	if w.step > StepBasics {
		w.step--
	}
}

func (w *Wizard) validateStep(step WizardStep) error {
	switch step {
	case StepBasics:
		if w.displayName == "" {
			return fmt.Errorf("%w: display name required", ErrWizardValidation)
		}
		if !e164Pattern.MatchString(w.phone) {
			return fmt.Errorf("%w: phone number must be in international format", ErrWizardValidation)
		}
	case StepPersonal:
		if _, err := time.Parse("2006-01-02", w.birthDate); err != nil {
			return fmt.Errorf("%w: birth date must be YYYY-MM-DD", ErrWizardValidation)
		}
		if !w.engine.config.Wizard.allowsGender(w.gender) {
			return fmt.Errorf("%w: unknown gender value", ErrWizardValidation)
		}
	case StepInterests:
		if len(w.interests) == 0 {
			return fmt.Errorf("%w: select at least one interest", ErrWizardValidation)
		}
	case StepGoals:
		if w.goals.Empty() {
			return fmt.Errorf("%w: select at least one goal", ErrWizardValidation)
		}
	}
	return nil
}

// Commit validates every step, uploads the photo if one was attached,
// and writes the profile in a single conditional update. The completed
// flag only ever moves forward: a concurrent or repeated commit loses
// the conditional write and surfaces ErrProfileAlreadyCompleted. On any
// failure the wizard stays on the last step for a retry.
func (w *Wizard) Commit(ctx context.Context) (*Account, error) {
	if w.committed {
		return nil, ErrWizardCommitted
	}

	e := w.engine
	for step := StepBasics; step <= StepGoals; step++ {
		if err := w.validateStep(step); err != nil {
			e.metricInc(MetricWizardCommitFailure)
			e.emitAudit(ctx, auditEventWizardCommitFailure, false, w.accountID, err, func() map[string]string {
				return map[string]string{
					"step": step.String(),
				}
			})
			return nil, err
		}
	}

	profile := Profile{
		Phone:      w.phone,
		BirthDate:  w.birthDate,
		Gender:     w.gender,
		Occupation: w.occupation,
		Location:   w.location,
		Interests:  w.interests,
		Goals:      w.goals,
	}

	if len(w.photo) > 0 && e.uploader != nil {
		name := "profile-" + w.accountID + "-" + uuid.NewString()
		url, err := e.uploader.Upload(ctx, name, w.photo)
		if err != nil {
			// The profile commits without the photo; the user can upload
			// one later from settings.
			e.emitAudit(ctx, auditEventWizardUploadSkipped, false, w.accountID, ErrProviderUnavailable, nil)
		} else {
			profile.PhotoURL = url
		}
	}

	account, err := e.accounts.CompleteProfile(ctx, w.accountID, profile, w.displayName)
	if err != nil {
		mapped := mapStoreError(err)
		if errors.Is(mapped, ErrProfileAlreadyCompleted) {
			// Someone else won the commit; this wizard is done.
			w.committed = true
		}
		e.metricInc(MetricWizardCommitFailure)
		e.emitAudit(ctx, auditEventWizardCommitFailure, false, w.accountID, mapped, nil)
		return nil, mapped
	}

	w.committed = true

	if e.config.Wizard.NotifyOnComplete && e.notifier != nil {
		if err := e.notifier.OnboardingCompleted(ctx, account); err != nil {
			e.emitAudit(ctx, auditEventWizardNotifySkipped, false, w.accountID, ErrProviderUnavailable, nil)
		}
	}

	e.metricInc(MetricWizardCommitSuccess)
	e.emitAudit(ctx, auditEventWizardCommitSuccess, true, w.accountID, nil, nil)
	return account, nil
}
