package onboarding

import (
	"context"
	"errors"
	"testing"
)

type mockUploader struct {
	url       string
	uploadErr error
	calls     int
	lastName  string
}

func (u *mockUploader) Upload(_ context.Context, name string, _ []byte) (string, error) {
	u.calls++
	u.lastName = name
	if u.uploadErr != nil {
		return "", u.uploadErr
	}
	return u.url, nil
}

type mockNotifier struct {
	err   error
	calls int
}

func (n *mockNotifier) OnboardingCompleted(context.Context, *Account) error {
	n.calls++
	return n.err
}

func newWizardTestEngine(t *testing.T) (*Engine, *memoryAccountStore, func()) {
	t.Helper()

	mr, rdb := newTestRedis(t)
	store := newMemoryAccountStore()
	engine := newTestEngine(t, rdb, newMockIdentityProvider(), store)

	if _, err := engine.RegisterWithPassword(context.Background(), "Alice", "alice@example.com", "str0ng-password"); err != nil {
		t.Fatalf("RegisterWithPassword failed: %v", err)
	}

	return engine, store, func() { mr.Close() }
}

func fillWizard(w *Wizard) {
	w.SetBasics("Alice Harper", "+15551230001")
	w.SetPersonal("1994-03-21", "Female", "Designer", "Jakarta")
	w.SetInterests([]string{"yoga", " running "})
	w.SetGoals(Goals{Fitness: "run-5k", Mindset: "daily-journal"})
}

func TestWizardStepByStepCommit(t *testing.T) {
	engine, store, cleanup := newWizardTestEngine(t)
	defer cleanup()

	wizard, err := engine.NewWizard(context.Background(), "id-alice@example.com")
	if err != nil {
		t.Fatalf("NewWizard failed: %v", err)
	}
	if wizard.Step() != StepBasics {
		t.Fatalf("expected basics step, got %v", wizard.Step())
	}

	// Empty basics must not advance.
	wizard.SetBasics("", "")
	if err := wizard.Next(); !errors.Is(err, ErrWizardValidation) {
		t.Fatalf("expected ErrWizardValidation, got %v", err)
	}
	if wizard.Step() != StepBasics {
		t.Fatal("failed validation must not advance the step")
	}

	wizard.SetBasics("Alice Harper", "+15551230001")
	if err := wizard.Next(); err != nil {
		t.Fatalf("Next from basics failed: %v", err)
	}

	wizard.SetPersonal("21-03-1994", "Female", "", "")
	if err := wizard.Next(); !errors.Is(err, ErrWizardValidation) {
		t.Fatalf("expected birth date rejection, got %v", err)
	}
	wizard.SetPersonal("1994-03-21", "Elf", "", "")
	if err := wizard.Next(); !errors.Is(err, ErrWizardValidation) {
		t.Fatalf("expected gender rejection, got %v", err)
	}
	wizard.SetPersonal("1994-03-21", "Female", "Designer", "Jakarta")
	if err := wizard.Next(); err != nil {
		t.Fatalf("Next from personal failed: %v", err)
	}

	if err := wizard.Next(); !errors.Is(err, ErrWizardValidation) {
		t.Fatalf("expected empty interests rejection, got %v", err)
	}
	wizard.SetInterests([]string{"yoga"})
	if err := wizard.Next(); err != nil {
		t.Fatalf("Next from interests failed: %v", err)
	}

	// Back keeps answers.
	wizard.Back()
	if wizard.Step() != StepInterests {
		t.Fatalf("expected interests step after Back, got %v", wizard.Step())
	}
	if err := wizard.Next(); err != nil {
		t.Fatalf("re-advancing failed: %v", err)
	}

	if _, err := wizard.Commit(context.Background()); !errors.Is(err, ErrWizardValidation) {
		t.Fatalf("expected empty goals rejection, got %v", err)
	}

	wizard.SetGoals(Goals{Fitness: "run-5k"})
	account, err := wizard.Commit(context.Background())
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if !account.ProfileCompleted {
		t.Fatal("expected completed profile")
	}
	if account.DisplayName != "Alice Harper" {
		t.Fatalf("expected updated display name, got %q", account.DisplayName)
	}
	if account.PhoneNumber != "+15551230001" {
		t.Fatalf("expected profile phone on the account, got %q", account.PhoneNumber)
	}

	stored, err := store.Get(context.Background(), "id-alice@example.com")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !stored.ProfileCompleted {
		t.Fatal("completed flag was not persisted")
	}

	// The wizard is spent after a successful commit.
	if _, err := wizard.Commit(context.Background()); !errors.Is(err, ErrWizardCommitted) {
		t.Fatalf("expected ErrWizardCommitted, got %v", err)
	}
}

func TestWizardNextOnLastStepAwaitsCommit(t *testing.T) {
	engine, store, cleanup := newWizardTestEngine(t)
	defer cleanup()

	wizard, err := engine.NewWizard(context.Background(), "id-alice@example.com")
	if err != nil {
		t.Fatalf("NewWizard failed: %v", err)
	}
	fillWizard(wizard)
	for wizard.Step() != StepGoals {
		if err := wizard.Next(); err != nil {
			t.Fatalf("Next from %v failed: %v", wizard.Step(), err)
		}
	}

	// Next cannot finish the wizard: valid answers on the last step still
	// need an explicit Commit, and a step-driving caller must hear that.
	if err := wizard.Next(); !errors.Is(err, ErrWizardAwaitingCommit) {
		t.Fatalf("expected ErrWizardAwaitingCommit, got %v", err)
	}
	if wizard.Step() != StepGoals {
		t.Fatalf("expected the wizard to stay on goals, got %v", wizard.Step())
	}

	// Invalid answers still surface validation first.
	wizard.SetGoals(Goals{})
	if err := wizard.Next(); !errors.Is(err, ErrWizardValidation) {
		t.Fatalf("expected ErrWizardValidation, got %v", err)
	}

	wizard.SetGoals(Goals{Fitness: "run-5k"})
	if _, err := wizard.Commit(context.Background()); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	stored, err := store.Get(context.Background(), "id-alice@example.com")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !stored.ProfileCompleted {
		t.Fatal("completed flag was not persisted")
	}
}

func TestNewWizardRejectsCompletedProfile(t *testing.T) {
	engine, _, cleanup := newWizardTestEngine(t)
	defer cleanup()

	wizard, err := engine.NewWizard(context.Background(), "id-alice@example.com")
	if err != nil {
		t.Fatalf("NewWizard failed: %v", err)
	}
	fillWizard(wizard)
	if _, err := wizard.Commit(context.Background()); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	if _, err := engine.NewWizard(context.Background(), "id-alice@example.com"); !errors.Is(err, ErrProfileAlreadyCompleted) {
		t.Fatalf("expected ErrProfileAlreadyCompleted, got %v", err)
	}
}

func TestWizardCommitUploadsPhoto(t *testing.T) {
	engine, _, cleanup := newWizardTestEngine(t)
	defer cleanup()

	uploader := &mockUploader{url: "https://cdn.example.com/p.jpg"}
	engine.uploader = uploader

	wizard, err := engine.NewWizard(context.Background(), "id-alice@example.com")
	if err != nil {
		t.Fatalf("NewWizard failed: %v", err)
	}
	fillWizard(wizard)
	wizard.SetPhoto([]byte{0xff, 0xd8})

	account, err := wizard.Commit(context.Background())
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if uploader.calls != 1 {
		t.Fatalf("expected one upload, got %d", uploader.calls)
	}
	if account.Profile.PhotoURL != uploader.url {
		t.Fatalf("expected photo url on the profile, got %q", account.Profile.PhotoURL)
	}
	if account.PhotoURL != uploader.url {
		t.Fatalf("expected photo url on the account, got %q", account.PhotoURL)
	}
}

func TestWizardCommitToleratesUploadFailure(t *testing.T) {
	engine, _, cleanup := newWizardTestEngine(t)
	defer cleanup()

	engine.uploader = &mockUploader{uploadErr: errors.New("bucket gone")}

	wizard, err := engine.NewWizard(context.Background(), "id-alice@example.com")
	if err != nil {
		t.Fatalf("NewWizard failed: %v", err)
	}
	fillWizard(wizard)
	wizard.SetPhoto([]byte{0xff, 0xd8})

	account, err := wizard.Commit(context.Background())
	if err != nil {
		t.Fatalf("Commit must tolerate a failed upload: %v", err)
	}
	if account.Profile.PhotoURL != "" {
		t.Fatal("expected no photo url after a failed upload")
	}
	if !account.ProfileCompleted {
		t.Fatal("expected completed profile despite the failed upload")
	}
}

func TestWizardCommitLosesConditionalWrite(t *testing.T) {
	engine, store, cleanup := newWizardTestEngine(t)
	defer cleanup()

	first, err := engine.NewWizard(context.Background(), "id-alice@example.com")
	if err != nil {
		t.Fatalf("NewWizard failed: %v", err)
	}
	second, err := engine.NewWizard(context.Background(), "id-alice@example.com")
	if err != nil {
		t.Fatalf("NewWizard failed: %v", err)
	}

	fillWizard(first)
	fillWizard(second)
	second.SetBasics("Impostor", "+15559990000")

	if _, err := first.Commit(context.Background()); err != nil {
		t.Fatalf("first Commit failed: %v", err)
	}
	if _, err := second.Commit(context.Background()); !errors.Is(err, ErrProfileAlreadyCompleted) {
		t.Fatalf("expected ErrProfileAlreadyCompleted, got %v", err)
	}

	stored, err := store.Get(context.Background(), "id-alice@example.com")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if stored.DisplayName != "Alice Harper" {
		t.Fatalf("losing commit overwrote the winner: %q", stored.DisplayName)
	}
}

func TestWizardCommitRetriesAfterStoreFailure(t *testing.T) {
	engine, store, cleanup := newWizardTestEngine(t)
	defer cleanup()

	wizard, err := engine.NewWizard(context.Background(), "id-alice@example.com")
	if err != nil {
		t.Fatalf("NewWizard failed: %v", err)
	}
	fillWizard(wizard)

	store.completeErr = errors.New("primary stepped down")
	if _, err := wizard.Commit(context.Background()); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}

	// Answers survive the failure and the retry succeeds.
	store.completeErr = nil
	account, err := wizard.Commit(context.Background())
	if err != nil {
		t.Fatalf("retry Commit failed: %v", err)
	}
	if account.Profile.BirthDate != "1994-03-21" {
		t.Fatalf("answers lost across retry: %q", account.Profile.BirthDate)
	}
}

func TestWizardCommitNotifierIsBestEffort(t *testing.T) {
	engine, _, cleanup := newWizardTestEngine(t)
	defer cleanup()

	notifier := &mockNotifier{err: errors.New("resend down")}
	engine.notifier = notifier
	engine.config.Wizard.NotifyOnComplete = true

	wizard, err := engine.NewWizard(context.Background(), "id-alice@example.com")
	if err != nil {
		t.Fatalf("NewWizard failed: %v", err)
	}
	fillWizard(wizard)

	if _, err := wizard.Commit(context.Background()); err != nil {
		t.Fatalf("Commit must tolerate a failed notification: %v", err)
	}
	if notifier.calls != 1 {
		t.Fatalf("expected one notification attempt, got %d", notifier.calls)
	}
}
