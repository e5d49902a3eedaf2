package onboarding

import "sync/atomic"

// MetricID identifies one in-process counter.
type MetricID uint16

const (
	// MetricRegisterSuccess counts successful password registrations.
	MetricRegisterSuccess MetricID = iota
	// MetricRegisterFailure counts failed password registrations.
	MetricRegisterFailure
	// MetricSignInSuccess counts successful sign-ins across all methods.
	MetricSignInSuccess
	// MetricSignInFailure counts failed sign-ins across all methods.
	MetricSignInFailure
	// MetricAccountCreated counts account documents created by the engine.
	MetricAccountCreated
	// MetricAccountCreateSkipped counts sign-ins that observed an existing document.
	MetricAccountCreateSkipped
	// MetricVerificationResend counts verification emails sent on demand.
	MetricVerificationResend
	// MetricVerificationResendBlocked counts resends rejected by the cooldown.
	MetricVerificationResendBlocked
	// MetricVerificationConfirmed counts recheck calls that observed a verified identity.
	MetricVerificationConfirmed
	// MetricOTPSent counts OTP challenges issued.
	MetricOTPSent
	// MetricOTPVerifySuccess counts successful OTP confirmations.
	MetricOTPVerifySuccess
	// MetricOTPVerifyFailure counts rejected OTP confirmations.
	MetricOTPVerifyFailure
	// MetricOTPHandleReplay counts confirmation attempts on a consumed handle.
	MetricOTPHandleReplay
	// MetricResetRequest counts password reset emails requested.
	MetricResetRequest
	// MetricResetResendBlocked counts reset resends rejected by the cooldown.
	MetricResetResendBlocked
	// MetricPasswordChangeSuccess counts accepted password changes.
	MetricPasswordChangeSuccess
	// MetricPasswordChangeReauth counts password changes blocked pending reauthentication.
	MetricPasswordChangeReauth
	// MetricWizardCommitSuccess counts completed onboarding wizards.
	MetricWizardCommitSuccess
	// MetricWizardCommitFailure counts failed final commits.
	MetricWizardCommitFailure
	// MetricSessionTransition counts applied session state transitions.
	MetricSessionTransition
	// MetricSessionStaleDiscarded counts account fetches discarded by the sequence check.
	MetricSessionStaleDiscarded
	// MetricSessionDegraded counts identity-only sessions served after a store failure.
	MetricSessionDegraded

	metricIDCount
)

// Metrics holds atomic counters for every lifecycle transition. A nil
// or disabled Metrics value turns every operation into a no-op.
type Metrics struct {
	enabled  bool
	counters [metricIDCount]atomic.Uint64
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

// NewMetrics creates a Metrics instance. When cfg.Enabled is false all
// operations are no-ops.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{enabled: cfg.Enabled}
}

// Inc increments a single counter.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	m.counters[id].Add(1)
}

// Get reads a single counter.
func (m *Metrics) Get(id MetricID) uint64 {
	if m == nil || !m.enabled || id >= metricIDCount {
		return 0
	}
	return m.counters[id].Load()
}

// Snapshot deep-copies all counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		Counters: make(map[MetricID]uint64, metricIDCount),
	}
	if m == nil || !m.enabled {
		return snap
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		snap.Counters[id] = m.counters[id].Load()
	}
	return snap
}
