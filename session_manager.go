package onboarding

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// SessionState is the coarse lifecycle state of the current session.
type SessionState string

const (
	// SessionLoading means an identity emission arrived and its account
	// document is still being fetched.
	SessionLoading SessionState = "loading"
	// SessionAnonymous means no principal is signed in.
	SessionAnonymous SessionState = "anonymous"
	// SessionAuthenticated means an identity is signed in. The account
	// document may be absent when Degraded is set.
	SessionAuthenticated SessionState = "authenticated"
)

// Session is an immutable snapshot of the current principal.
type Session struct {
	State    SessionState
	Identity *Identity
	Account  *Account

	// Degraded marks an authenticated session whose account fetch failed.
	// Identity-derived fields are trustworthy; account-derived ones are
	// unavailable until a Refresh succeeds.
	Degraded bool
}

// SessionManager consumes the provider's identity change stream and
// maintains the session snapshot. Every emission gets a sequence
// number; an account fetch that finishes after a newer emission arrived
// is discarded, so the snapshot always reflects the latest emission.
type SessionManager struct {
	engine  *Engine
	watcher IdentityWatcher

	seq atomic.Uint64

	mu      sync.RWMutex
	session Session

	updates chan Session
	cancel  context.CancelFunc
	done    chan struct{}
}

// StartSessionManager subscribes to the watcher and begins maintaining
// the session snapshot. Close the manager to unsubscribe.
func (e *Engine) StartSessionManager(ctx context.Context, watcher IdentityWatcher) (*SessionManager, error) {
	if e == nil || e.accounts == nil {
		return nil, ErrEngineNotReady
	}
	if watcher == nil {
		return nil, errors.New("identity watcher required")
	}

	watchCtx, cancel := context.WithCancel(ctx)
	emissions, err := watcher.Watch(watchCtx)
	if err != nil {
		cancel()
		return nil, mapProviderError(err)
	}

	m := &SessionManager{
		engine:  e,
		watcher: watcher,
		session: Session{State: SessionLoading},
		updates: make(chan Session, 1),
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	go m.run(watchCtx, emissions)

	return m, nil
}

// Current returns the latest session snapshot.
func (m *SessionManager) Current() Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session
}

// Updates returns a channel carrying session snapshots. The channel
// holds only the newest snapshot; slow consumers see the latest state,
// not every intermediate one.
func (m *SessionManager) Updates() <-chan Session {
	return m.updates
}

// Refresh re-fetches the account document for the current identity,
// clearing a degraded snapshot once the store recovers. It is a no-op
// for anonymous sessions.
func (m *SessionManager) Refresh(ctx context.Context) error {
	m.mu.RLock()
	identity := m.session.Identity
	m.mu.RUnlock()

	if identity == nil {
		return nil
	}
	return m.applyIdentity(ctx, m.seq.Add(1), identity)
}

// Close unsubscribes from the watcher and waits for the consumer
// goroutine to exit.
func (m *SessionManager) Close() {
	m.cancel()
	<-m.done
}

func (m *SessionManager) run(ctx context.Context, emissions <-chan *Identity) {
	defer close(m.done)

	for {
		select {
		case <-ctx.Done():
			return
		case identity, ok := <-emissions:
			if !ok {
				return
			}
			seq := m.seq.Add(1)
			if identity == nil {
				m.apply(ctx, seq, Session{State: SessionAnonymous})
				continue
			}
			m.apply(ctx, seq, Session{State: SessionLoading, Identity: identity})
			_ = m.applyIdentity(ctx, seq, identity)
		}
	}
}

// applyIdentity resolves an identity emission into an authenticated
// snapshot. The manager is a pure reader: it only fetches the account
// document, never creates one — reconciliation belongs to the sign-in
// path. An unreadable or missing document degrades the session rather
// than dropping the signed-in principal.
func (m *SessionManager) applyIdentity(ctx context.Context, seq uint64, identity *Identity) error {
	e := m.engine

	fetchCtx, cancel := context.WithTimeout(ctx, e.config.Session.FetchTimeout)
	account, err := e.accounts.Get(fetchCtx, identity.ID)
	cancel()

	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		e.metricInc(MetricSessionDegraded)
		e.emitAudit(ctx, auditEventSessionDegraded, false, identity.ID, mapStoreError(err), nil)
		m.apply(ctx, seq, Session{
			State:    SessionAuthenticated,
			Identity: identity,
			Degraded: true,
		})
		if errors.Is(err, ErrAccountNotFound) {
			// Not an outage: the document simply does not exist yet. The
			// next sign-in creates it and a Refresh converges.
			return nil
		}
		return mapStoreError(err)
	}

	m.apply(ctx, seq, Session{
		State:    SessionAuthenticated,
		Identity: identity,
		Account:  account,
	})
	return nil
}

// apply installs a snapshot unless a newer emission superseded it while
// its account fetch was in flight.
func (m *SessionManager) apply(ctx context.Context, seq uint64, next Session) {
	if seq != m.seq.Load() {
		m.engine.metricInc(MetricSessionStaleDiscarded)
		m.engine.emitAudit(ctx, auditEventSessionStaleDiscarded, true, "", nil, func() map[string]string {
			return map[string]string{
				"state": string(next.State),
			}
		})
		return
	}

	m.mu.Lock()
	m.session = next
	m.mu.Unlock()

	m.engine.metricInc(MetricSessionTransition)
	m.engine.emitAudit(ctx, auditEventSessionTransition, true, accountIDOf(next), nil, func() map[string]string {
		return map[string]string{
			"state": string(next.State),
		}
	})

	// Keep only the newest snapshot in the channel.
	for {
		select {
		case m.updates <- next:
			return
		default:
			select {
			case <-m.updates:
			default:
			}
		}
	}
}

func accountIDOf(s Session) string {
	if s.Identity == nil {
		return ""
	}
	return s.Identity.ID
}
