package client

import (
	"context"
	"sync"

	"foliocms.org/internal/auth"
)

// Manager restores identity at startup and answers route-guard questions.
// Bootstrap runs at most once regardless of how many callers race it;
// every caller observes the same settled outcome.
type Manager struct {
	client *Client

	once sync.Once
	mu   sync.RWMutex

	settled bool
	user    *auth.View
}

func NewManager(c *Client) *Manager {
	return &Manager{client: c}
}

// Bootstrap resolves the startup identity. With no saved session it settles
// unauthenticated without touching the network. With a saved token it asks
// the server who the token belongs to; any failure discards the session,
// because a token the server no longer honors is not worth keeping.
func (m *Manager) Bootstrap(ctx context.Context) {
	m.once.Do(func() {
		defer func() {
			m.mu.Lock()
			m.settled = true
			m.mu.Unlock()
		}()

		if _, err := m.client.sessions.Load(); err != nil {
			return
		}
		view, err := m.client.Me(ctx)
		if err != nil {
			_ = m.client.sessions.Clear()
			return
		}
		m.mu.Lock()
		m.user = view
		m.mu.Unlock()
	})
}

// Settled reports whether Bootstrap has completed.
func (m *Manager) Settled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settled
}

// User returns the bootstrapped identity, or nil when unauthenticated.
func (m *Manager) User() *auth.View {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.user == nil {
		return nil
	}
	clone := *m.user
	return &clone
}

// SetUser updates the in-memory identity after a successful interactive
// login or logout performed once the app is already running.
func (m *Manager) SetUser(view *auth.View) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if view == nil {
		m.user = nil
		return
	}
	clone := *view
	m.user = &clone
}

// Decision is a route guard verdict.
type Decision int

const (
	// DecisionLoading means Bootstrap has not settled; show a neutral
	// loading state, never a redirect.
	DecisionLoading Decision = iota
	// DecisionAllow admits the visitor to the requested route.
	DecisionAllow
	// DecisionLogin redirects to the login screen; Target carries the
	// route to return to after a successful login.
	DecisionLogin
	// DecisionDenied means the visitor is authenticated but lacks the
	// required role.
	DecisionDenied
)

func (d Decision) String() string {
	switch d {
	case DecisionLoading:
		return "loading"
	case DecisionAllow:
		return "allow"
	case DecisionLogin:
		return "login"
	case DecisionDenied:
		return "denied"
	default:
		return "unknown"
	}
}

// Verdict pairs a Decision with the route to return to after login.
type Verdict struct {
	Decision Decision
	Target   string
}

// Guard decides whether the current visitor may enter a route requiring
// the given role. It never blocks: before Bootstrap settles the answer is
// DecisionLoading and the caller retries on the next state change.
func (m *Manager) Guard(required auth.Role, target string) Verdict {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.settled {
		return Verdict{Decision: DecisionLoading, Target: target}
	}
	if m.user == nil {
		return Verdict{Decision: DecisionLogin, Target: target}
	}
	if !m.user.Role.Satisfies(required) {
		return Verdict{Decision: DecisionDenied, Target: target}
	}
	return Verdict{Decision: DecisionAllow, Target: target}
}
