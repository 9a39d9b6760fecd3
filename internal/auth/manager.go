package auth

import (
	"sync"
	"time"
)

// Manager holds the in-memory token pair and answers authentication state
// questions. It is safe for concurrent use; the SSO client swaps tokens in
// under the same lock that request paths read them with.
type Manager struct {
	mu  sync.RWMutex
	t1  *OAuth1Token
	t2  *OAuth2Token
	now func() time.Time
}

func NewManager() *Manager {
	return &Manager{now: time.Now}
}

// SetTokens replaces the current token pair.
func (m *Manager) SetTokens(t1 *OAuth1Token, t2 *OAuth2Token) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.t1 = t1
	m.t2 = t2
}

// Tokens returns the current pair. Either may be nil.
func (m *Manager) Tokens() (*OAuth1Token, *OAuth2Token) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.t1, m.t2
}

// IsAuthenticated reports whether both tokens are present and the OAuth2
// access token has not expired.
func (m *Manager) IsAuthenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.t1.Valid() && m.t2.Valid() && !m.t2.ExpiredAt(m.now())
}

// NeedsRefresh reports whether the access token is expired but can still be
// re-exchanged without interactive login.
func (m *Manager) NeedsRefresh() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.t1.Valid() || !m.t2.Valid() {
		return false
	}
	return m.t2.ExpiredAt(m.now()) && !m.t2.RefreshExpiredAt(m.now())
}

// AuthorizationValue returns the bearer header value for the current access
// token, or an AuthError when no usable token is held.
func (m *Manager) AuthorizationValue() (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.t2.Valid() || m.t2.ExpiredAt(m.now()) {
		return "", &AuthError{Msg: "no valid access token, login required"}
	}
	return m.t2.AuthorizationValue(), nil
}
