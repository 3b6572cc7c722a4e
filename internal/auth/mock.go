package auth

import (
	"net/http"
	"time"
)

// MockAuth is a development-only provider that signs every visitor in as a
// fixed admin user without talking to an identity provider.
type MockAuth struct {
	sessions *sessionStore
}

// NewMockAuth creates a mock authentication handler for development
func NewMockAuth() *MockAuth {
	return &MockAuth{sessions: newSessionStore()}
}

// LoginHandler creates a session immediately, no credentials required.
func (m *MockAuth) LoginHandler(w http.ResponseWriter, r *http.Request) {
	sess := &Session{
		ID: randomToken(),
		User: &User{
			ID:       "dev-user-123",
			Email:    "dev@lolpick.local",
			Name:     "Dev User",
			Username: "devuser",
			Groups:   []string{"users", "admins"},
		},
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(24 * time.Hour),
	}
	m.sessions.put(sess)

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  sess.ExpiresAt,
	})

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// CallbackHandler is a no-op for the mock provider.
func (m *MockAuth) CallbackHandler(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// LogoutHandler drops the session.
func (m *MockAuth) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookie); err == nil {
		m.sessions.drop(cookie.Value)
	}
	clearSessionCookie(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Middleware protects routes requiring authentication
func (m *MockAuth) Middleware(next http.HandlerFunc) http.HandlerFunc {
	return m.sessions.middleware(next)
}
