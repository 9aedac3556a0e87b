// Package session tracks who is signed in to the storefront backend.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hay-kot/storefront/internal/core/kv"
	"github.com/rs/zerolog"
)

// RedirectCheckout is the redirect target recorded when checkout needs a login.
const RedirectCheckout = "checkout"

// User is the signed-in account.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// Session is a bearer token together with the user it belongs to.
type Session struct {
	Token string
	User  User
}

// ExpiresAt reads the exp claim of the token. The signature is not verified;
// only the backend can do that.
func (s Session) ExpiresAt() (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(s.Token, claims); err != nil {
		return time.Time{}, false
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// Expired reports whether the token carries an expiry that has passed.
func (s Session) Expired(now time.Time) bool {
	exp, ok := s.ExpiresAt()
	return ok && !now.Before(exp)
}

// Manager persists the session through the shared key/value store.
type Manager struct {
	kv  *kv.Adapter
	log zerolog.Logger
}

// NewManager creates a Manager.
func NewManager(adapter *kv.Adapter, log zerolog.Logger) *Manager {
	return &Manager{kv: adapter, log: log}
}

// Token returns the bearer token, if any.
func (m *Manager) Token(ctx context.Context) (string, bool) {
	tok, ok := m.kv.ReadString(ctx, kv.KeyAuthToken)
	if !ok || tok == "" {
		return "", false
	}
	return tok, true
}

// Current returns the signed-in session. A token without a stored user still
// counts as signed in.
func (m *Manager) Current(ctx context.Context) (Session, bool) {
	tok, ok := m.Token(ctx)
	if !ok {
		return Session{}, false
	}

	s := Session{Token: tok}
	_ = m.kv.ReadValue(ctx, kv.KeyCurrentUser, &s.User)
	return s, true
}

// Save stores the token and user.
func (m *Manager) Save(ctx context.Context, s Session) error {
	if s.Token == "" {
		return fmt.Errorf("save session: empty token")
	}
	if err := m.kv.WriteString(ctx, kv.KeyAuthToken, s.Token); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	if err := m.kv.WriteValue(ctx, kv.KeyCurrentUser, s.User); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	m.log.Debug().Str("username", s.User.Username).Msg("session saved")
	return nil
}

// Logout forgets the token and user. The cart is left alone.
func (m *Manager) Logout(ctx context.Context) error {
	if err := m.kv.Remove(ctx, kv.KeyAuthToken); err != nil {
		return err
	}
	return m.kv.Remove(ctx, kv.KeyCurrentUser)
}

// SetRedirect records where to continue after the next login.
func (m *Manager) SetRedirect(ctx context.Context, target string) error {
	return m.kv.WriteString(ctx, kv.KeyRedirectLogin, target)
}

// ConsumeRedirect returns and clears the recorded redirect.
func (m *Manager) ConsumeRedirect(ctx context.Context) (string, bool) {
	target, ok := m.kv.ReadString(ctx, kv.KeyRedirectLogin)
	if !ok {
		return "", false
	}
	if err := m.kv.Remove(ctx, kv.KeyRedirectLogin); err != nil {
		m.log.Warn().Err(err).Msg("failed to clear login redirect")
	}
	return target, target != ""
}
