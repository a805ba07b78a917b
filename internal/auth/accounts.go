// Package auth checks logins against the fixed account table and signs the
// session cookie.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.io/infrasutra/docreg/internal/session"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrSessionLocked      = errors.New("another user is already signed in")
)

type Account struct {
	Password string
	Role     session.Role
}

// DefaultAccounts is the built-in account table. Passwords are plaintext.
func DefaultAccounts() map[string]Account {
	return map[string]Account{
		"administrador": {Password: "admin123", Role: session.RoleAdmin},
		"usuario_01":    {Password: "user123", Role: session.RoleUser},
	}
}

type Authenticator struct {
	accounts map[string]Account
	sessions *session.Manager
	logger   *slog.Logger
}

func NewAuthenticator(accounts map[string]Account, sessions *session.Manager, logger *slog.Logger) *Authenticator {
	return &Authenticator{accounts: accounts, sessions: sessions, logger: logger}
}

// Locked reports whether the login form must be withheld.
func (a *Authenticator) Locked() bool {
	return a.sessions.Locked()
}

// Login authenticates the session identified by sessionID. On failure the
// session is left untouched.
func (a *Authenticator) Login(sessionID, username, password string, now time.Time) (session.State, error) {
	if a.sessions.Locked() {
		return session.State{}, ErrSessionLocked
	}
	account, ok := a.accounts[username]
	if !ok || subtle.ConstantTimeCompare([]byte(account.Password), []byte(password)) != 1 {
		a.logger.Warn("login rejected", "user", username)
		return session.State{}, ErrInvalidCredentials
	}

	state, err := a.sessions.Authenticate(sessionID, username, account.Role, now)
	if err != nil {
		if errors.Is(err, session.ErrLocked) {
			return state, ErrSessionLocked
		}
		return state, fmt.Errorf("authenticate session: %w", err)
	}
	a.logger.Info("login", "user", username, "role", string(account.Role))
	return state, nil
}
