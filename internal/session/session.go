// Package session keeps per-browser session records on the server and the
// single lock that allows one authenticated session at a time.
package session

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("session not found")
	ErrLocked   = errors.New("another session is active")
	ErrExpired  = errors.New("session expired")
)

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// State is a copy of a session record. Handlers never see the live record.
type State struct {
	ID            string
	Authenticated bool
	Role          Role
	LastActive    time.Time
	CurrentUser   string
	TimedOut      bool
}

type Manager struct {
	mu       sync.Mutex
	sessions map[string]*State
	locked   atomic.Bool
	holder   string
	timeout  time.Duration
}

func NewManager(timeout time.Duration) *Manager {
	return &Manager{
		sessions: make(map[string]*State),
		timeout:  timeout,
	}
}

func (m *Manager) Timeout() time.Duration {
	return m.timeout
}

// Start registers a fresh anonymous session.
func (m *Manager) Start(now time.Time) State {
	state := &State{ID: uuid.NewString(), LastActive: now}
	m.mu.Lock()
	m.sessions[state.ID] = state
	m.mu.Unlock()
	return *state
}

func (m *Manager) Lookup(id string) (State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.sessions[id]
	if !ok {
		return State{}, false
	}
	return *state, true
}

// Locked reports whether some session currently holds the global lock.
func (m *Manager) Locked() bool {
	return m.locked.Load()
}

// Authenticate marks the session as logged in and takes the global lock.
// It fails with ErrLocked when the lock is already held, even by a login
// that raced this one.
func (m *Manager) Authenticate(id, user string, role Role, now time.Time) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[id]
	if !ok {
		return State{}, ErrNotFound
	}
	if !m.locked.CompareAndSwap(false, true) {
		return *state, ErrLocked
	}
	m.holder = id
	state.Authenticated = true
	state.Role = role
	state.CurrentUser = user
	state.LastActive = now
	state.TimedOut = false
	return *state, nil
}

// End discards the session entirely and releases the lock if it held it.
func (m *Manager) End(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	m.releaseLocked(id)
}

// clearLocked resets a record to its anonymous state. Caller holds m.mu.
func (m *Manager) clearLocked(state *State, timedOut bool) {
	*state = State{ID: state.ID, LastActive: state.LastActive, TimedOut: timedOut}
	m.releaseLocked(state.ID)
}

func (m *Manager) releaseLocked(id string) {
	if m.holder != id || id == "" {
		return
	}
	m.holder = ""
	m.locked.Store(false)
}
