package session

import (
	"context"
	"log/slog"
	"time"
)

// CheckActivity is run on every authenticated render. An idle period longer
// than the timeout clears the session and returns ErrExpired; any other
// call counts as activity.
func (m *Manager) CheckActivity(id string, now time.Time) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[id]
	if !ok {
		return State{}, ErrNotFound
	}
	if !state.Authenticated {
		return *state, nil
	}
	if now.Sub(state.LastActive) > m.timeout {
		m.clearLocked(state, true)
		state.LastActive = now
		return *state, ErrExpired
	}
	state.LastActive = now
	return *state, nil
}

// AckTimeout clears the timed-out marker once the warning was shown.
func (m *Manager) AckTimeout(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if state, ok := m.sessions[id]; ok {
		state.TimedOut = false
	}
}

// Sweep expires idle authenticated sessions and forgets any session idle
// for longer than retention.
func (m *Manager) Sweep(now time.Time, retention time.Duration) (expired, removed int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, state := range m.sessions {
		idle := now.Sub(state.LastActive)
		if state.Authenticated && idle > m.timeout {
			m.clearLocked(state, true)
			expired++
		}
		if retention > 0 && idle > retention {
			delete(m.sessions, id)
			m.releaseLocked(id)
			removed++
		}
	}
	return expired, removed
}

// Reap runs Sweep every interval until ctx is done.
func (m *Manager) Reap(ctx context.Context, interval, retention time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			expired, removed := m.Sweep(now, retention)
			if expired > 0 || removed > 0 {
				logger.Info("sessions reaped", "expired", expired, "removed", removed)
			}
		}
	}
}
