package session

import (
	"context"
	"log"
	"sync"
	"time"
)

// Session is what the manager tracks: any interactive flow the bot drives by
// feeding replies into Advance.
type Session interface {
	Advance(ctx context.Context, input string) (string, error)
	Done() bool
}

type entry struct {
	session    Session
	lastActive time.Time
}

// Manager keeps at most one active session per user. Sessions that sit idle
// past the timeout are dropped as abandoned; since no session writes before
// its final step, expiry needs no cleanup beyond forgetting it.
type Manager struct {
	mu       sync.Mutex
	sessions map[int64]*entry
	idle     time.Duration
	now      func() time.Time
}

func NewManager(idle time.Duration, now func() time.Time) *Manager {
	return &Manager{
		sessions: make(map[int64]*entry),
		idle:     idle,
		now:      now,
	}
}

// Put installs a session for the user, replacing any previous one.
func (m *Manager) Put(userID int64, s Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[userID] = &entry{session: s, lastActive: m.now()}
}

// Get returns the user's active session, refreshing its idle clock. An
// expired session counts as absent.
func (m *Manager) Get(userID int64) (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.sessions[userID]
	if !ok {
		return nil, false
	}
	if m.now().Sub(e.lastActive) > m.idle {
		delete(m.sessions, userID)
		return nil, false
	}
	e.lastActive = m.now()
	return e.session, true
}

func (m *Manager) Delete(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
}

// Active returns the number of tracked sessions, expired ones included until
// the next sweep.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep drops every expired session and returns how many were abandoned.
func (m *Manager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	dropped := 0
	cutoff := m.now().Add(-m.idle)
	for userID, e := range m.sessions {
		if e.lastActive.Before(cutoff) {
			if r, ok := e.session.(*Reserve); ok {
				r.Abandon()
			}
			delete(m.sessions, userID)
			dropped++
		}
	}
	return dropped
}

// Janitor sweeps periodically until the context is cancelled.
func (m *Manager) Janitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if dropped := m.Sweep(); dropped > 0 {
				log.Printf("session janitor: abandoned %d idle session(s)", dropped)
			}
		}
	}
}
