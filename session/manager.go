package session

import (
	"sync"
	"time"
)

// Manager tracks the responder server's in-flight sessions, keyed by
// the requester's agent id, so the server can report a Status and
// reap sessions whose peer stalled partway through a handshake.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	stopCleanup   chan struct{}
	cleanupTicker *time.Ticker
	closeOnce     sync.Once
}

// NewManager starts a Manager with a background idle sweep.
func NewManager() *Manager {
	m := &Manager{
		sessions:      make(map[string]*Session),
		stopCleanup:   make(chan struct{}),
		cleanupTicker: time.NewTicker(30 * time.Second),
	}
	go m.runCleanup()
	return m
}

// Track registers a session under its requester id, closing and
// replacing any prior session tracked for the same id.
func (m *Manager) Track(sess *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.sessions[sess.RequesterID]; ok {
		old.Close()
	}
	m.sessions[sess.RequesterID] = sess
}

// Untrack removes a session, e.g. once its THANK has been processed.
func (m *Manager) Untrack(requesterID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, requesterID)
}

// Status reports the current tracked-session count.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Status{
		TotalSessions:  len(m.sessions),
		ActiveSessions: len(m.sessions),
	}
}

// Close stops the background sweep and closes every tracked session.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		close(m.stopCleanup)
		m.cleanupTicker.Stop()
	})
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, sess := range m.sessions {
		sess.Close()
		delete(m.sessions, id)
	}
}

func (m *Manager) runCleanup() {
	for {
		select {
		case <-m.cleanupTicker.C:
			m.sweepIdle()
		case <-m.stopCleanup:
			return
		}
	}
}

func (m *Manager) sweepIdle() {
	cutoff := time.Now().Add(-idleTimeout)
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, sess := range m.sessions {
		if sess.LastUsedAt().Before(cutoff) {
			sess.Close()
			delete(m.sessions, id)
		}
	}
}
