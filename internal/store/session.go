package store

import (
	"sort"
	"sync"
	"time"

	"comanda/internal/domain"
)

// SessionStore is a thread-safe registry of connected sessions.
// Registration, heartbeat touches, and the stale-session sweep all
// operate under the same lock, so the sweep never races with a connect.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
}

// NewSessionStore creates an empty SessionStore.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*domain.Session)}
}

// Register adds a session to the registry.
func (s *SessionStore) Register(sess *domain.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
}

// Remove deletes a session, returning its final state or
// ErrSessionNotFound.
func (s *SessionStore) Remove(id string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	delete(s.sessions, id)
	cp := *sess
	return &cp, nil
}

// Touch updates a session's last-activity timestamp on heartbeat.
func (s *SessionStore) Touch(id string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return domain.ErrSessionNotFound
	}
	sess.LastActivity = now
	return nil
}

// Sweep removes every session whose last activity is before the cutoff
// and returns the evicted sessions.
func (s *SessionStore) Sweep(cutoff time.Time) []*domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	var evicted []*domain.Session
	for id, sess := range s.sessions {
		if sess.LastActivity.Before(cutoff) {
			cp := *sess
			evicted = append(evicted, &cp)
			delete(s.sessions, id)
		}
	}
	return evicted
}

// List returns copies of all sessions, most recently connected first.
func (s *SessionStore) List() []*domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*domain.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		cp := *sess
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ConnectedAt.Equal(out[j].ConnectedAt) {
			return out[i].ConnectedAt.After(out[j].ConnectedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Len returns the number of connected sessions.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
