// Package memory provides the default in-process session store.
package memory

import (
	"context"
	"sync"
	"time"

	"fieldgate/internal/verification"
	id "fieldgate/pkg/domain"
	"fieldgate/pkg/platform/sentinel"
)

type Store struct {
	mu       sync.RWMutex
	sessions map[id.SessionID]verification.Session
}

func NewStore() *Store {
	return &Store{sessions: make(map[id.SessionID]verification.Session)}
}

func (s *Store) Put(_ context.Context, session verification.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session
	return nil
}

func (s *Store) Get(_ context.Context, sessionID id.SessionID) (verification.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return verification.Session{}, sentinel.ErrNotFound
	}
	return session, nil
}

func (s *Store) Delete(_ context.Context, sessionID id.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

func (s *Store) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for sessionID, session := range s.sessions {
		if !session.ExpiresAt.IsZero() && session.ExpiresAt.Before(now) {
			delete(s.sessions, sessionID)
			removed++
		}
	}
	return removed, nil
}

// Len reports the number of held sessions. Test helper.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
