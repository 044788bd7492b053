// Package memory provides an in-memory profile sink for development and
// tests.
package memory

import (
	"context"
	"sync"

	"fieldgate/internal/profile"
	id "fieldgate/pkg/domain"
	"fieldgate/pkg/platform/sentinel"
)

type record struct {
	role    profile.Role
	profile profile.Profile
}

// Store keeps delivered profiles keyed by session.
type Store struct {
	mu      sync.RWMutex
	records map[id.SessionID]record
}

func NewStore() *Store {
	return &Store{records: make(map[id.SessionID]record)}
}

func (s *Store) Deliver(_ context.Context, sessionID id.SessionID, role profile.Role, p profile.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[sessionID] = record{role: role, profile: p}
	return nil
}

// Get returns the profile delivered for a session.
func (s *Store) Get(_ context.Context, sessionID id.SessionID) (profile.Profile, profile.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[sessionID]
	if !ok {
		return profile.Profile{}, "", sentinel.ErrNotFound
	}
	return rec.profile, rec.role, nil
}

// Len reports how many profiles have been delivered. Test helper.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
