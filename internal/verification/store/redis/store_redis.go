// Package redis provides a Redis-backed session store for multi-replica
// deployments. Sessions are stored as JSON snapshots with a native TTL, so
// expiry needs no sweeping.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"fieldgate/internal/verification"
	id "fieldgate/pkg/domain"
	"fieldgate/pkg/platform/sentinel"
)

const keyPrefix = "fieldgate:session:"

type Store struct {
	client goredis.Cmdable
	clock  func() time.Time
}

type Option func(*Store)

// WithClock overrides the time source used for TTL computation, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.clock = now
	}
}

func NewStore(client goredis.Cmdable, opts ...Option) *Store {
	s := &Store{
		client: client,
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Put(ctx context.Context, session verification.Session) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	ttl := time.Duration(0)
	if !session.ExpiresAt.IsZero() {
		ttl = session.ExpiresAt.Sub(s.clock())
		if ttl <= 0 {
			return sentinel.ErrExpired
		}
	}

	if err := s.client.Set(ctx, key(session.ID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, sessionID id.SessionID) (verification.Session, error) {
	payload, err := s.client.Get(ctx, key(sessionID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return verification.Session{}, sentinel.ErrNotFound
	}
	if err != nil {
		return verification.Session{}, fmt.Errorf("load session: %w", err)
	}

	var session verification.Session
	if err := json.Unmarshal(payload, &session); err != nil {
		return verification.Session{}, fmt.Errorf("unmarshal session: %w", err)
	}
	return session, nil
}

func (s *Store) Delete(ctx context.Context, sessionID id.SessionID) error {
	if err := s.client.Del(ctx, key(sessionID)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteExpired is a no-op: Redis evicts sessions via key TTL.
func (s *Store) DeleteExpired(context.Context, time.Time) (int, error) {
	return 0, nil
}

func key(sessionID id.SessionID) string {
	return keyPrefix + sessionID.String()
}
