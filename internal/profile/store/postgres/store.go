// Package postgres persists delivered member profiles in Postgres via pgx.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fieldgate/internal/profile"
	id "fieldgate/pkg/domain"
	"fieldgate/pkg/platform/sentinel"
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Deliver upserts the profile for a session. A re-delivered handoff (retry
// after a partial failure) overwrites rather than conflicts.
func (s *Store) Deliver(ctx context.Context, sessionID id.SessionID, role profile.Role, p profile.Profile) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO verified_members (session_id, role, payload, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (session_id)
		DO UPDATE SET role = EXCLUDED.role, payload = EXCLUDED.payload`,
		sessionID.String(), string(role), payload,
	)
	if err != nil {
		return fmt.Errorf("insert verified member: %w", err)
	}
	return nil
}

// Get loads the delivered profile for a session.
func (s *Store) Get(ctx context.Context, sessionID id.SessionID) (profile.Profile, profile.Role, error) {
	var (
		roleText string
		payload  []byte
	)
	err := s.pool.QueryRow(ctx, `
		SELECT role, payload FROM verified_members WHERE session_id = $1`,
		sessionID.String(),
	).Scan(&roleText, &payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return profile.Profile{}, "", sentinel.ErrNotFound
	}
	if err != nil {
		return profile.Profile{}, "", fmt.Errorf("query verified member: %w", err)
	}

	var p profile.Profile
	if err := json.Unmarshal(payload, &p); err != nil {
		return profile.Profile{}, "", fmt.Errorf("unmarshal profile: %w", err)
	}
	return p, profile.Role(roleText), nil
}

// Schema returns the DDL this store expects.
func Schema() string {
	return `
CREATE TABLE IF NOT EXISTS verified_members (
	session_id UUID PRIMARY KEY,
	role       TEXT NOT NULL,
	payload    JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`
}
