package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	id "fieldgate/pkg/domain"
	audit "fieldgate/pkg/platform/audit"
)

// Store implements audit.Store using a transactional outbox table. Events are
// written to the outbox and drained to the broker by the publisher worker, so
// an audit write commits or fails together with nothing else in flight.
type Store struct {
	db *sql.DB
}

// Open connects via database/sql with the pq driver and returns a store.
func Open(url string) (*Store, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit db ping failed: %w", err)
	}
	return &Store{db: db}, nil
}

// New wraps an existing handle; the caller owns its lifecycle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// outboxPayload is the JSON structure stored in the outbox row and published
// downstream. Field names match audit.Event for deserialization by consumers.
type outboxPayload struct {
	ID        string `json:"ID"`
	Category  string `json:"Category"`
	Timestamp string `json:"Timestamp"`
	SessionID string `json:"SessionID,omitempty"`
	Action    string `json:"Action"`
	Step      string `json:"Step,omitempty"`
	Role      string `json:"Role,omitempty"`
	Reason    string `json:"Reason,omitempty"`
	RequestID string `json:"RequestID,omitempty"`
}

func (s *Store) Append(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	payload, err := json.Marshal(outboxPayload{
		ID:        uuid.NewString(),
		Category:  string(event.Category),
		Timestamp: event.Timestamp.Format(time.RFC3339Nano),
		SessionID: event.SessionID.String(),
		Action:    event.Action,
		Step:      event.Step,
		Role:      event.Role,
		Reason:    event.Reason,
		RequestID: event.RequestID,
	})
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO audit_outbox (session_id, category, action, payload, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		event.SessionID.String(), string(event.Category), event.Action, payload, event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func (s *Store) ListBySession(ctx context.Context, sessionID id.SessionID) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM audit_outbox WHERE session_id = $1 ORDER BY created_at ASC`,
		sessionID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var out []audit.Event
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan audit row: %w", err)
		}
		var p outboxPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("unmarshal audit payload: %w", err)
		}
		ts, _ := time.Parse(time.RFC3339Nano, p.Timestamp)
		sid, _ := id.ParseSessionID(p.SessionID)
		out = append(out, audit.Event{
			Category:  audit.EventCategory(p.Category),
			Timestamp: ts,
			SessionID: sid,
			Action:    p.Action,
			Step:      p.Step,
			Role:      p.Role,
			Reason:    p.Reason,
			RequestID: p.RequestID,
		})
	}
	return out, rows.Err()
}

// Close releases the underlying handle when the store owns it.
func (s *Store) Close() error {
	return s.db.Close()
}

// Schema returns the DDL for the outbox table. Applied by migrations in
// deployment; integration tests execute it directly.
func Schema() string {
	return `
CREATE TABLE IF NOT EXISTS audit_outbox (
	id BIGSERIAL PRIMARY KEY,
	session_id TEXT NOT NULL,
	category TEXT NOT NULL,
	action TEXT NOT NULL,
	payload JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	published_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_audit_outbox_session ON audit_outbox (session_id);
CREATE INDEX IF NOT EXISTS idx_audit_outbox_unpublished ON audit_outbox (published_at) WHERE published_at IS NULL;
`
}
