package audit

import (
	"context"
	"time"

	id "fieldgate/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with legal/regulatory significance:
	// consent acceptance, completed verifications.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers events relevant to security monitoring:
	// passphrase failures, admin lockouts, degraded verification paths.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers events useful for debugging and operational
	// visibility: session lifecycle, step transitions.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	SessionID id.SessionID
	Action    string
	Step      string
	Role      string
	// Reason records why a degraded path was taken (bypass, permission denial)
	// or why a transition was refused.
	Reason    string
	RequestID string
}

// AuditEvent names the actions emitted by the verification flow.
type AuditEvent string

const (
	EventSessionStarted        AuditEvent = "session_started"
	EventRoleSelected          AuditEvent = "role_selected"
	EventPassphraseRefused     AuditEvent = "passphrase_refused"
	EventAdminLockedOut        AuditEvent = "admin_locked_out"
	EventConsentAccepted       AuditEvent = "consent_accepted"
	EventLocationLocked        AuditEvent = "location_locked"
	EventLocationBypassed      AuditEvent = "location_bypassed"
	EventCaptureCompleted      AuditEvent = "capture_completed"
	EventCaptureBypassed       AuditEvent = "capture_bypassed"
	EventVerificationCompleted AuditEvent = "verification_completed"
	EventSessionCancelled      AuditEvent = "session_cancelled"
	EventHandoffFailed         AuditEvent = "profile_handoff_failed"
)

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListBySession(ctx context.Context, sessionID id.SessionID) ([]Event, error)
}

// Publisher is the interface domain services emit through. Implementations
// decide delivery semantics (sync store write, async buffer, Kafka).
type Publisher interface {
	Emit(ctx context.Context, event Event) error
}
