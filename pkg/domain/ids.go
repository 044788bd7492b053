// Package domain holds typed identifiers and shared domain values. Construct
// IDs via the Parse helpers at trust boundaries; direct casting bypasses
// validation.
package domain

import (
	"github.com/google/uuid"

	dErrors "fieldgate/pkg/domain-errors"
)

// SessionID identifies one verification attempt. Sessions are ephemeral; the
// ID is minted at entry and dies with the session.
type SessionID uuid.UUID

// NewSessionID mints a random session identifier.
func NewSessionID() SessionID {
	return SessionID(uuid.New())
}

// ParseSessionID constructs a SessionID from external input.
func ParseSessionID(s string) (SessionID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return SessionID{}, dErrors.New(dErrors.CodeInvalidInput, "invalid session id")
	}
	return SessionID(u), nil
}

// IsNil reports whether the ID is the zero value.
func (id SessionID) IsNil() bool {
	return uuid.UUID(id) == uuid.Nil
}

// String returns the canonical UUID form.
func (id SessionID) String() string {
	return uuid.UUID(id).String()
}

// MarshalText encodes the ID in canonical UUID form, so JSON payloads carry
// the readable string rather than a byte array.
func (id SessionID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText parses the canonical UUID form.
func (id *SessionID) UnmarshalText(text []byte) error {
	parsed, err := ParseSessionID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
