package verification

//go:generate mockgen -source=ports.go -destination=mocks/ports_mock.go -package=mocks

import (
	"context"
	"time"

	"fieldgate/internal/camera"
	"fieldgate/internal/identity"
	"fieldgate/internal/location"
	"fieldgate/internal/profile"
	id "fieldgate/pkg/domain"
	audit "fieldgate/pkg/platform/audit"
)

// Locator acquires device position fixes for the location step.
type Locator interface {
	RequestFix(ctx context.Context) (location.Fix, error)
	RequestQuickFix(ctx context.Context) (location.Fix, error)
	BypassFix() location.Fix
}

// Camera manages the device camera for the face-scan step.
type Camera interface {
	Start(ctx context.Context, facing camera.Facing) error
	Switch(ctx context.Context) error
	CaptureFrame(ctx context.Context) ([]byte, error)
	Stop()
	ActiveTracks() int
}

// CameraFactory mints the camera for one session. Each session owns its own
// camera, so tearing one session down can never close another session's live
// stream.
type CameraFactory func() Camera

// IdentityDecoder decodes an external SSO credential into a prefill claim.
type IdentityDecoder interface {
	Decode(credential string) (identity.Claim, bool)
}

// ProfileSink receives the assembled profile on completion.
type ProfileSink = profile.Sink

// AuditPublisher records flow milestones.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

// SessionStore holds session snapshots. Implementations must treat Put as an
// upsert; the service serializes access per session, so stores do not need
// their own optimistic locking.
type SessionStore interface {
	Put(ctx context.Context, session Session) error
	Get(ctx context.Context, sessionID id.SessionID) (Session, error)
	Delete(ctx context.Context, sessionID id.SessionID) error
	// DeleteExpired removes sessions whose ExpiresAt is before now and
	// returns how many were removed. Stores with native TTL may no-op.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}
