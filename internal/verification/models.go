// Package verification implements the multi-step identity verification flow
// that gates access to the field-operations dashboard. The Service
// orchestrates a closed step machine over per-session state, owning the
// device providers (location, camera) for the steps that need them and
// handing a member profile to the hosting portal on completion.
package verification

import (
	"time"

	"fieldgate/internal/location"
	"fieldgate/internal/profile"
	id "fieldgate/pkg/domain"
)

// Step is a position in the verification flow. The set is closed: every
// session is always at exactly one of these.
type Step string

const (
	StepWelcome  Step = "welcome"
	StepIdentity Step = "identity"
	StepContact  Step = "contact"
	StepTerms    Step = "terms"
	StepLocation Step = "location"
	StepFaceScan Step = "face_scan"
	StepFinal    Step = "final"
)

// Status is the lifecycle state of a session.
type Status string

const (
	StatusActive   Status = "active"
	StatusComplete Status = "complete"
)

// IdentitySource records how the participant's identity fields were filled.
type IdentitySource string

const (
	SourceManual IdentitySource = "manual"
	SourceSSO    IdentitySource = "sso"
)

// CaptureMethod records how the face-scan step was satisfied.
type CaptureMethod string

const (
	MethodCaptured        CaptureMethod = "captured"
	MethodCaptureBypassed CaptureMethod = "capture_bypassed"
)

// LocationStatus is the location step's acquisition state.
type LocationStatus string

const (
	LocationIdle      LocationStatus = "idle"
	LocationAcquiring LocationStatus = "acquiring"
	LocationDenied    LocationStatus = "denied"
	LocationLocked    LocationStatus = "locked"
)

// ConsentState tracks progress through the terms document. ScrolledToEnd is
// sticky; Agreed can be toggled but only set while ScrolledToEnd holds.
type ConsentState struct {
	ScrolledToEnd bool `json:"scrolled_to_end"`
	Agreed        bool `json:"agreed"`
}

// LocationState tracks the location step.
type LocationState struct {
	Status    LocationStatus `json:"status"`
	Fix       *location.Fix  `json:"fix,omitempty"`
	EnteredAt time.Time      `json:"entered_at,omitempty"`
}

// Biometric tracks the face-scan step. A bypassed capture has Captured true
// with a nil Photo, so a completion without a face image is always
// attributable.
type Biometric struct {
	Captured bool          `json:"captured"`
	Method   CaptureMethod `json:"method,omitempty"`
	Photo    []byte        `json:"photo,omitempty"`
}

// Session is the full state of one verification attempt. It is a plain
// serializable snapshot so session stores can hold it as JSON.
type Session struct {
	ID     id.SessionID `json:"id"`
	Status Status       `json:"status"`
	Step   Step         `json:"step"`

	Role           profile.Role   `json:"role,omitempty"`
	IdentitySource IdentitySource `json:"identity_source"`
	AdminVerified  bool           `json:"admin_verified"`

	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	PhotoURL string `json:"photo_url,omitempty"`

	Consent   ConsentState  `json:"consent"`
	Location  LocationState `json:"location"`
	Biometric Biometric     `json:"biometric"`

	// DesktopDevice widens the location bypass affordance: desktop browsers
	// rarely have usable GPS, so they may bypass without waiting out the
	// acquisition window.
	DesktopDevice bool `json:"desktop_device"`

	// Admin passphrase throttling.
	PassphraseFailures int       `json:"passphrase_failures,omitempty"`
	FailureWindowStart time.Time `json:"failure_window_start,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Progress reports how far through the flow the session is, as a fraction
// in [0, 1]. StepWelcome is 0; a completed session is 1.
func (s Session) Progress() float64 {
	if s.Status == StatusComplete {
		return 1
	}
	return float64(stepIndex(s.Step)) / float64(len(stepOrder)-1)
}
