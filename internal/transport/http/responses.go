package http

import (
	"time"

	"fieldgate/internal/location"
	"fieldgate/internal/profile"
	"fieldgate/internal/verification"
)

// SessionResponse is the session state payload shared by every step endpoint.
type SessionResponse struct {
	SessionID      string  `json:"session_id"`
	Status         string  `json:"status"`
	Step           string  `json:"step"`
	Progress       float64 `json:"progress"`
	Role           string  `json:"role,omitempty"`
	IdentitySource string  `json:"identity_source"`

	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`

	Consent   ConsentResponse   `json:"consent"`
	Location  LocationResponse  `json:"location"`
	Biometric BiometricResponse `json:"biometric"`

	// SSODecoded is present only on the SSO endpoint's response; false tells
	// the client to fall back to manual entry.
	SSODecoded *bool `json:"sso_decoded,omitempty"`

	ExpiresAt time.Time `json:"expires_at"`
}

type ConsentResponse struct {
	ScrolledToEnd bool `json:"scrolled_to_end"`
	Agreed        bool `json:"agreed"`
}

type LocationResponse struct {
	Status string       `json:"status"`
	Fix    *FixResponse `json:"fix,omitempty"`
}

type FixResponse struct {
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	Accuracy       float64 `json:"accuracy"`
	Source         string  `json:"source"`
	SignalStrength int     `json:"signal_strength"`
}

type BiometricResponse struct {
	Captured bool   `json:"captured"`
	Method   string `json:"method,omitempty"`
	HasPhoto bool   `json:"has_photo"`
}

// CancelledResponse is returned when backing out of the first step destroys
// the session.
type CancelledResponse struct {
	Cancelled bool `json:"cancelled"`
}

// FromSession converts a domain session to its HTTP representation. The face
// photo itself never travels back out; the response only reports that one is
// held.
func FromSession(session verification.Session) *SessionResponse {
	resp := &SessionResponse{
		SessionID:      session.ID.String(),
		Status:         string(session.Status),
		Step:           string(session.Step),
		Progress:       session.Progress(),
		Role:           string(session.Role),
		IdentitySource: string(session.IdentitySource),
		Name:           session.Name,
		Email:          session.Email,
		Phone:          session.Phone,
		Consent: ConsentResponse{
			ScrolledToEnd: session.Consent.ScrolledToEnd,
			Agreed:        session.Consent.Agreed,
		},
		Location: LocationResponse{
			Status: string(session.Location.Status),
		},
		Biometric: BiometricResponse{
			Captured: session.Biometric.Captured,
			Method:   string(session.Biometric.Method),
			HasPhoto: len(session.Biometric.Photo) > 0,
		},
		ExpiresAt: session.ExpiresAt,
	}
	if fix := session.Location.Fix; fix != nil {
		resp.Location.Fix = &FixResponse{
			Latitude:       fix.Latitude,
			Longitude:      fix.Longitude,
			Accuracy:       fix.Accuracy,
			Source:         string(fix.Source),
			SignalStrength: location.SignalStrength(fix.Accuracy),
		}
	}
	return resp
}

// ProfileResponse is the completion payload handed back to the host page.
type ProfileResponse struct {
	Name      string   `json:"name"`
	Photo     string   `json:"photo"`
	Telepon   string   `json:"telepon"`
	Email     string   `json:"email"`
	Jabatan   string   `json:"jabatan"`
	FacePhoto []byte   `json:"facePhoto,omitempty"`
	GPSLat    *float64 `json:"gpsLat,omitempty"`
	GPSLon    *float64 `json:"gpsLon,omitempty"`
	GPSAcc    *float64 `json:"gpsAcc,omitempty"`
}

// FromProfile converts the delivered profile to its HTTP representation.
func FromProfile(p profile.Profile) *ProfileResponse {
	return &ProfileResponse{
		Name:      p.Name,
		Photo:     p.Photo,
		Telepon:   p.Telepon,
		Email:     p.Email,
		Jabatan:   p.Jabatan,
		FacePhoto: p.FacePhoto,
		GPSLat:    p.GPSLat,
		GPSLon:    p.GPSLon,
		GPSAcc:    p.GPSAcc,
	}
}
