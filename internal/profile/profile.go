// Package profile assembles the member profile a completed verification
// hands off to the hosting portal, and persists handed-off profiles.
package profile

import (
	"net/url"

	dErrors "fieldgate/pkg/domain-errors"
)

// Role is the access level a verified session resolves to.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleGuest Role = "guest"
)

// Position titles shown on the portal, keyed by role.
const (
	jabatanAdmin = "Internal Admin"
	jabatanGuest = "Portal Member"
)

// Profile is the payload delivered to the portal on completion. Field names
// follow the portal's existing member schema, which mixes Indonesian and
// English labels.
type Profile struct {
	Name    string `json:"name"`
	Photo   string `json:"photo"`
	Telepon string `json:"telepon"`
	Email   string `json:"email"`
	Jabatan string `json:"jabatan"`

	// FacePhoto is the JPEG capture from the face-scan step. It is absent
	// when the capture was bypassed, which keeps a bypassed verification
	// distinguishable in the portal's records.
	FacePhoto []byte `json:"facePhoto,omitempty"`

	// GPS fields are absent only if the flow never held a position, which
	// the state machine does not allow on the completion path; a bypassed
	// position carries the sentinel accuracy instead.
	GPSLat *float64 `json:"gpsLat,omitempty"`
	GPSLon *float64 `json:"gpsLon,omitempty"`
	GPSAcc *float64 `json:"gpsAcc,omitempty"`
}

// Build assembles a profile from the verified session's fields. photoURL is
// the SSO picture when present; an empty photoURL synthesizes an initials
// avatar from the name.
func Build(role Role, name, phone, email, photoURL string) (Profile, error) {
	if name == "" {
		return Profile{}, dErrors.New(dErrors.CodeInvalidInput, "name is required")
	}
	if photoURL == "" {
		photoURL = AvatarURL(name)
	}
	return Profile{
		Name:    name,
		Photo:   photoURL,
		Telepon: phone,
		Email:   email,
		Jabatan: JabatanFor(role),
	}, nil
}

// WithFacePhoto attaches the face capture.
func (p Profile) WithFacePhoto(photo []byte) Profile {
	p.FacePhoto = photo
	return p
}

// WithPosition attaches the held position.
func (p Profile) WithPosition(lat, lon, acc float64) Profile {
	p.GPSLat = &lat
	p.GPSLon = &lon
	p.GPSAcc = &acc
	return p
}

// JabatanFor maps a role to its portal position title.
func JabatanFor(role Role) string {
	if role == RoleAdmin {
		return jabatanAdmin
	}
	return jabatanGuest
}

// AvatarURL synthesizes an initials-avatar image URL for members without an
// SSO photo.
func AvatarURL(name string) string {
	q := url.Values{}
	q.Set("name", name)
	q.Set("background", "1b4332")
	q.Set("color", "fff")
	return "https://ui-avatars.com/api/?" + q.Encode()
}
