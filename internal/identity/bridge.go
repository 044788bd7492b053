// Package identity decodes the external single-sign-on credential handed to
// the flow by the SSO widget.
//
// SECURITY: the credential's signature is NOT verified here — there is no
// server-side check behind this boundary, matching the deployment this was
// built for. A decoded Claim is therefore a convenience prefill, never an
// authenticated identity. Callers must treat it as unverified user input;
// the session records IdentitySource accordingly.
package identity

import (
	"encoding/json"

	"github.com/golang-jwt/jwt/v5"
)

// Claim is the subset of the SSO payload the flow consumes.
type Claim struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Picture string `json:"picture"`
}

// Bridge decodes compact three-part credentials from a configured SSO client.
type Bridge struct {
	clientID string
	parser   *jwt.Parser
}

// New creates a bridge for the given SSO client registration.
func New(clientID string) *Bridge {
	return &Bridge{
		clientID: clientID,
		parser:   jwt.NewParser(),
	}
}

// ClientID returns the SSO client registration this bridge serves.
func (b *Bridge) ClientID() string {
	return b.clientID
}

// Decode extracts name/email/photo from a compact credential without
// verifying its signature. Malformed credentials return (Claim{}, false) so
// the caller falls back to manual identity entry; decoding never errors
// user-visibly.
func (b *Bridge) Decode(credential string) (Claim, bool) {
	if credential == "" {
		return Claim{}, false
	}

	var claims jwt.MapClaims
	if _, _, err := b.parser.ParseUnverified(credential, &claims); err != nil {
		return Claim{}, false
	}

	// Round-trip through JSON to pick the fields we care about without
	// hand-walking the map.
	raw, err := json.Marshal(claims)
	if err != nil {
		return Claim{}, false
	}
	var claim Claim
	if err := json.Unmarshal(raw, &claim); err != nil {
		return Claim{}, false
	}

	if claim.Name == "" && claim.Email == "" {
		return Claim{}, false
	}
	return claim, true
}
