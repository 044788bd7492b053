package http

import (
	"strings"

	"github.com/asaskevich/govalidator"

	"fieldgate/internal/profile"
	dErrors "fieldgate/pkg/domain-errors"
)

// SelectRoleRequest is the HTTP request body for POST .../role.
type SelectRoleRequest struct {
	Role string `json:"role"`

	parsedRole profile.Role
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *SelectRoleRequest) Validate() error {
	switch profile.Role(strings.TrimSpace(r.Role)) {
	case profile.RoleAdmin:
		r.parsedRole = profile.RoleAdmin
	case profile.RoleGuest:
		r.parsedRole = profile.RoleGuest
	default:
		return dErrors.New(dErrors.CodeInvalidInput, "role must be admin or guest")
	}
	return nil
}

func (r *SelectRoleRequest) ParsedRole() profile.Role { return r.parsedRole }

// SSORequest is the HTTP request body for POST .../sso.
type SSORequest struct {
	Credential string `json:"credential"`
}

func (r *SSORequest) Validate() error {
	r.Credential = strings.TrimSpace(r.Credential)
	if r.Credential == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "credential is required")
	}
	if len(r.Credential) > 8192 {
		return dErrors.New(dErrors.CodeInvalidInput, "credential is too long")
	}
	return nil
}

// IdentityRequest is the HTTP request body for POST .../identity.
type IdentityRequest struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Passphrase string `json:"passphrase,omitempty"`
}

func (r *IdentityRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.TrimSpace(r.Email)

	if r.Name == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "name is required")
	}
	if len(r.Name) > 120 {
		return dErrors.New(dErrors.CodeInvalidInput, "name must be at most 120 characters")
	}
	if !govalidator.IsEmail(r.Email) {
		return dErrors.New(dErrors.CodeInvalidInput, "a valid email address is required")
	}
	if len(r.Passphrase) > 200 {
		return dErrors.New(dErrors.CodeInvalidInput, "passphrase is too long")
	}
	return nil
}

// ContactRequest is the HTTP request body for POST .../contact.
type ContactRequest struct {
	Phone string `json:"phone"`
}

func (r *ContactRequest) Validate() error {
	r.Phone = strings.TrimSpace(r.Phone)
	if r.Phone == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "phone is required")
	}
	if len(r.Phone) > 24 {
		return dErrors.New(dErrors.CodeInvalidInput, "phone must be at most 24 characters")
	}
	return nil
}

// ScrollRequest is the HTTP request body for POST .../terms/scroll.
type ScrollRequest struct {
	ContentHeight  float64 `json:"content_height"`
	ViewportHeight float64 `json:"viewport_height"`
	ScrollTop      float64 `json:"scroll_top"`
}

func (r *ScrollRequest) Validate() error {
	if r.ContentHeight <= 0 || r.ViewportHeight <= 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "content_height and viewport_height must be positive")
	}
	return nil
}

// AgreementRequest is the HTTP request body for POST .../terms/agreement.
type AgreementRequest struct {
	Agreed bool `json:"agreed"`
}

func (r *AgreementRequest) Validate() error { return nil }
