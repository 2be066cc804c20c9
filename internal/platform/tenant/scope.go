// Package tenant resolves the active clinic once at the HTTP boundary. The
// resulting Scope is passed explicitly to every service and repository call.
package tenant

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

var (
	ErrNoScope       = errors.New("no tenant scope on request")
	ErrForbidden     = errors.New("not a member of the requested tenant")
	ErrDemoReadOnly  = errors.New("the demo clinic is read-only")
	ErrInvalidTenant = errors.New("invalid tenant identifier")
)

const scopeKey = "tenant_scope"

// Scope identifies whose agenda an operation touches.
type Scope struct {
	TenantID       uuid.UUID `json:"tenant_id"`
	ProfessionalID uuid.UUID `json:"professional_id"`
	UserID         string    `json:"user_id"`
	Roles          []string  `json:"roles,omitempty"`
	Demo           bool      `json:"demo"`
}

// Writable returns ErrDemoReadOnly for the demo clinic.
func (s Scope) Writable() error {
	if s.Demo {
		return ErrDemoReadOnly
	}
	return nil
}

// WithProfessional returns a copy of s targeting another professional of the
// same clinic.
func (s Scope) WithProfessional(id uuid.UUID) Scope {
	s.ProfessionalID = id
	return s
}

// ProfessionalIDFor maps an authenticated subject to a professional id.
// Subjects that are already UUIDs are used as is; others get a stable
// name-based UUID.
func ProfessionalIDFor(subject string) uuid.UUID {
	if id, err := uuid.Parse(subject); err == nil {
		return id
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(subject))
}

// Set stores s on the echo context.
func Set(c echo.Context, s Scope) {
	c.Set(scopeKey, s)
}

// FromEcho returns the scope resolved by Middleware.
func FromEcho(c echo.Context) (Scope, error) {
	s, ok := c.Get(scopeKey).(Scope)
	if !ok {
		return Scope{}, ErrNoScope
	}
	return s, nil
}

// Require is FromEcho for handlers mounted behind Middleware. A missing
// scope yields a 401 error.
func Require(c echo.Context) (Scope, error) {
	s, err := FromEcho(c)
	if err != nil {
		return Scope{}, echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	return s, nil
}
