package tenant

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinicagenda/agenda/internal/platform/auth"
	"github.com/clinicagenda/agenda/internal/platform/db"
)

// MembershipLister returns the clinics a user belongs to.
type MembershipLister interface {
	ListMemberships(ctx context.Context, userID string) ([]db.Membership, error)
}

// Handler serves the clinic selector.
type Handler struct {
	store  MembershipLister
	demoID string
}

func NewHandler(store MembershipLister, demoTenant string) *Handler {
	return &Handler{store: store, demoID: demoTenant}
}

// RegisterRoutes mounts GET /me/tenants. The group needs auth but not tenant
// resolution.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/me/tenants", h.ListTenants)
}

// ListTenants returns the caller's memberships followed by the public demo clinic.
func (h *Handler) ListTenants(c echo.Context) error {
	userID := auth.UserIDFromContext(c.Request().Context())
	if userID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthenticated")
	}

	memberships, err := h.store.ListMemberships(c.Request().Context(), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if demo, err := uuid.Parse(h.demoID); err == nil {
		listed := false
		for _, m := range memberships {
			if m.TenantID == demo {
				listed = true
			}
		}
		if !listed {
			memberships = append(memberships, db.Membership{
				TenantID:   demo,
				TenantName: "Demo clinic",
				UserID:     userID,
				Role:       "viewer",
			})
		}
	}

	return c.JSON(http.StatusOK, map[string]interface{}{"data": memberships})
}

// Me echoes the resolved scope.
func Me(c echo.Context) error {
	s, err := Require(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s)
}
