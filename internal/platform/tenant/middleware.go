package tenant

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinicagenda/agenda/internal/platform/auth"
)

const (
	TenantHeader       = "X-Tenant-ID"
	ProfessionalHeader = "X-Professional-ID"
)

// MembershipChecker confirms memberships that are not listed in the token.
type MembershipChecker interface {
	IsMember(ctx context.Context, tenantID uuid.UUID, userID string) (bool, error)
}

type Config struct {
	DefaultTenant string
	DemoTenant    string
	Memberships   MembershipChecker
	Logger        zerolog.Logger
}

// Middleware resolves the active tenant and professional and stores the Scope
// on the echo context. It must run after the auth middleware.
func Middleware(cfg Config) echo.MiddlewareFunc {
	demoID, demoErr := uuid.Parse(cfg.DemoTenant)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := extractTenantID(c, cfg.DefaultTenant)
			tenantID, err := uuid.Parse(raw)
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, ErrInvalidTenant.Error())
			}

			ctx := c.Request().Context()
			userID := auth.UserIDFromContext(ctx)
			roles := auth.RolesFromContext(ctx)
			if userID == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "unauthenticated")
			}

			scope := Scope{
				TenantID:       tenantID,
				ProfessionalID: ProfessionalIDFor(userID),
				UserID:         userID,
				Roles:          roles,
				Demo:           demoErr == nil && tenantID == demoID,
			}

			if !scope.Demo {
				ok, err := allowed(c, cfg, raw, tenantID, userID, roles)
				if err != nil {
					cfg.Logger.Error().Err(err).Str("tenant_id", raw).Msg("membership lookup failed")
					return echo.NewHTTPError(http.StatusServiceUnavailable, "membership lookup failed")
				}
				if !ok {
					return echo.NewHTTPError(http.StatusForbidden, ErrForbidden.Error())
				}
			}

			if pid := c.Request().Header.Get(ProfessionalHeader); pid != "" {
				if !auth.HasRole(roles, auth.RoleAssistant) {
					return echo.NewHTTPError(http.StatusForbidden, "only assistants may act for another professional")
				}
				id, err := uuid.Parse(pid)
				if err != nil {
					return echo.NewHTTPError(http.StatusBadRequest, "invalid professional identifier")
				}
				scope = scope.WithProfessional(id)
			}

			Set(c, scope)
			c.Set("tenant_id", raw)
			return next(c)
		}
	}
}

func allowed(c echo.Context, cfg Config, raw string, tenantID uuid.UUID, userID string, roles []string) (bool, error) {
	if auth.HasRole(roles, auth.RoleAdmin) {
		return true, nil
	}
	if tid, _ := c.Get(auth.TenantClaimKey).(string); tid == raw {
		return true, nil
	}
	if tenants, ok := c.Get(auth.TenantsClaimKey).([]string); ok {
		for _, t := range tenants {
			if t == raw {
				return true, nil
			}
		}
	}
	if cfg.Memberships == nil {
		return false, nil
	}
	return cfg.Memberships.IsMember(c.Request().Context(), tenantID, userID)
}

// extractTenantID prefers an explicit selection over the token default so a
// member of several clinics can switch between them.
func extractTenantID(c echo.Context, defaultTenant string) string {
	if tid := c.Request().Header.Get(TenantHeader); tid != "" {
		return tid
	}
	if tid := c.QueryParam("tenant_id"); tid != "" {
		return tid
	}
	if tid, ok := c.Get(auth.TenantClaimKey).(string); ok && tid != "" {
		return tid
	}
	return defaultTenant
}
