package middleware

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinicagenda/agenda/internal/platform/auth"
	"github.com/clinicagenda/agenda/internal/platform/tenant"
)

// withRequest adds the request id and, once the tenant resolver has run, the
// clinic and professional the request acted for.
func withRequest(evt *zerolog.Event, c echo.Context) *zerolog.Event {
	rid, _ := c.Get("request_id").(string)
	evt = evt.Str("request_id", rid).Str("path", c.Request().URL.Path)
	if uid := auth.UserIDFromContext(c.Request().Context()); uid != "" {
		evt = evt.Str("user_id", uid)
	}
	if s, err := tenant.FromEcho(c); err == nil {
		evt = evt.Stringer("tenant_id", s.TenantID).Stringer("professional_id", s.ProfessionalID)
		if s.Demo {
			evt = evt.Bool("demo", true)
		}
	}
	return evt
}

// statusOf returns the status the error handler will write for err.
func statusOf(c echo.Context, err error) int {
	if err == nil {
		return c.Response().Status
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return http.StatusInternalServerError
}

// Logger writes one line per request: info for success, warn for client
// errors such as a 409 collision, error for server failures.
func Logger(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			status := statusOf(c, err)

			var evt *zerolog.Event
			switch {
			case status >= http.StatusInternalServerError:
				evt = logger.Error().Err(err)
			case status >= http.StatusBadRequest:
				evt = logger.Warn()
				if err != nil {
					evt = evt.Str("error", err.Error())
				}
			default:
				evt = logger.Info()
			}

			withRequest(evt, c).
				Str("method", c.Request().Method).
				Str("route", c.Path()).
				Int("status", status).
				Dur("latency", time.Since(start)).
				Str("remote_ip", c.RealIP()).
				Msg("request")
			return err
		}
	}
}
