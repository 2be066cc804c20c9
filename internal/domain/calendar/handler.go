package calendar

import (
	"bytes"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/clinicagenda/agenda/internal/domain/collision"
	"github.com/clinicagenda/agenda/internal/platform/auth"
	"github.com/clinicagenda/agenda/internal/platform/tenant"
)

const (
	mimeCalendar     = "text/calendar; charset=utf-8"
	defaultViewDays  = 7
	feedLookbackDays = 30
	feedAheadDays    = 90
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/calendar", auth.RequireRole(auth.RoleProfessional, auth.RoleAssistant))
	g.POST("/check", h.Check)
	g.GET("/view", h.View)
	g.GET("/today", h.Today)
	g.GET("/feed.ics", h.Feed)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

type checkRequest struct {
	StartAt time.Time `json:"start_at"`
	EndAt   time.Time `json:"end_at"`
}

// Check always answers 200; a malformed candidate comes back as a conflict
// with the invalid_interval reason.
func (h *Handler) Check(c echo.Context) error {
	scope, err := tenant.Require(c)
	if err != nil {
		return err
	}
	var req checkRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	verdict, err := h.svc.Check(c.Request().Context(), scope, collision.Interval{Start: req.StartAt, End: req.EndAt})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, verdict)
}

// parseRange reads ?from and ?to as RFC 3339. A missing from defaults to the
// start of today and a missing to to from plus defaultDays.
func (h *Handler) parseRange(c echo.Context, defaultFrom time.Time, defaultDays int) (time.Time, time.Time, error) {
	from := defaultFrom
	if v := c.QueryParam("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, time.Time{}, echo.NewHTTPError(http.StatusBadRequest, "from must be an RFC 3339 timestamp")
		}
		from = t
	}
	to := from.AddDate(0, 0, defaultDays)
	if v := c.QueryParam("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, time.Time{}, echo.NewHTTPError(http.StatusBadRequest, "to must be an RFC 3339 timestamp")
		}
		to = t
	}
	return from, to, nil
}

func (h *Handler) today() time.Time {
	return collision.StartOfDay(h.svc.now().In(h.svc.detector.Location()))
}

func (h *Handler) View(c echo.Context) error {
	scope, err := tenant.Require(c)
	if err != nil {
		return err
	}
	from, to, err := h.parseRange(c, h.today(), defaultViewDays)
	if err != nil {
		return err
	}
	v, err := h.svc.View(c.Request().Context(), scope, from, to)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) Today(c echo.Context) error {
	scope, err := tenant.Require(c)
	if err != nil {
		return err
	}
	events, err := h.svc.Today(c.Request().Context(), scope)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, events)
}

// Feed serves the agenda as iCalendar, by default from 30 days back to 90
// days ahead.
func (h *Handler) Feed(c echo.Context) error {
	scope, err := tenant.Require(c)
	if err != nil {
		return err
	}
	from, to, err := h.parseRange(c, h.today().AddDate(0, 0, -feedLookbackDays), feedLookbackDays+feedAheadDays)
	if err != nil {
		return err
	}
	cal, err := h.svc.Feed(c.Request().Context(), scope, from, to)
	if err != nil {
		return httpError(err)
	}
	var buf bytes.Buffer
	if err := WriteFeed(&buf, cal); err != nil {
		return httpError(err)
	}
	c.Response().Header().Set("Content-Disposition", `inline; filename="agenda.ics"`)
	return c.Blob(http.StatusOK, mimeCalendar, buf.Bytes())
}
