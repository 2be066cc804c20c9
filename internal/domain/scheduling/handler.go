package scheduling

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/samber/mo"

	"github.com/clinicagenda/agenda/internal/domain/collision"
	"github.com/clinicagenda/agenda/internal/platform/auth"
	"github.com/clinicagenda/agenda/internal/platform/tenant"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("", auth.RequireRole(auth.RoleProfessional, auth.RoleAssistant))
	g.GET("/appointments", h.ListAppointments)
	g.GET("/appointments/:id", h.GetAppointment)
	g.POST("/appointments", h.CreateAppointment)
	g.PUT("/appointments/:id", h.UpdateAppointment)
	g.PATCH("/appointments/:id/move", h.MoveAppointment)
	g.DELETE("/appointments/:id", h.DeleteAppointment)
}

// conflictBody is the 409 payload; the calendar uses the reasons to explain
// why the drop was refused.
type conflictBody struct {
	Message string            `json:"message"`
	Verdict collision.Verdict `json:"verdict"`
}

func httpError(err error) error {
	var conflict *ConflictError
	switch {
	case errors.As(err, &conflict):
		return echo.NewHTTPError(http.StatusConflict, conflictBody{Message: err.Error(), Verdict: conflict.Verdict})
	case errors.Is(err, tenant.ErrDemoReadOnly):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

type appointmentRequest struct {
	PatientID  uuid.UUID  `json:"patient_id"`
	StartAt    time.Time  `json:"start_at"`
	EndAt      *time.Time `json:"end_at"`
	Status     Status     `json:"status"`
	PayStatus  PayStatus  `json:"pay_status"`
	PaidAmount float64    `json:"paid_amount"`
	Price      *float64   `json:"price"`
	Modality   Modality   `json:"modality"`
	Notes      *string    `json:"notes"`
}

func optionOf[T any](p *T) mo.Option[T] {
	if p == nil {
		return mo.None[T]()
	}
	return mo.Some(*p)
}

func (r appointmentRequest) draft() Draft {
	return Draft{
		PatientID:  r.PatientID,
		StartAt:    r.StartAt,
		EndAt:      optionOf(r.EndAt),
		Status:     r.Status,
		PayStatus:  r.PayStatus,
		PaidAmount: r.PaidAmount,
		Price:      optionOf(r.Price),
		Modality:   r.Modality,
		Notes:      r.Notes,
	}
}

type moveRequest struct {
	StartAt *time.Time `json:"start_at"`
	EndAt   *time.Time `json:"end_at"`
}

func parseForce(c echo.Context) (bool, error) {
	v := c.QueryParam("force")
	if v == "" {
		return false, nil
	}
	force, err := strconv.ParseBool(v)
	if err != nil {
		return false, echo.NewHTTPError(http.StatusBadRequest, "force must be a boolean")
	}
	return force, nil
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func (h *Handler) CreateAppointment(c echo.Context) error {
	scope, err := tenant.Require(c)
	if err != nil {
		return err
	}
	force, err := parseForce(c)
	if err != nil {
		return err
	}
	var req appointmentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a, err := h.svc.CreateAppointment(c.Request().Context(), scope, req.draft(), force)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) GetAppointment(c echo.Context) error {
	scope, err := tenant.Require(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	a, err := h.svc.GetAppointment(c.Request().Context(), scope, id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

// ListAppointments requires an RFC 3339 ?from= and ?to= range.
func (h *Handler) ListAppointments(c echo.Context) error {
	scope, err := tenant.Require(c)
	if err != nil {
		return err
	}
	from, err := time.Parse(time.RFC3339, c.QueryParam("from"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "from must be an RFC 3339 timestamp")
	}
	to, err := time.Parse(time.RFC3339, c.QueryParam("to"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "to must be an RFC 3339 timestamp")
	}
	items, err := h.svc.ListAppointments(c.Request().Context(), scope, from, to)
	if err != nil {
		return httpError(err)
	}
	if items == nil {
		items = []*Appointment{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) UpdateAppointment(c echo.Context) error {
	scope, err := tenant.Require(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	force, err := parseForce(c)
	if err != nil {
		return err
	}
	var req appointmentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a, err := h.svc.UpdateAppointment(c.Request().Context(), scope, id, req.draft(), force)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

// MoveAppointment persists a drag or resize from the calendar.
func (h *Handler) MoveAppointment(c echo.Context) error {
	scope, err := tenant.Require(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	force, err := parseForce(c)
	if err != nil {
		return err
	}
	var req moveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	patch := MovePatch{StartAt: optionOf(req.StartAt), EndAt: optionOf(req.EndAt)}
	a, err := h.svc.MoveAppointment(c.Request().Context(), scope, id, patch, force)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) DeleteAppointment(c echo.Context) error {
	scope, err := tenant.Require(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteAppointment(c.Request().Context(), scope, id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
