package settings

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

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
	// Assistants manage the agenda of the professional they work for.
	staff := api.Group("/settings", auth.RequireRole(auth.RoleProfessional, auth.RoleAssistant))
	staff.GET("/profile", h.GetProfile)
	staff.GET("/availability", h.ListAvailability)
	staff.POST("/availability", h.AddAvailability)
	staff.PUT("/availability", h.ReplaceAvailability)
	staff.DELETE("/availability/:id", h.DeleteAvailability)
	staff.GET("/blocks", h.ListBlocks)
	staff.POST("/blocks", h.AddBlock)
	staff.PUT("/blocks/:id", h.UpdateBlock)
	staff.DELETE("/blocks/:id", h.DeleteBlock)

	owner := api.Group("/settings", auth.RequireRole(auth.RoleProfessional))
	owner.PUT("/profile", h.UpdateProfile)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, tenant.ErrDemoReadOnly):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrDuplicateRule):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

// -- Profile Handlers --

func (h *Handler) GetProfile(c echo.Context) error {
	scope, err := tenant.Require(c)
	if err != nil {
		return err
	}
	p, err := h.svc.GetProfile(c.Request().Context(), scope)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) UpdateProfile(c echo.Context) error {
	scope, err := tenant.Require(c)
	if err != nil {
		return err
	}
	var p Profile
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.UpdateProfile(c.Request().Context(), scope, &p); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

// -- Availability Handlers --

func (h *Handler) ListAvailability(c echo.Context) error {
	scope, err := tenant.Require(c)
	if err != nil {
		return err
	}
	items, err := h.svc.ListAvailability(c.Request().Context(), scope)
	if err != nil {
		return httpError(err)
	}
	if items == nil {
		items = []*Availability{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) AddAvailability(c echo.Context) error {
	scope, err := tenant.Require(c)
	if err != nil {
		return err
	}
	var rule collision.AvailabilityRule
	if err := c.Bind(&rule); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a, err := h.svc.AddAvailability(c.Request().Context(), scope, rule)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, a)
}

type replaceAvailabilityRequest struct {
	Rules []collision.AvailabilityRule `json:"rules"`
}

func (h *Handler) ReplaceAvailability(c echo.Context) error {
	scope, err := tenant.Require(c)
	if err != nil {
		return err
	}
	var req replaceAvailabilityRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	items, err := h.svc.ReplaceAvailability(c.Request().Context(), scope, req.Rules)
	if err != nil {
		return httpError(err)
	}
	if items == nil {
		items = []*Availability{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) DeleteAvailability(c echo.Context) error {
	scope, err := tenant.Require(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteAvailability(c.Request().Context(), scope, id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Block Handlers --

type blockRequest struct {
	StartAt time.Time `json:"start_at"`
	EndAt   time.Time `json:"end_at"`
	Reason  *string   `json:"reason"`
}

// ListBlocks returns upcoming blocks, or the blocks touching from..to when
// both RFC 3339 bounds are given.
func (h *Handler) ListBlocks(c echo.Context) error {
	scope, err := tenant.Require(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	var items []*Block
	if from, to := c.QueryParam("from"), c.QueryParam("to"); from != "" || to != "" {
		start, err1 := time.Parse(time.RFC3339, from)
		end, err2 := time.Parse(time.RFC3339, to)
		if err1 != nil || err2 != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "from and to must both be RFC 3339 timestamps")
		}
		items, err = h.svc.ListBlocks(ctx, scope, start, end)
	} else {
		items, err = h.svc.ListUpcomingBlocks(ctx, scope)
	}
	if err != nil {
		return httpError(err)
	}
	if items == nil {
		items = []*Block{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) AddBlock(c echo.Context) error {
	scope, err := tenant.Require(c)
	if err != nil {
		return err
	}
	var req blockRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	b := &Block{StartAt: req.StartAt, EndAt: req.EndAt, Reason: req.Reason}
	if err := h.svc.AddBlock(c.Request().Context(), scope, b); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, b)
}

func (h *Handler) UpdateBlock(c echo.Context) error {
	scope, err := tenant.Require(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req blockRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	b := &Block{ID: id, StartAt: req.StartAt, EndAt: req.EndAt, Reason: req.Reason}
	if err := h.svc.UpdateBlock(c.Request().Context(), scope, b); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, b)
}

func (h *Handler) DeleteBlock(c echo.Context) error {
	scope, err := tenant.Require(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteBlock(c.Request().Context(), scope, id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
