package child

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/vaxflow/vaxflow/internal/platform/auth"
	"github.com/vaxflow/vaxflow/internal/platform/rules"
	"github.com/vaxflow/vaxflow/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	rw := api.Group("", auth.RequireRole("admin", "staff", "customer"))
	rw.POST("/children", h.CreateChild)
	rw.GET("/children", h.ListChildren)
	rw.GET("/children/:id", h.GetChild)
	rw.PUT("/children/:id", h.UpdateChild)
	rw.DELETE("/children/:id", h.DeleteChild)
	rw.GET("/children/:id/dose-history", h.History)

	admin := api.Group("", auth.RequireRole("admin"))
	admin.PUT("/children/:id/corrective", h.UpdateChildCorrective)
}

type childRequest struct {
	ParentAccountID uuid.UUID `json:"parent_account_id"`
	FullName        string    `json:"full_name"`
	DateOfBirth     string    `json:"date_of_birth"`
	Gender          string    `json:"gender"`
}

func (r childRequest) toModel() (*Child, error) {
	dob, err := time.Parse("2006-01-02", r.DateOfBirth)
	if err != nil {
		return nil, err
	}
	return &Child{
		ParentAccountID: r.ParentAccountID,
		FullName:        r.FullName,
		DateOfBirth:     dob,
		Gender:          r.Gender,
	}, nil
}

func (h *Handler) CreateChild(c echo.Context) error {
	var req childRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ch, err := req.toModel()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "date_of_birth must be YYYY-MM-DD")
	}
	if err := h.svc.CreateChild(c.Request().Context(), ch); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, ch)
}

func (h *Handler) GetChild(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ch, err := h.svc.GetChild(c.Request().Context(), id)
	if err != nil {
		return rules.HTTPError(err)
	}
	return c.JSON(http.StatusOK, ch)
}

func (h *Handler) ListChildren(c echo.Context) error {
	parentID, err := uuid.Parse(c.QueryParam("parent_account_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "parent_account_id is required")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListChildren(c.Request().Context(), parentID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateChild(c echo.Context) error {
	return h.update(c, h.svc.UpdateChild)
}

func (h *Handler) UpdateChildCorrective(c echo.Context) error {
	return h.update(c, h.svc.UpdateChildCorrective)
}

func (h *Handler) update(c echo.Context, apply func(ctx context.Context, ch *Child) error) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req childRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ch, err := req.toModel()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "date_of_birth must be YYYY-MM-DD")
	}
	ch.ID = id
	if err := apply(c.Request().Context(), ch); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, ch)
}

func (h *Handler) DeleteChild(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteChild(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) History(c echo.Context) error {
	childID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	vaccineID, err := uuid.Parse(c.QueryParam("vaccine_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "vaccine_id is required")
	}
	items, err := h.svc.History(c.Request().Context(), childID, vaccineID)
	if err != nil {
		return rules.HTTPError(err)
	}
	return c.JSON(http.StatusOK, items)
}
