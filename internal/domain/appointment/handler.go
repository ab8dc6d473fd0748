package appointment

import (
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
	customer := api.Group("", auth.RequireRole("admin", "staff", "customer"))
	customer.POST("/appointment-details", h.Create)
	customer.GET("/appointment-details", h.ListByChild)
	customer.GET("/appointment-details/:id", h.Get)
	customer.POST("/appointment-details/:id/pay", h.MarkPaid)
	customer.POST("/appointment-details/:id/cancel-request", h.RequestCancel)
	customer.POST("/appointment-details/:id/reschedule", h.Reschedule)
	customer.GET("/appointment-details/:id/cancel-requests", h.CancelRequests)

	staff := api.Group("", auth.RequireRole("admin", "staff"))
	staff.POST("/cancel-requests/:id/resolve", h.ResolveCancel)
	staff.POST("/appointment-details/:id/check-in", h.CheckIn)
	staff.POST("/appointment-details/:id/complete", h.Complete)
	staff.POST("/appointment-details/:id/staff-cancel", h.StaffCancel)
	staff.GET("/appointment-details/:id/observation", h.Observation)
	staff.GET("/appointment-details/:id/refund", h.Refund)
}

func pathID(c echo.Context) (uuid.UUID, error) {
	return uuid.Parse(c.Param("id"))
}

type createRequest struct {
	ChildID       uuid.UUID `json:"child_id"`
	VaccineID     uuid.UUID `json:"vaccine_id"`
	ScheduledDate string    `json:"scheduled_date"`
	TimeFrom      string    `json:"time_from"`
}

func (h *Handler) Create(c echo.Context) error {
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.ChildID == uuid.Nil || req.VaccineID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "child_id and vaccine_id are required")
	}
	scheduled, err := time.Parse("2006-01-02", req.ScheduledDate)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "scheduled_date must be YYYY-MM-DD")
	}

	d, err := h.svc.Create(c.Request().Context(), CreateInput{
		ChildID:       req.ChildID,
		VaccineID:     req.VaccineID,
		ScheduledDate: scheduled,
		TimeFrom:      req.TimeFrom,
	})
	if err != nil {
		return rules.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	d, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return rules.HTTPError(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) ListByChild(c echo.Context) error {
	childID, err := uuid.Parse(c.QueryParam("child_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "child_id is required")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListByChild(c.Request().Context(), childID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) MarkPaid(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req struct {
		Method string `json:"method"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	d, err := h.svc.MarkPaid(c.Request().Context(), id, req.Method)
	if err != nil {
		return rules.HTTPError(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) RequestCancel(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	cr, err := h.svc.RequestCancel(c.Request().Context(), id, req.Reason)
	if err != nil {
		return rules.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, cr)
}

func (h *Handler) ResolveCancel(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req struct {
		Status       string  `json:"status"`
		StaffReason  *string `json:"staff_reason"`
		RefundAmount *int64  `json:"refund_amount"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	cr, err := h.svc.ResolveCancel(c.Request().Context(), id, ResolveCancelInput{
		Status:       req.Status,
		StaffReason:  req.StaffReason,
		RefundAmount: req.RefundAmount,
	})
	if err != nil {
		return rules.HTTPError(err)
	}
	return c.JSON(http.StatusOK, cr)
}

func (h *Handler) Reschedule(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req struct {
		NewDate string `json:"new_date"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	newDate, err := time.Parse("2006-01-02", req.NewDate)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "new_date must be YYYY-MM-DD")
	}
	d, err := h.svc.Reschedule(c.Request().Context(), id, newDate)
	if err != nil {
		return rules.HTTPError(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) CheckIn(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	d, err := h.svc.CheckIn(c.Request().Context(), id)
	if err != nil {
		return rules.HTTPError(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) Complete(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req struct {
		Status          string   `json:"status"`
		TemperatureC    float64  `json:"temperature_c"`
		AbnormalityNote *string  `json:"abnormality_note"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	d, err := h.svc.Complete(c.Request().Context(), id, ObservationInput{
		Status:          req.Status,
		TemperatureC:    req.TemperatureC,
		AbnormalityNote: req.AbnormalityNote,
	})
	if err != nil {
		return rules.HTTPError(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) StaffCancel(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	d, err := h.svc.StaffCancel(c.Request().Context(), id, req.Reason)
	if err != nil {
		return rules.HTTPError(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) CancelRequests(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	items, err := h.svc.CancelRequestsFor(c.Request().Context(), id)
	if err != nil {
		return rules.HTTPError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) Observation(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	o, err := h.svc.ObservationFor(c.Request().Context(), id)
	if err != nil {
		return rules.HTTPError(err)
	}
	return c.JSON(http.StatusOK, o)
}

func (h *Handler) Refund(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	r, err := h.svc.RefundFor(c.Request().Context(), id)
	if err != nil {
		return rules.HTTPError(err)
	}
	return c.JSON(http.StatusOK, r)
}
