package eligibility

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/vaxflow/vaxflow/internal/platform/auth"
	"github.com/vaxflow/vaxflow/internal/platform/rules"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("", auth.RequireRole("admin", "staff", "customer"))
	g.POST("/eligibility/evaluate", h.Evaluate)
}

type evaluateRequest struct {
	ChildID       uuid.UUID `json:"child_id"`
	VaccineID     uuid.UUID `json:"vaccine_id"`
	CandidateDate string    `json:"candidate_date"`
}

type evaluateResponse struct {
	Eligible        bool       `json:"eligible"`
	TargetDose      int        `json:"target_dose"`
	NextAllowedDate *string    `json:"next_allowed_date,omitempty"`
	ReasonCode      rules.Code `json:"reason_code,omitempty"`
	Reason          string     `json:"reason,omitempty"`
}

func (h *Handler) Evaluate(c echo.Context) error {
	var req evaluateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.ChildID == uuid.Nil || req.VaccineID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "child_id and vaccine_id are required")
	}
	candidate, err := time.Parse("2006-01-02", req.CandidateDate)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "candidate_date must be YYYY-MM-DD")
	}

	decision, err := h.svc.EvaluateFor(c.Request().Context(), req.ChildID, req.VaccineID, candidate)
	if err != nil {
		return rules.HTTPError(err)
	}

	resp := evaluateResponse{
		Eligible:   decision.Eligible,
		TargetDose: decision.TargetDose,
		ReasonCode: decision.ReasonCode,
		Reason:     decision.Reason,
	}
	if decision.NextAllowedDate != nil {
		d := decision.NextAllowedDate.Format("2006-01-02")
		resp.NextAllowedDate = &d
	}
	// A failed check is still a successful evaluation; the violation rides in
	// the body, not the status code.
	return c.JSON(http.StatusOK, resp)
}
