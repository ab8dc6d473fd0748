package coldchain

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
	staff := api.Group("", auth.RequireRole("admin", "staff"))
	staff.GET("/cold-storages", h.ListStorages)
	staff.GET("/cold-storages/:id", h.GetStorage)
	staff.POST("/cold-storages", h.CreateStorage)
	staff.PUT("/cold-storages/:id", h.UpdateStorage)
	staff.DELETE("/cold-storages/:id", h.DeleteStorage)

	staff.GET("/vaccine-batches", h.ListBatches)
	staff.GET("/vaccine-batches/:id", h.GetBatch)
	staff.POST("/vaccine-batches", h.CreateBatch)
	staff.PUT("/vaccine-batches/:id", h.UpdateBatch)
	staff.GET("/vaccine-batches/:id/candidate-storages", h.Candidates)
	staff.POST("/vaccine-batches/:id/assign", h.Assign)
	staff.POST("/vaccine-batches/:id/release", h.Release)
}

type storageRequest struct {
	Name                    string  `json:"name"`
	MinTemperatureThreshold float64 `json:"min_temperature_threshold"`
	MaxTemperatureThreshold float64 `json:"max_temperature_threshold"`
	StorageCapacity         int     `json:"storage_capacity"`
	EffectiveFrom           string  `json:"effective_from"`
	IsActive                *bool   `json:"is_active"`
}

func (r *storageRequest) toModel() (*ColdStorage, error) {
	s := &ColdStorage{
		Name:                    r.Name,
		MinTemperatureThreshold: r.MinTemperatureThreshold,
		MaxTemperatureThreshold: r.MaxTemperatureThreshold,
		StorageCapacity:         r.StorageCapacity,
		IsActive:                true,
	}
	if r.IsActive != nil {
		s.IsActive = *r.IsActive
	}
	if r.EffectiveFrom != "" {
		d, err := time.Parse("2006-01-02", r.EffectiveFrom)
		if err != nil {
			return nil, echo.NewHTTPError(http.StatusBadRequest, "effective_from must be YYYY-MM-DD")
		}
		s.EffectiveFrom = d
	}
	return s, nil
}

func (h *Handler) CreateStorage(c echo.Context) error {
	var req storageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	s, err := req.toModel()
	if err != nil {
		return err
	}
	if err := h.svc.CreateStorage(c.Request().Context(), s); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, s)
}

func (h *Handler) GetStorage(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	s, err := h.svc.GetStorage(c.Request().Context(), id)
	if err != nil {
		return rules.HTTPError(err)
	}
	return c.JSON(http.StatusOK, s)
}

func (h *Handler) ListStorages(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListStorages(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateStorage(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req storageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	s, err := req.toModel()
	if err != nil {
		return err
	}
	s.ID = id
	if err := h.svc.UpdateStorage(c.Request().Context(), s); err != nil {
		return rules.HTTPError(err)
	}
	updated, err := h.svc.GetStorage(c.Request().Context(), id)
	if err != nil {
		return rules.HTTPError(err)
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *Handler) DeleteStorage(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteStorage(c.Request().Context(), id); err != nil {
		return rules.HTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

type batchRequest struct {
	VaccineID       uuid.UUID `json:"vaccine_id"`
	BatchNumber     string    `json:"batch_number"`
	ManufactureDate string    `json:"manufacture_date"`
	ExpiryDate      string    `json:"expiry_date"`
	InitialQuantity int       `json:"initial_quantity"`
	CurrentQuantity int       `json:"current_quantity"`
	Status          string    `json:"status"`
}

func (r *batchRequest) toModel() (*VaccineBatch, error) {
	manufactured, err := time.Parse("2006-01-02", r.ManufactureDate)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "manufacture_date must be YYYY-MM-DD")
	}
	expiry, err := time.Parse("2006-01-02", r.ExpiryDate)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "expiry_date must be YYYY-MM-DD")
	}
	return &VaccineBatch{
		VaccineID:       r.VaccineID,
		BatchNumber:     r.BatchNumber,
		ManufactureDate: manufactured,
		ExpiryDate:      expiry,
		InitialQuantity: r.InitialQuantity,
		CurrentQuantity: r.CurrentQuantity,
		Status:          r.Status,
	}, nil
}

func (h *Handler) CreateBatch(c echo.Context) error {
	var req batchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	b, err := req.toModel()
	if err != nil {
		return err
	}
	if err := h.svc.CreateBatch(c.Request().Context(), b); err != nil {
		return rules.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, b)
}

func (h *Handler) GetBatch(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	b, err := h.svc.GetBatch(c.Request().Context(), id)
	if err != nil {
		return rules.HTTPError(err)
	}
	return c.JSON(http.StatusOK, b)
}

func (h *Handler) ListBatches(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListBatches(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateBatch(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	cur, err := h.svc.GetBatch(c.Request().Context(), id)
	if err != nil {
		return rules.HTTPError(err)
	}
	var req batchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	b, err := req.toModel()
	if err != nil {
		return err
	}
	b.ID = id
	b.ColdStorageID = cur.ColdStorageID
	if err := h.svc.UpdateBatch(c.Request().Context(), b); err != nil {
		return rules.HTTPError(err)
	}
	return c.JSON(http.StatusOK, b)
}

func (h *Handler) Candidates(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	candidates, err := h.svc.Candidates(c.Request().Context(), id)
	if err != nil {
		return rules.HTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"items": candidates, "total": len(candidates)})
}

type assignRequest struct {
	ColdStorageID uuid.UUID `json:"cold_storage_id"`
}

func (h *Handler) Assign(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req assignRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.ColdStorageID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "cold_storage_id is required")
	}
	if err := h.svc.Assign(c.Request().Context(), id, req.ColdStorageID); err != nil {
		return rules.HTTPError(err)
	}
	b, err := h.svc.GetBatch(c.Request().Context(), id)
	if err != nil {
		return rules.HTTPError(err)
	}
	return c.JSON(http.StatusOK, b)
}

func (h *Handler) Release(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.Release(c.Request().Context(), id); err != nil {
		return rules.HTTPError(err)
	}
	b, err := h.svc.GetBatch(c.Request().Context(), id)
	if err != nil {
		return rules.HTTPError(err)
	}
	return c.JSON(http.StatusOK, b)
}
