package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/homeservepro/marketplace/internal/model"
	"github.com/homeservepro/marketplace/internal/repository"
)

// CatalogHandler serves the service catalog: a public listing plus an
// operations-only create endpoint.
type CatalogHandler struct {
	Services *repository.ServiceRepo
}

func NewCatalogHandler(s *repository.ServiceRepo) *CatalogHandler {
	return &CatalogHandler{Services: s}
}

type serviceView struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Category        string  `json:"category"`
	Description     string  `json:"description,omitempty"`
	BasePrice       float64 `json:"base_price"`
	DurationMinutes int     `json:"duration_minutes"`
}

// ListServices returns the active catalog.  Public, cacheable.
func (h *CatalogHandler) ListServices(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	services, err := h.Services.ListActive(ctx)
	if err != nil {
		return respondError(c, err)
	}
	out := make([]serviceView, 0, len(services))
	for _, s := range services {
		out = append(out, serviceView{
			ID:              s.ID,
			Name:            s.Name,
			Category:        s.Category,
			Description:     s.Description,
			BasePrice:       s.BasePrice,
			DurationMinutes: s.DurationMinutes,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"services": out})
}

type createServiceReq struct {
	Name            string  `json:"name"`
	Category        string  `json:"category"`
	Description     string  `json:"description"`
	BasePrice       float64 `json:"base_price"`
	DurationMinutes int     `json:"duration_minutes"`
}

// CreateService adds a catalog entry.  Operations only.
func (h *CatalogHandler) CreateService(c echo.Context) error {
	var req createServiceReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if strings.TrimSpace(req.Name) == "" || req.BasePrice <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name and positive base_price required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	s := &model.Service{
		ID:              uuid.NewString(),
		Name:            strings.TrimSpace(req.Name),
		Category:        req.Category,
		Description:     req.Description,
		BasePrice:       req.BasePrice,
		DurationMinutes: req.DurationMinutes,
		Active:          true,
	}
	if err := h.Services.Insert(ctx, s); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, serviceView{
		ID:              s.ID,
		Name:            s.Name,
		Category:        s.Category,
		Description:     s.Description,
		BasePrice:       s.BasePrice,
		DurationMinutes: s.DurationMinutes,
	})
}
