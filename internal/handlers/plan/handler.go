package plan

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kevin07696/subscription-service/internal/domain"
	domainports "github.com/kevin07696/subscription-service/internal/domain/ports"
	"github.com/kevin07696/subscription-service/internal/handlers/respond"
	"github.com/kevin07696/subscription-service/internal/services/ports"
)

// Handler serves the plan catalog endpoints
type Handler struct {
	service ports.PlanService
	logger  domainports.Logger
}

// NewHandler creates a new plan handler
func NewHandler(service ports.PlanService, logger domainports.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Routes mounts the plan endpoints on a chi router
func (h *Handler) Routes(r chi.Router) {
	r.Post("/plans", h.Create)
	r.Get("/plans", h.List)
}

type createRequest struct {
	Name         string `json:"name"`
	Price        string `json:"price"`
	DurationDays int    `json:"duration_days"`
}

// Create adds a plan to the catalog
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, domain.ErrValidationFailed.WithDetail("body", "invalid JSON"))
		return
	}

	p, err := h.service.CreatePlan(r.Context(), req.Name, req.Price, req.DurationDays)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusCreated, p)
}

// List returns the full plan catalog
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	plans, err := h.service.ListPlans(r.Context())
	if err != nil {
		respond.Error(w, err)
		return
	}
	if plans == nil {
		plans = []*domain.Plan{}
	}
	respond.JSON(w, http.StatusOK, plans)
}
