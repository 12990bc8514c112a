package subscription

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kevin07696/subscription-service/internal/domain"
	domainports "github.com/kevin07696/subscription-service/internal/domain/ports"
	"github.com/kevin07696/subscription-service/internal/handlers/respond"
	"github.com/kevin07696/subscription-service/internal/services/ports"
)

// Handler serves the subscription HTTP endpoints
type Handler struct {
	service ports.SubscriptionService
	logger  domainports.Logger
}

// NewHandler creates a new subscription handler
func NewHandler(service ports.SubscriptionService, logger domainports.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Routes mounts the subscription endpoints on a chi router
func (h *Handler) Routes(r chi.Router) {
	r.Post("/subscriptions", h.Create)
	r.Get("/subscriptions/{userID}", h.Get)
	r.Post("/subscriptions/{userID}/renew", h.Renew)
	r.Post("/subscriptions/{userID}/cancel", h.Cancel)
	r.Delete("/subscriptions/{userID}", h.Remove)
	r.Get("/subscriptions/{userID}/payments", h.Payments)
}

type createRequest struct {
	PlanID    string `json:"plan_id"`
	UserID    string `json:"user_id"`
	ReturnURL string `json:"return_url"`
	AutoRenew bool   `json:"auto_renew"`
}

type renewRequest struct {
	PlanID    string `json:"plan_id"`
	ReturnURL string `json:"return_url"`
	AutoRenew bool   `json:"auto_renew"`
}

type checkoutResponse struct {
	SubscriptionID string `json:"subscription_id"`
	PaymentURL     string `json:"payment_url"`
}

// Create starts a new subscription purchase
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, domain.ErrValidationFailed.WithDetail("body", "invalid JSON"))
		return
	}

	result, err := h.service.CreateSubscription(r.Context(), ports.CreateSubscriptionRequest{
		PlanID:    req.PlanID,
		UserID:    req.UserID,
		ReturnURL: req.ReturnURL,
		AutoRenew: req.AutoRenew,
	})
	if err != nil {
		respond.Error(w, err)
		return
	}

	respond.JSON(w, http.StatusCreated, checkoutResponse{
		SubscriptionID: result.SubscriptionID,
		PaymentURL:     result.PaymentURL,
	})
}

// Get returns the subscription for a user
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	sub, err := h.service.GetByUser(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, sub)
}

// Renew reopens a cancelled subscription with a new redirect payment
func (h *Handler) Renew(w http.ResponseWriter, r *http.Request) {
	var req renewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, domain.ErrValidationFailed.WithDetail("body", "invalid JSON"))
		return
	}

	result, err := h.service.RenewThroughPayment(r.Context(), ports.RenewSubscriptionRequest{
		PlanID:    req.PlanID,
		UserID:    chi.URLParam(r, "userID"),
		ReturnURL: req.ReturnURL,
		AutoRenew: req.AutoRenew,
	})
	if err != nil {
		respond.Error(w, err)
		return
	}

	respond.JSON(w, http.StatusOK, checkoutResponse{
		SubscriptionID: result.SubscriptionID,
		PaymentURL:     result.PaymentURL,
	})
}

// Cancel cancels an active subscription
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	if err := h.service.CancelSubscription(r.Context(), chi.URLParam(r, "userID")); err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// Remove deletes a cancelled subscription
func (h *Handler) Remove(w http.ResponseWriter, r *http.Request) {
	if err := h.service.RemoveSubscription(r.Context(), chi.URLParam(r, "userID")); err != nil {
		respond.Error(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Payments returns a user's charge history
func (h *Handler) Payments(w http.ResponseWriter, r *http.Request) {
	payments, err := h.service.PaymentHistory(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		respond.Error(w, err)
		return
	}
	if payments == nil {
		payments = []*domain.Payment{}
	}
	respond.JSON(w, http.StatusOK, payments)
}
