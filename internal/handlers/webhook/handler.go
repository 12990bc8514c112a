package webhook

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kevin07696/subscription-service/internal/domain"
	domainports "github.com/kevin07696/subscription-service/internal/domain/ports"
	"github.com/kevin07696/subscription-service/internal/handlers/respond"
	"github.com/kevin07696/subscription-service/internal/services/ports"
)

// maxBodySize bounds webhook payloads; provider notifications are small
const maxBodySize = 1 << 20

// Parser turns a raw webhook payload into a normalized payment event
type Parser func(body []byte) (*domainports.PaymentEvent, error)

// Handler receives asynchronous payment notifications from the gateway.
//
// Status codes signal retry behavior to the provider: 200 only after the
// event is durably applied (or recognized as a duplicate), 400 for payloads
// that will never succeed (malformed or unmatched), 500 for transient
// failures the provider should redeliver.
type Handler struct {
	service ports.WebhookService
	parse   Parser
	logger  domainports.Logger
}

// NewHandler creates a new webhook handler
func NewHandler(service ports.WebhookService, parse Parser, logger domainports.Logger) *Handler {
	return &Handler{service: service, parse: parse, logger: logger}
}

// Routes mounts the webhook receiver on a chi router
func (h *Handler) Routes(r chi.Router) {
	r.Post("/webhooks/payments", h.Receive)
}

// Receive handles one payment notification
func (h *Handler) Receive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		respond.Error(w, domain.ErrWebhookMalformed)
		return
	}

	event, err := h.parse(body)
	if err != nil {
		h.logger.Warn("malformed webhook payload", domainports.Err(err))
		respond.Error(w, err)
		return
	}

	if err := h.service.ProcessNotification(r.Context(), event); err != nil {
		// An unmatched payment id will never match on redelivery; tell the
		// provider to stop retrying.
		if domain.IsNotFoundError(err) {
			respond.JSON(w, http.StatusBadRequest, respond.ErrorBody{
				Error: err.Error(),
				Code:  string(domain.GetErrorCode(err)),
			})
			return
		}
		h.logger.Error("webhook processing failed",
			domainports.String("gateway_payment_id", event.PaymentID),
			domainports.Err(err))
		// Do not leak internals to the provider; 500 is enough to redeliver
		respond.Error(w, domain.ErrInternalError)
		return
	}

	respond.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
