package ports

import (
	"context"

	domainports "github.com/kevin07696/subscription-service/internal/domain/ports"
)

// WebhookService reconciles asynchronous payment-status notifications
// against local subscription and payment state
type WebhookService interface {
	// ProcessNotification applies one parsed payment event. Idempotent
	// against duplicate delivery.
	ProcessNotification(ctx context.Context, event *domainports.PaymentEvent) error
}
