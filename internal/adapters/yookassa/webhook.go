package yookassa

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/kevin07696/subscription-service/internal/domain"
	"github.com/kevin07696/subscription-service/internal/domain/ports"
)

// notification is the provider's webhook envelope
type notification struct {
	Type   string     `json:"type"`
	Event  string     `json:"event"`
	Object apiPayment `json:"object"`
}

// Webhook event types the provider delivers for payments
const (
	eventPaymentSucceeded = "payment.succeeded"
	eventPaymentCanceled  = "payment.canceled"
)

// ParseNotification parses an inbound webhook body into a normalized payment
// event. A structurally bad payload yields WEBHOOK_MALFORMED; the gateway
// cannot self-correct such a payload so it must not be asked to retry.
func ParseNotification(body []byte) (*ports.PaymentEvent, error) {
	var n notification
	if err := json.Unmarshal(body, &n); err != nil {
		return nil, domain.WrapError(domain.ErrorCodeWebhookMalformed, "unparseable webhook body", err)
	}

	if n.Object.ID == "" {
		return nil, domain.ErrWebhookMalformed.WithDetail("reason", "missing payment id")
	}

	switch n.Event {
	case eventPaymentSucceeded, eventPaymentCanceled:
	default:
		return nil, domain.ErrWebhookMalformed.WithDetail("event", n.Event)
	}

	event := &ports.PaymentEvent{
		PaymentID: n.Object.ID,
		Status:    n.Object.Status,
		Paid:      n.Object.Paid && n.Event == eventPaymentSucceeded,
	}

	if amount, err := decimal.NewFromString(n.Object.Amount.Value); err == nil {
		event.Amount = amount
	}
	if n.Object.PaymentMethod != nil && n.Object.PaymentMethod.Saved {
		event.StoredMethodID = n.Object.PaymentMethod.ID
	}

	return event, nil
}
