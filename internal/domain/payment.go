package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment is an append-only record of one attempted charge. A payment belongs
// to exactly one subscription and is retained indefinitely for audit history.
// The only legal mutation after creation is attaching a stored payment method
// id that arrives later via webhook.
type Payment struct {
	CreatedAt        time.Time       `json:"created_at"`
	ID               string          `json:"id"`
	SubscriptionID   string          `json:"subscription_id"`
	UserID           string          `json:"user_id"`
	GatewayPaymentID string          `json:"gateway_payment_id"`
	StoredMethodID   string          `json:"stored_method_id,omitempty"`
	Amount           decimal.Decimal `json:"amount"`
}

// HasStoredMethod reports whether the gateway confirmed a reusable payment
// method for this charge. Only such payments can back off-session renewals.
func (p *Payment) HasStoredMethod() bool {
	return p.StoredMethodID != ""
}
