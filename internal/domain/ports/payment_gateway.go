package ports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// CreatePaymentRequest initiates a redirect-based charge
type CreatePaymentRequest struct {
	Amount      decimal.Decimal
	Currency    string
	ReturnURL   string
	UserID      string
	SaveMethod  bool
	Description string
}

// ChargeStoredMethodRequest performs an off-session charge against a
// previously saved payment method
type ChargeStoredMethodRequest struct {
	Amount         decimal.Decimal
	Currency       string
	UserID         string
	StoredMethodID string
	Description    string
}

// RefundRequest refunds a previously captured payment
type RefundRequest struct {
	PaymentID string
	Amount    decimal.Decimal
	Currency  string
}

// PaymentResult is the normalized provider response for payment operations.
// Optional provider fields are explicit here so their absence is type-checked
// rather than discovered at runtime.
type PaymentResult struct {
	CreatedAt       time.Time
	Metadata        map[string]string
	PaymentID       string
	Status          string
	ConfirmationURL string
	Description     string
	StoredMethodID  string
	Amount          decimal.Decimal
	Paid            bool
}

// RefundResult is the normalized provider response for refunds
type RefundResult struct {
	CreatedAt time.Time
	RefundID  string
	PaymentID string
	Status    string
	Amount    decimal.Decimal
}

// PaymentEvent is a parsed asynchronous payment-status notification from the
// gateway. Delivery is at-least-once and possibly duplicated.
type PaymentEvent struct {
	PaymentID      string
	Status         string
	StoredMethodID string
	Amount         decimal.Decimal
	Paid           bool
}

// PaymentGateway is the typed wrapper around the external payment provider.
// The client performs no retries itself; retry policy belongs to the caller,
// which alone knows whether a retry risks a double charge.
type PaymentGateway interface {
	// CreatePayment initiates a redirect-based charge. A fresh idempotency
	// key is generated per call.
	CreatePayment(ctx context.Context, req CreatePaymentRequest) (*PaymentResult, error)

	// ChargeStoredMethod performs an off-session charge with a saved method
	ChargeStoredMethod(ctx context.Context, req ChargeStoredMethodRequest) (*PaymentResult, error)

	// CancelPayment cancels a payment awaiting capture
	CancelPayment(ctx context.Context, paymentID string) (*PaymentResult, error)

	// Refund refunds a captured payment
	Refund(ctx context.Context, req RefundRequest) (*RefundResult, error)

	// GetPayment looks up the provider-side state of a payment. Used for
	// reconciliation after an unknown-outcome timeout.
	GetPayment(ctx context.Context, paymentID string) (*PaymentResult, error)

	// ListRecentPayments returns recent provider-side payments tagged with
	// the user's id, newest first. A timed-out charge has no payment id to
	// look up, so reconciliation scans the user's payments instead.
	ListRecentPayments(ctx context.Context, userID string) ([]*PaymentResult, error)
}
