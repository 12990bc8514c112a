package ports

import (
	"context"

	"github.com/kevin07696/subscription-service/internal/domain"
)

// CreateSubscriptionRequest starts a new subscription purchase
type CreateSubscriptionRequest struct {
	PlanID    string
	UserID    string
	ReturnURL string
	AutoRenew bool
}

// RenewSubscriptionRequest reopens a cancelled subscription through a new
// redirect payment
type RenewSubscriptionRequest struct {
	PlanID    string
	UserID    string
	ReturnURL string
	AutoRenew bool
}

// CheckoutResponse carries the gateway redirect URL for a newly initiated
// payment
type CheckoutResponse struct {
	SubscriptionID string
	PaymentURL     string
}

// SubscriptionService drives the subscription lifecycle state machine
type SubscriptionService interface {
	CreateSubscription(ctx context.Context, req CreateSubscriptionRequest) (*CheckoutResponse, error)
	RenewThroughPayment(ctx context.Context, req RenewSubscriptionRequest) (*CheckoutResponse, error)
	CancelSubscription(ctx context.Context, userID string) error
	RemoveSubscription(ctx context.Context, userID string) error
	GetByUser(ctx context.Context, userID string) (*domain.Subscription, error)
	PaymentHistory(ctx context.Context, userID string) ([]*domain.Payment, error)
}

// PlanService manages the immutable plan catalog
type PlanService interface {
	CreatePlan(ctx context.Context, name string, price string, durationDays int) (*domain.Plan, error)
	ListPlans(ctx context.Context) ([]*domain.Plan, error)
}
