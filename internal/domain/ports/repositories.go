package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/kevin07696/subscription-service/internal/domain"
)

// PlanRepository persists the immutable plan catalog
type PlanRepository interface {
	Create(ctx context.Context, tx DBTX, plan *domain.Plan) error
	GetByID(ctx context.Context, tx DBTX, id uuid.UUID) (*domain.Plan, error)
	List(ctx context.Context, tx DBTX) ([]*domain.Plan, error)
}

// SubscriptionRepository persists subscriptions. GetByUser operates on the
// single live row per user; Delete is only legal for cancelled rows and is
// enforced by the service layer.
type SubscriptionRepository interface {
	Create(ctx context.Context, tx DBTX, sub *domain.Subscription) error
	GetByID(ctx context.Context, tx DBTX, id uuid.UUID) (*domain.Subscription, error)
	GetByUser(ctx context.Context, tx DBTX, userID string) (*domain.Subscription, error)
	Update(ctx context.Context, tx DBTX, sub *domain.Subscription) error
	Delete(ctx context.Context, tx DBTX, id uuid.UUID) error
}

// PaymentRepository persists the append-only charge history
type PaymentRepository interface {
	Create(ctx context.Context, tx DBTX, payment *domain.Payment) error
	GetByGatewayID(ctx context.Context, tx DBTX, gatewayPaymentID string) (*domain.Payment, error)
	ListByUser(ctx context.Context, tx DBTX, userID string) ([]*domain.Payment, error)
	// LastWithStoredMethod returns the most recent payment carrying a stored
	// payment method id for a subscription, or NOT_FOUND_PAYMENT.
	LastWithStoredMethod(ctx context.Context, tx DBTX, subscriptionID uuid.UUID) (*domain.Payment, error)
	// AttachStoredMethod records a stored-method id that arrived via webhook
	// after the payment row was created. The only legal payment mutation.
	AttachStoredMethod(ctx context.Context, tx DBTX, paymentID uuid.UUID, storedMethodID string) error
}

// TaskRepository persists scheduler bindings and backs the polling worker.
// The pending-row unique index on subscription_id enforces the one-binding-
// per-subscription invariant at the store level.
type TaskRepository interface {
	Create(ctx context.Context, tx DBTX, task *domain.ScheduledTask) error
	// GetPendingBySubscription returns the armed binding, or nil when none
	GetPendingBySubscription(ctx context.Context, tx DBTX, subscriptionID uuid.UUID) (*domain.ScheduledTask, error)
	// CancelPending tears down the armed binding for a subscription.
	// Idempotent: cancelling when no binding is armed is a no-op.
	CancelPending(ctx context.Context, tx DBTX, subscriptionID uuid.UUID) error
	// ClaimDue atomically claims the next due pending task for a worker,
	// locking it until lockedUntil. Returns nil when nothing is due.
	ClaimDue(ctx context.Context, tx DBTX, workerID uuid.UUID, now time.Time, lockedUntil time.Time) (*domain.ScheduledTask, error)
	MarkDone(ctx context.Context, tx DBTX, taskID uuid.UUID) error
	// Release returns a claimed task to pending so a later poll retries it
	Release(ctx context.Context, tx DBTX, taskID uuid.UUID) error
}
