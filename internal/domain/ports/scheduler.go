package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/kevin07696/subscription-service/internal/domain"
)

// TaskScheduler arms one-off deferred callbacks at an absolute future time.
// Both operations take a DBTX so arming and cancelling participate in the
// same transaction as the subscription state change that justifies them.
type TaskScheduler interface {
	// ScheduleOnce arms a task to fire once at runAt. The store rejects a
	// second pending task for the same subscription.
	ScheduleOnce(ctx context.Context, tx DBTX, runAt time.Time, kind domain.TaskKind, subscriptionID uuid.UUID) (*domain.ScheduledTask, error)

	// Cancel disarms the pending task for a subscription. Idempotent:
	// cancelling an already-fired or already-cancelled task is a no-op.
	Cancel(ctx context.Context, tx DBTX, subscriptionID uuid.UUID) error

	// PendingBinding returns the armed task for a subscription, or nil when
	// none is armed. Handlers use it to detect raced duplicate firings.
	PendingBinding(ctx context.Context, tx DBTX, subscriptionID uuid.UUID) (*domain.ScheduledTask, error)
}

// TaskHandler executes a fired deferred task. Handlers must tolerate
// at-least-once delivery: a second invocation for the same task must be a
// no-op, not an error.
type TaskHandler func(ctx context.Context, subscriptionID uuid.UUID) error
