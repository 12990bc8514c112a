package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/kevin07696/subscription-service/internal/domain"
	"github.com/kevin07696/subscription-service/internal/domain/ports"
	"github.com/kevin07696/subscription-service/pkg/timeutil"
)

// PostgresScheduler implements ports.TaskScheduler on the scheduled_tasks
// table. Both operations run against the caller's transaction so arming and
// disarming commit atomically with the subscription state they belong to.
type PostgresScheduler struct {
	tasks  ports.TaskRepository
	logger ports.Logger
}

// NewPostgresScheduler creates a scheduler over the task repository
func NewPostgresScheduler(tasks ports.TaskRepository, logger ports.Logger) *PostgresScheduler {
	return &PostgresScheduler{tasks: tasks, logger: logger}
}

// ScheduleOnce arms a task to fire once at runAt. The store's unique index
// rejects a second pending binding for the same subscription.
func (s *PostgresScheduler) ScheduleOnce(ctx context.Context, tx ports.DBTX, runAt time.Time, kind domain.TaskKind, subscriptionID uuid.UUID) (*domain.ScheduledTask, error) {
	task := &domain.ScheduledTask{
		ID:             uuid.New().String(),
		SubscriptionID: subscriptionID.String(),
		Kind:           kind,
		Status:         domain.TaskStatusPending,
		RunAt:          timeutil.ToUTC(runAt),
		CreatedAt:      timeutil.Now(),
	}

	if err := s.tasks.Create(ctx, tx, task); err != nil {
		return nil, err
	}

	s.logger.Debug("deferred task armed",
		ports.String("task_id", task.ID),
		ports.String("subscription_id", task.SubscriptionID),
		ports.String("kind", string(kind)),
		ports.Time("run_at", task.RunAt))

	return task, nil
}

// Cancel disarms the pending task for a subscription. Idempotent.
func (s *PostgresScheduler) Cancel(ctx context.Context, tx ports.DBTX, subscriptionID uuid.UUID) error {
	return s.tasks.CancelPending(ctx, tx, subscriptionID)
}

// PendingBinding returns the armed task for a subscription, or nil
func (s *PostgresScheduler) PendingBinding(ctx context.Context, tx ports.DBTX, subscriptionID uuid.UUID) (*domain.ScheduledTask, error) {
	return s.tasks.GetPendingBySubscription(ctx, tx, subscriptionID)
}
