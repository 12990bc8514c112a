package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kevin07696/subscription-service/internal/domain"
	"github.com/kevin07696/subscription-service/internal/domain/ports"
)

// TaskRepository implements ports.TaskRepository. A partial unique index on
// (subscription_id) WHERE status IN ('pending','processing') enforces the
// one-binding-per-subscription invariant at the store level.
type TaskRepository struct {
	db ports.DBPort
}

// NewTaskRepository creates a new scheduled task repository
func NewTaskRepository(db ports.DBPort) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) executor(tx ports.DBTX) ports.DBTX {
	if tx != nil {
		return tx
	}
	return r.db.GetDB()
}

const taskColumns = `id, subscription_id, kind, status, run_at, attempts, locked_until, locked_by, created_at`

// Create arms a new pending task
func (r *TaskRepository) Create(ctx context.Context, tx ports.DBTX, task *domain.ScheduledTask) error {
	id, err := uuid.Parse(task.ID)
	if err != nil {
		return fmt.Errorf("invalid task ID: %w", err)
	}
	subID, err := uuid.Parse(task.SubscriptionID)
	if err != nil {
		return fmt.Errorf("invalid subscription ID: %w", err)
	}

	_, err = r.executor(tx).Exec(ctx, `
		INSERT INTO scheduled_tasks (id, subscription_id, kind, status, run_at, attempts, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, subID, string(task.Kind), string(task.Status), task.RunAt, task.Attempts, task.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create scheduled task: %w", err)
	}

	return nil
}

// GetPendingBySubscription returns the armed task for a subscription, or
// nil when no binding is armed
func (r *TaskRepository) GetPendingBySubscription(ctx context.Context, tx ports.DBTX, subscriptionID uuid.UUID) (*domain.ScheduledTask, error) {
	row := r.executor(tx).QueryRow(ctx, `
		SELECT `+taskColumns+` FROM scheduled_tasks
		WHERE subscription_id = $1 AND status IN ('pending', 'processing')`,
		subscriptionID,
	)

	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get pending task: %w", err)
	}

	return task, nil
}

// CancelPending disarms the binding for a subscription. Deleting the binding
// deletes the task row with it; cancelling when nothing is armed is a no-op.
func (r *TaskRepository) CancelPending(ctx context.Context, tx ports.DBTX, subscriptionID uuid.UUID) error {
	_, err := r.executor(tx).Exec(ctx, `
		DELETE FROM scheduled_tasks
		WHERE subscription_id = $1 AND status IN ('pending', 'processing')`,
		subscriptionID,
	)
	if err != nil {
		return fmt.Errorf("cancel pending task: %w", err)
	}
	return nil
}

// ClaimDue atomically claims the next due pending task for a worker.
// FOR UPDATE SKIP LOCKED lets concurrent workers claim disjoint rows; an
// expired lock makes a processing row claimable again, which is where the
// at-least-once delivery semantics come from.
func (r *TaskRepository) ClaimDue(ctx context.Context, tx ports.DBTX, workerID uuid.UUID, now time.Time, lockedUntil time.Time) (*domain.ScheduledTask, error) {
	row := r.executor(tx).QueryRow(ctx, `
		UPDATE scheduled_tasks
		SET status = 'processing', locked_by = $1, locked_until = $2, attempts = attempts + 1
		WHERE id = (
			SELECT id FROM scheduled_tasks
			WHERE run_at <= $3
			  AND (status = 'pending' OR (status = 'processing' AND locked_until < $3))
			ORDER BY run_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+taskColumns,
		workerID, lockedUntil, now,
	)

	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("claim due task: %w", err)
	}

	return task, nil
}

// MarkDone finishes a claimed task
func (r *TaskRepository) MarkDone(ctx context.Context, tx ports.DBTX, taskID uuid.UUID) error {
	_, err := r.executor(tx).Exec(ctx, `
		UPDATE scheduled_tasks
		SET status = 'done', locked_by = NULL, locked_until = NULL
		WHERE id = $1 AND status = 'processing'`,
		taskID,
	)
	if err != nil {
		return fmt.Errorf("mark task done: %w", err)
	}
	return nil
}

// Release returns a claimed task to pending so a later poll retries it
func (r *TaskRepository) Release(ctx context.Context, tx ports.DBTX, taskID uuid.UUID) error {
	_, err := r.executor(tx).Exec(ctx, `
		UPDATE scheduled_tasks
		SET status = 'pending', locked_by = NULL, locked_until = NULL
		WHERE id = $1 AND status = 'processing'`,
		taskID,
	)
	if err != nil {
		return fmt.Errorf("release task: %w", err)
	}
	return nil
}

func scanTask(row pgx.Row) (*domain.ScheduledTask, error) {
	var (
		task        domain.ScheduledTask
		id          uuid.UUID
		subID       uuid.UUID
		kind        string
		status      string
		lockedUntil pgtype.Timestamptz
		lockedBy    pgtype.UUID
	)

	if err := row.Scan(&id, &subID, &kind, &status, &task.RunAt, &task.Attempts, &lockedUntil, &lockedBy, &task.CreatedAt); err != nil {
		return nil, err
	}

	task.ID = id.String()
	task.SubscriptionID = subID.String()
	task.Kind = domain.TaskKind(kind)
	task.Status = domain.TaskStatus(status)
	if lockedUntil.Valid {
		task.LockedUntil = &lockedUntil.Time
	}
	if lockedBy.Valid {
		workerID := uuid.UUID(lockedBy.Bytes)
		task.LockedBy = &workerID
	}
	return &task, nil
}
