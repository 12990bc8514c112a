package domain

import (
	"time"

	"github.com/google/uuid"
)

// TaskKind identifies the deferred action a scheduled task fires
type TaskKind string

const (
	// TaskKindRenewalCharge charges the stored payment method when the
	// current period ends.
	TaskKindRenewalCharge TaskKind = "renewal_charge"
	// TaskKindExpireSubscription stops the subscription when the current
	// period ends and no auto-renewal is armed.
	TaskKindExpireSubscription TaskKind = "expire_subscription"
)

// TaskStatus represents the scheduled task state
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusDone       TaskStatus = "done"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

// ScheduledTask is the scheduler binding: at most one pending task exists per
// subscription, and the binding owns the task row outright. Cancelling the
// binding deletes the task; they share a lifetime.
type ScheduledTask struct {
	RunAt          time.Time  `json:"run_at"`
	CreatedAt      time.Time  `json:"created_at"`
	LockedUntil    *time.Time `json:"locked_until,omitempty"`
	LockedBy       *uuid.UUID `json:"locked_by,omitempty"`
	ID             string     `json:"id"`
	SubscriptionID string     `json:"subscription_id"`
	Kind           TaskKind   `json:"kind"`
	Status         TaskStatus `json:"status"`
	Attempts       int        `json:"attempts"`
}
