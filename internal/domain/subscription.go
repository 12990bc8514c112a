package domain

import (
	"time"
)

// SubscriptionStatus represents the subscription lifecycle state
type SubscriptionStatus string

const (
	// SubscriptionStatusPending means a payment has been initiated and the
	// gateway has not yet confirmed it.
	SubscriptionStatusPending SubscriptionStatus = "pending"
	// SubscriptionStatusActive means the latest payment was confirmed and the
	// subscription is currently usable.
	SubscriptionStatusActive SubscriptionStatus = "active"
	// SubscriptionStatusCancelled is the terminal state, reached by failed
	// payment, failed renewal charge, expiry, or user cancellation.
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
)

// Subscription is the central lifecycle entity. One live subscription row
// exists per user; status moves only through the transitions encoded in the
// CanX helpers below.
type Subscription struct {
	StartDate time.Time          `json:"start_date"`
	EndDate   time.Time          `json:"end_date"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
	ID        string             `json:"id"`
	UserID    string             `json:"user_id"`
	PlanID    string             `json:"plan_id"`
	Status    SubscriptionStatus `json:"status"`
	AutoRenew bool               `json:"auto_renew"`
}

// IsPending returns true while payment confirmation is outstanding
func (s *Subscription) IsPending() bool {
	return s.Status == SubscriptionStatusPending
}

// IsActive returns true if the subscription is currently usable
func (s *Subscription) IsActive() bool {
	return s.Status == SubscriptionStatusActive
}

// IsCancelled returns true if the subscription reached the terminal state
func (s *Subscription) IsCancelled() bool {
	return s.Status == SubscriptionStatusCancelled
}

// CanActivate reports whether a confirmed payment may move the subscription
// to active. Only pending subscriptions activate; re-delivery of a payment
// confirmation for an already-active subscription is a no-op for the caller.
func (s *Subscription) CanActivate() bool {
	return s.Status == SubscriptionStatusPending
}

// CanCancel reports whether a user-initiated cancellation is legal
func (s *Subscription) CanCancel() bool {
	return s.Status == SubscriptionStatusActive
}

// CanRenewThroughPayment reports whether a new redirect payment may reopen
// the subscription. Legal only from the terminal state.
func (s *Subscription) CanRenewThroughPayment() bool {
	return s.Status == SubscriptionStatusCancelled
}

// CanRemove reports whether the row may be hard-deleted
func (s *Subscription) CanRemove() bool {
	return s.Status == SubscriptionStatusCancelled
}

// ExtendBy pushes end_date forward by the plan duration. Extension is always
// applied to the current end_date so consecutive renewals stack.
func (s *Subscription) ExtendBy(days int) {
	s.EndDate = s.EndDate.AddDate(0, 0, days)
}

// Validate checks the base invariant end_date >= start_date
func (s *Subscription) Validate() error {
	if s.EndDate.Before(s.StartDate) {
		return ErrValidationFailed.
			WithDetail("start_date", s.StartDate).
			WithDetail("end_date", s.EndDate)
	}
	switch s.Status {
	case SubscriptionStatusPending, SubscriptionStatusActive, SubscriptionStatusCancelled:
	default:
		return ErrValidationFailed.WithDetail("status", string(s.Status))
	}
	return nil
}
