package webhook

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/kevin07696/subscription-service/internal/domain"
	domainports "github.com/kevin07696/subscription-service/internal/domain/ports"
	"github.com/kevin07696/subscription-service/pkg/observability"
	"github.com/kevin07696/subscription-service/pkg/timeutil"
)

// Service reconciles gateway payment notifications against local state.
// The notification is the authoritative signal for payment outcomes, but it
// must match a payment row this service created: events for unknown gateway
// payment ids are rejected, never used to create state.
type Service struct {
	db        domainports.DBPort
	subs      domainports.SubscriptionRepository
	payments  domainports.PaymentRepository
	scheduler domainports.TaskScheduler
	logger    domainports.Logger
}

// NewService creates a new webhook reconciliation service
func NewService(
	db domainports.DBPort,
	subs domainports.SubscriptionRepository,
	payments domainports.PaymentRepository,
	scheduler domainports.TaskScheduler,
	logger domainports.Logger,
) *Service {
	return &Service{
		db:        db,
		subs:      subs,
		payments:  payments,
		scheduler: scheduler,
		logger:    logger,
	}
}

// ProcessNotification applies one parsed payment event.
//
// Idempotent against at-least-once delivery: a duplicate confirmation for a
// subscription that is no longer pending changes nothing and succeeds.
func (s *Service) ProcessNotification(ctx context.Context, event *domainports.PaymentEvent) error {
	payment, err := s.payments.GetByGatewayID(ctx, nil, event.PaymentID)
	if err != nil {
		if domain.IsNotFoundError(err) {
			observability.ObserveWebhookEvent("unmatched")
			s.logger.Warn("webhook for unknown gateway payment",
				domainports.String("gateway_payment_id", event.PaymentID))
		}
		return err
	}

	subID, err := uuid.Parse(payment.SubscriptionID)
	if err != nil {
		return fmt.Errorf("invalid subscription ID: %w", err)
	}
	sub, err := s.subs.GetByID(ctx, nil, subID)
	if err != nil {
		return err
	}

	if event.Paid {
		return s.applyConfirmation(ctx, sub, payment, subID, event)
	}
	return s.applyFailure(ctx, sub, subID, event)
}

// applyConfirmation activates a pending subscription and arms its deferred
// period-end task
func (s *Service) applyConfirmation(ctx context.Context, sub *domain.Subscription, payment *domain.Payment, subID uuid.UUID, event *domainports.PaymentEvent) error {
	if !sub.CanActivate() {
		observability.ObserveWebhookEvent("duplicate")
		s.logger.Info("duplicate payment confirmation, no change",
			domainports.String("subscription_id", sub.ID),
			domainports.String("status", string(sub.Status)))
		return nil
	}

	paymentID, err := uuid.Parse(payment.ID)
	if err != nil {
		return fmt.Errorf("invalid payment ID: %w", err)
	}

	err = s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if event.StoredMethodID != "" && payment.StoredMethodID == "" {
			if err := s.payments.AttachStoredMethod(ctx, tx, paymentID, event.StoredMethodID); err != nil {
				return err
			}
			payment.StoredMethodID = event.StoredMethodID
		}

		sub.Status = domain.SubscriptionStatusActive
		sub.UpdatedAt = timeutil.Now()
		if err := s.subs.Update(ctx, tx, sub); err != nil {
			return err
		}

		// A raced duplicate delivery may have armed the binding already
		binding, err := s.scheduler.PendingBinding(ctx, tx, subID)
		if err != nil {
			return err
		}
		if binding != nil {
			return nil
		}

		kind := domain.TaskKindExpireSubscription
		if sub.AutoRenew && payment.HasStoredMethod() {
			kind = domain.TaskKindRenewalCharge
		}
		_, err = s.scheduler.ScheduleOnce(ctx, tx, sub.EndDate, kind, subID)
		return err
	})
	if err != nil {
		return err
	}

	observability.ObserveWebhookEvent("applied")
	observability.ObserveTransition(string(domain.SubscriptionStatusPending), string(domain.SubscriptionStatusActive))
	s.logger.Info("subscription activated",
		domainports.String("subscription_id", sub.ID),
		domainports.String("user_id", sub.UserID),
		domainports.Time("end_date", sub.EndDate),
		domainports.Bool("stored_method", payment.HasStoredMethod()))

	return nil
}

// applyFailure cancels a pending subscription whose payment failed
func (s *Service) applyFailure(ctx context.Context, sub *domain.Subscription, subID uuid.UUID, event *domainports.PaymentEvent) error {
	if !sub.IsPending() {
		observability.ObserveWebhookEvent("duplicate")
		s.logger.Info("payment failure for non-pending subscription, no change",
			domainports.String("subscription_id", sub.ID),
			domainports.String("status", string(sub.Status)))
		return nil
	}

	err := s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := s.scheduler.Cancel(ctx, tx, subID); err != nil {
			return err
		}
		sub.Status = domain.SubscriptionStatusCancelled
		sub.UpdatedAt = timeutil.Now()
		return s.subs.Update(ctx, tx, sub)
	})
	if err != nil {
		return err
	}

	observability.ObserveWebhookEvent("applied")
	observability.ObserveTransition(string(domain.SubscriptionStatusPending), string(domain.SubscriptionStatusCancelled))
	s.logger.Info("subscription cancelled after failed payment",
		domainports.String("subscription_id", sub.ID),
		domainports.String("gateway_payment_id", event.PaymentID))

	return nil
}
