package subscription

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/kevin07696/subscription-service/internal/domain"
	domainports "github.com/kevin07696/subscription-service/internal/domain/ports"
	"github.com/kevin07696/subscription-service/internal/services/ports"
	"github.com/kevin07696/subscription-service/pkg/observability"
	"github.com/kevin07696/subscription-service/pkg/timeutil"
)

// Service implements ports.SubscriptionService. It owns the lifecycle state
// machine: every transition commits subscription state, payment rows, and
// scheduler bindings as one atomic unit.
type Service struct {
	db        domainports.DBPort
	plans     domainports.PlanRepository
	subs      domainports.SubscriptionRepository
	payments  domainports.PaymentRepository
	scheduler domainports.TaskScheduler
	gateway   domainports.PaymentGateway
	logger    domainports.Logger
	currency  string
}

// NewService creates a new subscription lifecycle service
func NewService(
	db domainports.DBPort,
	plans domainports.PlanRepository,
	subs domainports.SubscriptionRepository,
	payments domainports.PaymentRepository,
	scheduler domainports.TaskScheduler,
	gateway domainports.PaymentGateway,
	currency string,
	logger domainports.Logger,
) *Service {
	return &Service{
		db:        db,
		plans:     plans,
		subs:      subs,
		payments:  payments,
		scheduler: scheduler,
		gateway:   gateway,
		currency:  currency,
		logger:    logger,
	}
}

// CreateSubscription starts a new subscription purchase. The gateway call is
// sequenced before any state write: if the provider call fails, no
// subscription or payment row is committed.
func (s *Service) CreateSubscription(ctx context.Context, req ports.CreateSubscriptionRequest) (*ports.CheckoutResponse, error) {
	if req.UserID == "" {
		return nil, domain.ErrValidationMissingField.WithDetail("field", "user_id")
	}
	planID, err := uuid.Parse(req.PlanID)
	if err != nil {
		return nil, domain.ErrValidationFailed.WithDetail("plan_id", req.PlanID)
	}

	plan, err := s.plans.GetByID(ctx, nil, planID)
	if err != nil {
		if domain.IsNotFoundError(err) {
			// The plan id is caller input; an unknown plan is a bad request
			return nil, domain.WrapError(domain.ErrorCodeValidationFailed, "unknown plan", err).
				WithDetail("plan_id", req.PlanID)
		}
		return nil, err
	}

	if _, err := s.subs.GetByUser(ctx, nil, req.UserID); err == nil {
		return nil, domain.ErrAlreadySubscribed.WithDetail("user_id", req.UserID)
	} else if !domain.IsNotFoundError(err) {
		return nil, err
	}

	now := timeutil.Now()
	sub := &domain.Subscription{
		ID:        uuid.New().String(),
		UserID:    req.UserID,
		PlanID:    plan.ID,
		Status:    domain.SubscriptionStatusPending,
		StartDate: now,
		EndDate:   now.AddDate(0, 0, plan.DurationDays),
		AutoRenew: req.AutoRenew,
		CreatedAt: now,
		UpdatedAt: now,
	}

	result, err := s.createGatewayPayment(ctx, plan.Price, req.ReturnURL, req.UserID, req.AutoRenew,
		fmt.Sprintf("Subscription %s for user %s", sub.ID, req.UserID))
	if err != nil {
		return nil, err
	}

	err = s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := s.subs.Create(ctx, tx, sub); err != nil {
			return err
		}
		return s.payments.Create(ctx, tx, &domain.Payment{
			ID:               uuid.New().String(),
			SubscriptionID:   sub.ID,
			UserID:           req.UserID,
			Amount:           plan.Price,
			GatewayPaymentID: result.PaymentID,
			StoredMethodID:   result.StoredMethodID,
			CreatedAt:        now,
		})
	})
	if err != nil {
		s.logger.Error("create subscription failed",
			domainports.String("user_id", req.UserID),
			domainports.Err(err))
		return nil, err
	}

	observability.ObserveTransition("none", string(domain.SubscriptionStatusPending))
	s.logger.Info("subscription created",
		domainports.String("subscription_id", sub.ID),
		domainports.String("user_id", req.UserID),
		domainports.String("plan", plan.Name),
		domainports.Bool("auto_renew", req.AutoRenew))

	return &ports.CheckoutResponse{
		SubscriptionID: sub.ID,
		PaymentURL:     result.ConfirmationURL,
	}, nil
}

// RenewThroughPayment reopens a cancelled subscription with a new redirect
// payment. Legal only from the cancelled state.
func (s *Service) RenewThroughPayment(ctx context.Context, req ports.RenewSubscriptionRequest) (*ports.CheckoutResponse, error) {
	planID, err := uuid.Parse(req.PlanID)
	if err != nil {
		return nil, domain.ErrValidationFailed.WithDetail("plan_id", req.PlanID)
	}

	sub, err := s.subs.GetByUser(ctx, nil, req.UserID)
	if err != nil {
		return nil, err
	}
	if !sub.CanRenewThroughPayment() {
		return nil, domain.ErrInvalidTransition.
			WithDetail("status", string(sub.Status)).
			WithDetail("operation", "renew_through_payment")
	}

	plan, err := s.plans.GetByID(ctx, nil, planID)
	if err != nil {
		if domain.IsNotFoundError(err) {
			return nil, domain.WrapError(domain.ErrorCodeValidationFailed, "unknown plan", err).
				WithDetail("plan_id", req.PlanID)
		}
		return nil, err
	}

	result, err := s.createGatewayPayment(ctx, plan.Price, req.ReturnURL, req.UserID, req.AutoRenew,
		fmt.Sprintf("Renewal for subscription %s user %s", sub.ID, req.UserID))
	if err != nil {
		return nil, err
	}

	now := timeutil.Now()
	err = s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		sub.PlanID = plan.ID
		sub.AutoRenew = req.AutoRenew
		sub.Status = domain.SubscriptionStatusPending
		// Expired periods restart from now; an early renewal stacks onto the
		// remaining time.
		sub.EndDate = timeutil.Max(now, sub.EndDate).AddDate(0, 0, plan.DurationDays)
		sub.UpdatedAt = now

		if err := s.subs.Update(ctx, tx, sub); err != nil {
			return err
		}
		return s.payments.Create(ctx, tx, &domain.Payment{
			ID:               uuid.New().String(),
			SubscriptionID:   sub.ID,
			UserID:           req.UserID,
			Amount:           plan.Price,
			GatewayPaymentID: result.PaymentID,
			StoredMethodID:   result.StoredMethodID,
			CreatedAt:        now,
		})
	})
	if err != nil {
		s.logger.Error("renew subscription failed",
			domainports.String("subscription_id", sub.ID),
			domainports.Err(err))
		return nil, err
	}

	observability.ObserveTransition(string(domain.SubscriptionStatusCancelled), string(domain.SubscriptionStatusPending))
	s.logger.Info("subscription renewal initiated",
		domainports.String("subscription_id", sub.ID),
		domainports.String("user_id", req.UserID),
		domainports.String("plan", plan.Name))

	return &ports.CheckoutResponse{
		SubscriptionID: sub.ID,
		PaymentURL:     result.ConfirmationURL,
	}, nil
}

// CancelSubscription cancels an active subscription, refunding the current
// plan price against the last stored payment method when one exists. A
// failed refund aborts the cancellation: the subscription stays active and
// the gateway error propagates.
func (s *Service) CancelSubscription(ctx context.Context, userID string) error {
	sub, err := s.subs.GetByUser(ctx, nil, userID)
	if err != nil {
		return err
	}
	if !sub.CanCancel() {
		return domain.ErrInvalidTransition.
			WithDetail("status", string(sub.Status)).
			WithDetail("operation", "cancel")
	}

	subID, err := uuid.Parse(sub.ID)
	if err != nil {
		return fmt.Errorf("invalid subscription ID: %w", err)
	}
	planID, err := uuid.Parse(sub.PlanID)
	if err != nil {
		return fmt.Errorf("invalid plan ID: %w", err)
	}
	plan, err := s.plans.GetByID(ctx, nil, planID)
	if err != nil {
		return err
	}

	lastPayment, err := s.payments.LastWithStoredMethod(ctx, nil, subID)
	if err != nil && !domain.IsNotFoundError(err) {
		return err
	}

	if lastPayment != nil {
		start := timeutil.Now()
		_, refundErr := s.gateway.Refund(ctx, domainports.RefundRequest{
			PaymentID: lastPayment.GatewayPaymentID,
			Amount:    plan.Price,
			Currency:  s.currency,
		})
		observability.ObserveGatewayCall("refund", refundErr == nil, time.Since(start))
		if refundErr != nil {
			s.logger.Error("refund failed, subscription stays active",
				domainports.String("subscription_id", sub.ID),
				domainports.String("gateway_payment_id", lastPayment.GatewayPaymentID),
				domainports.Err(refundErr))
			return refundErr
		}
	}

	err = s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
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

	observability.ObserveTransition(string(domain.SubscriptionStatusActive), string(domain.SubscriptionStatusCancelled))
	s.logger.Info("subscription cancelled",
		domainports.String("subscription_id", sub.ID),
		domainports.String("user_id", userID),
		domainports.Bool("refunded", lastPayment != nil))

	return nil
}

// RemoveSubscription hard-deletes a cancelled subscription row and tears
// down any lingering scheduler binding
func (s *Service) RemoveSubscription(ctx context.Context, userID string) error {
	sub, err := s.subs.GetByUser(ctx, nil, userID)
	if err != nil {
		return err
	}
	if !sub.CanRemove() {
		return domain.ErrInvalidTransition.
			WithDetail("status", string(sub.Status)).
			WithDetail("operation", "remove")
	}

	subID, err := uuid.Parse(sub.ID)
	if err != nil {
		return fmt.Errorf("invalid subscription ID: %w", err)
	}

	err = s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := s.scheduler.Cancel(ctx, tx, subID); err != nil {
			return err
		}
		return s.subs.Delete(ctx, tx, subID)
	})
	if err != nil {
		return err
	}

	s.logger.Info("subscription removed",
		domainports.String("subscription_id", sub.ID),
		domainports.String("user_id", userID))

	return nil
}

// GetByUser retrieves the subscription for a user
func (s *Service) GetByUser(ctx context.Context, userID string) (*domain.Subscription, error) {
	return s.subs.GetByUser(ctx, nil, userID)
}

// PaymentHistory returns a user's charge history
func (s *Service) PaymentHistory(ctx context.Context, userID string) ([]*domain.Payment, error) {
	return s.payments.ListByUser(ctx, nil, userID)
}

// createGatewayPayment issues a redirect-based charge and records the call
func (s *Service) createGatewayPayment(ctx context.Context, amount decimal.Decimal, returnURL, userID string, saveMethod bool, description string) (*domainports.PaymentResult, error) {
	start := timeutil.Now()
	result, err := s.gateway.CreatePayment(ctx, domainports.CreatePaymentRequest{
		Amount:      amount,
		Currency:    s.currency,
		ReturnURL:   returnURL,
		UserID:      userID,
		SaveMethod:  saveMethod,
		Description: description,
	})
	observability.ObserveGatewayCall("create_payment", err == nil, time.Since(start))
	if err != nil {
		s.logger.Error("gateway create payment failed",
			domainports.String("user_id", userID),
			domainports.Err(err))
		return nil, err
	}
	return result, nil
}
