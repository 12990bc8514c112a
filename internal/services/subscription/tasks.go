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
	"github.com/kevin07696/subscription-service/pkg/observability"
	"github.com/kevin07696/subscription-service/pkg/timeutil"
)

// HandleRenewalCharge fires when a subscription period ends with auto-renew
// on. It charges the stored payment method off-session: success extends the
// period and re-arms the next renewal, a decline cancels the subscription.
//
// Delivery is at-least-once, so the handler re-checks the armed binding and
// the subscription status before acting. A duplicate firing after the first
// one committed finds no pending binding and returns nil.
func (s *Service) HandleRenewalCharge(ctx context.Context, subscriptionID uuid.UUID) error {
	binding, err := s.scheduler.PendingBinding(ctx, nil, subscriptionID)
	if err != nil {
		return err
	}
	if binding == nil || binding.Kind != domain.TaskKindRenewalCharge {
		return nil
	}

	sub, err := s.subs.GetByID(ctx, nil, subscriptionID)
	if err != nil {
		if domain.IsNotFoundError(err) {
			// Subscription was removed after the task fired; drop the binding.
			return s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
				return s.scheduler.Cancel(ctx, tx, subscriptionID)
			})
		}
		return err
	}

	if !sub.IsActive() {
		s.logger.Warn("renewal fired for non-active subscription, disarming",
			domainports.String("subscription_id", sub.ID),
			domainports.String("status", string(sub.Status)))
		return s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
			return s.scheduler.Cancel(ctx, tx, subscriptionID)
		})
	}

	planID, err := uuid.Parse(sub.PlanID)
	if err != nil {
		return fmt.Errorf("invalid plan ID: %w", err)
	}
	plan, err := s.plans.GetByID(ctx, nil, planID)
	if err != nil {
		return err
	}

	lastPayment, err := s.payments.LastWithStoredMethod(ctx, nil, subscriptionID)
	if err != nil {
		if domain.IsNotFoundError(err) {
			// Auto-renew with nothing to charge against cannot succeed
			return s.cancelAfterFailedRenewal(ctx, sub, subscriptionID, "no stored payment method")
		}
		return err
	}

	// A prior firing may have charged successfully and then lost the response
	// to a timeout. Charging again without checking would double-charge, so a
	// retry reconciles against the provider's payment list first.
	var result *domainports.PaymentResult
	if binding.Attempts > 1 {
		result, err = s.findSettledCharge(ctx, sub, plan.Price)
		if err != nil {
			return err
		}
		if result != nil {
			s.logger.Info("recovered settled charge from earlier attempt",
				domainports.String("subscription_id", sub.ID),
				domainports.String("gateway_payment_id", result.PaymentID))
		}
	}

	if result == nil {
		start := timeutil.Now()
		var chargeErr error
		result, chargeErr = s.gateway.ChargeStoredMethod(ctx, domainports.ChargeStoredMethodRequest{
			Amount:         plan.Price,
			Currency:       s.currency,
			UserID:         sub.UserID,
			StoredMethodID: lastPayment.StoredMethodID,
			Description:    fmt.Sprintf("Renewal for subscription %s", sub.ID),
		})
		observability.ObserveGatewayCall("charge_stored_method", chargeErr == nil, time.Since(start))

		if chargeErr != nil {
			// An unknown outcome must not cancel the subscription: the charge
			// may have succeeded provider-side. Surface the error so the
			// worker releases the task; the retry reconciles before charging.
			if domain.GetErrorCode(chargeErr) == domain.ErrorCodeGatewayTimeout {
				return chargeErr
			}
			s.logger.Warn("renewal charge declined",
				domainports.String("subscription_id", sub.ID),
				domainports.Err(chargeErr))
			return s.cancelAfterFailedRenewal(ctx, sub, subscriptionID, "charge declined")
		}
	}

	now := timeutil.Now()
	err = s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := s.scheduler.Cancel(ctx, tx, subscriptionID); err != nil {
			return err
		}
		sub.ExtendBy(plan.DurationDays)
		sub.UpdatedAt = now
		if err := s.subs.Update(ctx, tx, sub); err != nil {
			return err
		}
		storedMethodID := result.StoredMethodID
		if storedMethodID == "" {
			storedMethodID = lastPayment.StoredMethodID
		}
		if err := s.payments.Create(ctx, tx, &domain.Payment{
			ID:               uuid.New().String(),
			SubscriptionID:   sub.ID,
			UserID:           sub.UserID,
			Amount:           plan.Price,
			GatewayPaymentID: result.PaymentID,
			StoredMethodID:   storedMethodID,
			CreatedAt:        now,
		}); err != nil {
			return err
		}
		_, err := s.scheduler.ScheduleOnce(ctx, tx, sub.EndDate, domain.TaskKindRenewalCharge, subscriptionID)
		return err
	})
	if err != nil {
		return err
	}

	s.logger.Info("subscription renewed",
		domainports.String("subscription_id", sub.ID),
		domainports.Time("new_end_date", sub.EndDate))

	return nil
}

// findSettledCharge scans the user's recent provider-side payments for a
// succeeded charge of the expected amount that never made it into local
// state. Returns nil when every settled payment is already recorded.
func (s *Service) findSettledCharge(ctx context.Context, sub *domain.Subscription, amount decimal.Decimal) (*domainports.PaymentResult, error) {
	candidates, err := s.gateway.ListRecentPayments(ctx, sub.UserID)
	if err != nil {
		return nil, err
	}

	for _, candidate := range candidates {
		if !candidate.Paid || !candidate.Amount.Equal(amount) {
			continue
		}
		if _, err := s.payments.GetByGatewayID(ctx, nil, candidate.PaymentID); err == nil {
			continue
		} else if !domain.IsNotFoundError(err) {
			return nil, err
		}
		return candidate, nil
	}
	return nil, nil
}

// HandleExpiry fires when a subscription period ends with auto-renew off.
// Idempotent: a duplicate firing finds the subscription already cancelled.
func (s *Service) HandleExpiry(ctx context.Context, subscriptionID uuid.UUID) error {
	sub, err := s.subs.GetByID(ctx, nil, subscriptionID)
	if err != nil {
		if domain.IsNotFoundError(err) {
			return s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
				return s.scheduler.Cancel(ctx, tx, subscriptionID)
			})
		}
		return err
	}

	expired := false
	err = s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := s.scheduler.Cancel(ctx, tx, subscriptionID); err != nil {
			return err
		}
		if !sub.IsActive() {
			return nil
		}
		sub.Status = domain.SubscriptionStatusCancelled
		sub.UpdatedAt = timeutil.Now()
		expired = true
		return s.subs.Update(ctx, tx, sub)
	})
	if err != nil {
		return err
	}

	if expired {
		observability.ObserveTransition(string(domain.SubscriptionStatusActive), string(domain.SubscriptionStatusCancelled))
		s.logger.Info("subscription expired",
			domainports.String("subscription_id", sub.ID),
			domainports.String("user_id", sub.UserID))
	}
	return nil
}

// cancelAfterFailedRenewal commits the cancelled state plus binding teardown
// as one transaction. A failed renewal is a business outcome, not a handler
// error, so callers return nil afterwards.
func (s *Service) cancelAfterFailedRenewal(ctx context.Context, sub *domain.Subscription, subscriptionID uuid.UUID, reason string) error {
	err := s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := s.scheduler.Cancel(ctx, tx, subscriptionID); err != nil {
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
	s.logger.Info("subscription cancelled after failed renewal",
		domainports.String("subscription_id", sub.ID),
		domainports.String("reason", reason))
	return nil
}
