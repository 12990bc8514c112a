package webhook

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kevin07696/subscription-service/internal/domain"
	domainports "github.com/kevin07696/subscription-service/internal/domain/ports"
	"github.com/kevin07696/subscription-service/internal/logging"
	"github.com/kevin07696/subscription-service/internal/testutil/mocks"
)

type serviceMocks struct {
	db        *mocks.MockDB
	subs      *mocks.MockSubscriptionRepository
	payments  *mocks.MockPaymentRepository
	scheduler *mocks.MockScheduler
}

func setupService(t *testing.T) (*Service, *serviceMocks) {
	t.Helper()
	m := &serviceMocks{
		db:        new(mocks.MockDB),
		subs:      new(mocks.MockSubscriptionRepository),
		payments:  new(mocks.MockPaymentRepository),
		scheduler: new(mocks.MockScheduler),
	}
	logger := logging.NewZapLogger(zap.NewNop())
	svc := NewService(m.db, m.subs, m.payments, m.scheduler, logger)
	return svc, m
}

func pendingSub(subID uuid.UUID, autoRenew bool) *domain.Subscription {
	now := time.Now().UTC()
	return &domain.Subscription{
		ID:        subID.String(),
		UserID:    "user-1",
		PlanID:    uuid.New().String(),
		Status:    domain.SubscriptionStatusPending,
		StartDate: now,
		EndDate:   now.AddDate(0, 0, 30),
		AutoRenew: autoRenew,
	}
}

func paidEvent(storedMethodID string) *domainports.PaymentEvent {
	return &domainports.PaymentEvent{
		PaymentID:      "gw-pay-1",
		Status:         "succeeded",
		StoredMethodID: storedMethodID,
		Amount:         decimal.RequireFromString("299.00"),
		Paid:           true,
	}
}

func TestProcessNotification_ActivatesAndArmsRenewal(t *testing.T) {
	svc, m := setupService(t)
	ctx := context.Background()
	subID := uuid.New()
	sub := pendingSub(subID, true)
	paymentID := uuid.New()

	m.payments.On("GetByGatewayID", ctx, nil, "gw-pay-1").Return(&domain.Payment{
		ID:               paymentID.String(),
		SubscriptionID:   sub.ID,
		GatewayPaymentID: "gw-pay-1",
	}, nil)
	m.subs.On("GetByID", ctx, nil, subID).Return(sub, nil)
	m.db.On("WithTransaction", ctx, mock.Anything).Return(nil)
	m.payments.On("AttachStoredMethod", ctx, mock.Anything, paymentID, "pm-1").Return(nil)
	m.subs.On("Update", ctx, mock.Anything, mock.MatchedBy(func(updated *domain.Subscription) bool {
		return updated.Status == domain.SubscriptionStatusActive
	})).Return(nil)
	m.scheduler.On("PendingBinding", ctx, mock.Anything, subID).Return(nil, nil)
	m.scheduler.On("ScheduleOnce", ctx, mock.Anything,
		sub.EndDate, domain.TaskKindRenewalCharge, subID).
		Return(&domain.ScheduledTask{}, nil)

	err := svc.ProcessNotification(ctx, paidEvent("pm-1"))

	require.NoError(t, err)
	m.subs.AssertExpectations(t)
	m.scheduler.AssertExpectations(t)
	m.payments.AssertExpectations(t)
}

func TestProcessNotification_NoStoredMethodArmsExpiry(t *testing.T) {
	svc, m := setupService(t)
	ctx := context.Background()
	subID := uuid.New()
	sub := pendingSub(subID, true)

	m.payments.On("GetByGatewayID", ctx, nil, "gw-pay-1").Return(&domain.Payment{
		ID:               uuid.New().String(),
		SubscriptionID:   sub.ID,
		GatewayPaymentID: "gw-pay-1",
	}, nil)
	m.subs.On("GetByID", ctx, nil, subID).Return(sub, nil)
	m.db.On("WithTransaction", ctx, mock.Anything).Return(nil)
	m.subs.On("Update", ctx, mock.Anything, mock.Anything).Return(nil)
	m.scheduler.On("PendingBinding", ctx, mock.Anything, subID).Return(nil, nil)
	// Auto-renew is on, but nothing can be charged without a saved method
	m.scheduler.On("ScheduleOnce", ctx, mock.Anything,
		sub.EndDate, domain.TaskKindExpireSubscription, subID).
		Return(&domain.ScheduledTask{}, nil)

	err := svc.ProcessNotification(ctx, paidEvent(""))

	require.NoError(t, err)
	m.scheduler.AssertExpectations(t)
	m.payments.AssertNotCalled(t, "AttachStoredMethod",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessNotification_AutoRenewOffArmsExpiry(t *testing.T) {
	svc, m := setupService(t)
	ctx := context.Background()
	subID := uuid.New()
	sub := pendingSub(subID, false)
	paymentID := uuid.New()

	m.payments.On("GetByGatewayID", ctx, nil, "gw-pay-1").Return(&domain.Payment{
		ID:               paymentID.String(),
		SubscriptionID:   sub.ID,
		GatewayPaymentID: "gw-pay-1",
	}, nil)
	m.subs.On("GetByID", ctx, nil, subID).Return(sub, nil)
	m.db.On("WithTransaction", ctx, mock.Anything).Return(nil)
	m.payments.On("AttachStoredMethod", ctx, mock.Anything, paymentID, "pm-1").Return(nil)
	m.subs.On("Update", ctx, mock.Anything, mock.Anything).Return(nil)
	m.scheduler.On("PendingBinding", ctx, mock.Anything, subID).Return(nil, nil)
	m.scheduler.On("ScheduleOnce", ctx, mock.Anything,
		sub.EndDate, domain.TaskKindExpireSubscription, subID).
		Return(&domain.ScheduledTask{}, nil)

	err := svc.ProcessNotification(ctx, paidEvent("pm-1"))

	require.NoError(t, err)
	m.scheduler.AssertExpectations(t)
}

func TestProcessNotification_DuplicateConfirmationIsNoOp(t *testing.T) {
	svc, m := setupService(t)
	ctx := context.Background()
	subID := uuid.New()
	sub := pendingSub(subID, true)
	sub.Status = domain.SubscriptionStatusActive

	m.payments.On("GetByGatewayID", ctx, nil, "gw-pay-1").Return(&domain.Payment{
		ID:               uuid.New().String(),
		SubscriptionID:   sub.ID,
		GatewayPaymentID: "gw-pay-1",
	}, nil)
	m.subs.On("GetByID", ctx, nil, subID).Return(sub, nil)

	err := svc.ProcessNotification(ctx, paidEvent("pm-1"))

	require.NoError(t, err)
	m.db.AssertNotCalled(t, "WithTransaction", mock.Anything, mock.Anything)
	m.subs.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessNotification_RacedBindingSkipsScheduling(t *testing.T) {
	svc, m := setupService(t)
	ctx := context.Background()
	subID := uuid.New()
	sub := pendingSub(subID, true)

	m.payments.On("GetByGatewayID", ctx, nil, "gw-pay-1").Return(&domain.Payment{
		ID:               uuid.New().String(),
		SubscriptionID:   sub.ID,
		GatewayPaymentID: "gw-pay-1",
		StoredMethodID:   "pm-1",
	}, nil)
	m.subs.On("GetByID", ctx, nil, subID).Return(sub, nil)
	m.db.On("WithTransaction", ctx, mock.Anything).Return(nil)
	m.subs.On("Update", ctx, mock.Anything, mock.Anything).Return(nil)
	m.scheduler.On("PendingBinding", ctx, mock.Anything, subID).Return(&domain.ScheduledTask{
		ID:             uuid.New().String(),
		SubscriptionID: sub.ID,
		Kind:           domain.TaskKindRenewalCharge,
		Status:         domain.TaskStatusPending,
	}, nil)

	err := svc.ProcessNotification(ctx, paidEvent("pm-1"))

	require.NoError(t, err)
	m.scheduler.AssertNotCalled(t, "ScheduleOnce",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessNotification_UnmatchedPaymentRejected(t *testing.T) {
	svc, m := setupService(t)
	ctx := context.Background()

	m.payments.On("GetByGatewayID", ctx, nil, "gw-unknown").Return(nil, domain.ErrPaymentNotFound)

	err := svc.ProcessNotification(ctx, &domainports.PaymentEvent{
		PaymentID: "gw-unknown",
		Paid:      true,
	})

	require.Error(t, err)
	assert.True(t, domain.IsNotFoundError(err))
	m.subs.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything, mock.Anything)
	m.db.AssertNotCalled(t, "WithTransaction", mock.Anything, mock.Anything)
}

func TestProcessNotification_FailedPaymentCancelsPending(t *testing.T) {
	svc, m := setupService(t)
	ctx := context.Background()
	subID := uuid.New()
	sub := pendingSub(subID, true)

	m.payments.On("GetByGatewayID", ctx, nil, "gw-pay-1").Return(&domain.Payment{
		ID:               uuid.New().String(),
		SubscriptionID:   sub.ID,
		GatewayPaymentID: "gw-pay-1",
	}, nil)
	m.subs.On("GetByID", ctx, nil, subID).Return(sub, nil)
	m.db.On("WithTransaction", ctx, mock.Anything).Return(nil)
	m.scheduler.On("Cancel", ctx, mock.Anything, subID).Return(nil)
	m.subs.On("Update", ctx, mock.Anything, mock.MatchedBy(func(updated *domain.Subscription) bool {
		return updated.Status == domain.SubscriptionStatusCancelled
	})).Return(nil)

	err := svc.ProcessNotification(ctx, &domainports.PaymentEvent{
		PaymentID: "gw-pay-1",
		Status:    "canceled",
		Paid:      false,
	})

	require.NoError(t, err)
	m.subs.AssertExpectations(t)
}

func TestProcessNotification_FailedPaymentNonPendingIsNoOp(t *testing.T) {
	svc, m := setupService(t)
	ctx := context.Background()
	subID := uuid.New()
	sub := pendingSub(subID, true)
	sub.Status = domain.SubscriptionStatusActive

	m.payments.On("GetByGatewayID", ctx, nil, "gw-pay-1").Return(&domain.Payment{
		ID:             uuid.New().String(),
		SubscriptionID: sub.ID,
	}, nil)
	m.subs.On("GetByID", ctx, nil, subID).Return(sub, nil)

	err := svc.ProcessNotification(ctx, &domainports.PaymentEvent{
		PaymentID: "gw-pay-1",
		Status:    "canceled",
		Paid:      false,
	})

	require.NoError(t, err)
	m.db.AssertNotCalled(t, "WithTransaction", mock.Anything, mock.Anything)
}
