package subscription

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kevin07696/subscription-service/internal/domain"
	domainports "github.com/kevin07696/subscription-service/internal/domain/ports"
)

func armedBinding(subID uuid.UUID, kind domain.TaskKind) *domain.ScheduledTask {
	return &domain.ScheduledTask{
		ID:             uuid.New().String(),
		SubscriptionID: subID.String(),
		Kind:           kind,
		Status:         domain.TaskStatusProcessing,
		RunAt:          time.Now().UTC(),
		Attempts:       1,
	}
}

func activeSub(subID uuid.UUID, planID string) *domain.Subscription {
	now := time.Now().UTC()
	return &domain.Subscription{
		ID:        subID.String(),
		UserID:    "user-1",
		PlanID:    planID,
		Status:    domain.SubscriptionStatusActive,
		StartDate: now.AddDate(0, 0, -30),
		EndDate:   now,
		AutoRenew: true,
	}
}

func TestHandleRenewalCharge_Success(t *testing.T) {
	svc, m := setupService(t)
	ctx := context.Background()
	plan := testPlan()
	subID := uuid.New()
	sub := activeSub(subID, plan.ID)
	oldEnd := sub.EndDate

	m.scheduler.On("PendingBinding", ctx, nil, subID).
		Return(armedBinding(subID, domain.TaskKindRenewalCharge), nil)
	m.subs.On("GetByID", ctx, nil, subID).Return(sub, nil)
	m.plans.On("GetByID", ctx, nil, uuid.MustParse(plan.ID)).Return(plan, nil)
	m.payments.On("LastWithStoredMethod", ctx, nil, subID).Return(&domain.Payment{
		GatewayPaymentID: "gw-pay-1",
		StoredMethodID:   "pm-1",
	}, nil)
	m.gateway.On("ChargeStoredMethod", ctx, mock.MatchedBy(func(req domainports.ChargeStoredMethodRequest) bool {
		return req.StoredMethodID == "pm-1" && req.Amount.Equal(plan.Price)
	})).Return(&domainports.PaymentResult{
		PaymentID: "gw-pay-2",
		Status:    "succeeded",
		Paid:      true,
	}, nil)
	m.db.On("WithTransaction", ctx, mock.Anything).Return(nil)
	m.scheduler.On("Cancel", ctx, mock.Anything, subID).Return(nil)
	m.subs.On("Update", ctx, mock.Anything, mock.MatchedBy(func(updated *domain.Subscription) bool {
		return updated.Status == domain.SubscriptionStatusActive &&
			updated.EndDate.Equal(oldEnd.AddDate(0, 0, 30))
	})).Return(nil)
	m.payments.On("Create", ctx, mock.Anything, mock.MatchedBy(func(p *domain.Payment) bool {
		return p.GatewayPaymentID == "gw-pay-2" && p.StoredMethodID == "pm-1"
	})).Return(nil)
	m.scheduler.On("ScheduleOnce", ctx, mock.Anything,
		oldEnd.AddDate(0, 0, 30), domain.TaskKindRenewalCharge, subID).
		Return(armedBinding(subID, domain.TaskKindRenewalCharge), nil)

	err := svc.HandleRenewalCharge(ctx, subID)

	require.NoError(t, err)
	m.gateway.AssertExpectations(t)
	m.scheduler.AssertExpectations(t)
	m.payments.AssertExpectations(t)
}

func TestHandleRenewalCharge_DeclineCancelsSubscription(t *testing.T) {
	svc, m := setupService(t)
	ctx := context.Background()
	plan := testPlan()
	subID := uuid.New()

	m.scheduler.On("PendingBinding", ctx, nil, subID).
		Return(armedBinding(subID, domain.TaskKindRenewalCharge), nil)
	m.subs.On("GetByID", ctx, nil, subID).Return(activeSub(subID, plan.ID), nil)
	m.plans.On("GetByID", ctx, nil, uuid.MustParse(plan.ID)).Return(plan, nil)
	m.payments.On("LastWithStoredMethod", ctx, nil, subID).Return(&domain.Payment{
		StoredMethodID: "pm-1",
	}, nil)
	m.gateway.On("ChargeStoredMethod", ctx, mock.Anything).Return(nil, domain.ErrGatewayDeclined)
	m.db.On("WithTransaction", ctx, mock.Anything).Return(nil)
	m.scheduler.On("Cancel", ctx, mock.Anything, subID).Return(nil)
	m.subs.On("Update", ctx, mock.Anything, mock.MatchedBy(func(updated *domain.Subscription) bool {
		return updated.Status == domain.SubscriptionStatusCancelled
	})).Return(nil)

	// A decline is a business outcome; the handler must not ask for a retry
	err := svc.HandleRenewalCharge(ctx, subID)

	require.NoError(t, err)
	m.scheduler.AssertNotCalled(t, "ScheduleOnce",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	m.subs.AssertExpectations(t)
}

func TestHandleRenewalCharge_TimeoutRetries(t *testing.T) {
	svc, m := setupService(t)
	ctx := context.Background()
	plan := testPlan()
	subID := uuid.New()

	m.scheduler.On("PendingBinding", ctx, nil, subID).
		Return(armedBinding(subID, domain.TaskKindRenewalCharge), nil)
	m.subs.On("GetByID", ctx, nil, subID).Return(activeSub(subID, plan.ID), nil)
	m.plans.On("GetByID", ctx, nil, uuid.MustParse(plan.ID)).Return(plan, nil)
	m.payments.On("LastWithStoredMethod", ctx, nil, subID).Return(&domain.Payment{
		StoredMethodID: "pm-1",
	}, nil)
	m.gateway.On("ChargeStoredMethod", ctx, mock.Anything).Return(nil, domain.ErrGatewayTimedOut)

	// Outcome unknown: the subscription must not be cancelled and the error
	// must surface so the task is released for retry.
	err := svc.HandleRenewalCharge(ctx, subID)

	require.Error(t, err)
	assert.Equal(t, domain.ErrorCodeGatewayTimeout, domain.GetErrorCode(err))
	m.subs.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleRenewalCharge_TimeoutRetryDoesNotChargeTwice(t *testing.T) {
	svc, m := setupService(t)
	ctx := context.Background()
	plan := testPlan()
	subID := uuid.New()
	sub := activeSub(subID, plan.ID)
	oldEnd := sub.EndDate

	firstFiring := armedBinding(subID, domain.TaskKindRenewalCharge)
	retryFiring := armedBinding(subID, domain.TaskKindRenewalCharge)
	retryFiring.Attempts = 2

	m.scheduler.On("PendingBinding", ctx, nil, subID).Return(firstFiring, nil).Once()
	m.scheduler.On("PendingBinding", ctx, nil, subID).Return(retryFiring, nil).Once()
	m.subs.On("GetByID", ctx, nil, subID).Return(sub, nil)
	m.plans.On("GetByID", ctx, nil, uuid.MustParse(plan.ID)).Return(plan, nil)
	m.payments.On("LastWithStoredMethod", ctx, nil, subID).Return(&domain.Payment{
		StoredMethodID: "pm-1",
	}, nil)
	m.gateway.On("ChargeStoredMethod", ctx, mock.Anything).Return(nil, domain.ErrGatewayTimedOut).Once()

	// The charge the first firing lost to the timeout settled provider-side
	m.gateway.On("ListRecentPayments", ctx, sub.UserID).Return([]*domainports.PaymentResult{
		{PaymentID: "gw-pay-7", Status: "succeeded", Paid: true, Amount: plan.Price},
	}, nil)
	m.payments.On("GetByGatewayID", ctx, nil, "gw-pay-7").Return(nil, domain.ErrPaymentNotFound)

	m.db.On("WithTransaction", ctx, mock.Anything).Return(nil)
	m.scheduler.On("Cancel", ctx, mock.Anything, subID).Return(nil)
	m.subs.On("Update", ctx, mock.Anything, mock.MatchedBy(func(updated *domain.Subscription) bool {
		return updated.Status == domain.SubscriptionStatusActive &&
			updated.EndDate.Equal(oldEnd.AddDate(0, 0, 30))
	})).Return(nil)
	m.payments.On("Create", ctx, mock.Anything, mock.MatchedBy(func(p *domain.Payment) bool {
		return p.GatewayPaymentID == "gw-pay-7" && p.StoredMethodID == "pm-1"
	})).Return(nil)
	m.scheduler.On("ScheduleOnce", ctx, mock.Anything,
		oldEnd.AddDate(0, 0, 30), domain.TaskKindRenewalCharge, subID).
		Return(armedBinding(subID, domain.TaskKindRenewalCharge), nil)

	require.Error(t, svc.HandleRenewalCharge(ctx, subID))
	require.NoError(t, svc.HandleRenewalCharge(ctx, subID))

	// The retry must recover the settled charge, not issue a second one
	m.gateway.AssertNumberOfCalls(t, "ChargeStoredMethod", 1)
	m.payments.AssertExpectations(t)
	m.scheduler.AssertExpectations(t)
}

func TestHandleRenewalCharge_RetryChargesWhenNothingSettled(t *testing.T) {
	svc, m := setupService(t)
	ctx := context.Background()
	plan := testPlan()
	subID := uuid.New()
	sub := activeSub(subID, plan.ID)
	oldEnd := sub.EndDate

	retryFiring := armedBinding(subID, domain.TaskKindRenewalCharge)
	retryFiring.Attempts = 2

	m.scheduler.On("PendingBinding", ctx, nil, subID).Return(retryFiring, nil)
	m.subs.On("GetByID", ctx, nil, subID).Return(sub, nil)
	m.plans.On("GetByID", ctx, nil, uuid.MustParse(plan.ID)).Return(plan, nil)
	m.payments.On("LastWithStoredMethod", ctx, nil, subID).Return(&domain.Payment{
		GatewayPaymentID: "gw-pay-1",
		StoredMethodID:   "pm-1",
	}, nil)

	// Every settled provider-side payment is already recorded locally
	m.gateway.On("ListRecentPayments", ctx, sub.UserID).Return([]*domainports.PaymentResult{
		{PaymentID: "gw-pay-1", Status: "succeeded", Paid: true, Amount: plan.Price},
		{PaymentID: "gw-pay-2", Status: "canceled", Paid: false, Amount: plan.Price},
	}, nil)
	m.payments.On("GetByGatewayID", ctx, nil, "gw-pay-1").Return(&domain.Payment{
		GatewayPaymentID: "gw-pay-1",
	}, nil)

	m.gateway.On("ChargeStoredMethod", ctx, mock.Anything).Return(&domainports.PaymentResult{
		PaymentID: "gw-pay-3",
		Status:    "succeeded",
		Paid:      true,
	}, nil).Once()
	m.db.On("WithTransaction", ctx, mock.Anything).Return(nil)
	m.scheduler.On("Cancel", ctx, mock.Anything, subID).Return(nil)
	m.subs.On("Update", ctx, mock.Anything, mock.Anything).Return(nil)
	m.payments.On("Create", ctx, mock.Anything, mock.MatchedBy(func(p *domain.Payment) bool {
		return p.GatewayPaymentID == "gw-pay-3"
	})).Return(nil)
	m.scheduler.On("ScheduleOnce", ctx, mock.Anything,
		oldEnd.AddDate(0, 0, 30), domain.TaskKindRenewalCharge, subID).
		Return(armedBinding(subID, domain.TaskKindRenewalCharge), nil)

	require.NoError(t, svc.HandleRenewalCharge(ctx, subID))

	m.gateway.AssertNumberOfCalls(t, "ChargeStoredMethod", 1)
	m.payments.AssertExpectations(t)
}

func TestHandleRenewalCharge_ReconcileFailureReleasesTask(t *testing.T) {
	svc, m := setupService(t)
	ctx := context.Background()
	plan := testPlan()
	subID := uuid.New()
	sub := activeSub(subID, plan.ID)

	retryFiring := armedBinding(subID, domain.TaskKindRenewalCharge)
	retryFiring.Attempts = 2

	m.scheduler.On("PendingBinding", ctx, nil, subID).Return(retryFiring, nil)
	m.subs.On("GetByID", ctx, nil, subID).Return(sub, nil)
	m.plans.On("GetByID", ctx, nil, uuid.MustParse(plan.ID)).Return(plan, nil)
	m.payments.On("LastWithStoredMethod", ctx, nil, subID).Return(&domain.Payment{
		StoredMethodID: "pm-1",
	}, nil)
	m.gateway.On("ListRecentPayments", ctx, sub.UserID).Return(nil, domain.ErrGatewayError)

	// No charge may be issued while the provider-side state is unknowable
	err := svc.HandleRenewalCharge(ctx, subID)

	require.Error(t, err)
	m.gateway.AssertNotCalled(t, "ChargeStoredMethod", mock.Anything, mock.Anything)
	m.subs.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleRenewalCharge_NoBindingIsNoOp(t *testing.T) {
	svc, m := setupService(t)
	ctx := context.Background()
	subID := uuid.New()

	m.scheduler.On("PendingBinding", ctx, nil, subID).Return(nil, nil)

	err := svc.HandleRenewalCharge(ctx, subID)

	require.NoError(t, err)
	m.subs.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything, mock.Anything)
	m.gateway.AssertNotCalled(t, "ChargeStoredMethod", mock.Anything, mock.Anything)
}

func TestHandleRenewalCharge_NonActiveDisarms(t *testing.T) {
	svc, m := setupService(t)
	ctx := context.Background()
	plan := testPlan()
	subID := uuid.New()
	sub := activeSub(subID, plan.ID)
	sub.Status = domain.SubscriptionStatusCancelled

	m.scheduler.On("PendingBinding", ctx, nil, subID).
		Return(armedBinding(subID, domain.TaskKindRenewalCharge), nil)
	m.subs.On("GetByID", ctx, nil, subID).Return(sub, nil)
	m.db.On("WithTransaction", ctx, mock.Anything).Return(nil)
	m.scheduler.On("Cancel", ctx, mock.Anything, subID).Return(nil)

	err := svc.HandleRenewalCharge(ctx, subID)

	require.NoError(t, err)
	m.gateway.AssertNotCalled(t, "ChargeStoredMethod", mock.Anything, mock.Anything)
	m.scheduler.AssertExpectations(t)
}

func TestHandleRenewalCharge_NoStoredMethodCancels(t *testing.T) {
	svc, m := setupService(t)
	ctx := context.Background()
	plan := testPlan()
	subID := uuid.New()

	m.scheduler.On("PendingBinding", ctx, nil, subID).
		Return(armedBinding(subID, domain.TaskKindRenewalCharge), nil)
	m.subs.On("GetByID", ctx, nil, subID).Return(activeSub(subID, plan.ID), nil)
	m.plans.On("GetByID", ctx, nil, uuid.MustParse(plan.ID)).Return(plan, nil)
	m.payments.On("LastWithStoredMethod", ctx, nil, subID).Return(nil, domain.ErrPaymentNotFound)
	m.db.On("WithTransaction", ctx, mock.Anything).Return(nil)
	m.scheduler.On("Cancel", ctx, mock.Anything, subID).Return(nil)
	m.subs.On("Update", ctx, mock.Anything, mock.MatchedBy(func(updated *domain.Subscription) bool {
		return updated.Status == domain.SubscriptionStatusCancelled
	})).Return(nil)

	err := svc.HandleRenewalCharge(ctx, subID)

	require.NoError(t, err)
	m.gateway.AssertNotCalled(t, "ChargeStoredMethod", mock.Anything, mock.Anything)
	m.subs.AssertExpectations(t)
}

func TestHandleExpiry_CancelsActiveSubscription(t *testing.T) {
	svc, m := setupService(t)
	ctx := context.Background()
	plan := testPlan()
	subID := uuid.New()

	m.subs.On("GetByID", ctx, nil, subID).Return(activeSub(subID, plan.ID), nil)
	m.db.On("WithTransaction", ctx, mock.Anything).Return(nil)
	m.scheduler.On("Cancel", ctx, mock.Anything, subID).Return(nil)
	m.subs.On("Update", ctx, mock.Anything, mock.MatchedBy(func(updated *domain.Subscription) bool {
		return updated.Status == domain.SubscriptionStatusCancelled
	})).Return(nil)

	err := svc.HandleExpiry(ctx, subID)

	require.NoError(t, err)
	m.subs.AssertExpectations(t)
}

func TestHandleExpiry_DuplicateFiringIsNoOp(t *testing.T) {
	svc, m := setupService(t)
	ctx := context.Background()
	plan := testPlan()
	subID := uuid.New()
	sub := activeSub(subID, plan.ID)
	sub.Status = domain.SubscriptionStatusCancelled

	m.subs.On("GetByID", ctx, nil, subID).Return(sub, nil)
	m.db.On("WithTransaction", ctx, mock.Anything).Return(nil)
	m.scheduler.On("Cancel", ctx, mock.Anything, subID).Return(nil)

	err := svc.HandleExpiry(ctx, subID)

	require.NoError(t, err)
	m.subs.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}
