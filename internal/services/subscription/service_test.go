package subscription

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
	"github.com/kevin07696/subscription-service/internal/services/ports"
	"github.com/kevin07696/subscription-service/internal/testutil/mocks"
)

type serviceMocks struct {
	db        *mocks.MockDB
	plans     *mocks.MockPlanRepository
	subs      *mocks.MockSubscriptionRepository
	payments  *mocks.MockPaymentRepository
	scheduler *mocks.MockScheduler
	gateway   *mocks.MockGateway
}

func setupService(t *testing.T) (*Service, *serviceMocks) {
	t.Helper()
	m := &serviceMocks{
		db:        new(mocks.MockDB),
		plans:     new(mocks.MockPlanRepository),
		subs:      new(mocks.MockSubscriptionRepository),
		payments:  new(mocks.MockPaymentRepository),
		scheduler: new(mocks.MockScheduler),
		gateway:   new(mocks.MockGateway),
	}
	logger := logging.NewZapLogger(zap.NewNop())
	svc := NewService(m.db, m.plans, m.subs, m.payments, m.scheduler, m.gateway, "RUB", logger)
	return svc, m
}

func testPlan() *domain.Plan {
	return &domain.Plan{
		ID:           uuid.New().String(),
		Name:         "monthly",
		Price:        decimal.RequireFromString("299.00"),
		DurationDays: 30,
		CreatedAt:    time.Now().UTC(),
	}
}

func TestCreateSubscription_Success(t *testing.T) {
	svc, m := setupService(t)
	ctx := context.Background()
	plan := testPlan()
	planID := uuid.MustParse(plan.ID)

	m.plans.On("GetByID", ctx, nil, planID).Return(plan, nil)
	m.subs.On("GetByUser", ctx, nil, "user-1").Return(nil, domain.ErrSubscriptionNotFound)
	m.gateway.On("CreatePayment", ctx, mock.MatchedBy(func(req domainports.CreatePaymentRequest) bool {
		return req.Amount.Equal(plan.Price) && req.Currency == "RUB" && req.SaveMethod
	})).Return(&domainports.PaymentResult{
		PaymentID:       "gw-pay-1",
		ConfirmationURL: "https://gw.example/confirm/1",
		Status:          "pending",
	}, nil)
	m.db.On("WithTransaction", ctx, mock.Anything).Return(nil)
	m.subs.On("Create", ctx, mock.Anything, mock.MatchedBy(func(sub *domain.Subscription) bool {
		return sub.Status == domain.SubscriptionStatusPending &&
			sub.UserID == "user-1" &&
			sub.EndDate.Equal(sub.StartDate.AddDate(0, 0, 30))
	})).Return(nil)
	m.payments.On("Create", ctx, mock.Anything, mock.MatchedBy(func(p *domain.Payment) bool {
		return p.GatewayPaymentID == "gw-pay-1" && p.Amount.Equal(plan.Price)
	})).Return(nil)

	resp, err := svc.CreateSubscription(ctx, ports.CreateSubscriptionRequest{
		PlanID:    plan.ID,
		UserID:    "user-1",
		ReturnURL: "https://app.example/return",
		AutoRenew: true,
	})

	require.NoError(t, err)
	assert.NotEmpty(t, resp.SubscriptionID)
	assert.Equal(t, "https://gw.example/confirm/1", resp.PaymentURL)
	m.subs.AssertExpectations(t)
	m.payments.AssertExpectations(t)
}

func TestCreateSubscription_AlreadySubscribed(t *testing.T) {
	svc, m := setupService(t)
	ctx := context.Background()
	plan := testPlan()

	m.plans.On("GetByID", ctx, nil, uuid.MustParse(plan.ID)).Return(plan, nil)
	m.subs.On("GetByUser", ctx, nil, "user-1").Return(&domain.Subscription{
		ID:     uuid.New().String(),
		UserID: "user-1",
		Status: domain.SubscriptionStatusActive,
	}, nil)

	_, err := svc.CreateSubscription(ctx, ports.CreateSubscriptionRequest{
		PlanID: plan.ID,
		UserID: "user-1",
	})

	require.Error(t, err)
	assert.True(t, domain.IsConflictError(err))
	m.gateway.AssertNotCalled(t, "CreatePayment", mock.Anything, mock.Anything)
	m.db.AssertNotCalled(t, "WithTransaction", mock.Anything, mock.Anything)
}

func TestCreateSubscription_UnknownPlanIsValidationError(t *testing.T) {
	svc, m := setupService(t)
	ctx := context.Background()
	planID := uuid.New()

	m.plans.On("GetByID", ctx, nil, planID).Return(nil, domain.ErrPlanNotFound)

	_, err := svc.CreateSubscription(ctx, ports.CreateSubscriptionRequest{
		PlanID: planID.String(),
		UserID: "user-1",
	})

	// Naming a plan that does not exist is bad input, not a missing resource
	require.Error(t, err)
	assert.True(t, domain.IsValidationError(err))
	assert.False(t, domain.IsNotFoundError(err))
}

func TestCreateSubscription_MissingUserID(t *testing.T) {
	svc, m := setupService(t)

	_, err := svc.CreateSubscription(context.Background(), ports.CreateSubscriptionRequest{
		PlanID: uuid.New().String(),
	})

	require.Error(t, err)
	assert.True(t, domain.IsValidationError(err))
	m.plans.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateSubscription_GatewayFailureCommitsNothing(t *testing.T) {
	svc, m := setupService(t)
	ctx := context.Background()
	plan := testPlan()

	m.plans.On("GetByID", ctx, nil, uuid.MustParse(plan.ID)).Return(plan, nil)
	m.subs.On("GetByUser", ctx, nil, "user-1").Return(nil, domain.ErrSubscriptionNotFound)
	m.gateway.On("CreatePayment", ctx, mock.Anything).Return(nil, domain.ErrGatewayError)

	_, err := svc.CreateSubscription(ctx, ports.CreateSubscriptionRequest{
		PlanID: plan.ID,
		UserID: "user-1",
	})

	require.Error(t, err)
	assert.True(t, domain.IsGatewayError(err))
	m.db.AssertNotCalled(t, "WithTransaction", mock.Anything, mock.Anything)
	m.subs.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestRenewThroughPayment_Success(t *testing.T) {
	svc, m := setupService(t)
	ctx := context.Background()
	plan := testPlan()
	expired := time.Now().UTC().AddDate(0, 0, -10)

	sub := &domain.Subscription{
		ID:      uuid.New().String(),
		UserID:  "user-1",
		PlanID:  plan.ID,
		Status:  domain.SubscriptionStatusCancelled,
		EndDate: expired,
	}

	m.subs.On("GetByUser", ctx, nil, "user-1").Return(sub, nil)
	m.plans.On("GetByID", ctx, nil, uuid.MustParse(plan.ID)).Return(plan, nil)
	m.gateway.On("CreatePayment", ctx, mock.Anything).Return(&domainports.PaymentResult{
		PaymentID:       "gw-pay-2",
		ConfirmationURL: "https://gw.example/confirm/2",
	}, nil)
	m.db.On("WithTransaction", ctx, mock.Anything).Return(nil)
	m.subs.On("Update", ctx, mock.Anything, mock.MatchedBy(func(updated *domain.Subscription) bool {
		// The new period runs from now, not from the stale end date
		return updated.Status == domain.SubscriptionStatusPending &&
			updated.EndDate.After(time.Now().UTC().AddDate(0, 0, 29))
	})).Return(nil)
	m.payments.On("Create", ctx, mock.Anything, mock.Anything).Return(nil)

	resp, err := svc.RenewThroughPayment(ctx, ports.RenewSubscriptionRequest{
		PlanID:    plan.ID,
		UserID:    "user-1",
		AutoRenew: true,
	})

	require.NoError(t, err)
	assert.Equal(t, "https://gw.example/confirm/2", resp.PaymentURL)
	m.subs.AssertExpectations(t)
}

func TestRenewThroughPayment_OnlyFromCancelled(t *testing.T) {
	for _, status := range []domain.SubscriptionStatus{
		domain.SubscriptionStatusPending,
		domain.SubscriptionStatusActive,
	} {
		t.Run(string(status), func(t *testing.T) {
			svc, m := setupService(t)
			ctx := context.Background()
			plan := testPlan()

			m.subs.On("GetByUser", ctx, nil, "user-1").Return(&domain.Subscription{
				ID:     uuid.New().String(),
				UserID: "user-1",
				PlanID: plan.ID,
				Status: status,
			}, nil)

			_, err := svc.RenewThroughPayment(ctx, ports.RenewSubscriptionRequest{
				PlanID: plan.ID,
				UserID: "user-1",
			})

			require.Error(t, err)
			assert.True(t, domain.IsConflictError(err))
			m.gateway.AssertNotCalled(t, "CreatePayment", mock.Anything, mock.Anything)
		})
	}
}

func TestCancelSubscription_RefundsStoredMethodPayment(t *testing.T) {
	svc, m := setupService(t)
	ctx := context.Background()
	plan := testPlan()
	subID := uuid.New()

	sub := &domain.Subscription{
		ID:     subID.String(),
		UserID: "user-1",
		PlanID: plan.ID,
		Status: domain.SubscriptionStatusActive,
	}

	m.subs.On("GetByUser", ctx, nil, "user-1").Return(sub, nil)
	m.plans.On("GetByID", ctx, nil, uuid.MustParse(plan.ID)).Return(plan, nil)
	m.payments.On("LastWithStoredMethod", ctx, nil, subID).Return(&domain.Payment{
		ID:               uuid.New().String(),
		SubscriptionID:   sub.ID,
		GatewayPaymentID: "gw-pay-1",
		StoredMethodID:   "pm-1",
	}, nil)
	m.gateway.On("Refund", ctx, mock.MatchedBy(func(req domainports.RefundRequest) bool {
		return req.PaymentID == "gw-pay-1" && req.Amount.Equal(plan.Price)
	})).Return(&domainports.RefundResult{RefundID: "rf-1", Status: "succeeded"}, nil)
	m.db.On("WithTransaction", ctx, mock.Anything).Return(nil)
	m.scheduler.On("Cancel", ctx, mock.Anything, subID).Return(nil)
	m.subs.On("Update", ctx, mock.Anything, mock.MatchedBy(func(updated *domain.Subscription) bool {
		return updated.Status == domain.SubscriptionStatusCancelled
	})).Return(nil)

	err := svc.CancelSubscription(ctx, "user-1")

	require.NoError(t, err)
	m.gateway.AssertExpectations(t)
	m.scheduler.AssertExpectations(t)
	m.subs.AssertExpectations(t)
}

func TestCancelSubscription_RefundFailureKeepsActive(t *testing.T) {
	svc, m := setupService(t)
	ctx := context.Background()
	plan := testPlan()
	subID := uuid.New()

	m.subs.On("GetByUser", ctx, nil, "user-1").Return(&domain.Subscription{
		ID:     subID.String(),
		UserID: "user-1",
		PlanID: plan.ID,
		Status: domain.SubscriptionStatusActive,
	}, nil)
	m.plans.On("GetByID", ctx, nil, uuid.MustParse(plan.ID)).Return(plan, nil)
	m.payments.On("LastWithStoredMethod", ctx, nil, subID).Return(&domain.Payment{
		GatewayPaymentID: "gw-pay-1",
		StoredMethodID:   "pm-1",
	}, nil)
	m.gateway.On("Refund", ctx, mock.Anything).Return(nil, domain.ErrGatewayError)

	err := svc.CancelSubscription(ctx, "user-1")

	require.Error(t, err)
	assert.True(t, domain.IsGatewayError(err))
	m.db.AssertNotCalled(t, "WithTransaction", mock.Anything, mock.Anything)
	m.subs.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestCancelSubscription_NoStoredMethodSkipsRefund(t *testing.T) {
	svc, m := setupService(t)
	ctx := context.Background()
	plan := testPlan()
	subID := uuid.New()

	m.subs.On("GetByUser", ctx, nil, "user-1").Return(&domain.Subscription{
		ID:     subID.String(),
		UserID: "user-1",
		PlanID: plan.ID,
		Status: domain.SubscriptionStatusActive,
	}, nil)
	m.plans.On("GetByID", ctx, nil, uuid.MustParse(plan.ID)).Return(plan, nil)
	m.payments.On("LastWithStoredMethod", ctx, nil, subID).Return(nil, domain.ErrPaymentNotFound)
	m.db.On("WithTransaction", ctx, mock.Anything).Return(nil)
	m.scheduler.On("Cancel", ctx, mock.Anything, subID).Return(nil)
	m.subs.On("Update", ctx, mock.Anything, mock.MatchedBy(func(updated *domain.Subscription) bool {
		return updated.Status == domain.SubscriptionStatusCancelled
	})).Return(nil)

	err := svc.CancelSubscription(ctx, "user-1")

	require.NoError(t, err)
	m.gateway.AssertNotCalled(t, "Refund", mock.Anything, mock.Anything)
	m.subs.AssertExpectations(t)
}

func TestCancelSubscription_OnlyFromActive(t *testing.T) {
	svc, m := setupService(t)
	ctx := context.Background()

	m.subs.On("GetByUser", ctx, nil, "user-1").Return(&domain.Subscription{
		ID:     uuid.New().String(),
		UserID: "user-1",
		Status: domain.SubscriptionStatusPending,
	}, nil)

	err := svc.CancelSubscription(ctx, "user-1")

	require.Error(t, err)
	assert.True(t, domain.IsConflictError(err))
}

func TestRemoveSubscription_OnlyFromCancelled(t *testing.T) {
	svc, m := setupService(t)
	ctx := context.Background()

	m.subs.On("GetByUser", ctx, nil, "user-1").Return(&domain.Subscription{
		ID:     uuid.New().String(),
		UserID: "user-1",
		Status: domain.SubscriptionStatusActive,
	}, nil)

	err := svc.RemoveSubscription(ctx, "user-1")

	require.Error(t, err)
	assert.True(t, domain.IsConflictError(err))
	m.subs.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything, mock.Anything)
}

func TestRemoveSubscription_Success(t *testing.T) {
	svc, m := setupService(t)
	ctx := context.Background()
	subID := uuid.New()

	m.subs.On("GetByUser", ctx, nil, "user-1").Return(&domain.Subscription{
		ID:     subID.String(),
		UserID: "user-1",
		Status: domain.SubscriptionStatusCancelled,
	}, nil)
	m.db.On("WithTransaction", ctx, mock.Anything).Return(nil)
	m.scheduler.On("Cancel", ctx, mock.Anything, subID).Return(nil)
	m.subs.On("Delete", ctx, mock.Anything, subID).Return(nil)

	err := svc.RemoveSubscription(ctx, "user-1")

	require.NoError(t, err)
	m.scheduler.AssertExpectations(t)
	m.subs.AssertExpectations(t)
}
