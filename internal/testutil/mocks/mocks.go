// Package mocks provides shared mock implementations for testing
package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/mock"

	"github.com/kevin07696/subscription-service/internal/domain"
	"github.com/kevin07696/subscription-service/internal/domain/ports"
)

// MockDB implements ports.DBPort. WithTransaction runs the callback with a
// nil transaction so repository mocks observe the same call shape as
// production code.
type MockDB struct {
	mock.Mock
}

var _ ports.DBPort = (*MockDB)(nil)

func (m *MockDB) GetDB() *pgxpool.Pool {
	return nil
}

func (m *MockDB) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	args := m.Called(ctx, fn)
	if err := fn(ctx, nil); err != nil {
		return err
	}
	return args.Error(0)
}

// MockPlanRepository implements ports.PlanRepository
type MockPlanRepository struct {
	mock.Mock
}

var _ ports.PlanRepository = (*MockPlanRepository)(nil)

func (m *MockPlanRepository) Create(ctx context.Context, tx ports.DBTX, plan *domain.Plan) error {
	args := m.Called(ctx, tx, plan)
	return args.Error(0)
}

func (m *MockPlanRepository) GetByID(ctx context.Context, tx ports.DBTX, id uuid.UUID) (*domain.Plan, error) {
	args := m.Called(ctx, tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Plan), args.Error(1)
}

func (m *MockPlanRepository) List(ctx context.Context, tx ports.DBTX) ([]*domain.Plan, error) {
	args := m.Called(ctx, tx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Plan), args.Error(1)
}

// MockSubscriptionRepository implements ports.SubscriptionRepository
type MockSubscriptionRepository struct {
	mock.Mock
}

var _ ports.SubscriptionRepository = (*MockSubscriptionRepository)(nil)

func (m *MockSubscriptionRepository) Create(ctx context.Context, tx ports.DBTX, sub *domain.Subscription) error {
	args := m.Called(ctx, tx, sub)
	return args.Error(0)
}

func (m *MockSubscriptionRepository) GetByID(ctx context.Context, tx ports.DBTX, id uuid.UUID) (*domain.Subscription, error) {
	args := m.Called(ctx, tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Subscription), args.Error(1)
}

func (m *MockSubscriptionRepository) GetByUser(ctx context.Context, tx ports.DBTX, userID string) (*domain.Subscription, error) {
	args := m.Called(ctx, tx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Subscription), args.Error(1)
}

func (m *MockSubscriptionRepository) Update(ctx context.Context, tx ports.DBTX, sub *domain.Subscription) error {
	args := m.Called(ctx, tx, sub)
	return args.Error(0)
}

func (m *MockSubscriptionRepository) Delete(ctx context.Context, tx ports.DBTX, id uuid.UUID) error {
	args := m.Called(ctx, tx, id)
	return args.Error(0)
}

// MockPaymentRepository implements ports.PaymentRepository
type MockPaymentRepository struct {
	mock.Mock
}

var _ ports.PaymentRepository = (*MockPaymentRepository)(nil)

func (m *MockPaymentRepository) Create(ctx context.Context, tx ports.DBTX, payment *domain.Payment) error {
	args := m.Called(ctx, tx, payment)
	return args.Error(0)
}

func (m *MockPaymentRepository) GetByGatewayID(ctx context.Context, tx ports.DBTX, gatewayPaymentID string) (*domain.Payment, error) {
	args := m.Called(ctx, tx, gatewayPaymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Payment), args.Error(1)
}

func (m *MockPaymentRepository) ListByUser(ctx context.Context, tx ports.DBTX, userID string) ([]*domain.Payment, error) {
	args := m.Called(ctx, tx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Payment), args.Error(1)
}

func (m *MockPaymentRepository) LastWithStoredMethod(ctx context.Context, tx ports.DBTX, subscriptionID uuid.UUID) (*domain.Payment, error) {
	args := m.Called(ctx, tx, subscriptionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Payment), args.Error(1)
}

func (m *MockPaymentRepository) AttachStoredMethod(ctx context.Context, tx ports.DBTX, paymentID uuid.UUID, storedMethodID string) error {
	args := m.Called(ctx, tx, paymentID, storedMethodID)
	return args.Error(0)
}

// MockTaskRepository implements ports.TaskRepository
type MockTaskRepository struct {
	mock.Mock
}

var _ ports.TaskRepository = (*MockTaskRepository)(nil)

func (m *MockTaskRepository) Create(ctx context.Context, tx ports.DBTX, task *domain.ScheduledTask) error {
	args := m.Called(ctx, tx, task)
	return args.Error(0)
}

func (m *MockTaskRepository) GetPendingBySubscription(ctx context.Context, tx ports.DBTX, subscriptionID uuid.UUID) (*domain.ScheduledTask, error) {
	args := m.Called(ctx, tx, subscriptionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ScheduledTask), args.Error(1)
}

func (m *MockTaskRepository) CancelPending(ctx context.Context, tx ports.DBTX, subscriptionID uuid.UUID) error {
	args := m.Called(ctx, tx, subscriptionID)
	return args.Error(0)
}

func (m *MockTaskRepository) ClaimDue(ctx context.Context, tx ports.DBTX, workerID uuid.UUID, now time.Time, lockedUntil time.Time) (*domain.ScheduledTask, error) {
	args := m.Called(ctx, tx, workerID, now, lockedUntil)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ScheduledTask), args.Error(1)
}

func (m *MockTaskRepository) MarkDone(ctx context.Context, tx ports.DBTX, taskID uuid.UUID) error {
	args := m.Called(ctx, tx, taskID)
	return args.Error(0)
}

func (m *MockTaskRepository) Release(ctx context.Context, tx ports.DBTX, taskID uuid.UUID) error {
	args := m.Called(ctx, tx, taskID)
	return args.Error(0)
}

// MockScheduler implements ports.TaskScheduler
type MockScheduler struct {
	mock.Mock
}

var _ ports.TaskScheduler = (*MockScheduler)(nil)

func (m *MockScheduler) ScheduleOnce(ctx context.Context, tx ports.DBTX, runAt time.Time, kind domain.TaskKind, subscriptionID uuid.UUID) (*domain.ScheduledTask, error) {
	args := m.Called(ctx, tx, runAt, kind, subscriptionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ScheduledTask), args.Error(1)
}

func (m *MockScheduler) Cancel(ctx context.Context, tx ports.DBTX, subscriptionID uuid.UUID) error {
	args := m.Called(ctx, tx, subscriptionID)
	return args.Error(0)
}

func (m *MockScheduler) PendingBinding(ctx context.Context, tx ports.DBTX, subscriptionID uuid.UUID) (*domain.ScheduledTask, error) {
	args := m.Called(ctx, tx, subscriptionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ScheduledTask), args.Error(1)
}

// MockGateway implements ports.PaymentGateway
type MockGateway struct {
	mock.Mock
}

var _ ports.PaymentGateway = (*MockGateway)(nil)

func (m *MockGateway) CreatePayment(ctx context.Context, req ports.CreatePaymentRequest) (*ports.PaymentResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.PaymentResult), args.Error(1)
}

func (m *MockGateway) ChargeStoredMethod(ctx context.Context, req ports.ChargeStoredMethodRequest) (*ports.PaymentResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.PaymentResult), args.Error(1)
}

func (m *MockGateway) CancelPayment(ctx context.Context, paymentID string) (*ports.PaymentResult, error) {
	args := m.Called(ctx, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.PaymentResult), args.Error(1)
}

func (m *MockGateway) Refund(ctx context.Context, req ports.RefundRequest) (*ports.RefundResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.RefundResult), args.Error(1)
}

func (m *MockGateway) GetPayment(ctx context.Context, paymentID string) (*ports.PaymentResult, error) {
	args := m.Called(ctx, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.PaymentResult), args.Error(1)
}

func (m *MockGateway) ListRecentPayments(ctx context.Context, userID string) ([]*ports.PaymentResult, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*ports.PaymentResult), args.Error(1)
}
