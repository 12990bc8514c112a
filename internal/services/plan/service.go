package plan

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kevin07696/subscription-service/internal/domain"
	domainports "github.com/kevin07696/subscription-service/internal/domain/ports"
	"github.com/kevin07696/subscription-service/pkg/timeutil"
)

// Service implements ports.PlanService
type Service struct {
	plans  domainports.PlanRepository
	logger domainports.Logger
}

// NewService creates a new plan catalog service
func NewService(plans domainports.PlanRepository, logger domainports.Logger) *Service {
	return &Service{plans: plans, logger: logger}
}

// CreatePlan validates and persists a new plan. Price arrives as a string to
// avoid float rounding at the API boundary.
func (s *Service) CreatePlan(ctx context.Context, name string, price string, durationDays int) (*domain.Plan, error) {
	amount, err := decimal.NewFromString(price)
	if err != nil {
		return nil, domain.ErrValidationAmount.WithDetail("price", price)
	}

	p := &domain.Plan{
		ID:           uuid.New().String(),
		Name:         name,
		Price:        amount,
		DurationDays: durationDays,
		CreatedAt:    timeutil.Now(),
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	if err := s.plans.Create(ctx, nil, p); err != nil {
		return nil, err
	}

	s.logger.Info("plan created",
		domainports.String("plan_id", p.ID),
		domainports.String("name", p.Name),
		domainports.String("price", p.Price.String()),
		domainports.Int("duration_days", p.DurationDays))

	return p, nil
}

// ListPlans returns the full plan catalog
func (s *Service) ListPlans(ctx context.Context) ([]*domain.Plan, error) {
	return s.plans.List(ctx, nil)
}
