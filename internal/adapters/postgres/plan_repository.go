package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kevin07696/subscription-service/internal/domain"
	"github.com/kevin07696/subscription-service/internal/domain/ports"
)

// PlanRepository implements ports.PlanRepository with raw pgx queries
type PlanRepository struct {
	db ports.DBPort
}

// NewPlanRepository creates a new plan repository
func NewPlanRepository(db ports.DBPort) *PlanRepository {
	return &PlanRepository{db: db}
}

func (r *PlanRepository) executor(tx ports.DBTX) ports.DBTX {
	if tx != nil {
		return tx
	}
	return r.db.GetDB()
}

// Create inserts a new plan
func (r *PlanRepository) Create(ctx context.Context, tx ports.DBTX, plan *domain.Plan) error {
	id, err := uuid.Parse(plan.ID)
	if err != nil {
		return fmt.Errorf("invalid plan ID: %w", err)
	}

	price, err := decimalToNumeric(plan.Price)
	if err != nil {
		return err
	}

	_, err = r.executor(tx).Exec(ctx, `
		INSERT INTO plans (id, name, price, duration_days, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		id, plan.Name, price, plan.DurationDays, plan.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create plan: %w", err)
	}

	return nil
}

// GetByID retrieves a plan by its ID
func (r *PlanRepository) GetByID(ctx context.Context, tx ports.DBTX, id uuid.UUID) (*domain.Plan, error) {
	row := r.executor(tx).QueryRow(ctx, `
		SELECT id, name, price, duration_days, created_at
		FROM plans WHERE id = $1`,
		id,
	)

	plan, err := scanPlan(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPlanNotFound.WithDetail("plan_id", id.String())
		}
		return nil, fmt.Errorf("get plan by id: %w", err)
	}

	return plan, nil
}

// List returns all plans ordered by creation time
func (r *PlanRepository) List(ctx context.Context, tx ports.DBTX) ([]*domain.Plan, error) {
	rows, err := r.executor(tx).Query(ctx, `
		SELECT id, name, price, duration_days, created_at
		FROM plans ORDER BY created_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	defer rows.Close()

	var plans []*domain.Plan
	for rows.Next() {
		plan, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		plans = append(plans, plan)
	}

	return plans, rows.Err()
}

func scanPlan(row pgx.Row) (*domain.Plan, error) {
	var (
		plan  domain.Plan
		id    uuid.UUID
		price pgtype.Numeric
	)

	if err := row.Scan(&id, &plan.Name, &price, &plan.DurationDays, &plan.CreatedAt); err != nil {
		return nil, err
	}

	dec, err := numericToDecimal(price)
	if err != nil {
		return nil, err
	}

	plan.ID = id.String()
	plan.Price = dec
	return &plan, nil
}
