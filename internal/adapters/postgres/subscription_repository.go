package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/kevin07696/subscription-service/internal/domain"
	"github.com/kevin07696/subscription-service/internal/domain/ports"
)

// SubscriptionRepository implements ports.SubscriptionRepository
type SubscriptionRepository struct {
	db ports.DBPort
}

// NewSubscriptionRepository creates a new subscription repository
func NewSubscriptionRepository(db ports.DBPort) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

func (r *SubscriptionRepository) executor(tx ports.DBTX) ports.DBTX {
	if tx != nil {
		return tx
	}
	return r.db.GetDB()
}

const subscriptionColumns = `id, user_id, plan_id, status, start_date, end_date, auto_renew, created_at, updated_at`

// Create inserts a new subscription row
func (r *SubscriptionRepository) Create(ctx context.Context, tx ports.DBTX, sub *domain.Subscription) error {
	id, err := uuid.Parse(sub.ID)
	if err != nil {
		return fmt.Errorf("invalid subscription ID: %w", err)
	}
	planID, err := uuid.Parse(sub.PlanID)
	if err != nil {
		return fmt.Errorf("invalid plan ID: %w", err)
	}

	_, err = r.executor(tx).Exec(ctx, `
		INSERT INTO subscriptions (id, user_id, plan_id, status, start_date, end_date, auto_renew, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		id, sub.UserID, planID, string(sub.Status), sub.StartDate, sub.EndDate, sub.AutoRenew, sub.CreatedAt, sub.UpdatedAt,
	)
	if err != nil {
		// The unique index on user_id backs the one-live-subscription-per-
		// user invariant against concurrent creates.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrAlreadySubscribed.WithDetail("user_id", sub.UserID)
		}
		return fmt.Errorf("create subscription: %w", err)
	}

	return nil
}

// GetByID retrieves a subscription by its ID
func (r *SubscriptionRepository) GetByID(ctx context.Context, tx ports.DBTX, id uuid.UUID) (*domain.Subscription, error) {
	row := r.executor(tx).QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = $1`, id)

	sub, err := scanSubscription(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSubscriptionNotFound.WithDetail("subscription_id", id.String())
		}
		return nil, fmt.Errorf("get subscription by id: %w", err)
	}

	return sub, nil
}

// GetByUser retrieves the single subscription row for a user
func (r *SubscriptionRepository) GetByUser(ctx context.Context, tx ports.DBTX, userID string) (*domain.Subscription, error) {
	row := r.executor(tx).QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE user_id = $1`, userID)

	sub, err := scanSubscription(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSubscriptionNotFound.WithDetail("user_id", userID)
		}
		return nil, fmt.Errorf("get subscription by user: %w", err)
	}

	return sub, nil
}

// Update persists mutable subscription fields
func (r *SubscriptionRepository) Update(ctx context.Context, tx ports.DBTX, sub *domain.Subscription) error {
	id, err := uuid.Parse(sub.ID)
	if err != nil {
		return fmt.Errorf("invalid subscription ID: %w", err)
	}
	planID, err := uuid.Parse(sub.PlanID)
	if err != nil {
		return fmt.Errorf("invalid plan ID: %w", err)
	}

	tag, err := r.executor(tx).Exec(ctx, `
		UPDATE subscriptions
		SET plan_id = $2, status = $3, start_date = $4, end_date = $5, auto_renew = $6, updated_at = $7
		WHERE id = $1`,
		id, planID, string(sub.Status), sub.StartDate, sub.EndDate, sub.AutoRenew, sub.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSubscriptionNotFound.WithDetail("subscription_id", sub.ID)
	}

	return nil
}

// Delete removes a subscription row. Payment rows keep the subscription id
// value so charge history survives removal.
func (r *SubscriptionRepository) Delete(ctx context.Context, tx ports.DBTX, id uuid.UUID) error {
	_, err := r.executor(tx).Exec(ctx, `DELETE FROM subscriptions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	return nil
}

func scanSubscription(row pgx.Row) (*domain.Subscription, error) {
	var (
		sub    domain.Subscription
		id     uuid.UUID
		planID uuid.UUID
		status string
	)

	if err := row.Scan(&id, &sub.UserID, &planID, &status, &sub.StartDate, &sub.EndDate, &sub.AutoRenew, &sub.CreatedAt, &sub.UpdatedAt); err != nil {
		return nil, err
	}

	sub.ID = id.String()
	sub.PlanID = planID.String()
	sub.Status = domain.SubscriptionStatus(status)
	return &sub, nil
}
