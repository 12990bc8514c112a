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

// PaymentRepository implements ports.PaymentRepository
type PaymentRepository struct {
	db ports.DBPort
}

// NewPaymentRepository creates a new payment repository
func NewPaymentRepository(db ports.DBPort) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) executor(tx ports.DBTX) ports.DBTX {
	if tx != nil {
		return tx
	}
	return r.db.GetDB()
}

const paymentColumns = `id, subscription_id, user_id, amount, gateway_payment_id, stored_method_id, created_at`

// Create inserts a new payment row
func (r *PaymentRepository) Create(ctx context.Context, tx ports.DBTX, payment *domain.Payment) error {
	id, err := uuid.Parse(payment.ID)
	if err != nil {
		return fmt.Errorf("invalid payment ID: %w", err)
	}
	subID, err := uuid.Parse(payment.SubscriptionID)
	if err != nil {
		return fmt.Errorf("invalid subscription ID: %w", err)
	}

	amount, err := decimalToNumeric(payment.Amount)
	if err != nil {
		return err
	}

	_, err = r.executor(tx).Exec(ctx, `
		INSERT INTO payments (id, subscription_id, user_id, amount, gateway_payment_id, stored_method_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, subID, payment.UserID, amount, payment.GatewayPaymentID, nullText(payment.StoredMethodID), payment.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create payment: %w", err)
	}

	return nil
}

// GetByGatewayID retrieves a payment by its external gateway payment id.
// Webhook reconciliation matches inbound events through this lookup.
func (r *PaymentRepository) GetByGatewayID(ctx context.Context, tx ports.DBTX, gatewayPaymentID string) (*domain.Payment, error) {
	row := r.executor(tx).QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE gateway_payment_id = $1`, gatewayPaymentID)

	payment, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPaymentNotFound.WithDetail("gateway_payment_id", gatewayPaymentID)
		}
		return nil, fmt.Errorf("get payment by gateway id: %w", err)
	}

	return payment, nil
}

// ListByUser returns a user's charge history, newest first
func (r *PaymentRepository) ListByUser(ctx context.Context, tx ports.DBTX, userID string) ([]*domain.Payment, error) {
	rows, err := r.executor(tx).Query(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list payments by user: %w", err)
	}
	defer rows.Close()

	var payments []*domain.Payment
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		payments = append(payments, payment)
	}

	return payments, rows.Err()
}

// LastWithStoredMethod returns the newest payment carrying a stored payment
// method id for a subscription
func (r *PaymentRepository) LastWithStoredMethod(ctx context.Context, tx ports.DBTX, subscriptionID uuid.UUID) (*domain.Payment, error) {
	row := r.executor(tx).QueryRow(ctx, `
		SELECT `+paymentColumns+` FROM payments
		WHERE subscription_id = $1 AND stored_method_id IS NOT NULL
		ORDER BY created_at DESC LIMIT 1`,
		subscriptionID,
	)

	payment, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPaymentNotFound.WithDetail("subscription_id", subscriptionID.String())
		}
		return nil, fmt.Errorf("get last payment with stored method: %w", err)
	}

	return payment, nil
}

// AttachStoredMethod records a late-arriving stored-method id
func (r *PaymentRepository) AttachStoredMethod(ctx context.Context, tx ports.DBTX, paymentID uuid.UUID, storedMethodID string) error {
	tag, err := r.executor(tx).Exec(ctx,
		`UPDATE payments SET stored_method_id = $2 WHERE id = $1`, paymentID, nullText(storedMethodID))
	if err != nil {
		return fmt.Errorf("attach stored method: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPaymentNotFound.WithDetail("payment_id", paymentID.String())
	}
	return nil
}

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	var (
		payment      domain.Payment
		id           uuid.UUID
		subID        uuid.UUID
		amount       pgtype.Numeric
		storedMethod pgtype.Text
	)

	if err := row.Scan(&id, &subID, &payment.UserID, &amount, &payment.GatewayPaymentID, &storedMethod, &payment.CreatedAt); err != nil {
		return nil, err
	}

	dec, err := numericToDecimal(amount)
	if err != nil {
		return nil, err
	}

	payment.ID = id.String()
	payment.SubscriptionID = subID.String()
	payment.Amount = dec
	payment.StoredMethodID = storedMethod.String
	return &payment, nil
}
