package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Plan represents an immutable subscription catalog entry.
// Plans are referenced by subscriptions and never mutated after creation.
type Plan struct {
	CreatedAt    time.Time       `json:"created_at"`
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Price        decimal.Decimal `json:"price"`
	DurationDays int             `json:"duration_days"`
}

// Validate checks plan invariants before creation
func (p *Plan) Validate() error {
	if p.Name == "" {
		return ErrValidationMissingField.WithDetail("field", "name")
	}
	if p.Price.IsNegative() || p.Price.IsZero() {
		return ErrValidationAmount.WithDetail("price", p.Price.String())
	}
	if p.DurationDays < 1 {
		return ErrValidationFailed.WithDetail("duration_days", p.DurationDays)
	}
	return nil
}
