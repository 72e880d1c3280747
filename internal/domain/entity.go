package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Entity is a ledger-tracked subject (a stock item or an account) with a running balance.
type Entity struct {
	ID             string
	Name           string
	InitialBalance decimal.Decimal
	Balance        decimal.Decimal
	Version        int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Apply returns the balance the entity would have after the movement.
// A decrease that would drive the balance below zero is rejected in full.
func (e *Entity) Apply(direction Direction, magnitude decimal.Decimal) (decimal.Decimal, error) {
	switch direction {
	case DirectionIncrease:
		return e.Balance.Add(magnitude), nil
	case DirectionDecrease:
		next := e.Balance.Sub(magnitude)
		if next.IsNegative() {
			return e.Balance, ErrInsufficientBalance
		}
		return next, nil
	default:
		return e.Balance, ErrInvalidDirection
	}
}

// IsLow reports whether the balance is at or below threshold.
func (e *Entity) IsLow(threshold decimal.Decimal) bool {
	return e.Balance.LessThanOrEqual(threshold)
}

// Balance is the read model returned by balance queries.
type Balance struct {
	EntityID string
	Name     string
	Balance  decimal.Decimal
}
