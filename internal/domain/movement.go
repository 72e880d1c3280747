package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Direction is the sign of a movement.
type Direction string

const (
	DirectionIncrease Direction = "increase"
	DirectionDecrease Direction = "decrease"
)

// directionAliases maps the stock ("entrada"/"saida") and cash-book
// ("receita"/"despesa") vocabularies onto the two directions.
var directionAliases = map[string]Direction{
	"increase": DirectionIncrease,
	"entrada":  DirectionIncrease,
	"receita":  DirectionIncrease,
	"in":       DirectionIncrease,
	"decrease": DirectionDecrease,
	"saida":    DirectionDecrease,
	"despesa":  DirectionDecrease,
	"out":      DirectionDecrease,
}

// ParseDirection parses a direction name or one of its aliases.
func ParseDirection(s string) (Direction, error) {
	d, ok := directionAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidDirection, s)
	}
	return d, nil
}

// Valid reports whether d is one of the known directions.
func (d Direction) Valid() bool {
	return d == DirectionIncrease || d == DirectionDecrease
}

// Movement is a single immutable change applied to an entity's balance.
type Movement struct {
	OccurredAt    time.Time
	ID            int64
	EntityID      string
	Direction     Direction
	Magnitude     decimal.Decimal
	BalanceBefore decimal.Decimal
	BalanceAfter  decimal.Decimal
	EntityVersion int64
}

// Signed returns the magnitude with the direction's sign applied.
func (m *Movement) Signed() decimal.Decimal {
	if m.Direction == DirectionDecrease {
		return m.Magnitude.Neg()
	}
	return m.Magnitude
}

// MovementFilter restricts a history query. Bounds are inclusive and optional.
type MovementFilter struct {
	From      *time.Time
	To        *time.Time
	Direction Direction
	Limit     int
}

// Contains reports whether m passes the filter.
func (f MovementFilter) Contains(m *Movement) bool {
	if f.From != nil && m.OccurredAt.Before(*f.From) {
		return false
	}
	if f.To != nil && m.OccurredAt.After(*f.To) {
		return false
	}
	if f.Direction != "" && m.Direction != f.Direction {
		return false
	}
	return true
}
