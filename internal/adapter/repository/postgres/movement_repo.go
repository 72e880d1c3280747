package postgres

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/iho/stockledger/internal/domain"
	"github.com/iho/stockledger/internal/infrastructure/postgres/generated"
	"github.com/iho/stockledger/internal/usecase"
)

// MovementRepository implements usecase.MovementRepository.
type MovementRepository struct {
	queries *generated.Queries
}

// NewMovementRepository creates a new MovementRepository.
func NewMovementRepository(db generated.DBTX) *MovementRepository {
	return &MovementRepository{
		queries: generated.New(db),
	}
}

// Create inserts a movement and sets its BIGSERIAL id.
func (r *MovementRepository) Create(ctx context.Context, tx usecase.Transaction, movement *domain.Movement) error {
	queries, err := txQueries(tx)
	if err != nil {
		return err
	}

	id, err := queries.CreateMovement(ctx, generated.CreateMovementParams{
		EntityID:      movement.EntityID,
		Direction:     string(movement.Direction),
		Magnitude:     decimalToNumeric(movement.Magnitude),
		BalanceBefore: decimalToNumeric(movement.BalanceBefore),
		BalanceAfter:  decimalToNumeric(movement.BalanceAfter),
		EntityVersion: movement.EntityVersion,
		OccurredAt:    timeToPgTimestamptz(movement.OccurredAt),
	})
	if err != nil {
		return err
	}

	movement.ID = id
	return nil
}

// ListByEntity retrieves movements by entity ID ordered by occurred_at, id.
func (r *MovementRepository) ListByEntity(ctx context.Context, entityID string, filter domain.MovementFilter) ([]*domain.Movement, error) {
	rows, err := r.queries.ListMovementsByEntity(ctx, generated.ListMovementsByEntityParams{
		EntityID:  entityID,
		FromTime:  optionalTimestamptz(filter.From),
		ToTime:    optionalTimestamptz(filter.To),
		Direction: string(filter.Direction),
		RowLimit:  int32(filter.Limit),
	})
	if err != nil {
		return nil, err
	}

	movements := make([]*domain.Movement, 0, len(rows))
	for _, row := range rows {
		movements = append(movements, rowToMovement(row))
	}

	return movements, nil
}

// SumByEntity totals increase and decrease magnitudes for an entity.
func (r *MovementRepository) SumByEntity(ctx context.Context, entityID string) (decimal.Decimal, decimal.Decimal, error) {
	row, err := r.queries.SumMovementsByEntity(ctx, entityID)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	return numericToDecimal(row.TotalIncrease), numericToDecimal(row.TotalDecrease), nil
}

func rowToMovement(row generated.Movement) *domain.Movement {
	return &domain.Movement{
		ID:            row.ID,
		EntityID:      row.EntityID,
		Direction:     domain.Direction(row.Direction),
		Magnitude:     numericToDecimal(row.Magnitude),
		BalanceBefore: numericToDecimal(row.BalanceBefore),
		BalanceAfter:  numericToDecimal(row.BalanceAfter),
		EntityVersion: row.EntityVersion,
		OccurredAt:    row.OccurredAt.Time,
	}
}
