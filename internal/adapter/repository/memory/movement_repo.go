package memory

import (
	"context"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/iho/stockledger/internal/domain"
	"github.com/iho/stockledger/internal/usecase"
)

// MovementRepository implements usecase.MovementRepository on a Store.
type MovementRepository struct {
	store *Store
}

// NewMovementRepository creates a new MovementRepository.
func NewMovementRepository(store *Store) *MovementRepository {
	return &MovementRepository{store: store}
}

// Create assigns the movement its ID and stages it.
func (r *MovementRepository) Create(ctx context.Context, tx usecase.Transaction, movement *domain.Movement) error {
	mtx, err := asTx(tx)
	if err != nil {
		return err
	}

	return mtx.stage(func() {
		movement.ID = r.store.movementID.Add(1)
		mtx.movements = append(mtx.movements, copyMovement(movement))
	})
}

// ListByEntity returns committed movements ordered by occurred_at, then ID.
func (r *MovementRepository) ListByEntity(ctx context.Context, entityID string, filter domain.MovementFilter) ([]*domain.Movement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.store.mu.RLock()
	result := make([]*domain.Movement, 0)
	for _, m := range r.store.movements[entityID] {
		if filter.Contains(m) {
			result = append(result, copyMovement(m))
		}
	}
	r.store.mu.RUnlock()

	slices.SortStableFunc(result, func(a, b *domain.Movement) int {
		if c := a.OccurredAt.Compare(b.OccurredAt); c != 0 {
			return c
		}
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})

	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}

	return result, nil
}

// SumByEntity totals the committed increase and decrease magnitudes of an entity.
func (r *MovementRepository) SumByEntity(ctx context.Context, entityID string) (decimal.Decimal, decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	increase, decrease := decimal.Zero, decimal.Zero
	for _, m := range r.store.movements[entityID] {
		if m.Direction == domain.DirectionDecrease {
			decrease = decrease.Add(m.Magnitude)
		} else {
			increase = increase.Add(m.Magnitude)
		}
	}

	return increase, decrease, nil
}
