package sqlite

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/iho/stockledger/internal/domain"
	"github.com/iho/stockledger/internal/usecase"
)

const movementColumns = `id, entity_id, direction, magnitude, balance_before, balance_after, entity_version, occurred_at`

// MovementRepository implements usecase.MovementRepository.
type MovementRepository struct {
	store *Store
}

// NewMovementRepository creates a new MovementRepository.
func NewMovementRepository(store *Store) *MovementRepository {
	return &MovementRepository{store: store}
}

// Create inserts a movement and sets its autoincrement id.
func (r *MovementRepository) Create(ctx context.Context, tx usecase.Transaction, movement *domain.Movement) error {
	stx, err := sqlTx(tx)
	if err != nil {
		return err
	}

	res, err := stx.ExecContext(ctx,
		`INSERT INTO movements (entity_id, direction, magnitude, balance_before, balance_after, entity_version, occurred_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		movement.EntityID,
		string(movement.Direction),
		movement.Magnitude.String(),
		movement.BalanceBefore.String(),
		movement.BalanceAfter.String(),
		movement.EntityVersion,
		formatTime(movement.OccurredAt),
	)
	if err != nil {
		return err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return err
	}

	movement.ID = id
	return nil
}

// ListByEntity retrieves movements ordered by occurred_at, id.
func (r *MovementRepository) ListByEntity(ctx context.Context, entityID string, filter domain.MovementFilter) ([]*domain.Movement, error) {
	var (
		where = []string{"entity_id = ?"}
		args  = []any{entityID}
	)

	if filter.From != nil {
		where = append(where, "occurred_at >= ?")
		args = append(args, formatTime(*filter.From))
	}
	if filter.To != nil {
		where = append(where, "occurred_at <= ?")
		args = append(args, formatTime(*filter.To))
	}
	if filter.Direction != "" {
		where = append(where, "direction = ?")
		args = append(args, string(filter.Direction))
	}

	query := `SELECT ` + movementColumns + ` FROM movements WHERE ` + strings.Join(where, " AND ") + ` ORDER BY occurred_at, id`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := r.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	movements := make([]*domain.Movement, 0)
	for rows.Next() {
		var (
			m                                               domain.Movement
			direction, magnitude, before, after, occurredAt string
		)
		if err := rows.Scan(&m.ID, &m.EntityID, &direction, &magnitude, &before, &after, &m.EntityVersion, &occurredAt); err != nil {
			return nil, err
		}

		m.Direction = domain.Direction(direction)
		if m.Magnitude, err = parseDecimal(magnitude); err != nil {
			return nil, err
		}
		if m.BalanceBefore, err = parseDecimal(before); err != nil {
			return nil, err
		}
		if m.BalanceAfter, err = parseDecimal(after); err != nil {
			return nil, err
		}
		if m.OccurredAt, err = parseTime(occurredAt); err != nil {
			return nil, err
		}

		movements = append(movements, &m)
	}

	return movements, rows.Err()
}

// SumByEntity totals increase and decrease magnitudes for an entity.
func (r *MovementRepository) SumByEntity(ctx context.Context, entityID string) (decimal.Decimal, decimal.Decimal, error) {
	movements, err := r.ListByEntity(ctx, entityID, domain.MovementFilter{})
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	increase, decrease := decimal.Zero, decimal.Zero
	for _, m := range movements {
		if m.Direction == domain.DirectionDecrease {
			decrease = decrease.Add(m.Magnitude)
		} else {
			increase = increase.Add(m.Magnitude)
		}
	}

	return increase, decrease, nil
}
