package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/iho/stockledger/internal/domain"
	"github.com/iho/stockledger/internal/infrastructure/postgres/generated"
	"github.com/iho/stockledger/internal/usecase"
)

// EntityRepository implements usecase.EntityRepository.
type EntityRepository struct {
	queries *generated.Queries
}

// NewEntityRepository creates a new EntityRepository.
func NewEntityRepository(db generated.DBTX) *EntityRepository {
	return &EntityRepository{
		queries: generated.New(db),
	}
}

// Create inserts a new entity within a transaction.
func (r *EntityRepository) Create(ctx context.Context, tx usecase.Transaction, entity *domain.Entity) error {
	queries, err := txQueries(tx)
	if err != nil {
		return err
	}

	return queries.CreateEntity(ctx, generated.CreateEntityParams{
		ID:             entity.ID,
		Name:           entity.Name,
		InitialBalance: decimalToNumeric(entity.InitialBalance),
		Balance:        decimalToNumeric(entity.Balance),
		Version:        entity.Version,
		CreatedAt:      timeToPgTimestamptz(entity.CreatedAt),
		UpdatedAt:      timeToPgTimestamptz(entity.UpdatedAt),
	})
}

// GetByID retrieves an entity by ID.
func (r *EntityRepository) GetByID(ctx context.Context, id string) (*domain.Entity, error) {
	row, err := r.queries.GetEntityByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrEntityNotFound
		}

		return nil, err
	}

	return rowToEntity(row), nil
}

// GetByIDForUpdate retrieves an entity by ID with a FOR UPDATE lock.
func (r *EntityRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.Entity, error) {
	queries, err := txQueries(tx)
	if err != nil {
		return nil, err
	}

	row, err := queries.GetEntityByIDForUpdate(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrEntityNotFound
		}

		return nil, err
	}

	return rowToEntity(row), nil
}

// UpdateBalance sets the balance and version of an entity.
func (r *EntityRepository) UpdateBalance(ctx context.Context, tx usecase.Transaction, id string, balance decimal.Decimal, version int64, updatedAt time.Time) error {
	queries, err := txQueries(tx)
	if err != nil {
		return err
	}

	n, err := queries.UpdateEntityBalance(ctx, generated.UpdateEntityBalanceParams{
		ID:        id,
		Balance:   decimalToNumeric(balance),
		Version:   version,
		UpdatedAt: timeToPgTimestamptz(updatedAt),
	})
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrEntityNotFound
	}

	return nil
}

// ListByMaxBalance lists entities whose balance is at or below threshold.
func (r *EntityRepository) ListByMaxBalance(ctx context.Context, threshold decimal.Decimal) ([]*domain.Entity, error) {
	rows, err := r.queries.ListEntitiesByMaxBalance(ctx, decimalToNumeric(threshold))
	if err != nil {
		return nil, err
	}

	return rowsToEntities(rows), nil
}

// List lists entities with pagination.
func (r *EntityRepository) List(ctx context.Context, limit, offset int) ([]*domain.Entity, error) {
	rows, err := r.queries.ListEntities(ctx, generated.ListEntitiesParams{
		Limit:  int32(limit),
		Offset: int32(offset),
	})
	if err != nil {
		return nil, err
	}

	return rowsToEntities(rows), nil
}

func rowsToEntities(rows []generated.Entity) []*domain.Entity {
	entities := make([]*domain.Entity, 0, len(rows))
	for _, row := range rows {
		entities = append(entities, rowToEntity(row))
	}
	return entities
}

func rowToEntity(row generated.Entity) *domain.Entity {
	return &domain.Entity{
		ID:             row.ID,
		Name:           row.Name,
		InitialBalance: numericToDecimal(row.InitialBalance),
		Balance:        numericToDecimal(row.Balance),
		Version:        row.Version,
		CreatedAt:      row.CreatedAt.Time,
		UpdatedAt:      row.UpdatedAt.Time,
	}
}

// Type conversion helpers.
func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric

	_ = n.Scan(d.String())

	return n
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}

	d, _ := decimal.NewFromString(n.Int.String())
	if n.Exp != 0 {
		d = d.Shift(n.Exp)
	}

	return d
}

func timeToPgTimestamptz(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func optionalTimestamptz(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{}
	}
	return timeToPgTimestamptz(*t)
}
