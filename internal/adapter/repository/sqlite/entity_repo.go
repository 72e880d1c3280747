package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/stockledger/internal/domain"
	"github.com/iho/stockledger/internal/usecase"
)

const entityColumns = `id, name, initial_balance, balance, version, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// EntityRepository implements usecase.EntityRepository.
type EntityRepository struct {
	store *Store
}

// NewEntityRepository creates a new EntityRepository.
func NewEntityRepository(store *Store) *EntityRepository {
	return &EntityRepository{store: store}
}

// Create inserts a new entity.
func (r *EntityRepository) Create(ctx context.Context, tx usecase.Transaction, entity *domain.Entity) error {
	stx, err := sqlTx(tx)
	if err != nil {
		return err
	}

	_, err = stx.ExecContext(ctx,
		`INSERT INTO entities (`+entityColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entity.ID,
		entity.Name,
		entity.InitialBalance.String(),
		entity.Balance.String(),
		entity.Version,
		formatTime(entity.CreatedAt),
		formatTime(entity.UpdatedAt),
	)
	return err
}

// GetByID retrieves an entity by ID.
func (r *EntityRepository) GetByID(ctx context.Context, id string) (*domain.Entity, error) {
	row := r.store.db.QueryRowContext(ctx, `SELECT `+entityColumns+` FROM entities WHERE id = ?`, id)
	return scanEntity(row)
}

// GetByIDForUpdate reads the entity inside tx. The transaction already holds
// the database write lock, so the row cannot change underneath it.
func (r *EntityRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.Entity, error) {
	stx, err := sqlTx(tx)
	if err != nil {
		return nil, err
	}

	row := stx.QueryRowContext(ctx, `SELECT `+entityColumns+` FROM entities WHERE id = ?`, id)
	return scanEntity(row)
}

// UpdateBalance sets the balance and version of an entity.
func (r *EntityRepository) UpdateBalance(ctx context.Context, tx usecase.Transaction, id string, balance decimal.Decimal, version int64, updatedAt time.Time) error {
	stx, err := sqlTx(tx)
	if err != nil {
		return err
	}

	res, err := stx.ExecContext(ctx,
		`UPDATE entities SET balance = ?, version = ?, updated_at = ? WHERE id = ?`,
		balance.String(), version, formatTime(updatedAt), id,
	)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrEntityNotFound
	}

	return nil
}

// ListByMaxBalance lists entities whose balance is at or below threshold.
// Balances are stored as text, so the comparison happens in Go.
func (r *EntityRepository) ListByMaxBalance(ctx context.Context, threshold decimal.Decimal) ([]*domain.Entity, error) {
	all, err := r.query(ctx, `SELECT `+entityColumns+` FROM entities ORDER BY id`)
	if err != nil {
		return nil, err
	}

	low := make([]*domain.Entity, 0)
	for _, e := range all {
		if e.IsLow(threshold) {
			low = append(low, e)
		}
	}

	return low, nil
}

// List lists entities with pagination.
func (r *EntityRepository) List(ctx context.Context, limit, offset int) ([]*domain.Entity, error) {
	return r.query(ctx, `SELECT `+entityColumns+` FROM entities ORDER BY id LIMIT ? OFFSET ?`, limit, offset)
}

func (r *EntityRepository) query(ctx context.Context, query string, args ...any) ([]*domain.Entity, error) {
	rows, err := r.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entities := make([]*domain.Entity, 0)
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}

	return entities, rows.Err()
}

func scanEntity(row rowScanner) (*domain.Entity, error) {
	var (
		e                    domain.Entity
		initial, balance     string
		createdAt, updatedAt string
	)

	err := row.Scan(&e.ID, &e.Name, &initial, &balance, &e.Version, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrEntityNotFound
		}
		return nil, err
	}

	if e.InitialBalance, err = parseDecimal(initial); err != nil {
		return nil, err
	}
	if e.Balance, err = parseDecimal(balance); err != nil {
		return nil, err
	}
	if e.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if e.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}

	return &e, nil
}
