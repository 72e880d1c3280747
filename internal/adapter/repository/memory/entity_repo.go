package memory

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/stockledger/internal/domain"
	"github.com/iho/stockledger/internal/usecase"
)

// EntityRepository implements usecase.EntityRepository on a Store.
type EntityRepository struct {
	store *Store
}

// NewEntityRepository creates a new EntityRepository.
func NewEntityRepository(store *Store) *EntityRepository {
	return &EntityRepository{store: store}
}

// Create stages a new entity.
func (r *EntityRepository) Create(ctx context.Context, tx usecase.Transaction, entity *domain.Entity) error {
	mtx, err := asTx(tx)
	if err != nil {
		return err
	}
	staged := copyEntity(entity)
	return mtx.stage(func() {
		mtx.entities = append(mtx.entities, staged)
	})
}

// GetByID retrieves a committed entity by ID.
func (r *EntityRepository) GetByID(ctx context.Context, id string) (*domain.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	e, ok := r.store.entities[id]
	if !ok {
		return nil, domain.ErrEntityNotFound
	}
	return copyEntity(e), nil
}

// GetByIDForUpdate reads the entity for a read-modify-write. The store has no
// row locks; conflicting writers are caught by the version check on commit.
func (r *EntityRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.Entity, error) {
	mtx, err := asTx(tx)
	if err != nil {
		return nil, err
	}

	mtx.mu.Lock()
	staged := mtx.stagedEntity(id)
	mtx.mu.Unlock()
	if staged != nil {
		return copyEntity(staged), nil
	}

	return r.GetByID(ctx, id)
}

// UpdateBalance stages a balance change. version is the entity's new version.
func (r *EntityRepository) UpdateBalance(ctx context.Context, tx usecase.Transaction, id string, balance decimal.Decimal, version int64, updatedAt time.Time) error {
	mtx, err := asTx(tx)
	if err != nil {
		return err
	}
	return mtx.stage(func() {
		mtx.updates = append(mtx.updates, balanceUpdate{
			id:        id,
			balance:   balance,
			version:   version,
			updatedAt: updatedAt,
		})
	})
}

// ListByMaxBalance returns entities with balance at or below threshold, ordered by ID.
func (r *EntityRepository) ListByMaxBalance(ctx context.Context, threshold decimal.Decimal) ([]*domain.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	result := make([]*domain.Entity, 0)
	for _, e := range r.store.entities {
		if e.IsLow(threshold) {
			result = append(result, copyEntity(e))
		}
	}
	sortByID(result)

	return result, nil
}

// List returns a page of entities ordered by ID.
func (r *EntityRepository) List(ctx context.Context, limit, offset int) ([]*domain.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.store.mu.RLock()
	all := make([]*domain.Entity, 0, len(r.store.entities))
	for _, e := range r.store.entities {
		all = append(all, copyEntity(e))
	}
	r.store.mu.RUnlock()

	sortByID(all)

	if offset >= len(all) {
		return []*domain.Entity{}, nil
	}
	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return all[offset:end], nil
}

func sortByID(entities []*domain.Entity) {
	slices.SortFunc(entities, func(a, b *domain.Entity) int {
		return strings.Compare(a.ID, b.ID)
	})
}
