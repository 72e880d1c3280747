package usecase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/stockledger/internal/domain"
)

// EntityRepository defines data access for ledger entities.
type EntityRepository interface {
	Create(ctx context.Context, tx Transaction, entity *domain.Entity) error
	GetByID(ctx context.Context, id string) (*domain.Entity, error)
	GetByIDForUpdate(ctx context.Context, tx Transaction, id string) (*domain.Entity, error)
	UpdateBalance(ctx context.Context, tx Transaction, id string, balance decimal.Decimal, version int64, updatedAt time.Time) error
	ListByMaxBalance(ctx context.Context, threshold decimal.Decimal) ([]*domain.Entity, error)
	List(ctx context.Context, limit, offset int) ([]*domain.Entity, error)
}

// MovementRepository defines data access for the append-only movement log.
type MovementRepository interface {
	// Create inserts the movement and sets movement.ID.
	Create(ctx context.Context, tx Transaction, movement *domain.Movement) error
	// ListByEntity returns movements ordered by occurred_at, then id.
	ListByEntity(ctx context.Context, entityID string, filter domain.MovementFilter) ([]*domain.Movement, error)
	SumByEntity(ctx context.Context, entityID string) (increase, decrease decimal.Decimal, err error)
}

// OutboxRepository defines data access for outbox events.
type OutboxRepository interface {
	Create(ctx context.Context, tx Transaction, event *domain.OutboxEvent) error
	GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkPublished(ctx context.Context, id string, publishedAt time.Time) error
	DeletePublished(ctx context.Context, before time.Time) error
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionManager handles transaction lifecycle.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
}

// EntityLocker serializes balance mutations per entity.
// Lock blocks until the key is free or ctx is done, in which case it returns ctx.Err().
type EntityLocker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// Retrier re-runs an operation on transient storage conflicts.
type Retrier interface {
	Retry(ctx context.Context, operation func() error) error
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// Clock supplies the engine's notion of now.
type Clock interface {
	Now() time.Time
}

// IdempotencyStore handles idempotency key storage.
type IdempotencyStore interface {
	// CheckAndSet atomically checks if key exists, sets if not.
	// Returns (exists, existingValue, error).
	CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	// Update updates an existing key with the final response.
	Update(ctx context.Context, key string, response []byte, ttl time.Duration) error
}

// Metrics receives ledger engine measurements.
type Metrics interface {
	EntityRegistered()
	MovementApplied(direction domain.Direction, magnitude decimal.Decimal, duration time.Duration)
	MovementFailed(kind string)
	LockWait(duration time.Duration)
	LowBalance()
}

// SystemClock is a Clock backed by time.Now in UTC.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

type noRetry struct{}

func (noRetry) Retry(_ context.Context, operation func() error) error {
	return operation()
}

type noopMetrics struct{}

func (noopMetrics) EntityRegistered() {}
func (noopMetrics) MovementApplied(domain.Direction, decimal.Decimal, time.Duration) {}
func (noopMetrics) MovementFailed(string) {}
func (noopMetrics) LockWait(time.Duration) {}
func (noopMetrics) LowBalance() {}
