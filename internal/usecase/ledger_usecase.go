package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/stockledger/internal/domain"
)

// LedgerConfig holds engine tunables.
type LedgerConfig struct {
	LowBalanceThreshold decimal.Decimal
	LockTimeout         time.Duration
}

// DefaultLedgerConfig returns the engine defaults.
func DefaultLedgerConfig() LedgerConfig {
	return LedgerConfig{
		LowBalanceThreshold: decimal.NewFromInt(DefaultLowBalanceThreshold),
		LockTimeout:         DefaultLockTimeout,
	}
}

// LedgerDeps are the collaborators of the ledger engine.
// TxManager, Entities, Movements, Locker and IDGen are required.
type LedgerDeps struct {
	TxManager TransactionManager
	Entities  EntityRepository
	Movements MovementRepository
	Outbox    OutboxRepository
	Locker    EntityLocker
	Retrier   Retrier
	IDGen     IDGenerator
	Clock     Clock
	Metrics   Metrics
	Logger    zerolog.Logger
}

// LedgerUseCase applies movements to entities and answers balance queries.
type LedgerUseCase struct {
	txManager TransactionManager
	entities  EntityRepository
	movements MovementRepository
	outbox    OutboxRepository
	locker    EntityLocker
	retrier   Retrier
	idGen     IDGenerator
	clock     Clock
	metrics   Metrics
	logger    zerolog.Logger
	cfg       LedgerConfig
}

// NewLedgerUseCase creates a new LedgerUseCase.
func NewLedgerUseCase(deps LedgerDeps, cfg LedgerConfig) *LedgerUseCase {
	if deps.Retrier == nil {
		deps.Retrier = noRetry{}
	}
	if deps.Clock == nil {
		deps.Clock = SystemClock{}
	}
	if deps.Metrics == nil {
		deps.Metrics = noopMetrics{}
	}

	return &LedgerUseCase{
		txManager: deps.TxManager,
		entities:  deps.Entities,
		movements: deps.Movements,
		outbox:    deps.Outbox,
		locker:    deps.Locker,
		retrier:   deps.Retrier,
		idGen:     deps.IDGen,
		clock:     deps.Clock,
		metrics:   deps.Metrics,
		logger:    deps.Logger.With().Str("component", "ledger").Logger(),
		cfg:       cfg,
	}
}

// RegisterEntityInput represents input for registering an entity.
type RegisterEntityInput struct {
	Name           string
	InitialBalance decimal.Decimal
}

// RegisterEntity creates a new entity with an opening balance and no movements.
func (uc *LedgerUseCase) RegisterEntity(ctx context.Context, input RegisterEntityInput) (*domain.Entity, error) {
	name := strings.TrimSpace(input.Name)
	if err := domain.ValidateEntityName(name); err != nil {
		return nil, err
	}
	if err := domain.ValidateInitialBalance(input.InitialBalance); err != nil {
		return nil, err
	}

	now := uc.clock.Now()
	entity := &domain.Entity{
		ID:             uc.idGen.Generate(),
		Name:           name,
		InitialBalance: input.InitialBalance,
		Balance:        input.InitialBalance,
		Version:        0,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err := uc.retrier.Retry(ctx, func() error {
		return uc.withTx(ctx, func(tx Transaction) error {
			if err := uc.entities.Create(ctx, tx, entity); err != nil {
				return err
			}

			return uc.emit(ctx, tx, entity.ID, domain.EventTypeEntityRegistered, now, domain.EntityRegisteredEvent{
				EntityID:       entity.ID,
				Name:           entity.Name,
				InitialBalance: entity.InitialBalance.String(),
			}.Payload())
		})
	})
	if err != nil {
		err = classify(err)
		uc.logger.Error().Err(err).Str("name", name).Msg("failed to register entity")
		return nil, err
	}

	uc.metrics.EntityRegistered()
	uc.logger.Info().
		Str("entity_id", entity.ID).
		Str("name", entity.Name).
		Str("initial_balance", entity.InitialBalance.String()).
		Msg("entity registered")

	return entity, nil
}

// ApplyMovementInput represents input for applying a movement.
type ApplyMovementInput struct {
	EntityID  string
	Direction domain.Direction
	Magnitude decimal.Decimal
}

// ApplyMovement atomically records a movement and the balance change it justifies.
// Either both writes commit or neither does.
func (uc *LedgerUseCase) ApplyMovement(ctx context.Context, input ApplyMovementInput) (*domain.Movement, error) {
	start := time.Now()

	movement, err := uc.applyMovement(ctx, input)
	if err != nil {
		kind := domain.Kind(err)
		uc.metrics.MovementFailed(kind)

		ev := uc.logger.Info()
		if kind == domain.KindStorageFailure || kind == domain.KindUnknown {
			ev = uc.logger.Error()
		}
		ev.Err(err).
			Str("entity_id", input.EntityID).
			Str("direction", string(input.Direction)).
			Str("magnitude", input.Magnitude.String()).
			Str("kind", kind).
			Msg("movement rejected")

		return nil, err
	}

	uc.metrics.MovementApplied(movement.Direction, movement.Magnitude, time.Since(start))
	uc.logger.Debug().
		Int64("movement_id", movement.ID).
		Str("entity_id", movement.EntityID).
		Str("direction", string(movement.Direction)).
		Str("magnitude", movement.Magnitude.String()).
		Str("balance", movement.BalanceAfter.String()).
		Msg("movement applied")

	return movement, nil
}

func (uc *LedgerUseCase) applyMovement(ctx context.Context, input ApplyMovementInput) (*domain.Movement, error) {
	if input.EntityID == "" {
		return nil, fmt.Errorf("%w: entity id is required", domain.ErrInvalidArgument)
	}
	if !input.Direction.Valid() {
		return nil, fmt.Errorf("%w: got %q", domain.ErrInvalidDirection, input.Direction)
	}
	if err := domain.ValidateMagnitude(input.Magnitude); err != nil {
		return nil, err
	}

	unlock, err := uc.lock(ctx, input.EntityID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var (
		movement *domain.Movement
		crossed  *domain.Entity
	)

	err = uc.retrier.Retry(ctx, func() error {
		var err error
		movement, crossed, err = uc.commitMovement(ctx, input)
		return err
	})
	if err != nil {
		return nil, classify(err)
	}

	if crossed != nil {
		uc.metrics.LowBalance()
		uc.logger.Warn().
			Str("entity_id", crossed.ID).
			Str("name", crossed.Name).
			Str("balance", movement.BalanceAfter.String()).
			Msg("entity balance dropped to low threshold")
	}

	return movement, nil
}

// lock acquires the entity's critical section, bounded by LockTimeout.
func (uc *LedgerUseCase) lock(ctx context.Context, entityID string) (func(), error) {
	lockCtx := ctx
	if uc.cfg.LockTimeout > 0 {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, uc.cfg.LockTimeout)
		defer cancel()
	}

	start := time.Now()
	unlock, err := uc.locker.Lock(lockCtx, "entity:"+entityID)
	uc.metrics.LockWait(time.Since(start))

	if err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			return nil, fmt.Errorf("%w: entity %s", domain.ErrTimeout, entityID)
		case errors.Is(err, context.Canceled):
			return nil, err
		default:
			return nil, fmt.Errorf("%w: acquire lock: %w", domain.ErrStorageFailure, err)
		}
	}

	return unlock, nil
}

// commitMovement runs one transactional attempt. It returns the entity when the
// movement took its balance from above the low threshold to at or below it.
func (uc *LedgerUseCase) commitMovement(ctx context.Context, input ApplyMovementInput) (*domain.Movement, *domain.Entity, error) {
	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	entity, err := uc.entities.GetByIDForUpdate(txCtx, tx, input.EntityID)
	if err != nil {
		return nil, nil, err
	}

	newBalance, err := entity.Apply(input.Direction, input.Magnitude)
	if err != nil {
		return nil, nil, err
	}

	// Timestamps never go backwards for an entity, even if the wall clock does.
	occurredAt := uc.clock.Now()
	if occurredAt.Before(entity.UpdatedAt) {
		occurredAt = entity.UpdatedAt
	}

	movement := &domain.Movement{
		EntityID:      entity.ID,
		Direction:     input.Direction,
		Magnitude:     input.Magnitude,
		BalanceBefore: entity.Balance,
		BalanceAfter:  newBalance,
		EntityVersion: entity.Version + 1,
		OccurredAt:    occurredAt,
	}

	if err := uc.movements.Create(txCtx, tx, movement); err != nil {
		return nil, nil, err
	}

	if err := uc.entities.UpdateBalance(txCtx, tx, entity.ID, newBalance, movement.EntityVersion, occurredAt); err != nil {
		return nil, nil, err
	}

	err = uc.emit(txCtx, tx, entity.ID, domain.EventTypeMovementApplied, occurredAt, domain.MovementAppliedEvent{
		MovementID:    movement.ID,
		EntityID:      entity.ID,
		Direction:     string(movement.Direction),
		Magnitude:     movement.Magnitude.String(),
		BalanceBefore: movement.BalanceBefore.String(),
		BalanceAfter:  movement.BalanceAfter.String(),
		OccurredAt:    occurredAt.Format(time.RFC3339Nano),
	}.Payload())
	if err != nil {
		return nil, nil, err
	}

	var crossed *domain.Entity
	threshold := uc.cfg.LowBalanceThreshold
	if input.Direction == domain.DirectionDecrease && !entity.IsLow(threshold) && newBalance.LessThanOrEqual(threshold) {
		crossed = entity
		err = uc.emit(txCtx, tx, entity.ID, domain.EventTypeLowBalance, occurredAt, domain.LowBalanceEvent{
			EntityID:  entity.ID,
			Name:      entity.Name,
			Balance:   newBalance.String(),
			Threshold: threshold.String(),
		}.Payload())
		if err != nil {
			return nil, nil, err
		}
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, nil, err
	}

	return movement, crossed, nil
}

// GetBalance returns the current balance of an entity.
func (uc *LedgerUseCase) GetBalance(ctx context.Context, entityID string) (*domain.Balance, error) {
	entity, err := uc.entities.GetByID(ctx, entityID)
	if err != nil {
		return nil, classify(err)
	}

	return &domain.Balance{
		EntityID: entity.ID,
		Name:     entity.Name,
		Balance:  entity.Balance,
	}, nil
}

// GetEntity returns an entity by ID.
func (uc *LedgerUseCase) GetEntity(ctx context.Context, entityID string) (*domain.Entity, error) {
	entity, err := uc.entities.GetByID(ctx, entityID)
	if err != nil {
		return nil, classify(err)
	}
	return entity, nil
}

// ListEntitiesInput represents input for listing entities.
type ListEntitiesInput struct {
	Limit  int
	Offset int
}

// ListEntities lists entities ordered by ID.
func (uc *LedgerUseCase) ListEntities(ctx context.Context, input ListEntitiesInput) ([]*domain.Entity, error) {
	limit, offset := domain.ValidatePagination(input.Limit, input.Offset)

	entities, err := uc.entities.List(ctx, limit, offset)
	if err != nil {
		return nil, classify(err)
	}
	return entities, nil
}

// GetHistoryInput represents input for a history query.
type GetHistoryInput struct {
	EntityID string
	From     *time.Time
	To       *time.Time
}

// GetHistory returns the entity's movements in commit order, optionally
// restricted to [From, To]. The result is a snapshot taken at call time.
func (uc *LedgerUseCase) GetHistory(ctx context.Context, input GetHistoryInput) ([]*domain.Movement, error) {
	if err := domain.ValidateRange(input.From, input.To); err != nil {
		return nil, err
	}

	if _, err := uc.entities.GetByID(ctx, input.EntityID); err != nil {
		return nil, classify(err)
	}

	movements, err := uc.movements.ListByEntity(ctx, input.EntityID, domain.MovementFilter{
		From: input.From,
		To:   input.To,
	})
	if err != nil {
		return nil, classify(err)
	}

	return movements, nil
}

// ListLowBalance returns entities whose balance is at or below threshold,
// ordered by ID. A nil threshold uses the configured default.
func (uc *LedgerUseCase) ListLowBalance(ctx context.Context, threshold *decimal.Decimal) ([]*domain.Entity, error) {
	limit := uc.cfg.LowBalanceThreshold
	if threshold != nil {
		limit = *threshold
	}

	entities, err := uc.entities.ListByMaxBalance(ctx, limit)
	if err != nil {
		return nil, classify(err)
	}
	return entities, nil
}

// AverageOutflowInput represents input for an outflow average.
type AverageOutflowInput struct {
	EntityID    string
	WindowCount int
	Unit        domain.WindowUnit
}

// AverageOutflow sums decrease magnitudes over the trailing WindowCount units
// ending now and divides by WindowCount. A zero window yields zero.
func (uc *LedgerUseCase) AverageOutflow(ctx context.Context, input AverageOutflowInput) (decimal.Decimal, error) {
	if err := domain.ValidateWindowCount(input.WindowCount); err != nil {
		return decimal.Zero, err
	}

	unit := input.Unit
	if unit == "" {
		unit = domain.WindowMonths
	}

	from, to, err := domain.Window(uc.clock.Now(), input.WindowCount, unit)
	if err != nil {
		return decimal.Zero, err
	}

	if _, err := uc.entities.GetByID(ctx, input.EntityID); err != nil {
		return decimal.Zero, classify(err)
	}

	if input.WindowCount == 0 {
		return decimal.Zero, nil
	}

	movements, err := uc.movements.ListByEntity(ctx, input.EntityID, domain.MovementFilter{
		From:      &from,
		To:        &to,
		Direction: domain.DirectionDecrease,
	})
	if err != nil {
		return decimal.Zero, classify(err)
	}

	total := decimal.Zero
	for _, m := range movements {
		total = total.Add(m.Magnitude)
	}

	return total.Div(decimal.NewFromInt(int64(input.WindowCount))), nil
}

func (uc *LedgerUseCase) withTx(ctx context.Context, fn func(tx Transaction) error) error {
	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit(txCtx)
}

func (uc *LedgerUseCase) emit(ctx context.Context, tx Transaction, entityID, eventType string, at time.Time, payload map[string]any) error {
	if uc.outbox == nil {
		return nil
	}

	return uc.outbox.Create(ctx, tx, &domain.OutboxEvent{
		ID:            uc.idGen.Generate(),
		AggregateID:   entityID,
		AggregateType: domain.AggregateTypeEntity,
		EventType:     eventType,
		Payload:       payload,
		CreatedAt:     at,
		Published:     false,
	})
}

// classify maps collaborator errors onto the ledger error kinds. Domain errors
// pass through; anything else from storage becomes ErrStorageFailure.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case domain.IsLedgerError(err):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", domain.ErrTimeout, err)
	case errors.Is(err, context.Canceled):
		return err
	default:
		return fmt.Errorf("%w: %w", domain.ErrStorageFailure, err)
	}
}
