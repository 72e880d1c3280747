package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// reconcilePageSize is how many entities ReconcileAll loads per page.
const reconcilePageSize = 1000

// ReconciliationUseCase checks stored balances against the movement log.
type ReconciliationUseCase struct {
	entityRepo   EntityRepository
	movementRepo MovementRepository
	clock        Clock
}

// NewReconciliationUseCase creates a new reconciliation use case
func NewReconciliationUseCase(entityRepo EntityRepository, movementRepo MovementRepository, clock Clock) *ReconciliationUseCase {
	if clock == nil {
		clock = SystemClock{}
	}
	return &ReconciliationUseCase{
		entityRepo:   entityRepo,
		movementRepo: movementRepo,
		clock:        clock,
	}
}

// ReconciliationResult represents the result of a reconciliation check
type ReconciliationResult struct {
	EntityID          string
	RecordedBalance   decimal.Decimal
	CalculatedBalance decimal.Decimal
	Difference        decimal.Decimal
	IsReconciled      bool
	LastChecked       time.Time
}

// ReconcileEntity recomputes initial + Σincrease − Σdecrease and compares it
// with the stored balance.
func (uc *ReconciliationUseCase) ReconcileEntity(ctx context.Context, entityID string) (*ReconciliationResult, error) {
	entity, err := uc.entityRepo.GetByID(ctx, entityID)
	if err != nil {
		return nil, classify(err)
	}

	increase, decrease, err := uc.movementRepo.SumByEntity(ctx, entityID)
	if err != nil {
		return nil, classify(err)
	}

	calculated := entity.InitialBalance.Add(increase).Sub(decrease)
	diff := entity.Balance.Sub(calculated)

	return &ReconciliationResult{
		EntityID:          entityID,
		RecordedBalance:   entity.Balance,
		CalculatedBalance: calculated,
		Difference:        diff,
		IsReconciled:      diff.IsZero() && !entity.Balance.IsNegative(),
		LastChecked:       uc.clock.Now(),
	}, nil
}

// ReconcileAll reconciles every entity in ID order.
func (uc *ReconciliationUseCase) ReconcileAll(ctx context.Context) ([]*ReconciliationResult, error) {
	var results []*ReconciliationResult

	for offset := 0; ; offset += reconcilePageSize {
		entities, err := uc.entityRepo.List(ctx, reconcilePageSize, offset)
		if err != nil {
			return nil, classify(err)
		}

		for _, entity := range entities {
			result, err := uc.ReconcileEntity(ctx, entity.ID)
			if err != nil {
				return nil, fmt.Errorf("failed to reconcile entity %s: %w", entity.ID, err)
			}
			results = append(results, result)
		}

		if len(entities) < reconcilePageSize {
			break
		}
	}

	return results, nil
}

// ReconciliationReport represents a full reconciliation report
type ReconciliationReport struct {
	TotalEntities      int
	ReconciledEntities int
	Discrepancies      []*ReconciliationResult
	CheckedAt          time.Time
}

// Consistent reports whether every entity reconciled.
func (r *ReconciliationReport) Consistent() bool {
	return len(r.Discrepancies) == 0
}

// GenerateReport reconciles all entities and collects the discrepancies.
func (uc *ReconciliationUseCase) GenerateReport(ctx context.Context) (*ReconciliationReport, error) {
	results, err := uc.ReconcileAll(ctx)
	if err != nil {
		return nil, err
	}

	report := &ReconciliationReport{
		TotalEntities: len(results),
		Discrepancies: make([]*ReconciliationResult, 0),
		CheckedAt:     uc.clock.Now(),
	}

	for _, result := range results {
		if result.IsReconciled {
			report.ReconciledEntities++
		} else {
			report.Discrepancies = append(report.Discrepancies, result)
		}
	}

	return report, nil
}
