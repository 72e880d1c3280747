package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/stockledger/internal/domain"
	"github.com/iho/stockledger/internal/usecase"
)

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message,omitempty"`
}

// EntityResponse represents an entity in API responses.
type EntityResponse struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
	Balance        decimal.Decimal `json:"balance"`
	Version        int64           `json:"version"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// EntityFromDomain converts a domain entity to a response.
func EntityFromDomain(e *domain.Entity) *EntityResponse {
	return &EntityResponse{
		ID:             e.ID,
		Name:           e.Name,
		InitialBalance: e.InitialBalance,
		Balance:        e.Balance,
		Version:        e.Version,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}
}

// EntitiesFromDomain converts domain entities to responses.
func EntitiesFromDomain(entities []*domain.Entity) []*EntityResponse {
	result := make([]*EntityResponse, len(entities))
	for i, e := range entities {
		result[i] = EntityFromDomain(e)
	}
	return result
}

// BalanceResponse is the body of a balance query.
type BalanceResponse struct {
	EntityID string          `json:"entity_id"`
	Name     string          `json:"name"`
	Balance  decimal.Decimal `json:"balance"`
}

// BalanceFromDomain converts a domain balance to a response.
func BalanceFromDomain(b *domain.Balance) *BalanceResponse {
	return &BalanceResponse{
		EntityID: b.EntityID,
		Name:     b.Name,
		Balance:  b.Balance,
	}
}

// MovementResponse represents a movement in API responses.
type MovementResponse struct {
	ID            int64           `json:"id"`
	EntityID      string          `json:"entity_id"`
	Direction     string          `json:"direction"`
	Magnitude     decimal.Decimal `json:"magnitude"`
	Signed        decimal.Decimal `json:"signed"`
	BalanceBefore decimal.Decimal `json:"balance_before"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

// MovementFromDomain converts a domain movement to a response.
func MovementFromDomain(m *domain.Movement) *MovementResponse {
	return &MovementResponse{
		ID:            m.ID,
		EntityID:      m.EntityID,
		Direction:     string(m.Direction),
		Magnitude:     m.Magnitude,
		Signed:        m.Signed(),
		BalanceBefore: m.BalanceBefore,
		BalanceAfter:  m.BalanceAfter,
		OccurredAt:    m.OccurredAt,
	}
}

// MovementsFromDomain converts domain movements to responses.
func MovementsFromDomain(movements []*domain.Movement) []*MovementResponse {
	result := make([]*MovementResponse, len(movements))
	for i, m := range movements {
		result[i] = MovementFromDomain(m)
	}
	return result
}

// AverageOutflowResponse is the body of an average outflow query.
type AverageOutflowResponse struct {
	EntityID string          `json:"entity_id"`
	Window   int             `json:"window"`
	Unit     string          `json:"unit"`
	Average  decimal.Decimal `json:"average"`
}

// ReconciliationResponse represents one entity's reconciliation.
type ReconciliationResponse struct {
	EntityID          string          `json:"entity_id"`
	RecordedBalance   decimal.Decimal `json:"recorded_balance"`
	CalculatedBalance decimal.Decimal `json:"calculated_balance"`
	Difference        decimal.Decimal `json:"difference"`
	Reconciled        bool            `json:"reconciled"`
	CheckedAt         time.Time       `json:"checked_at"`
}

// ReconciliationFromResult converts a reconciliation result to a response.
func ReconciliationFromResult(r *usecase.ReconciliationResult) *ReconciliationResponse {
	return &ReconciliationResponse{
		EntityID:          r.EntityID,
		RecordedBalance:   r.RecordedBalance,
		CalculatedBalance: r.CalculatedBalance,
		Difference:        r.Difference,
		Reconciled:        r.IsReconciled,
		CheckedAt:         r.LastChecked,
	}
}

// ReconciliationReportResponse summarizes a full reconciliation run.
type ReconciliationReportResponse struct {
	TotalEntities      int                       `json:"total_entities"`
	ReconciledEntities int                       `json:"reconciled_entities"`
	Consistent         bool                      `json:"consistent"`
	Discrepancies      []*ReconciliationResponse `json:"discrepancies"`
	CheckedAt          time.Time                 `json:"checked_at"`
}

// ReportFromDomain converts a reconciliation report to a response.
func ReportFromDomain(r *usecase.ReconciliationReport) *ReconciliationReportResponse {
	discrepancies := make([]*ReconciliationResponse, len(r.Discrepancies))
	for i, d := range r.Discrepancies {
		discrepancies[i] = ReconciliationFromResult(d)
	}

	return &ReconciliationReportResponse{
		TotalEntities:      r.TotalEntities,
		ReconciledEntities: r.ReconciledEntities,
		Consistent:         r.Consistent(),
		Discrepancies:      discrepancies,
		CheckedAt:          r.CheckedAt,
	}
}
