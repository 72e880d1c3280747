package domain

import "time"

// Event types
const (
	EventTypeEntityRegistered = "entity.registered"
	EventTypeMovementApplied  = "movement.applied"
	EventTypeLowBalance       = "entity.low_balance"
)

// AggregateTypeEntity is the aggregate every ledger event belongs to.
const AggregateTypeEntity = "entity"

// OutboxEvent represents an event to be published
type OutboxEvent struct {
	ID            string
	AggregateID   string
	AggregateType string
	EventType     string
	Payload       map[string]any
	CreatedAt     time.Time
	PublishedAt   *time.Time
	Published     bool
}

// EntityRegisteredEvent payload
type EntityRegisteredEvent struct {
	EntityID       string `json:"entity_id"`
	Name           string `json:"name"`
	InitialBalance string `json:"initial_balance"`
}

// MovementAppliedEvent payload
type MovementAppliedEvent struct {
	MovementID    int64  `json:"movement_id"`
	EntityID      string `json:"entity_id"`
	Direction     string `json:"direction"`
	Magnitude     string `json:"magnitude"`
	BalanceBefore string `json:"balance_before"`
	BalanceAfter  string `json:"balance_after"`
	OccurredAt    string `json:"occurred_at"`
}

// LowBalanceEvent payload
type LowBalanceEvent struct {
	EntityID  string `json:"entity_id"`
	Name      string `json:"name"`
	Balance   string `json:"balance"`
	Threshold string `json:"threshold"`
}

// Payload returns the event as a generic outbox payload.
func (e EntityRegisteredEvent) Payload() map[string]any {
	return map[string]any{
		"entity_id":       e.EntityID,
		"name":            e.Name,
		"initial_balance": e.InitialBalance,
	}
}

// Payload returns the event as a generic outbox payload.
func (e MovementAppliedEvent) Payload() map[string]any {
	return map[string]any{
		"movement_id":    e.MovementID,
		"entity_id":      e.EntityID,
		"direction":      e.Direction,
		"magnitude":      e.Magnitude,
		"balance_before": e.BalanceBefore,
		"balance_after":  e.BalanceAfter,
		"occurred_at":    e.OccurredAt,
	}
}

// Payload returns the event as a generic outbox payload.
func (e LowBalanceEvent) Payload() map[string]any {
	return map[string]any{
		"entity_id": e.EntityID,
		"name":      e.Name,
		"balance":   e.Balance,
		"threshold": e.Threshold,
	}
}
