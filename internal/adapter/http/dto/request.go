package dto

import (
	"github.com/shopspring/decimal"

	"github.com/iho/stockledger/internal/domain"
	"github.com/iho/stockledger/internal/usecase"
)

// RegisterEntityRequest represents a request to register an entity.
type RegisterEntityRequest struct {
	Name           string          `json:"name"            validate:"required,max=255"`
	InitialBalance decimal.Decimal `json:"initial_balance" validate:"gte=0"`
}

// ToUseCaseInput validates the request and converts it to use case input.
func (r *RegisterEntityRequest) ToUseCaseInput() (usecase.RegisterEntityInput, error) {
	if err := Validate(r); err != nil {
		return usecase.RegisterEntityInput{}, err
	}

	return usecase.RegisterEntityInput{
		Name:           r.Name,
		InitialBalance: r.InitialBalance,
	}, nil
}

// ApplyMovementRequest represents a movement against the entity in the URL.
// Direction accepts "increase"/"decrease" and their aliases.
type ApplyMovementRequest struct {
	Direction string          `json:"direction" validate:"required"`
	Magnitude decimal.Decimal `json:"magnitude" validate:"gt=0"`
}

// ToUseCaseInput validates the request and converts it to use case input.
func (r *ApplyMovementRequest) ToUseCaseInput(entityID string) (usecase.ApplyMovementInput, error) {
	if err := Validate(r); err != nil {
		return usecase.ApplyMovementInput{}, err
	}

	direction, err := domain.ParseDirection(r.Direction)
	if err != nil {
		return usecase.ApplyMovementInput{}, err
	}

	return usecase.ApplyMovementInput{
		EntityID:  entityID,
		Direction: direction,
		Magnitude: r.Magnitude,
	}, nil
}
