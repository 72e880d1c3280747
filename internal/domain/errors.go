package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrEntityNotFound      = errors.New("entity not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrTimeout             = errors.New("operation timed out")
	ErrStorageFailure      = errors.New("storage failure")

	// Argument errors
	ErrInvalidEntityName     = fmt.Errorf("%w: invalid entity name", ErrInvalidArgument)
	ErrInvalidInitialBalance = fmt.Errorf("%w: initial balance must not be negative", ErrInvalidArgument)
	ErrInvalidMagnitude      = fmt.Errorf("%w: magnitude must be positive", ErrInvalidArgument)
	ErrInvalidDirection      = fmt.Errorf("%w: direction must be increase or decrease", ErrInvalidArgument)
	ErrInvalidWindow         = fmt.Errorf("%w: invalid window", ErrInvalidArgument)
	ErrInvalidRange          = fmt.Errorf("%w: from must not be after to", ErrInvalidArgument)
)

// Error kinds, used as metric labels and in API error bodies.
const (
	KindInvalidArgument     = "invalid_argument"
	KindEntityNotFound      = "entity_not_found"
	KindInsufficientBalance = "insufficient_balance"
	KindTimeout             = "timeout"
	KindStorageFailure      = "storage_failure"
	KindUnknown             = "unknown"
)

// Kind classifies err into one of the ledger error kinds.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidArgument):
		return KindInvalidArgument
	case errors.Is(err, ErrEntityNotFound):
		return KindEntityNotFound
	case errors.Is(err, ErrInsufficientBalance):
		return KindInsufficientBalance
	case errors.Is(err, ErrTimeout):
		return KindTimeout
	case errors.Is(err, ErrStorageFailure):
		return KindStorageFailure
	default:
		return KindUnknown
	}
}

// IsLedgerError reports whether err already carries one of the ledger error kinds.
func IsLedgerError(err error) bool {
	k := Kind(err)
	return k != "" && k != KindUnknown
}
