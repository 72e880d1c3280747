package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// Validation constants
const (
	MaxEntityNameLength = 255
	MaxMagnitude        = "1000000000000" // 1 trillion
)

var maxMagnitude = decimal.RequireFromString(MaxMagnitude)

// ValidateEntityName validates an entity display name.
func ValidateEntityName(name string) error {
	name = strings.TrimSpace(name)

	if name == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidEntityName)
	}

	if utf8.RuneCountInString(name) > MaxEntityNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidEntityName, MaxEntityNameLength)
	}

	return nil
}

// ValidateInitialBalance validates the opening balance of a new entity.
func ValidateInitialBalance(balance decimal.Decimal) error {
	if balance.IsNegative() {
		return ErrInvalidInitialBalance
	}
	return nil
}

// ValidateMagnitude validates a movement magnitude.
func ValidateMagnitude(magnitude decimal.Decimal) error {
	if magnitude.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidMagnitude
	}

	if magnitude.GreaterThan(maxMagnitude) {
		return fmt.Errorf("%w: maximum magnitude is %s", ErrInvalidMagnitude, MaxMagnitude)
	}

	return nil
}

// ValidateWindowCount validates the number of units in an averaging window.
func ValidateWindowCount(count int) error {
	if count < 0 {
		return fmt.Errorf("%w: window count %d is negative", ErrInvalidWindow, count)
	}
	return nil
}

// ValidateRange checks that optional history bounds are ordered.
func ValidateRange(from, to *time.Time) error {
	if from != nil && to != nil && from.After(*to) {
		return ErrInvalidRange
	}
	return nil
}

// ValidatePagination validates and limits pagination parameters
func ValidatePagination(limit, offset int) (int, int) {
	const MaxPageSize = 1000
	const DefaultPageSize = 50

	if limit <= 0 {
		limit = DefaultPageSize
	}

	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	if offset < 0 {
		offset = 0
	}

	return limit, offset
}
