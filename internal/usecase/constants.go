package usecase

import "time"

const (
	// DefaultTransactionTimeout is the maximum duration for a database transaction
	// This prevents long-running transactions from blocking tables
	DefaultTransactionTimeout = 10 * time.Second

	// DefaultLockTimeout bounds how long a movement waits for its entity.
	DefaultLockTimeout = 5 * time.Second

	// DefaultLowBalanceThreshold is the low-balance scan threshold when none is given.
	DefaultLowBalanceThreshold = 10

	// DefaultAverageWindow is the number of units averaged when none is given.
	DefaultAverageWindow = 3

	// IdempotencyKeyTTL is how long idempotency keys are cached
	IdempotencyKeyTTL = 24 * time.Hour
)
