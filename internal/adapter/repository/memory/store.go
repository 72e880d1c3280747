// Package memory is an in-process ledger store. Writes are staged on the
// transaction and applied together on commit.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/stockledger/internal/domain"
	"github.com/iho/stockledger/internal/usecase"
)

var (
	// ErrTxDone is returned when a finished transaction is used again.
	ErrTxDone = errors.New("memory: transaction already committed or rolled back")
	// ErrVersionConflict is returned on commit when an entity changed underneath the transaction.
	ErrVersionConflict = errors.New("memory: entity version conflict")
	// ErrDuplicateID is returned on commit when an entity ID already exists.
	ErrDuplicateID = errors.New("memory: duplicate entity id")
)

// Store holds committed ledger state.
type Store struct {
	mu         sync.RWMutex
	entities   map[string]*domain.Entity
	movements  map[string][]*domain.Movement
	outbox     []*domain.OutboxEvent
	movementID atomic.Int64
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		entities:  make(map[string]*domain.Entity),
		movements: make(map[string][]*domain.Movement),
	}
}

// Ping always succeeds; it lets the store serve readiness checks.
func (s *Store) Ping(context.Context) error {
	return nil
}

type balanceUpdate struct {
	id        string
	balance   decimal.Decimal
	version   int64
	updatedAt time.Time
}

// Tx stages writes until Commit.
type Tx struct {
	store     *Store
	mu        sync.Mutex
	entities  []*domain.Entity
	movements []*domain.Movement
	updates   []balanceUpdate
	events    []*domain.OutboxEvent
	done      bool
}

// TxManager begins memory transactions.
type TxManager struct {
	store *Store
}

// NewTxManager creates a new TxManager.
func NewTxManager(store *Store) *TxManager {
	return &TxManager{store: store}
}

// Begin starts a new transaction.
func (m *TxManager) Begin(ctx context.Context) (usecase.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Tx{store: m.store}, nil
}

// Commit applies every staged write, or none of them.
func (t *Tx) Commit(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.done {
		return ErrTxDone
	}
	t.done = true

	if err := ctx.Err(); err != nil {
		return err
	}

	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate everything before touching committed state.
	for _, e := range t.entities {
		if _, exists := s.entities[e.ID]; exists {
			return fmt.Errorf("%w: %s", ErrDuplicateID, e.ID)
		}
	}
	for _, u := range t.updates {
		current, ok := s.entities[u.id]
		if !ok {
			if staged := t.stagedEntity(u.id); staged == nil {
				return domain.ErrEntityNotFound
			}
			continue
		}
		if current.Version != u.version-1 {
			return fmt.Errorf("%w: %s at version %d, update expects %d", ErrVersionConflict, u.id, current.Version, u.version-1)
		}
	}

	for _, e := range t.entities {
		s.entities[e.ID] = e
	}
	for _, u := range t.updates {
		e := s.entities[u.id]
		e.Balance = u.balance
		e.Version = u.version
		e.UpdatedAt = u.updatedAt
	}
	for _, m := range t.movements {
		s.movements[m.EntityID] = append(s.movements[m.EntityID], m)
	}
	s.outbox = append(s.outbox, t.events...)

	return nil
}

// Rollback discards staged writes. It is a no-op after Commit.
func (t *Tx) Rollback(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.done = true
	t.entities = nil
	t.movements = nil
	t.updates = nil
	t.events = nil

	return nil
}

func (t *Tx) stage(fn func()) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.done {
		return ErrTxDone
	}
	fn()
	return nil
}

func (t *Tx) stagedEntity(id string) *domain.Entity {
	for _, e := range t.entities {
		if e.ID == id {
			return e
		}
	}
	return nil
}

func asTx(tx usecase.Transaction) (*Tx, error) {
	mtx, ok := tx.(*Tx)
	if !ok {
		return nil, fmt.Errorf("memory: unexpected transaction type %T", tx)
	}
	return mtx, nil
}

func copyEntity(e *domain.Entity) *domain.Entity {
	c := *e
	return &c
}

func copyMovement(m *domain.Movement) *domain.Movement {
	c := *m
	return &c
}
