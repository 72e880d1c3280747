package usecase_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/stockledger/internal/adapter/lock"
	"github.com/iho/stockledger/internal/adapter/repository/memory"
	"github.com/iho/stockledger/internal/usecase"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(now time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type seqIDGenerator struct {
	n atomic.Int64
}

func (g *seqIDGenerator) Generate() string {
	return fmt.Sprintf("id-%06d", g.n.Add(1))
}

// blockingLocker never grants the lock.
type blockingLocker struct{}

func (blockingLocker) Lock(ctx context.Context, _ string) (func(), error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type ledgerFixture struct {
	ledger   *usecase.LedgerUseCase
	recon    *usecase.ReconciliationUseCase
	store    *memory.Store
	entities *memory.EntityRepository
	outbox   *memory.OutboxRepository
	clock    *fakeClock
}

func newLedgerFixture(t *testing.T, cfg usecase.LedgerConfig) *ledgerFixture {
	t.Helper()

	store := memory.NewStore()
	clock := newFakeClock(time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC))
	entities := memory.NewEntityRepository(store)
	movements := memory.NewMovementRepository(store)
	outbox := memory.NewOutboxRepository(store)

	ledger := usecase.NewLedgerUseCase(usecase.LedgerDeps{
		TxManager: memory.NewTxManager(store),
		Entities:  entities,
		Movements: movements,
		Outbox:    outbox,
		Locker:    lock.NewLocal(),
		IDGen:     &seqIDGenerator{},
		Clock:     clock,
		Logger:    zerolog.Nop(),
	}, cfg)

	return &ledgerFixture{
		ledger:   ledger,
		recon:    usecase.NewReconciliationUseCase(entities, movements, clock),
		store:    store,
		entities: entities,
		outbox:   outbox,
		clock:    clock,
	}
}

func memoryTx(f *ledgerFixture) (usecase.Transaction, error) {
	return memory.NewTxManager(f.store).Begin(context.Background())
}
