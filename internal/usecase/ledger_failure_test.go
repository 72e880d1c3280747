package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/mock/gomock"

	"github.com/iho/stockledger/internal/domain"
	"github.com/iho/stockledger/internal/usecase"
	"github.com/iho/stockledger/internal/usecase/mocks"
)

type ledgerMocks struct {
	txMgr     *mocks.MockTransactionManager
	tx        *mocks.MockTransaction
	entities  *mocks.MockEntityRepository
	movements *mocks.MockMovementRepository
	outbox    *mocks.MockOutboxRepository
	locker    *mocks.MockEntityLocker
	metrics   *mocks.MockMetrics
}

func newMockedLedger(t *testing.T) (*usecase.LedgerUseCase, *ledgerMocks) {
	t.Helper()
	return newMockedLedgerWithRetrier(t, nil)
}

func newMockedLedgerWithRetrier(t *testing.T, retrier usecase.Retrier) (*usecase.LedgerUseCase, *ledgerMocks) {
	t.Helper()
	ctrl := gomock.NewController(t)

	m := &ledgerMocks{
		txMgr:     mocks.NewMockTransactionManager(ctrl),
		tx:        mocks.NewMockTransaction(ctrl),
		entities:  mocks.NewMockEntityRepository(ctrl),
		movements: mocks.NewMockMovementRepository(ctrl),
		outbox:    mocks.NewMockOutboxRepository(ctrl),
		locker:    mocks.NewMockEntityLocker(ctrl),
		metrics:   mocks.NewMockMetrics(ctrl),
	}

	m.metrics.EXPECT().LockWait(gomock.Any()).AnyTimes()

	uc := usecase.NewLedgerUseCase(usecase.LedgerDeps{
		TxManager: m.txMgr,
		Entities:  m.entities,
		Movements: m.movements,
		Outbox:    m.outbox,
		Locker:    m.locker,
		Retrier:   retrier,
		IDGen:     &seqIDGenerator{},
		Clock:     newFakeClock(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)),
		Metrics:   m.metrics,
	}, usecase.DefaultLedgerConfig())

	return uc, m
}

type decimalMatcher struct {
	want decimal.Decimal
}

func (m decimalMatcher) Matches(x any) bool {
	d, ok := x.(decimal.Decimal)
	return ok && d.Equal(m.want)
}

func (m decimalMatcher) String() string {
	return "is decimal " + m.want.String()
}

func decEq(v int64) gomock.Matcher {
	return decimalMatcher{want: dec(v)}
}

func stockEntity() *domain.Entity {
	return &domain.Entity{
		ID:             "ent-1",
		Name:           "Bolts",
		InitialBalance: dec(10),
		Balance:        dec(10),
		UpdatedAt:      time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestLedgerUseCase_ApplyMovementStorageFailures(t *testing.T) {
	dbErr := errors.New("connection reset by peer")

	tests := []struct {
		name  string
		setup func(m *ledgerMocks)
	}{
		{
			name: "begin fails",
			setup: func(m *ledgerMocks) {
				m.txMgr.EXPECT().Begin(gomock.Any()).Return(nil, dbErr)
			},
		},
		{
			name: "balance update fails after movement insert",
			setup: func(m *ledgerMocks) {
				m.txMgr.EXPECT().Begin(gomock.Any()).Return(m.tx, nil)
				m.entities.EXPECT().GetByIDForUpdate(gomock.Any(), m.tx, "ent-1").Return(stockEntity(), nil)
				m.movements.EXPECT().Create(gomock.Any(), m.tx, gomock.Any()).Return(nil)
				m.entities.EXPECT().UpdateBalance(gomock.Any(), m.tx, "ent-1", decEq(7), int64(1), gomock.Any()).Return(dbErr)
				m.tx.EXPECT().Rollback(gomock.Any()).Return(nil)
			},
		},
		{
			name: "outbox write fails",
			setup: func(m *ledgerMocks) {
				m.txMgr.EXPECT().Begin(gomock.Any()).Return(m.tx, nil)
				m.entities.EXPECT().GetByIDForUpdate(gomock.Any(), m.tx, "ent-1").Return(stockEntity(), nil)
				m.movements.EXPECT().Create(gomock.Any(), m.tx, gomock.Any()).Return(nil)
				m.entities.EXPECT().UpdateBalance(gomock.Any(), m.tx, "ent-1", decEq(7), int64(1), gomock.Any()).Return(nil)
				m.outbox.EXPECT().Create(gomock.Any(), m.tx, gomock.Any()).Return(dbErr)
				m.tx.EXPECT().Rollback(gomock.Any()).Return(nil)
			},
		},
		{
			name: "commit fails",
			setup: func(m *ledgerMocks) {
				m.txMgr.EXPECT().Begin(gomock.Any()).Return(m.tx, nil)
				m.entities.EXPECT().GetByIDForUpdate(gomock.Any(), m.tx, "ent-1").Return(stockEntity(), nil)
				m.movements.EXPECT().Create(gomock.Any(), m.tx, gomock.Any()).Return(nil)
				m.entities.EXPECT().UpdateBalance(gomock.Any(), m.tx, "ent-1", decEq(7), int64(1), gomock.Any()).Return(nil)
				m.outbox.EXPECT().Create(gomock.Any(), m.tx, gomock.Any()).Return(nil)
				m.tx.EXPECT().Commit(gomock.Any()).Return(dbErr)
				m.tx.EXPECT().Rollback(gomock.Any()).Return(nil)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc, m := newMockedLedger(t)

			released := false
			m.locker.EXPECT().Lock(gomock.Any(), "entity:ent-1").Return(func() { released = true }, nil)
			m.metrics.EXPECT().MovementFailed(domain.KindStorageFailure)
			tt.setup(m)

			_, err := uc.ApplyMovement(context.Background(), usecase.ApplyMovementInput{
				EntityID:  "ent-1",
				Direction: domain.DirectionDecrease,
				Magnitude: dec(3),
			})

			if !errors.Is(err, domain.ErrStorageFailure) {
				t.Fatalf("expected ErrStorageFailure, got %v", err)
			}
			if !errors.Is(err, dbErr) {
				t.Fatalf("expected cause to be preserved, got %v", err)
			}
			if !released {
				t.Fatal("entity lock was not released")
			}
		})
	}
}

func TestLedgerUseCase_InsufficientBalanceWritesNothing(t *testing.T) {
	uc, m := newMockedLedger(t)

	m.locker.EXPECT().Lock(gomock.Any(), "entity:ent-1").Return(func() {}, nil)
	m.txMgr.EXPECT().Begin(gomock.Any()).Return(m.tx, nil)
	m.entities.EXPECT().GetByIDForUpdate(gomock.Any(), m.tx, "ent-1").Return(stockEntity(), nil)
	m.tx.EXPECT().Rollback(gomock.Any()).Return(nil)
	m.metrics.EXPECT().MovementFailed(domain.KindInsufficientBalance)
	// No Create, UpdateBalance or Commit expectations: any call fails the test.

	_, err := uc.ApplyMovement(context.Background(), usecase.ApplyMovementInput{
		EntityID:  "ent-1",
		Direction: domain.DirectionDecrease,
		Magnitude: dec(11),
	})
	if !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
}

func TestLedgerUseCase_ValidationHappensBeforeLocking(t *testing.T) {
	uc, m := newMockedLedger(t)
	m.metrics.EXPECT().MovementFailed(domain.KindInvalidArgument)

	_, err := uc.ApplyMovement(context.Background(), usecase.ApplyMovementInput{
		EntityID:  "ent-1",
		Direction: domain.DirectionIncrease,
		Magnitude: dec(0),
	})
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestLedgerUseCase_ApplyMovementSuccessRecordsMetrics(t *testing.T) {
	uc, m := newMockedLedger(t)

	m.locker.EXPECT().Lock(gomock.Any(), "entity:ent-1").Return(func() {}, nil)
	m.txMgr.EXPECT().Begin(gomock.Any()).Return(m.tx, nil)
	m.entities.EXPECT().GetByIDForUpdate(gomock.Any(), m.tx, "ent-1").Return(stockEntity(), nil)
	m.movements.EXPECT().Create(gomock.Any(), m.tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ usecase.Transaction, mv *domain.Movement) error {
			mv.ID = 42
			return nil
		})
	m.entities.EXPECT().UpdateBalance(gomock.Any(), m.tx, "ent-1", decEq(15), int64(1), gomock.Any()).Return(nil)
	m.outbox.EXPECT().Create(gomock.Any(), m.tx, gomock.Any()).Return(nil)
	m.tx.EXPECT().Commit(gomock.Any()).Return(nil)
	m.tx.EXPECT().Rollback(gomock.Any()).Return(nil)
	m.metrics.EXPECT().MovementApplied(domain.DirectionIncrease, decEq(5), gomock.Any())

	mv, err := uc.ApplyMovement(context.Background(), usecase.ApplyMovementInput{
		EntityID:  "ent-1",
		Direction: domain.DirectionIncrease,
		Magnitude: dec(5),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mv.ID != 42 {
		t.Fatalf("expected store-assigned id 42, got %d", mv.ID)
	}
	if !mv.BalanceBefore.Equal(dec(10)) || !mv.BalanceAfter.Equal(dec(15)) {
		t.Fatalf("unexpected balances %s -> %s", mv.BalanceBefore, mv.BalanceAfter)
	}
}

func TestLedgerUseCase_LockerFailureIsStorageFailure(t *testing.T) {
	uc, m := newMockedLedger(t)

	m.locker.EXPECT().Lock(gomock.Any(), "entity:ent-1").Return(nil, errors.New("redis: connection refused"))
	m.metrics.EXPECT().MovementFailed(domain.KindStorageFailure)

	_, err := uc.ApplyMovement(context.Background(), usecase.ApplyMovementInput{
		EntityID:  "ent-1",
		Direction: domain.DirectionIncrease,
		Magnitude: dec(1),
	})
	if !errors.Is(err, domain.ErrStorageFailure) {
		t.Fatalf("expected ErrStorageFailure, got %v", err)
	}
}

func TestLedgerUseCase_ReadStorageFailure(t *testing.T) {
	uc, m := newMockedLedger(t)

	m.entities.EXPECT().GetByID(gomock.Any(), "ent-1").Return(nil, errors.New("pool closed"))

	if _, err := uc.GetBalance(context.Background(), "ent-1"); !errors.Is(err, domain.ErrStorageFailure) {
		t.Fatalf("expected ErrStorageFailure, got %v", err)
	}
}
