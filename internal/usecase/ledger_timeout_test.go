package usecase_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"go.uber.org/mock/gomock"

	"github.com/iho/stockledger/internal/adapter/lock"
	"github.com/iho/stockledger/internal/adapter/repository/postgres"
	"github.com/iho/stockledger/internal/adapter/repository/sqlite"
	"github.com/iho/stockledger/internal/domain"
	"github.com/iho/stockledger/internal/usecase"
)

func TestLedgerUseCase_PostgresLockErrorsAfterRetries(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		wantErr  error
		wantKind string
	}{
		{
			name:     "lock timeout is a timeout",
			code:     "55P03",
			wantErr:  domain.ErrTimeout,
			wantKind: domain.KindTimeout,
		},
		{
			name:     "deadlock stays a storage failure",
			code:     "40P01",
			wantErr:  domain.ErrStorageFailure,
			wantKind: domain.KindStorageFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			retrier := postgres.NewRetrierWithConfig(postgres.RetrierConfig{
				MaxRetries:      2,
				InitialInterval: time.Millisecond,
				MaxInterval:     2 * time.Millisecond,
				MaxElapsedTime:  time.Second,
			}, zerolog.Nop())
			uc, m := newMockedLedgerWithRetrier(t, retrier)

			pgErr := &pgconn.PgError{Code: tt.code, Message: "canceling statement due to lock timeout"}
			m.locker.EXPECT().Lock(gomock.Any(), "entity:ent-1").Return(func() {}, nil)
			m.txMgr.EXPECT().Begin(gomock.Any()).Return(nil, pgErr).Times(3)
			m.metrics.EXPECT().MovementFailed(tt.wantKind)

			_, err := uc.ApplyMovement(context.Background(), usecase.ApplyMovementInput{
				EntityID:  "ent-1",
				Direction: domain.DirectionDecrease,
				Magnitude: dec(3),
			})

			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if kind := domain.Kind(err); kind != tt.wantKind {
				t.Fatalf("expected kind %q, got %q", tt.wantKind, kind)
			}

			var got *pgconn.PgError
			if !errors.As(err, &got) || got.Code != tt.code {
				t.Fatalf("expected cause with SQLSTATE %s, got %v", tt.code, err)
			}
		})
	}
}

func TestLedgerUseCase_SQLiteBusyIsTimeout(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.db")

	holder, err := sqlite.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { holder.Close() })

	store, err := sqlite.Open(path, sqlite.WithBusyTimeout(50*time.Millisecond))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	ledger := usecase.NewLedgerUseCase(usecase.LedgerDeps{
		TxManager: sqlite.NewTxManager(store),
		Entities:  sqlite.NewEntityRepository(store),
		Movements: sqlite.NewMovementRepository(store),
		Outbox:    sqlite.NewOutboxRepository(store),
		Locker:    lock.NewLocal(),
		IDGen:     &seqIDGenerator{},
		Logger:    zerolog.Nop(),
	}, usecase.DefaultLedgerConfig())

	entity := mustRegister(t, ledger, "Washers", 10)

	// Another process holds the database write lock.
	tx, err := sqlite.NewTxManager(holder).Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	t.Cleanup(func() { _ = tx.Rollback(ctx) })

	_, err = ledger.ApplyMovement(ctx, usecase.ApplyMovementInput{
		EntityID:  entity.ID,
		Direction: domain.DirectionDecrease,
		Magnitude: dec(1),
	})
	if !errors.Is(err, domain.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if kind := domain.Kind(err); kind != domain.KindTimeout {
		t.Fatalf("expected kind %q, got %q", domain.KindTimeout, kind)
	}

	if err := tx.Rollback(ctx); err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if got := balanceOf(t, ledger, entity.ID); !got.Equal(dec(10)) {
		t.Fatalf("expected balance 10 after the timeout, got %s", got)
	}
}
