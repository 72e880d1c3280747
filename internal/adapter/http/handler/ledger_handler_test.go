package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/iho/stockledger/internal/adapter/http/dto"
	"github.com/iho/stockledger/internal/domain"
	"github.com/iho/stockledger/internal/usecase"
)

type ledgerServiceStub struct {
	registerFn func(ctx context.Context, input usecase.RegisterEntityInput) (*domain.Entity, error)
	moveFn     func(ctx context.Context, input usecase.ApplyMovementInput) (*domain.Movement, error)
	getFn      func(ctx context.Context, id string) (*domain.Entity, error)
	balanceFn  func(ctx context.Context, id string) (*domain.Balance, error)
	listFn     func(ctx context.Context, input usecase.ListEntitiesInput) ([]*domain.Entity, error)
	historyFn  func(ctx context.Context, input usecase.GetHistoryInput) ([]*domain.Movement, error)
	lowFn      func(ctx context.Context, threshold *decimal.Decimal) ([]*domain.Entity, error)
	averageFn  func(ctx context.Context, input usecase.AverageOutflowInput) (decimal.Decimal, error)
}

func (s *ledgerServiceStub) RegisterEntity(ctx context.Context, input usecase.RegisterEntityInput) (*domain.Entity, error) {
	return s.registerFn(ctx, input)
}

func (s *ledgerServiceStub) ApplyMovement(ctx context.Context, input usecase.ApplyMovementInput) (*domain.Movement, error) {
	return s.moveFn(ctx, input)
}

func (s *ledgerServiceStub) GetEntity(ctx context.Context, id string) (*domain.Entity, error) {
	return s.getFn(ctx, id)
}

func (s *ledgerServiceStub) GetBalance(ctx context.Context, id string) (*domain.Balance, error) {
	return s.balanceFn(ctx, id)
}

func (s *ledgerServiceStub) ListEntities(ctx context.Context, input usecase.ListEntitiesInput) ([]*domain.Entity, error) {
	return s.listFn(ctx, input)
}

func (s *ledgerServiceStub) GetHistory(ctx context.Context, input usecase.GetHistoryInput) ([]*domain.Movement, error) {
	return s.historyFn(ctx, input)
}

func (s *ledgerServiceStub) ListLowBalance(ctx context.Context, threshold *decimal.Decimal) ([]*domain.Entity, error) {
	return s.lowFn(ctx, threshold)
}

func (s *ledgerServiceStub) AverageOutflow(ctx context.Context, input usecase.AverageOutflowInput) (decimal.Decimal, error) {
	return s.averageFn(ctx, input)
}

// serve routes req through chi so {id} resolves.
func serve(method, pattern string, h http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.MethodFunc(method, pattern, h)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestLedgerHandler_Register_Success(t *testing.T) {
	var captured usecase.RegisterEntityInput
	h := NewLedgerHandler(&ledgerServiceStub{
		registerFn: func(ctx context.Context, input usecase.RegisterEntityInput) (*domain.Entity, error) {
			captured = input
			return &domain.Entity{ID: "01J", Name: input.Name, InitialBalance: input.InitialBalance, Balance: input.InitialBalance}, nil
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/entities", bytes.NewBufferString(`{"name":"Bolts","initial_balance":"10"}`))
	rr := httptest.NewRecorder()
	h.Register(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.Name != "Bolts" || !captured.InitialBalance.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("unexpected input: %+v", captured)
	}

	var resp dto.EntityResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ID != "01J" || !resp.Balance.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestLedgerHandler_Register_RejectsBadInput(t *testing.T) {
	h := NewLedgerHandler(&ledgerServiceStub{
		registerFn: func(ctx context.Context, input usecase.RegisterEntityInput) (*domain.Entity, error) {
			t.Fatal("service must not be called")
			return nil, nil
		},
	})

	for _, body := range []string{`{`, `{"name":""}`, `{"name":"x","initial_balance":"-1"}`} {
		rr := httptest.NewRecorder()
		h.Register(rr, httptest.NewRequest(http.MethodPost, "/entities", bytes.NewBufferString(body)))
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("body %s: expected 400, got %d", body, rr.Code)
		}
	}
}

func TestLedgerHandler_Move(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		serviceErr error
		wantStatus int
	}{
		{name: "applied", body: `{"direction":"decrease","magnitude":"4"}`, wantStatus: http.StatusCreated},
		{name: "insufficient", body: `{"direction":"decrease","magnitude":"40"}`, serviceErr: domain.ErrInsufficientBalance, wantStatus: http.StatusUnprocessableEntity},
		{name: "unknown entity", body: `{"direction":"increase","magnitude":"1"}`, serviceErr: domain.ErrEntityNotFound, wantStatus: http.StatusNotFound},
		{name: "lock timeout", body: `{"direction":"increase","magnitude":"1"}`, serviceErr: domain.ErrTimeout, wantStatus: http.StatusGatewayTimeout},
		{name: "bad direction", body: `{"direction":"up","magnitude":"1"}`, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var captured usecase.ApplyMovementInput
			h := NewLedgerHandler(&ledgerServiceStub{
				moveFn: func(ctx context.Context, input usecase.ApplyMovementInput) (*domain.Movement, error) {
					captured = input
					if tt.serviceErr != nil {
						return nil, tt.serviceErr
					}
					return &domain.Movement{ID: 1, EntityID: input.EntityID, Direction: input.Direction, Magnitude: input.Magnitude}, nil
				},
			})

			req := httptest.NewRequest(http.MethodPost, "/entities/bolts/movements", bytes.NewBufferString(tt.body))
			rr := serve(http.MethodPost, "/entities/{id}/movements", h.Move, req)

			if rr.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d: %s", tt.wantStatus, rr.Code, rr.Body.String())
			}
			if tt.wantStatus == http.StatusCreated && captured.EntityID != "bolts" {
				t.Fatalf("expected entity id from URL, got %q", captured.EntityID)
			}
		})
	}
}

func TestLedgerHandler_History_ParsesRange(t *testing.T) {
	var captured usecase.GetHistoryInput
	h := NewLedgerHandler(&ledgerServiceStub{
		historyFn: func(ctx context.Context, input usecase.GetHistoryInput) ([]*domain.Movement, error) {
			captured = input
			return []*domain.Movement{}, nil
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/entities/bolts/movements?from=2024-01-01T00:00:00Z&to=2024-02-01T00:00:00Z", nil)
	rr := serve(http.MethodGet, "/entities/{id}/movements", h.History, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if captured.From == nil || !captured.From.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected from: %v", captured.From)
	}
	if captured.To == nil || captured.EntityID != "bolts" {
		t.Fatalf("unexpected input: %+v", captured)
	}
	if body := rr.Body.String(); body != "[]\n" {
		t.Fatalf("expected empty array, got %q", body)
	}

	req = httptest.NewRequest(http.MethodGet, "/entities/bolts/movements?from=yesterday", nil)
	rr = serve(http.MethodGet, "/entities/{id}/movements", h.History, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad from, got %d", rr.Code)
	}
}

func TestLedgerHandler_LowBalance(t *testing.T) {
	var captured *decimal.Decimal
	h := NewLedgerHandler(&ledgerServiceStub{
		lowFn: func(ctx context.Context, threshold *decimal.Decimal) ([]*domain.Entity, error) {
			captured = threshold
			return []*domain.Entity{{ID: "bolts", Balance: decimal.NewFromInt(6)}}, nil
		},
	})

	rr := httptest.NewRecorder()
	h.LowBalance(rr, httptest.NewRequest(http.MethodGet, "/entities/low-balance?threshold=11", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if captured == nil || !captured.Equal(decimal.NewFromInt(11)) {
		t.Fatalf("expected threshold 11, got %v", captured)
	}

	rr = httptest.NewRecorder()
	h.LowBalance(rr, httptest.NewRequest(http.MethodGet, "/entities/low-balance", nil))
	if captured != nil {
		t.Fatalf("expected default threshold to be nil, got %v", captured)
	}

	rr = httptest.NewRecorder()
	h.LowBalance(rr, httptest.NewRequest(http.MethodGet, "/entities/low-balance?threshold=lots", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestLedgerHandler_AverageOutflow(t *testing.T) {
	var captured usecase.AverageOutflowInput
	h := NewLedgerHandler(&ledgerServiceStub{
		averageFn: func(ctx context.Context, input usecase.AverageOutflowInput) (decimal.Decimal, error) {
			captured = input
			return decimal.NewFromInt(30), nil
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/entities/bolts/average-outflow", nil)
	rr := serve(http.MethodGet, "/entities/{id}/average-outflow", h.AverageOutflow, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if captured.WindowCount != 3 || captured.Unit != domain.WindowMonths {
		t.Fatalf("expected default 3 months, got %+v", captured)
	}

	var resp dto.AverageOutflowResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Average.Equal(decimal.NewFromInt(30)) || resp.Unit != "months" {
		t.Fatalf("unexpected response: %+v", resp)
	}

	req = httptest.NewRequest(http.MethodGet, "/entities/bolts/average-outflow?window=2&unit=week", nil)
	serve(http.MethodGet, "/entities/{id}/average-outflow", h.AverageOutflow, req)
	if captured.WindowCount != 2 || captured.Unit != domain.WindowWeeks {
		t.Fatalf("expected 2 weeks, got %+v", captured)
	}

	for _, q := range []string{"window=x", "unit=fortnights"} {
		req = httptest.NewRequest(http.MethodGet, "/entities/bolts/average-outflow?"+q, nil)
		rr = serve(http.MethodGet, "/entities/{id}/average-outflow", h.AverageOutflow, req)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", q, rr.Code)
		}
	}
}

func TestLedgerHandler_BalanceNotFound(t *testing.T) {
	h := NewLedgerHandler(&ledgerServiceStub{
		balanceFn: func(ctx context.Context, id string) (*domain.Balance, error) {
			return nil, domain.ErrEntityNotFound
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/entities/ghost/balance", nil)
	rr := serve(http.MethodGet, "/entities/{id}/balance", h.Balance, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestHealthHandler_Readiness(t *testing.T) {
	healthy := NewHealthHandler(map[string]CheckFunc{
		"storage": func(context.Context) error { return nil },
	})
	rr := httptest.NewRecorder()
	healthy.Readiness(rr, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	failing := NewHealthHandler(map[string]CheckFunc{
		"storage": func(context.Context) error { return nil },
		"redis":   func(context.Context) error { return context.DeadlineExceeded },
	})
	rr = httptest.NewRecorder()
	failing.Readiness(rr, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}
