package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/iho/stockledger/internal/adapter/http/dto"
	"github.com/iho/stockledger/internal/domain"
	"github.com/iho/stockledger/internal/usecase"
)

// LedgerService defines the behavior needed by LedgerHandler.
type LedgerService interface {
	RegisterEntity(ctx context.Context, input usecase.RegisterEntityInput) (*domain.Entity, error)
	ApplyMovement(ctx context.Context, input usecase.ApplyMovementInput) (*domain.Movement, error)
	GetEntity(ctx context.Context, id string) (*domain.Entity, error)
	GetBalance(ctx context.Context, id string) (*domain.Balance, error)
	ListEntities(ctx context.Context, input usecase.ListEntitiesInput) ([]*domain.Entity, error)
	GetHistory(ctx context.Context, input usecase.GetHistoryInput) ([]*domain.Movement, error)
	ListLowBalance(ctx context.Context, threshold *decimal.Decimal) ([]*domain.Entity, error)
	AverageOutflow(ctx context.Context, input usecase.AverageOutflowInput) (decimal.Decimal, error)
}

// LedgerHandler handles entity, movement and query requests.
type LedgerHandler struct {
	ledger LedgerService
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(ledger LedgerService) *LedgerHandler {
	return &LedgerHandler{ledger: ledger}
}

// Register registers a new entity.
func (h *LedgerHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterEntityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	input, err := req.ToUseCaseInput()
	if err != nil {
		writeDomainError(w, "invalid request", err)
		return
	}

	entity, err := h.ledger.RegisterEntity(r.Context(), input)
	if err != nil {
		writeDomainError(w, "failed to register entity", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.EntityFromDomain(entity))
}

// Get retrieves an entity by ID.
func (h *LedgerHandler) Get(w http.ResponseWriter, r *http.Request) {
	entity, err := h.ledger.GetEntity(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "failed to get entity", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.EntityFromDomain(entity))
}

// List lists entities.
func (h *LedgerHandler) List(w http.ResponseWriter, r *http.Request) {
	entities, err := h.ledger.ListEntities(r.Context(), usecase.ListEntitiesInput{
		Limit:  parseIntQuery(r, "limit", 20),
		Offset: parseIntQuery(r, "offset", 0),
	})
	if err != nil {
		writeDomainError(w, "failed to list entities", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.EntitiesFromDomain(entities))
}

// Balance returns the current balance of an entity.
func (h *LedgerHandler) Balance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.ledger.GetBalance(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "failed to get balance", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.BalanceFromDomain(balance))
}

// Move applies a movement to the entity in the URL.
func (h *LedgerHandler) Move(w http.ResponseWriter, r *http.Request) {
	var req dto.ApplyMovementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	input, err := req.ToUseCaseInput(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "invalid request", err)
		return
	}

	movement, err := h.ledger.ApplyMovement(r.Context(), input)
	if err != nil {
		writeDomainError(w, "failed to apply movement", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.MovementFromDomain(movement))
}

// History lists movements of an entity, optionally bounded by from/to (RFC3339).
func (h *LedgerHandler) History(w http.ResponseWriter, r *http.Request) {
	from, err := parseTimeQuery(r, "from")
	if err != nil {
		writeDomainError(w, "invalid from", err)
		return
	}
	to, err := parseTimeQuery(r, "to")
	if err != nil {
		writeDomainError(w, "invalid to", err)
		return
	}

	movements, err := h.ledger.GetHistory(r.Context(), usecase.GetHistoryInput{
		EntityID: chi.URLParam(r, "id"),
		From:     from,
		To:       to,
	})
	if err != nil {
		writeDomainError(w, "failed to get history", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.MovementsFromDomain(movements))
}

// LowBalance lists entities at or below the threshold query parameter,
// or the configured default when it is absent.
func (h *LedgerHandler) LowBalance(w http.ResponseWriter, r *http.Request) {
	var threshold *decimal.Decimal
	if raw := r.URL.Query().Get("threshold"); raw != "" {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid threshold", err.Error())
			return
		}
		threshold = &d
	}

	entities, err := h.ledger.ListLowBalance(r.Context(), threshold)
	if err != nil {
		writeDomainError(w, "failed to list low-balance entities", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.EntitiesFromDomain(entities))
}

// AverageOutflow returns the mean decrease per unit over the trailing window.
func (h *LedgerHandler) AverageOutflow(w http.ResponseWriter, r *http.Request) {
	window := usecase.DefaultAverageWindow
	if raw := r.URL.Query().Get("window"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid window", err.Error())
			return
		}
		window = n
	}

	unit, err := domain.ParseWindowUnit(r.URL.Query().Get("unit"))
	if err != nil {
		writeDomainError(w, "invalid unit", err)
		return
	}

	id := chi.URLParam(r, "id")
	avg, err := h.ledger.AverageOutflow(r.Context(), usecase.AverageOutflowInput{
		EntityID:    id,
		WindowCount: window,
		Unit:        unit,
	})
	if err != nil {
		writeDomainError(w, "failed to compute average outflow", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.AverageOutflowResponse{
		EntityID: id,
		Window:   window,
		Unit:     string(unit),
		Average:  avg,
	})
}

func parseTimeQuery(r *http.Request, key string) (*time.Time, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}

	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be RFC3339: %v", domain.ErrInvalidArgument, key, err)
	}

	return &t, nil
}
