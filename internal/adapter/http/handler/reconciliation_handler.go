package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/stockledger/internal/adapter/http/dto"
	"github.com/iho/stockledger/internal/usecase"
)

// ReconciliationService defines the behavior needed by ReconciliationHandler.
type ReconciliationService interface {
	ReconcileEntity(ctx context.Context, entityID string) (*usecase.ReconciliationResult, error)
	GenerateReport(ctx context.Context) (*usecase.ReconciliationReport, error)
}

// ReconciliationHandler exposes balance reconciliation.
type ReconciliationHandler struct {
	recon ReconciliationService
}

// NewReconciliationHandler creates a new ReconciliationHandler.
func NewReconciliationHandler(recon ReconciliationService) *ReconciliationHandler {
	return &ReconciliationHandler{recon: recon}
}

// Entity reconciles a single entity.
func (h *ReconciliationHandler) Entity(w http.ResponseWriter, r *http.Request) {
	result, err := h.recon.ReconcileEntity(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "failed to reconcile entity", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ReconciliationFromResult(result))
}

// Report reconciles every entity.
func (h *ReconciliationHandler) Report(w http.ResponseWriter, r *http.Request) {
	report, err := h.recon.GenerateReport(r.Context())
	if err != nil {
		writeDomainError(w, "failed to generate reconciliation report", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ReportFromDomain(report))
}
