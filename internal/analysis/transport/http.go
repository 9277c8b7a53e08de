// Package transport provides HTTP handlers for the analysis domain.
package transport

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/qvkare/metaguard-snap/internal/analysis/domain"
	"github.com/qvkare/metaguard-snap/internal/etherscan"
	"github.com/qvkare/metaguard-snap/internal/validation"
)

// Service defines the analysis service interface for HTTP transport.
type Service interface {
	AnalyzeTransaction(ctx context.Context, tx domain.Transaction) *domain.SecurityReport
}

// ContractLookup exposes contract verification evidence for the read-only
// contracts endpoint.
type ContractLookup interface {
	GetContractInfo(ctx context.Context, address string) etherscan.ContractInfo
}

// Handler handles HTTP requests for transaction analysis.
type Handler struct {
	svc       Service
	contracts ContractLookup
}

// NewHandler creates a new analysis HTTP handler.
func NewHandler(svc Service, contracts ContractLookup) *Handler {
	return &Handler{svc: svc, contracts: contracts}
}

// RegisterRoutes registers the analysis routes on a chi router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/analyze", h.handleAnalyze)
	r.Get("/contracts/{address}", h.handleContractInfo)
}

func (h *Handler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Failed to read request body")
		return
	}

	var req AnalyzeRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON")
		return
	}

	// The analyzer never fails; malformed transactions come back as a
	// fail-closed high-risk report, which is still a 200 with a body the
	// confirmation flow can render.
	report := h.svc.AnalyzeTransaction(r.Context(), req.ToDomain())
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) handleContractInfo(w http.ResponseWriter, r *http.Request) {
	address := chi.URLParam(r, "address")
	if err := validation.ValidateAddress(address); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	info := h.contracts.GetContractInfo(r.Context(), address)
	writeJSON(w, http.StatusOK, info)
}

// Helper functions

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
}
