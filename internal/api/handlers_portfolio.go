package api

import (
	"net/http"

	"github.com/gorilla/mux"

	apperrors "github.com/etf-dashboard/internal/errors"
)

// UpdateHoldingRequest is the body of PUT /api/portfolio/holdings/{instrument}
type UpdateHoldingRequest struct {
	Shares *float64 `json:"shares"`
}

// handleGetPortfolio handles GET /api/portfolio
func (s *Server) handleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	view, err := s.dashboardService.Portfolio(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, view)
}

// handleGetHoldings handles GET /api/portfolio/holdings. It never contacts the market data provider.
func (s *Server) handleGetHoldings(w http.ResponseWriter, r *http.Request) {
	portfolio, err := s.ledgerService.Load(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, portfolio)
}

// handleUpdateHolding handles PUT /api/portfolio/holdings/{instrument}
func (s *Server) handleUpdateHolding(w http.ResponseWriter, r *http.Request) {
	instrument := mux.Vars(r)["instrument"]

	var req UpdateHoldingRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondServiceError(w, r, apperrors.NewInvalidParameterError("body", "invalid JSON"))
		return
	}
	if req.Shares == nil {
		respondServiceError(w, r, apperrors.NewInvalidParameterError("shares", "is required"))
		return
	}

	portfolio, err := s.ledgerService.Update(r.Context(), instrument, *req.Shares)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, portfolio)
}

// handleResetPortfolio handles DELETE /api/portfolio
func (s *Server) handleResetPortfolio(w http.ResponseWriter, r *http.Request) {
	portfolio, err := s.ledgerService.Reset(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, portfolio)
}
