package api

import (
	"net/http"

	"github.com/etf-dashboard/internal/types"
)

// InstrumentsResponse lists the charted instruments and the supported ranges
type InstrumentsResponse struct {
	Instruments  []string      `json:"instruments"`
	Ranges       []types.Range `json:"ranges"`
	DefaultRange types.Range   `json:"defaultRange"`
}

// handleListInstruments handles GET /api/instruments
func (s *Server) handleListInstruments(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, InstrumentsResponse{
		Instruments:  s.ledgerService.Instruments(),
		Ranges:       types.Ranges,
		DefaultRange: types.DefaultRange,
	})
}

// handleGetDashboard handles GET /api/dashboard?range=1y
func (s *Server) handleGetDashboard(w http.ResponseWriter, r *http.Request) {
	dashboard, err := s.dashboardService.Refresh(r.Context(), r.URL.Query().Get("range"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, dashboard)
}

// handleGetStats handles GET /api/stats
func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.dashboardService.Stats())
}
