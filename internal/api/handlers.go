package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// handleHealth reports liveness
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"chain":  s.chain,
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// handleAnalyzeWallet runs a full persona analysis for one address
func (s *Server) handleAnalyzeWallet(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]

	result, err := s.analyzer.AnalyzeWallet(r.Context(), address)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}
