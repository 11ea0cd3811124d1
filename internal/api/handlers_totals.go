package api

import (
	"context"
	"net/http"

	apperrors "github.com/blocke-ledger/internal/errors"
)

// handleTotalMinted handles GET /api/total-minted
func (s *Server) handleTotalMinted(w http.ResponseWriter, r *http.Request) {
	s.handleTotal(w, r, "totalMinted", func(a AggregatorServiceInterface) func(context.Context) (string, error) {
		return a.TotalMinted
	})
}

// handleTotalStaked handles GET /api/total-staked
func (s *Server) handleTotalStaked(w http.ResponseWriter, r *http.Request) {
	s.handleTotal(w, r, "totalStaked", func(a AggregatorServiceInterface) func(context.Context) (string, error) {
		return a.TotalStaked
	})
}

// handleTotalClaimed handles GET /api/total-claimed
func (s *Server) handleTotalClaimed(w http.ResponseWriter, r *http.Request) {
	s.handleTotal(w, r, "totalClaimed", func(a AggregatorServiceInterface) func(context.Context) (string, error) {
		return a.TotalClaimed
	})
}

func (s *Server) handleTotal(w http.ResponseWriter, r *http.Request, field string, pick func(AggregatorServiceInterface) func(context.Context) (string, error)) {
	if s.services.Aggregator == nil {
		respondError(w, r, apperrors.NewServiceUnavailableError("on-chain aggregator"))
		return
	}

	total, err := pick(s.services.Aggregator)(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondSuccess(w, http.StatusOK, map[string]interface{}{field: total})
}
