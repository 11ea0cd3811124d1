package api

import (
	"context"
	"net/http"

	"github.com/blocke-ledger/internal/service"
)

type stakeActionRequest struct {
	Address string `json:"address"`
	TxHash  string `json:"txHash"`
}

// handleGetStaking handles GET /api/staking?address=
func (s *Server) handleGetStaking(w http.ResponseWriter, r *http.Request) {
	account, err := s.services.Staking.GetStaking(r.Context(), r.URL.Query().Get("address"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondSuccess(w, http.StatusOK, map[string]interface{}{"staking": account})
}

// handleRecordStake handles POST /api/staking/stake.
// Recording the same transaction twice is accepted; recorded tells the two apart.
func (s *Server) handleRecordStake(w http.ResponseWriter, r *http.Request) {
	var input service.StakeInput
	if err := parseJSONBody(w, r, &input); err != nil {
		respondError(w, r, err)
		return
	}

	added, err := s.services.Staking.RecordStake(r.Context(), input)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondSuccess(w, http.StatusCreated, map[string]interface{}{"recorded": added})
}

// handleClaim handles POST /api/staking/claim
func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	s.handleStakeAction(w, r, s.services.Staking.Claim)
}

// handleUnstake handles POST /api/staking/unstake
func (s *Server) handleUnstake(w http.ResponseWriter, r *http.Request) {
	s.handleStakeAction(w, r, s.services.Staking.Unstake)
}

func (s *Server) handleStakeAction(w http.ResponseWriter, r *http.Request, action func(ctx context.Context, address, txHash string) error) {
	var req stakeActionRequest
	if err := parseJSONBody(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	if err := action(r.Context(), req.Address, req.TxHash); err != nil {
		respondError(w, r, err)
		return
	}

	respondSuccess(w, http.StatusOK, nil)
}
