package api

import (
	"net/http"

	apperrors "github.com/blocke-ledger/internal/errors"
)

type setBalanceRequest struct {
	Address string `json:"address"`
	Balance *int64 `json:"balance"`
}

type addressRequest struct {
	Address string `json:"address"`
}

type creditRequest struct {
	Address string `json:"address"`
	Amount  *int64 `json:"amount"`
}

// handleGetAIBalance handles GET /api/ai-balance?address=
func (s *Server) handleGetAIBalance(w http.ResponseWriter, r *http.Request) {
	address, balance, err := s.services.Balance.GetBalance(r.Context(), r.URL.Query().Get("address"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"address": address,
		"balance": balance,
	})
}

// handleSetAIBalance handles POST /api/ai-balance
func (s *Server) handleSetAIBalance(w http.ResponseWriter, r *http.Request) {
	var req setBalanceRequest
	if err := parseJSONBody(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if req.Balance == nil {
		respondError(w, r, apperrors.NewValidationError("balance", "required"))
		return
	}

	balance, err := s.services.Balance.SetBalance(r.Context(), req.Address, *req.Balance)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondSuccess(w, http.StatusOK, map[string]interface{}{"balance": balance})
}

// handleDeductAIBalance handles POST /api/ai-balance/deduct
func (s *Server) handleDeductAIBalance(w http.ResponseWriter, r *http.Request) {
	var req addressRequest
	if err := parseJSONBody(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	balance, err := s.services.Balance.Deduct(r.Context(), req.Address)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondSuccess(w, http.StatusOK, map[string]interface{}{"newBalance": balance})
}

// handleCreditAIBalance handles POST /api/ai-balance/credit
func (s *Server) handleCreditAIBalance(w http.ResponseWriter, r *http.Request) {
	var req creditRequest
	if err := parseJSONBody(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if req.Amount == nil {
		respondError(w, r, apperrors.NewValidationError("amount", "required"))
		return
	}

	balance, err := s.services.Balance.Credit(r.Context(), req.Address, *req.Amount)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondSuccess(w, http.StatusOK, map[string]interface{}{"newBalance": balance})
}
