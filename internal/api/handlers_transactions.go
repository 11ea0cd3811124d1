package api

import (
	"net/http"
	"strconv"

	apperrors "github.com/blocke-ledger/internal/errors"
	"github.com/blocke-ledger/internal/service"
)

// handleAppendTransaction handles POST /api/transactions
func (s *Server) handleAppendTransaction(w http.ResponseWriter, r *http.Request) {
	var input service.AppendTransactionInput
	if err := parseJSONBody(w, r, &input); err != nil {
		respondError(w, r, err)
		return
	}

	tx, err := s.services.Ledger.Append(r.Context(), input)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondSuccess(w, http.StatusCreated, map[string]interface{}{"transaction": tx})
}

// handleListTransactions handles GET /api/transactions?address=&page=&limit=
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	page, err := optionalInt(query.Get("page"), "page")
	if err != nil {
		respondError(w, r, err)
		return
	}
	limit, err := optionalInt(query.Get("limit"), "limit")
	if err != nil {
		respondError(w, r, err)
		return
	}

	result, err := s.services.Ledger.List(r.Context(), query.Get("address"), page, limit)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"transactions": result.Transactions,
		"total":        result.Total,
		"page":         result.Page,
		"limit":        result.Limit,
	})
}

// optionalInt parses a query integer; empty means 0 so the service applies its default
func optionalInt(raw, field string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperrors.NewValidationError(field, "must be an integer")
	}
	return n, nil
}
