package api

import (
	"net/http"

	"github.com/blocke-ledger/internal/models"
)

func respondBEUID(w http.ResponseWriter, statusCode int, id *models.BEUID) {
	respondSuccess(w, statusCode, map[string]interface{}{
		"uid":     id.UID,
		"address": id.Address,
	})
}

// handleRegisterBEUID handles POST /api/beuid. Registering twice returns the existing id.
func (s *Server) handleRegisterBEUID(w http.ResponseWriter, r *http.Request) {
	var req addressRequest
	if err := parseJSONBody(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	id, err := s.services.BEUID.Register(r.Context(), req.Address)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondBEUID(w, http.StatusOK, id)
}

// handleLookupBEUID handles GET /api/beuid?address=
func (s *Server) handleLookupBEUID(w http.ResponseWriter, r *http.Request) {
	id, err := s.services.BEUID.Lookup(r.Context(), r.URL.Query().Get("address"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondBEUID(w, http.StatusOK, id)
}

// handleResolveBEUID handles GET /api/beuid/resolve?uid=
func (s *Server) handleResolveBEUID(w http.ResponseWriter, r *http.Request) {
	id, err := s.services.BEUID.Resolve(r.Context(), r.URL.Query().Get("uid"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondBEUID(w, http.StatusOK, id)
}
