package api

import "net/http"

type updatePreferencesRequest struct {
	Address     string                 `json:"address"`
	Preferences map[string]interface{} `json:"preferences"`
	Theme       string                 `json:"theme"`
}

// handleGetPreferences handles GET /api/preferences?address=
func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	prefs, err := s.services.Preferences.Get(r.Context(), r.URL.Query().Get("address"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondSuccess(w, http.StatusOK, map[string]interface{}{"preferences": prefs})
}

// handleUpdatePreferences handles POST /api/preferences. Keys are merged into the stored set.
func (s *Server) handleUpdatePreferences(w http.ResponseWriter, r *http.Request) {
	var req updatePreferencesRequest
	if err := parseJSONBody(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	prefs, err := s.services.Preferences.Update(r.Context(), req.Address, req.Preferences, req.Theme)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondSuccess(w, http.StatusOK, map[string]interface{}{"preferences": prefs})
}
