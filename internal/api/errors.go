package api

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/blocke-ledger/internal/errors"
	"github.com/blocke-ledger/internal/logging"
)

// maxBodyBytes caps request bodies accepted by the JSON handlers
const maxBodyBytes = 1 << 20

// ErrorResponse is the failure envelope returned by every route
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}

// respondError maps err to its category and writes the failure envelope.
// Causes of 5xx errors are logged, never returned to the client.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	catErr := apperrors.Categorize(err)

	if apperrors.IsSystemError(catErr) {
		logging.FromContext(r.Context()).
			WithError(err).
			WithField("code", catErr.Code).
			Error("request failed")
	}

	respondJSON(w, catErr.StatusCode, ErrorResponse{
		Success: false,
		Error:   catErr.Message,
		Code:    catErr.Code,
	})
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// respondSuccess writes {success:true} merged with fields
func respondSuccess(w http.ResponseWriter, statusCode int, fields map[string]interface{}) {
	body := map[string]interface{}{"success": true}
	for k, v := range fields {
		body[k] = v
	}
	respondJSON(w, statusCode, body)
}

// parseJSONBody parses a JSON request body into v.
// Unknown fields are ignored so older clients keep working.
func parseJSONBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := decoder.Decode(v); err != nil {
		return apperrors.NewValidationError("body", "malformed JSON")
	}
	return nil
}
