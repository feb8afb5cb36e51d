package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/msomdec/accounts/internal/domain"
)

// writeJSON sends a JSON response with the given status code and data.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("write JSON response", "error", err)
	}
}

// writeError sends a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeFieldErrors sends a 422 with the per-field messages of verr.
func writeFieldErrors(w http.ResponseWriter, verr *domain.ValidationError) {
	writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"errors": fieldsOf(verr)})
}

func fieldsOf(verr *domain.ValidationError) map[string]string {
	if verr.Empty() {
		return map[string]string{}
	}
	return verr.Fields
}

// redirect answers a form post with 303 See Other.
func redirect(w http.ResponseWriter, r *http.Request, to string) {
	http.Redirect(w, r, to, http.StatusSeeOther)
}
