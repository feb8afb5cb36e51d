package handler

import (
	"log/slog"
	"net/http"

	"github.com/msomdec/accounts/internal/observability"
)

const genericErrorMessage = "An unexpected error occurred. Please try again."

// internalError logs and reports err, and answers with a generic 500 so no
// internal detail reaches the client.
func internalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	slog.ErrorContext(r.Context(), msg, "error", err, "method", r.Method, "path", r.URL.Path)
	observability.CaptureError(r.Context(), err)
	writeError(w, http.StatusInternalServerError, genericErrorMessage)
}
