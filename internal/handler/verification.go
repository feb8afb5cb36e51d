package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/msomdec/accounts/internal/domain"
	"github.com/msomdec/accounts/internal/observability"
	"github.com/msomdec/accounts/internal/service"
)

// VerificationHandler confirms email addresses and re-sends links.
type VerificationHandler struct {
	verifier *service.Verifier
}

// NewVerificationHandler creates a new VerificationHandler.
func NewVerificationHandler(verifier *service.Verifier) *VerificationHandler {
	return &VerificationHandler{verifier: verifier}
}

// HandleConfirm activates the account named by the token query parameter.
// GET /verify-email?token=...
func (h *VerificationHandler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	_, err := h.verifier.Confirm(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		if errors.Is(err, domain.ErrInvalidToken) {
			writeError(w, http.StatusBadRequest, "The verification link is invalid or has expired.")
			return
		}
		internalError(w, r, "confirm email", err)
		return
	}
	redirect(w, r, "/login")
}

// HandleResend mails a fresh link to a pending account. The answer is the
// same whether or not the address belongs to one.
// POST /verify-email/resend
func (h *VerificationHandler) HandleResend(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if err := h.verifier.Resend(r.Context(), r.PostFormValue("email")); err != nil {
		slog.ErrorContext(r.Context(), "resend verification email", "error", err)
		observability.CaptureError(r.Context(), err)
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"status": "If the address belongs to a pending account, a new link is on its way.",
	})
}
