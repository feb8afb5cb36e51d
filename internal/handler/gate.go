package handler

import (
	"net/http"

	"github.com/msomdec/accounts/internal/service"
	"github.com/msomdec/accounts/internal/session"
)

var keyForm = FormDTO{Form: "access_key", Action: "/verify", Fields: []string{"key"}}

// GateHandler accepts the access key that unlocks main-user registration.
type GateHandler struct {
	gate         *service.AccessGate
	cookieSecure bool
}

// NewGateHandler creates a new GateHandler.
func NewGateHandler(gate *service.AccessGate, cookieSecure bool) *GateHandler {
	return &GateHandler{gate: gate, cookieSecure: cookieSecure}
}

// HandleKeyForm describes the access-key form.
// GET /verify
func (h *GateHandler) HandleKeyForm(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, keyForm)
}

// HandleSubmitKey checks the submitted key. A wrong key re-renders the form
// without saying why.
// POST /verify
func (h *GateHandler) HandleSubmitKey(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	sess, ok, err := h.gate.Check(r.Context(), SessionFromContext(r.Context()), r.PostFormValue("key"))
	if err != nil {
		internalError(w, r, "unlock session", err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusUnprocessableEntity, keyForm)
		return
	}

	session.SetCookie(w, sess, h.cookieSecure)
	redirect(w, r, "/register/main-user")
}
