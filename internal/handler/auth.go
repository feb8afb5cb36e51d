package handler

import (
	"errors"
	"net/http"

	"github.com/msomdec/accounts/internal/domain"
	"github.com/msomdec/accounts/internal/service"
	"github.com/msomdec/accounts/internal/session"
)

// AuthHandler handles login and logout.
type AuthHandler struct {
	accounts     *service.AccountService
	cookieSecure bool
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(accounts *service.AccountService, cookieSecure bool) *AuthHandler {
	return &AuthHandler{accounts: accounts, cookieSecure: cookieSecure}
}

// HandleLoginForm describes the login form.
// GET /login
func (h *AuthHandler) HandleLoginForm(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, FormDTO{Form: "login", Action: "/login", Fields: []string{"email", "password"}})
}

// HandleLogin verifies the submitted credentials and starts a new session.
// Every credential failure gets the same answer.
// POST /login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	sess, _, err := h.accounts.Login(r.Context(), r.PostFormValue("email"), r.PostFormValue("password"), SessionFromContext(r.Context()))
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			writeError(w, http.StatusUnauthorized, "User not found")
			return
		}
		internalError(w, r, "login user", err)
		return
	}

	session.SetCookie(w, sess, h.cookieSecure)
	redirect(w, r, "/")
}

// HandleLogout destroys the session and clears its cookie.
// POST /logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.accounts.Logout(r.Context(), SessionFromContext(r.Context())); err != nil {
		internalError(w, r, "logout user", err)
		return
	}
	session.ClearCookie(w, h.cookieSecure)
	redirect(w, r, "/")
}
