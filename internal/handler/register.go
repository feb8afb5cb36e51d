package handler

import (
	"errors"
	"net/http"

	"github.com/msomdec/accounts/internal/domain"
	"github.com/msomdec/accounts/internal/service"
)

var registrationFields = []string{"email", "first_name", "last_name", "password1", "password2"}

// RegistrationHandler handles the ordinary and main-user sign-up forms.
type RegistrationHandler struct {
	registration *service.RegistrationService
	cookieSecure bool
}

// NewRegistrationHandler creates a new RegistrationHandler.
func NewRegistrationHandler(registration *service.RegistrationService, cookieSecure bool) *RegistrationHandler {
	return &RegistrationHandler{registration: registration, cookieSecure: cookieSecure}
}

// HandleRegisterForm describes the registration form.
// GET /register
func (h *RegistrationHandler) HandleRegisterForm(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, FormDTO{Form: "register", Action: "/register", Fields: registrationFields})
}

// HandleMainForm describes the main-user registration form.
// GET /register/main-user
func (h *RegistrationHandler) HandleMainForm(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, FormDTO{Form: "register_main", Action: "/register/main-user", Fields: registrationFields})
}

// HandleRegister creates an ordinary account.
// POST /register
func (h *RegistrationHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	in, ok := parseRegistration(w, r)
	if !ok {
		return
	}
	user, err := h.registration.Register(r.Context(), in)
	h.finish(w, r, user, err)
}

// HandleRegisterMain creates a main account. Routed behind RequireUnlocked.
// POST /register/main-user
func (h *RegistrationHandler) HandleRegisterMain(w http.ResponseWriter, r *http.Request) {
	in, ok := parseRegistration(w, r)
	if !ok {
		return
	}
	user, err := h.registration.RegisterMain(r.Context(), SessionFromContext(r.Context()), in)
	if errors.Is(err, domain.ErrForbidden) {
		redirect(w, r, "/verify")
		return
	}
	h.finish(w, r, user, err)
}

func (h *RegistrationHandler) finish(w http.ResponseWriter, r *http.Request, user *domain.User, err error) {
	if err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			writeFieldErrors(w, verr)
			return
		}
		if user != nil {
			internalError(w, r, "send verification email", err)
			return
		}
		internalError(w, r, "register user", err)
		return
	}
	redirect(w, r, "/login")
}

func parseRegistration(w http.ResponseWriter, r *http.Request) (service.RegistrationInput, bool) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return service.RegistrationInput{}, false
	}
	return service.RegistrationInput{
		Email:     r.PostFormValue("email"),
		FirstName: r.PostFormValue("first_name"),
		LastName:  r.PostFormValue("last_name"),
		Password1: r.PostFormValue("password1"),
		Password2: r.PostFormValue("password2"),
	}, true
}
