package handler

import "net/http"

// HomeHandler serves the landing document.
type HomeHandler struct{}

// NewHomeHandler creates a new HomeHandler.
func NewHomeHandler() *HomeHandler {
	return &HomeHandler{}
}

// HandleHome returns the signed-in user, if any, and the entry points.
// GET /
func (h *HomeHandler) HandleHome(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{"user": nil}
	if user := UserFromContext(r.Context()); user != nil {
		body["user"] = toUserDTO(user)
		body["links"] = map[string]string{"profile": "/profile", "logout": "/logout"}
	} else {
		body["links"] = map[string]string{"login": "/login", "register": "/register"}
	}
	writeJSON(w, http.StatusOK, body)
}
