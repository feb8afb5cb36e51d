package handler

import (
	"errors"
	"net/http"
	"path"
	"strconv"

	"github.com/msomdec/accounts/internal/domain"
	"github.com/msomdec/accounts/internal/service"
)

// MediaHandler serves uploaded files to their owner.
type MediaHandler struct {
	accounts *service.AccountService
	files    domain.FileStore
}

// NewMediaHandler creates a new MediaHandler.
func NewMediaHandler(accounts *service.AccountService, files domain.FileStore) *MediaHandler {
	return &MediaHandler{accounts: accounts, files: files}
}

// HandleFile streams the avatar or CV of the signed-in user. Keys that do
// not belong to the user are reported as missing.
// GET /media/{key...}
func (h *MediaHandler) HandleFile(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	user := UserFromContext(r.Context())

	profile, err := h.accounts.Profile(r.Context(), user.ID)
	if err != nil {
		internalError(w, r, "get profile", err)
		return
	}
	if key == "" || (key != profile.AvatarKey && key != profile.CVKey) {
		writeError(w, http.StatusNotFound, "File not found.")
		return
	}

	data, err := h.files.Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "File not found.")
			return
		}
		internalError(w, r, "read file", err)
		return
	}

	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "private, max-age=3600")
	if key == profile.CVKey {
		w.Header().Set("Content-Disposition", `attachment; filename="`+path.Base(key)+`"`)
	}
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
