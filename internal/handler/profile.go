package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/msomdec/accounts/internal/domain"
	"github.com/msomdec/accounts/internal/service"
	"github.com/msomdec/accounts/internal/session"
)

const (
	maxUploadBytes = 10 << 20
	// Room for both uploads plus the text fields.
	maxEditBodyBytes = 2*maxUploadBytes + 1<<20
)

// ProfileHandler serves the signed-in user's profile, the edit form and
// the password change form. All routes sit behind RequireUser.
type ProfileHandler struct {
	accounts     *service.AccountService
	cookieSecure bool
}

// NewProfileHandler creates a new ProfileHandler.
func NewProfileHandler(accounts *service.AccountService, cookieSecure bool) *ProfileHandler {
	return &ProfileHandler{accounts: accounts, cookieSecure: cookieSecure}
}

// HandleView returns the user with their profile.
// GET /profile
func (h *ProfileHandler) HandleView(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	profile, ok := h.loadProfile(w, r, user)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user":    toUserDTO(user),
		"profile": toProfileDTO(profile),
	})
}

// HandleEditForm describes both halves of the edit form with current values.
// GET /profile/edit
func (h *ProfileHandler) HandleEditForm(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	profile, ok := h.loadProfile(w, r, user)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user": FormDTO{
			Form:   "user",
			Action: "/profile/edit",
			Fields: []string{"first_name", "last_name", "email"},
			Initial: map[string]string{
				"first_name": user.FirstName,
				"last_name":  user.LastName,
				"email":      user.Email,
			},
		},
		"profile": FormDTO{
			Form:   "profile",
			Action: "/profile/edit",
			Fields: []string{"bio", "bio_short", "website", "linkedin", "avatar", "cv", "clear_avatar", "clear_cv"},
			Initial: map[string]string{
				"bio":       profile.Bio,
				"bio_short": profile.BioShort,
				"website":   profile.Website,
				"linkedin":  profile.LinkedIn,
				"avatar":    mediaURL(profile.AvatarKey),
				"cv":        mediaURL(profile.CVKey),
			},
		},
	})
}

// HandleEdit saves the multipart edit form. Errors from both halves are
// reported together and nothing is saved unless both are valid.
// POST /profile/edit
func (h *ProfileHandler) HandleEdit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxEditBodyBytes)
	if err := r.ParseMultipartForm(maxEditBodyBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		writeError(w, http.StatusRequestEntityTooLarge, "The upload is too large.")
		return
	}

	details := service.UserDetailsInput{
		FirstName: r.FormValue("first_name"),
		LastName:  r.FormValue("last_name"),
		Email:     r.FormValue("email"),
	}
	in := service.ProfileInput{
		Bio:         r.FormValue("bio"),
		BioShort:    r.FormValue("bio_short"),
		Website:     r.FormValue("website"),
		LinkedIn:    r.FormValue("linkedin"),
		ClearAvatar: r.FormValue("clear_avatar") != "",
		ClearCV:     r.FormValue("clear_cv") != "",
	}

	var err error
	if in.Avatar, err = formUpload(r, "avatar"); err != nil {
		writeError(w, http.StatusBadRequest, "Could not read the avatar upload.")
		return
	}
	if in.CV, err = formUpload(r, "cv"); err != nil {
		writeError(w, http.StatusBadRequest, "Could not read the CV upload.")
		return
	}

	user := UserFromContext(r.Context())
	if _, err := h.accounts.EditProfile(r.Context(), user, details, in); err != nil {
		var editErrs *service.EditErrors
		if errors.As(err, &editErrs) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"errors": map[string]any{
					"user":    fieldsOf(editErrs.User),
					"profile": fieldsOf(editErrs.Profile),
				},
			})
			return
		}
		internalError(w, r, "edit profile", err)
		return
	}
	redirect(w, r, "/profile")
}

// HandlePasswordForm describes the password change form.
// GET /profile/edit/password
func (h *ProfileHandler) HandlePasswordForm(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, FormDTO{
		Form:   "password_change",
		Action: "/profile/edit/password",
		Fields: []string{"old_password", "new_password1", "new_password2"},
	})
}

// HandleChangePassword replaces the password and re-issues the session
// cookie; other sessions of the user stop working.
// POST /profile/edit/password
func (h *ProfileHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	ctx := r.Context()
	sess, err := h.accounts.ChangePassword(ctx, SessionFromContext(ctx), UserFromContext(ctx),
		r.PostFormValue("old_password"), r.PostFormValue("new_password1"), r.PostFormValue("new_password2"))
	if err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			writeFieldErrors(w, verr)
			return
		}
		internalError(w, r, "change password", err)
		return
	}

	session.SetCookie(w, sess, h.cookieSecure)
	redirect(w, r, "/profile")
}

// loadProfile fetches the profile of user. Every user has one, so a miss
// is logged as corrupt data.
func (h *ProfileHandler) loadProfile(w http.ResponseWriter, r *http.Request, user *domain.User) (*domain.Profile, bool) {
	profile, err := h.accounts.Profile(r.Context(), user.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			internalError(w, r, "user without profile", err)
			return nil, false
		}
		internalError(w, r, "get profile", err)
		return nil, false
	}
	return profile, true
}

// formUpload reads the file part named field. It returns nil when the part
// is absent or empty.
func formUpload(r *http.Request, field string) (*service.Upload, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", field, err)
	}
	defer file.Close()

	if header.Size == 0 {
		return nil, nil
	}
	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", field, err)
	}
	return &service.Upload{Filename: header.Filename, Data: data}, nil
}
