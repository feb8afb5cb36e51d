package service

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/mail"
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/disintegration/imaging"
	"github.com/msomdec/accounts/internal/domain"
)

const (
	minPasswordLength = 6
	maxNameLength     = 150
	maxURLLength      = 200
	maxUploadSize     = 10 * 1024 * 1024 // 10MB
	maxPasswordBytes  = 72               // bcrypt input limit
	maxAvatarPixels   = 40_000_000
	maxAvatarAspect   = 10
)

var commonPasswords = map[string]bool{
	"password": true, "password1": true, "password123": true, "123456": true,
	"12345678": true, "qwerty": true, "qwerty123": true, "letmein": true,
	"abc123": true, "iloveyou": true, "admin123": true, "welcome1": true,
	"monkey1": true, "dragon1": true, "111111": true,
}

// RegistrationInput is the submitted registration form.
type RegistrationInput struct {
	Email     string
	FirstName string
	LastName  string
	Password1 string
	Password2 string
}

// UserDetailsInput is the editable part of the user record.
type UserDetailsInput struct {
	FirstName string
	LastName  string
	Email     string
}

// Upload is a file submitted with a form.
type Upload struct {
	Filename string
	Data     []byte
}

// ProfileInput is the submitted profile form. A nil upload keeps the
// current file; Clear* removes it.
type ProfileInput struct {
	Bio         string
	BioShort    string
	Website     string
	LinkedIn    string
	Avatar      *Upload
	CV          *Upload
	ClearAvatar bool
	ClearCV     bool
}

// NormalizeEmail trims the address and lower-cases its domain part.
func NormalizeEmail(email string) string {
	email = strings.TrimSpace(email)
	local, domainPart, ok := strings.Cut(email, "@")
	if !ok {
		return email
	}
	return local + "@" + strings.ToLower(domainPart)
}

// ValidateRegistration checks the registration form. The returned
// *domain.ValidationError is nil when the form is valid.
func ValidateRegistration(in RegistrationInput) *domain.ValidationError {
	verr := domain.NewValidationError()

	validateEmail(verr, "email", in.Email)
	validateName(verr, "first_name", in.FirstName)
	validateName(verr, "last_name", in.LastName)

	switch {
	case in.Password1 == "":
		verr.Add("password1", "This field is required.")
	case in.Password2 == "":
		verr.Add("password2", "This field is required.")
	case in.Password1 != in.Password2:
		verr.Add("password2", "The two password fields didn't match.")
	default:
		if msg := passwordPolicy(in.Password2, in.Email); msg != "" {
			verr.Add("password2", msg)
		}
	}

	if verr.Empty() {
		return nil
	}
	return verr
}

// ValidateUserDetails checks the user half of the profile edit form.
func ValidateUserDetails(in UserDetailsInput) *domain.ValidationError {
	verr := domain.NewValidationError()
	validateEmail(verr, "email", in.Email)
	validateName(verr, "first_name", in.FirstName)
	validateName(verr, "last_name", in.LastName)
	if verr.Empty() {
		return nil
	}
	return verr
}

// ValidateProfileInput checks the profile half of the profile edit form.
func ValidateProfileInput(in ProfileInput) *domain.ValidationError {
	verr := domain.NewValidationError()

	if utf8.RuneCountInString(in.BioShort) > domain.MaxBioShortLength {
		verr.Add("bio_short", "Ensure this value has at most 100 characters.")
	}
	validateURL(verr, "website", in.Website)
	validateURL(verr, "linkedin", in.LinkedIn)

	if in.Avatar != nil {
		switch {
		case len(in.Avatar.Data) > maxUploadSize:
			verr.Add("avatar", "File exceeds the 10MB limit.")
		default:
			if msg := avatarProblem(in.Avatar.Data); msg != "" {
				verr.Add("avatar", msg)
			}
		}
	}
	if in.CV != nil {
		switch {
		case len(in.CV.Data) == 0:
			verr.Add("cv", "The submitted file is empty.")
		case len(in.CV.Data) > maxUploadSize:
			verr.Add("cv", "File exceeds the 10MB limit.")
		}
	}

	if verr.Empty() {
		return nil
	}
	return verr
}

// ValidateNewPassword checks a password change's new password pair.
func ValidateNewPassword(new1, new2, email string) *domain.ValidationError {
	verr := domain.NewValidationError()
	switch {
	case new1 == "":
		verr.Add("new_password1", "This field is required.")
	case new1 != new2:
		verr.Add("new_password2", "The two password fields didn't match.")
	default:
		if msg := passwordPolicy(new2, email); msg != "" {
			verr.Add("new_password2", msg)
		}
	}
	if verr.Empty() {
		return nil
	}
	return verr
}

// avatarProblem checks the header dimensions before decoding the whole
// image, so oversized images are rejected without allocating their pixels.
func avatarProblem(data []byte) string {
	const invalid = "Upload a valid image. The file you uploaded was either not an image or a corrupted image."

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil || cfg.Width <= 0 || cfg.Height <= 0 {
		return invalid
	}
	if cfg.Width*cfg.Height > maxAvatarPixels {
		return "Image dimensions are too large."
	}
	if cfg.Width > cfg.Height*maxAvatarAspect || cfg.Height > cfg.Width*maxAvatarAspect {
		return fmt.Sprintf("Image aspect ratio must not exceed %d:1.", maxAvatarAspect)
	}
	if _, err := imaging.Decode(bytes.NewReader(data)); err != nil {
		return invalid
	}
	return ""
}

func validateEmail(verr *domain.ValidationError, field, email string) {
	email = strings.TrimSpace(email)
	if email == "" {
		verr.Add(field, "This field is required.")
		return
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		verr.Add(field, "Enter a valid email address.")
	}
}

func validateName(verr *domain.ValidationError, field, name string) {
	if utf8.RuneCountInString(name) > maxNameLength {
		verr.Add(field, "Ensure this value has at most 150 characters.")
	}
}

func validateURL(verr *domain.ValidationError, field, raw string) {
	if raw == "" {
		return
	}
	if len(raw) > maxURLLength {
		verr.Add(field, "Ensure this value has at most 200 characters.")
		return
	}
	u, err := url.ParseRequestURI(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		verr.Add(field, "Enter a valid URL.")
	}
}

// passwordPolicy returns a message describing the first rule password
// breaks, or "" when it is acceptable.
func passwordPolicy(password, email string) string {
	if utf8.RuneCountInString(password) < minPasswordLength {
		return "This password is too short. It must contain at least 6 characters."
	}
	if len(password) > maxPasswordBytes {
		return "This password is too long. It must contain at most 72 bytes."
	}

	var hasLetter, hasDigit, hasOther bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			hasOther = true
		}
	}
	if !hasLetter && !hasOther {
		return "This password is entirely numeric."
	}
	if !hasLetter {
		return "This password must contain at least one letter."
	}
	if !hasDigit {
		return "This password must contain at least one digit."
	}
	if commonPasswords[strings.ToLower(password)] {
		return "This password is too common."
	}

	local, _, _ := strings.Cut(strings.ToLower(strings.TrimSpace(email)), "@")
	if len(local) >= 3 && strings.Contains(strings.ToLower(password), local) {
		return "The password is too similar to the email address."
	}
	return ""
}
