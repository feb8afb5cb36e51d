package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/msomdec/accounts/internal/domain"
	"github.com/msomdec/accounts/internal/session"
)

// EditErrors aggregates the field errors of the two halves of the profile
// edit form. It matches domain.ErrInvalidInput under errors.Is.
type EditErrors struct {
	User    *domain.ValidationError
	Profile *domain.ValidationError
}

func (e *EditErrors) Error() string {
	switch {
	case !e.User.Empty() && !e.Profile.Empty():
		return "user " + e.User.Error() + "; profile " + e.Profile.Error()
	case !e.User.Empty():
		return "user " + e.User.Error()
	default:
		return "profile " + e.Profile.Error()
	}
}

func (e *EditErrors) Is(target error) bool {
	return target == domain.ErrInvalidInput
}

// AccountService handles login sessions and the signed-in user's account.
type AccountService struct {
	users    domain.UserRepository
	profiles *ProfileStore
	sessions session.Store
	creds    *Credentials
	ttl      time.Duration
}

// NewAccountService creates a new AccountService.
func NewAccountService(users domain.UserRepository, profiles *ProfileStore, sessions session.Store, creds *Credentials, sessionTTL time.Duration) *AccountService {
	return &AccountService{
		users:    users,
		profiles: profiles,
		sessions: sessions,
		creds:    creds,
		ttl:      sessionTTL,
	}
}

// Login verifies credentials and returns a new authenticated session.
// Unknown emails, wrong passwords and unverified accounts all return
// domain.ErrUnauthorized. The current session, if any, is destroyed.
func (s *AccountService) Login(ctx context.Context, email, password string, current *session.Session) (*session.Session, *domain.User, error) {
	user, err := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.creds.burn(password)
			return nil, nil, domain.ErrUnauthorized
		}
		return nil, nil, fmt.Errorf("get user: %w", err)
	}

	if !s.creds.Verify(user.PasswordHash, password) || !user.IsActive {
		return nil, nil, domain.ErrUnauthorized
	}

	sess, err := s.startSession(ctx, user, current)
	if err != nil {
		return nil, nil, err
	}
	return sess, user, nil
}

// Logout destroys sess.
func (s *AccountService) Logout(ctx context.Context, sess *session.Session) error {
	if sess == nil {
		return nil
	}
	if err := s.sessions.Delete(ctx, sess.ID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Authenticate resolves the user of sess. Sessions created before the
// user's last password change, or for a deactivated user, are destroyed
// and domain.ErrUnauthorized is returned.
func (s *AccountService) Authenticate(ctx context.Context, sess *session.Session) (*domain.User, error) {
	if !sess.Authenticated() {
		return nil, domain.ErrUnauthorized
	}

	user, err := s.users.GetByID(ctx, sess.UserID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if err != nil || !user.IsActive || sess.AuthHash != s.creds.Fingerprint(user.PasswordHash) {
		if err := s.sessions.Delete(ctx, sess.ID); err != nil {
			return nil, fmt.Errorf("delete stale session: %w", err)
		}
		return nil, domain.ErrUnauthorized
	}
	return user, nil
}

// Profile returns the profile of userID. Every user has one, so a missing
// profile is reported as a wrapped domain.ErrNotFound.
func (s *AccountService) Profile(ctx context.Context, userID int64) (*domain.Profile, error) {
	profile, err := s.profiles.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("profile of user %d: %w", userID, err)
	}
	return profile, nil
}

// DeleteAccount removes the user, its profile and the profile's files.
// The rows go first so a failure never leaves a profile pointing at
// deleted files.
func (s *AccountService) DeleteAccount(ctx context.Context, userID int64) error {
	profile, err := s.profiles.Get(ctx, userID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("get profile: %w", err)
	}
	if err := s.users.Delete(ctx, userID); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if profile == nil {
		return nil
	}
	if err := s.profiles.RemoveFiles(ctx, profile); err != nil {
		return fmt.Errorf("remove profile files: %w", err)
	}
	return nil
}

// EditProfile validates both halves of the edit form and saves them
// together. Nothing is written unless both halves are valid.
func (s *AccountService) EditProfile(ctx context.Context, user *domain.User, details UserDetailsInput, in ProfileInput) (*domain.Profile, error) {
	userErrs := ValidateUserDetails(details)
	profileErrs := ValidateProfileInput(in)
	if userErrs != nil || profileErrs != nil {
		return nil, &EditErrors{User: userErrs, Profile: profileErrs}
	}

	profile, err := s.Profile(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	updated := *user
	updated.FirstName = details.FirstName
	updated.LastName = details.LastName
	updated.Email = NormalizeEmail(details.Email)
	updated.Username = updated.Email

	profile.Bio = in.Bio
	profile.BioShort = in.BioShort
	profile.Website = in.Website
	profile.LinkedIn = in.LinkedIn

	if err := s.profiles.Save(ctx, &updated, profile, in); err != nil {
		if errors.Is(err, domain.ErrDuplicateEmail) {
			verr := domain.NewValidationError()
			verr.Add("email", "A user with that email already exists.")
			return nil, &EditErrors{User: verr}
		}
		return nil, fmt.Errorf("save profile: %w", err)
	}

	*user = updated
	return profile, nil
}

// ChangePassword replaces the password of the user signed in with sess.
// Every other session of the user stops validating; the returned session
// replaces sess and keeps the caller signed in.
func (s *AccountService) ChangePassword(ctx context.Context, sess *session.Session, user *domain.User, oldPassword, new1, new2 string) (*session.Session, error) {
	verr := domain.NewValidationError()
	if !s.creds.Verify(user.PasswordHash, oldPassword) {
		verr.Add("old_password", "Your old password was entered incorrectly. Please enter it again.")
	}
	if perr := ValidateNewPassword(new1, new2, user.Email); perr != nil {
		for field, msg := range perr.Fields {
			verr.Add(field, msg)
		}
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	hash, err := s.creds.Hash(new1)
	if err != nil {
		return nil, err
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return nil, fmt.Errorf("update password: %w", err)
	}
	user.PasswordHash = hash

	return s.startSession(ctx, user, sess)
}

// startSession saves a fresh session for user and deletes previous.
func (s *AccountService) startSession(ctx context.Context, user *domain.User, previous *session.Session) (*session.Session, error) {
	sess, err := session.New(s.ttl)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	sess.UserID = user.ID
	sess.AuthHash = s.creds.Fingerprint(user.PasswordHash)
	if previous != nil {
		sess.AccessUnlocked = previous.AccessUnlocked
	}

	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	if previous != nil {
		if err := s.sessions.Delete(ctx, previous.ID); err != nil {
			return nil, fmt.Errorf("delete previous session: %w", err)
		}
	}
	return sess, nil
}
