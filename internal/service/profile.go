package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/msomdec/accounts/internal/domain"
)

// ProfileChange tells hooks which files a save replaced.
type ProfileChange struct {
	AvatarChanged bool
	CVChanged     bool
}

// ProfileHook runs after a profile save has committed.
type ProfileHook interface {
	AfterSave(ctx context.Context, profile *domain.Profile, change ProfileChange) error
}

// ProfileStore persists profiles together with their files. Blob writes,
// row updates and blob cleanup are sequenced so a failed save leaves the
// previous state intact and no file outlives the profile that owns it.
type ProfileStore struct {
	accounts domain.Accounts
	profiles domain.ProfileRepository
	files    domain.FileStore
	hooks    []ProfileHook
}

// NewProfileStore creates a ProfileStore. hooks run in order after each save.
func NewProfileStore(accounts domain.Accounts, profiles domain.ProfileRepository, files domain.FileStore, hooks ...ProfileHook) *ProfileStore {
	return &ProfileStore{accounts: accounts, profiles: profiles, files: files, hooks: hooks}
}

// Get returns the profile of userID.
func (s *ProfileStore) Get(ctx context.Context, userID int64) (*domain.Profile, error) {
	return s.profiles.GetByUserID(ctx, userID)
}

// Save commits user and profile, storing the given uploads first. On
// failure newly written blobs are removed and profile keeps its old keys.
func (s *ProfileStore) Save(ctx context.Context, user *domain.User, profile *domain.Profile, in ProfileInput) error {
	prevAvatar, prevCV := profile.AvatarKey, profile.CVKey
	var written []string
	var change ProfileChange

	rollback := func() {
		for _, key := range written {
			if err := s.files.Delete(ctx, key); err != nil {
				slog.ErrorContext(ctx, "remove orphaned upload", "key", key, "error", err)
			}
		}
		profile.AvatarKey, profile.CVKey = prevAvatar, prevCV
	}

	switch {
	case in.Avatar != nil:
		key := avatarKey(in.Avatar.Filename)
		if err := s.files.Save(ctx, key, in.Avatar.Data); err != nil {
			return fmt.Errorf("save avatar: %w", err)
		}
		written = append(written, key)
		profile.AvatarKey = key
		change.AvatarChanged = true
	case in.ClearAvatar && prevAvatar != "":
		profile.AvatarKey = ""
		change.AvatarChanged = true
	}

	switch {
	case in.CV != nil:
		key := cvKey(user, in.CV.Filename)
		if err := s.files.Save(ctx, key, in.CV.Data); err != nil {
			rollback()
			return fmt.Errorf("save cv: %w", err)
		}
		written = append(written, key)
		profile.CVKey = key
		change.CVChanged = true
	case in.ClearCV && prevCV != "":
		profile.CVKey = ""
		change.CVChanged = true
	}

	if err := s.accounts.UpdateWithProfile(ctx, user, profile); err != nil {
		rollback()
		return err
	}

	if change.AvatarChanged && prevAvatar != "" {
		s.removeFile(ctx, prevAvatar)
	}
	if change.CVChanged && prevCV != "" {
		s.removeFile(ctx, prevCV)
	}

	for _, h := range s.hooks {
		if err := h.AfterSave(ctx, profile, change); err != nil {
			return fmt.Errorf("profile post-save: %w", err)
		}
	}
	return nil
}

// Delete removes the profile of userID and then its avatar and CV files.
func (s *ProfileStore) Delete(ctx context.Context, userID int64) error {
	profile, err := s.profiles.GetByUserID(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.profiles.DeleteByUserID(ctx, userID); err != nil {
		return err
	}
	return s.RemoveFiles(ctx, profile)
}

// RemoveFiles deletes the avatar and CV of profile from the file store.
func (s *ProfileStore) RemoveFiles(ctx context.Context, profile *domain.Profile) error {
	var errs []error
	for _, key := range []string{profile.AvatarKey, profile.CVKey} {
		if key == "" {
			continue
		}
		if err := s.files.Delete(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("delete file %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

func (s *ProfileStore) removeFile(ctx context.Context, key string) {
	if err := s.files.Delete(ctx, key); err != nil {
		slog.ErrorContext(ctx, "remove replaced file", "key", key, "error", err)
	}
}

// avatarKey names avatars randomly so uploads never collide.
func avatarKey(filename string) string {
	return "avatar_pics/" + strings.ReplaceAll(uuid.NewString(), "-", "") + strings.ToLower(path.Ext(filename))
}

// cvKey names a CV after its owner; the random suffix keeps the previous
// file readable until the new one is committed.
func cvKey(user *domain.User, filename string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	name := fmt.Sprintf("%s_%s_%s_CV_%s", safeName(user.FirstName), safeName(user.LastName), strconv.FormatInt(user.ID, 10), suffix)
	return "cv_files/" + name + strings.ToLower(path.Ext(filename))
}

func safeName(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\' || r == ' ':
			return '_'
		case r < 0x20:
			return -1
		}
		return r
	}, s)
}
