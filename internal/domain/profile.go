package domain

import (
	"context"
	"time"
)

const MaxBioShortLength = 100

// Profile holds the public details of a user. Every user has exactly one.
type Profile struct {
	ID        int64
	UserID    int64
	Bio       string
	BioShort  string
	Website   string
	LinkedIn  string
	AvatarKey string // FileStore key, empty when unset
	CVKey     string // FileStore key, empty when unset
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ProfileRepository defines persistence operations for profiles.
type ProfileRepository interface {
	Create(ctx context.Context, profile *Profile) error
	GetByUserID(ctx context.Context, userID int64) (*Profile, error)
	Update(ctx context.Context, profile *Profile) error
	DeleteByUserID(ctx context.Context, userID int64) error
}
