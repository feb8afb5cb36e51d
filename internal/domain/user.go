package domain

import (
	"context"
	"time"
)

// User represents a registered account. Email doubles as the login key.
type User struct {
	ID              int64
	Email           string
	Username        string
	FirstName       string
	LastName        string
	PasswordHash    string
	IsMain          bool // set at creation by the key-gated registration path only
	IsActive        bool // false until the email address is verified
	EmailVerifiedAt *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// DisplayName returns "First Last" when both names are set, otherwise the email.
func (u *User) DisplayName() string {
	if u.FirstName != "" && u.LastName != "" {
		return u.FirstName + " " + u.LastName
	}
	return u.Email
}

// UserRepository defines persistence operations for users.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	// UpdateDetails writes the editable identity fields (names, email).
	UpdateDetails(ctx context.Context, user *User) error
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
	MarkVerified(ctx context.Context, id int64, at time.Time) error
	// Delete removes the user and, by cascade, its profile row. Callers
	// remove the profile's files.
	Delete(ctx context.Context, id int64) error
}
