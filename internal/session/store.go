// Package session keeps server-side sessions referenced by an opaque cookie.
package session

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Store.Get for unknown or expired sessions.
var ErrNotFound = errors.New("session: not found")

// Session is the server-side state bound to one browser.
// UserID is zero for anonymous sessions.
type Session struct {
	ID             string    `json:"id"`
	UserID         int64     `json:"user_id,omitempty"`
	AuthHash       string    `json:"auth_hash,omitempty"`
	AccessUnlocked bool      `json:"access_unlocked,omitempty"`
	ExpiresAt      time.Time `json:"expires_at"`
}

// Authenticated reports whether the session is bound to a user.
func (s *Session) Authenticated() bool {
	return s != nil && s.UserID != 0
}

// Store defines how sessions are stored and retrieved.
// Save creates or replaces the session and must honour ExpiresAt as a TTL.
type Store interface {
	Save(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
}

// New returns an anonymous session with a fresh id expiring after ttl.
func New(ttl time.Duration) (*Session, error) {
	id, err := GenerateID()
	if err != nil {
		return nil, err
	}
	return &Session{ID: id, ExpiresAt: time.Now().Add(ttl)}, nil
}
