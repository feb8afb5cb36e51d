package service

import (
	"context"
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/msomdec/accounts/internal/session"
)

// AccessGate guards main-user registration behind a shared secret key.
// A correct key unlocks only the session it was submitted from.
type AccessGate struct {
	key      []byte
	sessions session.Store
	ttl      time.Duration
}

// NewAccessGate creates a gate for key. An empty key keeps the gate closed.
func NewAccessGate(key string, sessions session.Store, sessionTTL time.Duration) *AccessGate {
	return &AccessGate{key: []byte(key), sessions: sessions, ttl: sessionTTL}
}

// Check compares submitted against the configured key. On a match the
// session (created if sess is nil) is marked unlocked and saved. The
// returned session is nil when no session exists and the key is wrong.
func (g *AccessGate) Check(ctx context.Context, sess *session.Session, submitted string) (*session.Session, bool, error) {
	if !g.matches(submitted) {
		return sess, false, nil
	}

	if sess == nil {
		var err error
		if sess, err = session.New(g.ttl); err != nil {
			return nil, false, err
		}
	}

	sess.AccessUnlocked = true
	if err := g.sessions.Save(ctx, sess); err != nil {
		return nil, false, fmt.Errorf("save session: %w", err)
	}
	return sess, true, nil
}

// Unlocked reports whether sess passed the gate.
func (g *AccessGate) Unlocked(sess *session.Session) bool {
	return sess != nil && sess.AccessUnlocked && len(g.key) > 0
}

func (g *AccessGate) matches(submitted string) bool {
	if len(g.key) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare(g.key, []byte(submitted)) == 1
}
