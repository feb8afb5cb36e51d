package handler

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"

	"github.com/msomdec/accounts/internal/domain"
	"github.com/msomdec/accounts/internal/service"
	"github.com/msomdec/accounts/internal/session"
)

type contextKey string

const (
	userContextKey    contextKey = "user"
	sessionContextKey contextKey = "session"
)

// UserFromContext extracts the authenticated user from the request context.
// Returns nil if no user is authenticated.
func UserFromContext(ctx context.Context) *domain.User {
	user, _ := ctx.Value(userContextKey).(*domain.User)
	return user
}

// SessionFromContext returns the session loaded for the request, or nil.
func SessionFromContext(ctx context.Context) *session.Session {
	sess, _ := ctx.Value(sessionContextKey).(*session.Session)
	return sess
}

// LoadSession resolves the session cookie and, for signed-in sessions, the
// user. Unknown, expired or invalidated sessions are treated as anonymous
// and their cookie is cleared.
func LoadSession(store session.Store, accounts *service.AccountService, cookieSecure bool, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := session.IDFromRequest(r)
		if id == "" {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		sess, err := store.Get(ctx, id)
		if err != nil {
			if !errors.Is(err, session.ErrNotFound) {
				slog.ErrorContext(ctx, "load session", "error", err)
			}
			session.ClearCookie(w, cookieSecure)
			next.ServeHTTP(w, r)
			return
		}

		if sess.Authenticated() {
			user, err := accounts.Authenticate(ctx, sess)
			if err != nil {
				if !errors.Is(err, domain.ErrUnauthorized) {
					internalError(w, r, "authenticate session", err)
					return
				}
				session.ClearCookie(w, cookieSecure)
				next.ServeHTTP(w, r)
				return
			}
			ctx = context.WithValue(ctx, userContextKey, user)
		}

		ctx = context.WithValue(ctx, sessionContextKey, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireUser redirects requests without a signed-in user to /login.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if UserFromContext(r.Context()) == nil {
			redirect(w, r, "/login")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAnonymous redirects signed-in users to the given path.
func RequireAnonymous(to string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if UserFromContext(r.Context()) != nil {
			redirect(w, r, to)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireUnlocked redirects sessions that have not passed the access gate
// to /verify.
func RequireUnlocked(gate *service.AccessGate, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !gate.Unlocked(SessionFromContext(r.Context())) {
			redirect(w, r, "/verify")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RateLimit answers 429 once the client's bucket is empty.
func RateLimit(limiter *service.TokenBucket, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow(clientIP(r)) {
			writeError(w, http.StatusTooManyRequests, "Too many attempts. Please wait and try again.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SecurityHeaders sets conservative browser security headers on every response.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "same-origin")
		h.Set("Content-Security-Policy", "default-src 'self'")
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
