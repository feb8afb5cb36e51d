package handler

import (
	"database/sql"
	"net/http"

	"github.com/msomdec/accounts/internal/domain"
	"github.com/msomdec/accounts/internal/service"
	"github.com/msomdec/accounts/internal/session"
)

// Services bundles what the HTTP layer needs.
type Services struct {
	Registration *service.RegistrationService
	Accounts     *service.AccountService
	Verifier     *service.Verifier
	Gate         *service.AccessGate
	Sessions     session.Store
	Files        domain.FileStore
	DB           *sql.DB

	// LoginLimiter and GateLimiter throttle credential and access-key
	// submissions per client IP.
	LoginLimiter *service.TokenBucket
	GateLimiter  *service.TokenBucket

	CookieSecure bool
}

// RegisterRoutes sets up all HTTP routes on the given mux.
func RegisterRoutes(mux *http.ServeMux, svc Services) {
	health := NewHealthHandler(svc.DB)
	home := NewHomeHandler()
	reg := NewRegistrationHandler(svc.Registration, svc.CookieSecure)
	gate := NewGateHandler(svc.Gate, svc.CookieSecure)
	verify := NewVerificationHandler(svc.Verifier)
	auth := NewAuthHandler(svc.Accounts, svc.CookieSecure)
	profile := NewProfileHandler(svc.Accounts, svc.CookieSecure)
	media := NewMediaHandler(svc.Accounts, svc.Files)

	withSession := func(h http.HandlerFunc) http.Handler {
		return LoadSession(svc.Sessions, svc.Accounts, svc.CookieSecure, h)
	}
	signedIn := func(h http.HandlerFunc) http.Handler {
		return withSession(func(w http.ResponseWriter, r *http.Request) {
			RequireUser(h).ServeHTTP(w, r)
		})
	}
	anonymous := func(h http.HandlerFunc) http.Handler {
		return withSession(func(w http.ResponseWriter, r *http.Request) {
			RequireAnonymous("/login", h).ServeHTTP(w, r)
		})
	}
	loggedOut := func(h http.HandlerFunc) http.Handler {
		return withSession(func(w http.ResponseWriter, r *http.Request) {
			RequireAnonymous("/", h).ServeHTTP(w, r)
		})
	}
	unlocked := func(h http.HandlerFunc) http.Handler {
		return anonymous(func(w http.ResponseWriter, r *http.Request) {
			RequireUnlocked(svc.Gate, h).ServeHTTP(w, r)
		})
	}

	mux.HandleFunc("GET /healthz", health.HandleHealthz)
	mux.Handle("GET /{$}", withSession(home.HandleHome))

	mux.Handle("GET /register", anonymous(reg.HandleRegisterForm))
	mux.Handle("POST /register", anonymous(reg.HandleRegister))
	mux.Handle("GET /register/main-user", unlocked(reg.HandleMainForm))
	mux.Handle("POST /register/main-user", unlocked(reg.HandleRegisterMain))

	mux.Handle("GET /verify", withSession(gate.HandleKeyForm))
	mux.Handle("POST /verify", RateLimit(svc.GateLimiter, withSession(gate.HandleSubmitKey)))

	mux.HandleFunc("GET /verify-email", verify.HandleConfirm)
	mux.HandleFunc("POST /verify-email/resend", verify.HandleResend)

	mux.Handle("GET /login", loggedOut(auth.HandleLoginForm))
	mux.Handle("POST /login", RateLimit(svc.LoginLimiter, loggedOut(auth.HandleLogin)))
	mux.Handle("POST /logout", signedIn(auth.HandleLogout))

	mux.Handle("GET /profile", signedIn(profile.HandleView))
	mux.Handle("GET /profile/edit", signedIn(profile.HandleEditForm))
	mux.Handle("POST /profile/edit", signedIn(profile.HandleEdit))
	mux.Handle("GET /profile/edit/password", signedIn(profile.HandlePasswordForm))
	mux.Handle("POST /profile/edit/password", signedIn(profile.HandleChangePassword))

	mux.Handle("GET /media/{key...}", signedIn(media.HandleFile))
}
