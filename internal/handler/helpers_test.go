package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/msomdec/accounts/internal/handler"
	"github.com/msomdec/accounts/internal/mail"
	"github.com/msomdec/accounts/internal/repository/sqlite"
	"github.com/msomdec/accounts/internal/service"
	"github.com/msomdec/accounts/internal/session"
)

const (
	testSecret    = "test-secret-for-handler-tests-0123456789"
	testAccessKey = "let-me-in-please"
)

type capturingSender struct {
	mu   sync.Mutex
	msgs []mail.Message
}

func (s *capturingSender) Send(_ context.Context, msg mail.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
	return nil
}

func (s *capturingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.msgs)
}

// lastLink returns the path and query of the newest verification link.
func (s *capturingSender) lastLink(t *testing.T) string {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.msgs) == 0 {
		t.Fatal("no email sent")
	}
	text := s.msgs[len(s.msgs)-1].Text
	i := strings.Index(text, "/verify-email?token=")
	if i < 0 {
		t.Fatalf("no verification link in %q", text)
	}
	link, _, _ := strings.Cut(text[i:], "\n")
	return link
}

type testServer struct {
	*httptest.Server
	db     *sqlite.DB
	sender *capturingSender
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("New DB: %v", err)
	}
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	sender := &capturingSender{}
	sessions := session.NewMemoryStore()
	files := db.FileStore()
	creds := service.NewCredentials(4, testSecret)
	gate := service.NewAccessGate(testAccessKey, sessions, time.Hour)
	verifier := service.NewVerifier(db.Users(), sender, service.VerifierConfig{
		Secret: testSecret, BaseURL: "http://example.test", TTL: time.Hour, Timeout: time.Second,
	})
	profiles := service.NewProfileStore(db, db.Profiles(), files, service.NewAvatarProcessor(files))

	loginLimiter := service.NewTokenBucket(1, 100)
	gateLimiter := service.NewTokenBucket(1, 100)
	t.Cleanup(loginLimiter.Close)
	t.Cleanup(gateLimiter.Close)

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux, handler.Services{
		Registration: service.NewRegistrationService(db, creds, verifier, gate),
		Accounts:     service.NewAccountService(db.Users(), profiles, sessions, creds, time.Hour),
		Verifier:     verifier,
		Gate:         gate,
		Sessions:     sessions,
		Files:        files,
		DB:           db.SqlDB,
		LoginLimiter: loginLimiter,
		GateLimiter:  gateLimiter,
	})

	srv := httptest.NewServer(handler.SecurityHeaders(mux))
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, db: db, sender: sender}
}

// newClient returns a client with its own cookie jar that does not follow
// redirects.
func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("create cookie jar: %v", err)
	}
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func postForm(t *testing.T, c *http.Client, u string, form url.Values) *http.Response {
	t.Helper()
	resp, err := c.PostForm(u, form)
	if err != nil {
		t.Fatalf("POST %s: %v", u, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func get(t *testing.T, c *http.Client, u string) *http.Response {
	t.Helper()
	resp, err := c.Get(u)
	if err != nil {
		t.Fatalf("GET %s: %v", u, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func expectRedirect(t *testing.T, resp *http.Response, to string) {
	t.Helper()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("%s %s: expected 303, got %d", resp.Request.Method, resp.Request.URL.Path, resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != to {
		t.Fatalf("%s %s: expected redirect to %s, got %s", resp.Request.Method, resp.Request.URL.Path, to, loc)
	}
}

func decode(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		t.Fatalf("decode body: %v", err)
	}
}

func registrationForm(email string) url.Values {
	return url.Values{
		"email":      {email},
		"first_name": {"Ana"},
		"last_name":  {"Lovelace"},
		"password1":  {"pw1!X2y"},
		"password2":  {"pw1!X2y"},
	}
}

// signUp registers email, follows the verification link and logs in.
func (s *testServer) signUp(t *testing.T, c *http.Client, email string) {
	t.Helper()
	expectRedirect(t, postForm(t, c, s.URL+"/register", registrationForm(email)), "/login")
	expectRedirect(t, get(t, c, s.URL+s.sender.lastLink(t)), "/login")
	expectRedirect(t, postForm(t, c, s.URL+"/login", url.Values{
		"email": {email}, "password": {"pw1!X2y"},
	}), "/")
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}
