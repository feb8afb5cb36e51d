package service_test

import (
	"context"
	"errors"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/msomdec/accounts/internal/mail"
	"github.com/msomdec/accounts/internal/repository/sqlite"
	"github.com/msomdec/accounts/internal/service"
	"github.com/msomdec/accounts/internal/session"
)

const (
	testSecret    = "test-secret-key-for-unit-tests-0123456789"
	testAccessKey = "correct-horse-battery"
	testTTL       = time.Hour
)

// recordingSender keeps every message it is asked to deliver.
type recordingSender struct {
	mu   sync.Mutex
	msgs []mail.Message
	err  error
}

func (s *recordingSender) Send(_ context.Context, msg mail.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.msgs = append(s.msgs, msg)
	return nil
}

func (s *recordingSender) sent() []mail.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]mail.Message(nil), s.msgs...)
}

// lastToken extracts the verification token from the newest message.
func (s *recordingSender) lastToken(t *testing.T) string {
	t.Helper()
	msgs := s.sent()
	if len(msgs) == 0 {
		t.Fatal("no email sent")
	}
	_, rest, ok := strings.Cut(msgs[len(msgs)-1].Text, "token=")
	if !ok {
		t.Fatal("verification link missing from email")
	}
	raw, _, _ := strings.Cut(rest, "\n")
	token, err := url.QueryUnescape(raw)
	if err != nil {
		t.Fatalf("unescape token: %v", err)
	}
	return token
}

type testEnv struct {
	db           *sqlite.DB
	sessions     *session.MemoryStore
	sender       *recordingSender
	creds        *service.Credentials
	verifier     *service.Verifier
	gate         *service.AccessGate
	profiles     *service.ProfileStore
	registration *service.RegistrationService
	accounts     *service.AccountService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := sqlite.New(dbPath)
	if err != nil {
		t.Fatalf("New DB: %v", err)
	}
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	env := &testEnv{
		db:       db,
		sessions: session.NewMemoryStore(),
		sender:   &recordingSender{},
		// Use cost 4 for fast tests.
		creds: service.NewCredentials(4, testSecret),
	}
	env.verifier = service.NewVerifier(db.Users(), env.sender, service.VerifierConfig{
		Secret:  testSecret,
		BaseURL: "http://localhost:8080",
		TTL:     testTTL,
		Timeout: time.Second,
	})
	env.gate = service.NewAccessGate(testAccessKey, env.sessions, testTTL)
	files := db.FileStore()
	env.profiles = service.NewProfileStore(db, db.Profiles(), files, service.NewAvatarProcessor(files))
	env.registration = service.NewRegistrationService(db, env.creds, env.verifier, env.gate)
	env.accounts = service.NewAccountService(db.Users(), env.profiles, env.sessions, env.creds, testTTL)
	return env
}

func validRegistration(email string) service.RegistrationInput {
	return service.RegistrationInput{
		Email:     email,
		FirstName: "Ana",
		LastName:  "Lovelace",
		Password1: "pw1!X2y",
		Password2: "pw1!X2y",
	}
}

// registerActive registers email and confirms its verification link.
func (e *testEnv) registerActive(t *testing.T, email string) {
	t.Helper()
	ctx := context.Background()
	if _, err := e.registration.Register(ctx, validRegistration(email)); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := e.verifier.Confirm(ctx, e.sender.lastToken(t)); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
}

var errMailDown = errors.New("mail server unavailable")
