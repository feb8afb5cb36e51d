package service_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"strings"
	"testing"

	"github.com/msomdec/accounts/internal/domain"
	"github.com/msomdec/accounts/internal/service"
	"github.com/msomdec/accounts/internal/session"
)

func TestLogin_Success(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerActive(t, "ana@example.com")

	anon, err := session.New(testTTL)
	if err != nil {
		t.Fatalf("session.New: %v", err)
	}
	env.sessions.Save(ctx, anon)

	sess, user, err := env.accounts.Login(ctx, "ana@example.com", "pw1!X2y", anon)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if user.Email != "ana@example.com" || sess.UserID != user.ID {
		t.Fatalf("unexpected login result: %+v %+v", sess, user)
	}
	if sess.ID == anon.ID {
		t.Fatal("login must rotate the session id")
	}
	if _, err := env.sessions.Get(ctx, anon.ID); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("expected previous session to be destroyed, got %v", err)
	}

	got, err := env.accounts.Authenticate(ctx, sess)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if got.ID != user.ID {
		t.Fatalf("expected user %d, got %d", user.ID, got.ID)
	}
}

func TestLogin_FailuresAreIndistinguishable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerActive(t, "ana@example.com")
	if _, err := env.registration.Register(ctx, validRegistration("pending@example.com")); err != nil {
		t.Fatalf("Register: %v", err)
	}

	cases := []struct {
		name, email, password string
	}{
		{"wrong password", "ana@example.com", "nope1234"},
		{"unknown email", "ghost@example.com", "pw1!X2y"},
		{"unverified account", "pending@example.com", "pw1!X2y"},
	}

	var messages []string
	for _, tc := range cases {
		_, _, err := env.accounts.Login(ctx, tc.email, tc.password, nil)
		if !errors.Is(err, domain.ErrUnauthorized) {
			t.Fatalf("%s: expected ErrUnauthorized, got %v", tc.name, err)
		}
		messages = append(messages, err.Error())
	}
	for _, m := range messages[1:] {
		if m != messages[0] {
			t.Fatalf("expected identical errors, got %q", messages)
		}
	}
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerActive(t, "ana@example.com")

	sess, _, err := env.accounts.Login(ctx, "ana@example.com", "pw1!X2y", nil)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if err := env.accounts.Logout(ctx, sess); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := env.sessions.Get(ctx, sess.ID); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("expected session to be gone, got %v", err)
	}
}

func TestChangePassword_InvalidatesOtherSessions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerActive(t, "ana@example.com")

	current, user, err := env.accounts.Login(ctx, "ana@example.com", "pw1!X2y", nil)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	other, _, err := env.accounts.Login(ctx, "ana@example.com", "pw1!X2y", nil)
	if err != nil {
		t.Fatalf("second Login: %v", err)
	}

	rotated, err := env.accounts.ChangePassword(ctx, current, user, "pw1!X2y", "n3w-Secret", "n3w-Secret")
	if err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}

	if _, err := env.accounts.Authenticate(ctx, rotated); err != nil {
		t.Fatalf("rotated session must stay valid: %v", err)
	}
	if _, err := env.accounts.Authenticate(ctx, other); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected other session to be invalidated, got %v", err)
	}
	if _, err := env.sessions.Get(ctx, current.ID); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("expected pre-change session to be deleted, got %v", err)
	}

	if _, _, err := env.accounts.Login(ctx, "ana@example.com", "pw1!X2y", nil); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("old password must no longer work, got %v", err)
	}
	if _, _, err := env.accounts.Login(ctx, "ana@example.com", "n3w-Secret", nil); err != nil {
		t.Fatalf("new password must work: %v", err)
	}
}

func TestChangePassword_WrongOldPassword(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerActive(t, "ana@example.com")

	sess, user, err := env.accounts.Login(ctx, "ana@example.com", "pw1!X2y", nil)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	_, err = env.accounts.ChangePassword(ctx, sess, user, "wrong", "n3w-Secret", "n3w-Secret")
	var verr *domain.ValidationError
	if !errors.As(err, &verr) || verr.Fields["old_password"] == "" {
		t.Fatalf("expected old_password error, got %v", err)
	}
	if _, err := env.accounts.Authenticate(ctx, sess); err != nil {
		t.Fatalf("session must survive a rejected change: %v", err)
	}
}

func TestEditProfile_SavesBothForms(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerActive(t, "ana@example.com")
	user, _ := env.db.Users().GetByEmail(ctx, "ana@example.com")

	profile, err := env.accounts.EditProfile(ctx, user,
		service.UserDetailsInput{FirstName: "Ada", LastName: "King", Email: "ada@Example.com"},
		service.ProfileInput{
			Bio:      "Writes programs for engines.",
			BioShort: "Analyst",
			Website:  "https://example.com",
			Avatar:   &service.Upload{Filename: "me.PNG", Data: testPNG(t, 800, 1000)},
			CV:       &service.Upload{Filename: "cv.pdf", Data: []byte("%PDF-1.4")},
		})
	if err != nil {
		t.Fatalf("EditProfile: %v", err)
	}

	stored, _ := env.db.Users().GetByID(ctx, user.ID)
	if stored.FirstName != "Ada" || stored.Email != "ada@example.com" {
		t.Fatalf("user not updated: %+v", stored)
	}
	if profile.BioShort != "Analyst" || profile.AvatarKey == "" || profile.CVKey == "" {
		t.Fatalf("profile not updated: %+v", profile)
	}

	data, err := env.db.FileStore().Get(ctx, profile.AvatarKey)
	if err != nil {
		t.Fatalf("Get avatar: %v", err)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("DecodeConfig: %v", err)
	}
	if format != "jpeg" || cfg.Height != 500 || cfg.Width != 400 {
		t.Fatalf("expected 400x500 jpeg avatar, got %dx%d %s", cfg.Width, cfg.Height, format)
	}
}

func TestEditProfile_InvalidFormsWriteNothing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerActive(t, "ana@example.com")
	user, _ := env.db.Users().GetByEmail(ctx, "ana@example.com")

	_, err := env.accounts.EditProfile(ctx, user,
		service.UserDetailsInput{FirstName: "Ada", LastName: "King", Email: "ana@example.com"},
		service.ProfileInput{
			BioShort: "Analyst",
			Website:  "not a url",
			Avatar:   &service.Upload{Filename: "me.png", Data: []byte("not an image")},
		})

	var editErrs *service.EditErrors
	if !errors.As(err, &editErrs) {
		t.Fatalf("expected EditErrors, got %v", err)
	}
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatal("EditErrors must match ErrInvalidInput")
	}
	if editErrs.Profile.Fields["website"] == "" || editErrs.Profile.Fields["avatar"] == "" {
		t.Fatalf("expected website and avatar errors, got %v", editErrs.Profile.Fields)
	}
	if !editErrs.User.Empty() {
		t.Fatalf("expected no user errors, got %v", editErrs.User.Fields)
	}

	stored, _ := env.db.Users().GetByID(ctx, user.ID)
	if stored.FirstName != "Ana" {
		t.Fatal("user must not be updated when the profile form fails")
	}
	profile, _ := env.db.Profiles().GetByUserID(ctx, user.ID)
	if profile.BioShort != "" {
		t.Fatal("profile must not be updated")
	}
}

func TestEditProfile_DuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerActive(t, "ana@example.com")
	env.registerActive(t, "bob@example.com")
	user, _ := env.db.Users().GetByEmail(ctx, "ana@example.com")

	_, err := env.accounts.EditProfile(ctx, user,
		service.UserDetailsInput{FirstName: "Ana", LastName: "Lovelace", Email: "bob@example.com"},
		service.ProfileInput{CV: &service.Upload{Filename: "cv.pdf", Data: []byte("%PDF")}})

	var editErrs *service.EditErrors
	if !errors.As(err, &editErrs) || editErrs.User.Fields["email"] == "" {
		t.Fatalf("expected email error, got %v", err)
	}
	if user.Email != "ana@example.com" {
		t.Fatal("caller's user must be left unchanged")
	}

	var blobs int
	env.db.SqlDB.QueryRow("SELECT COUNT(*) FROM file_blobs").Scan(&blobs)
	if blobs != 0 {
		t.Fatalf("expected uploaded CV to be removed after rollback, found %d blobs", blobs)
	}
}

func TestProfile_Missing(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.accounts.Profile(context.Background(), 999); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := img.PixOffset(x, y)
			img.Pix[i] = uint8(x % 256)
			img.Pix[i+1] = uint8(y % 256)
			img.Pix[i+2] = 128
			img.Pix[i+3] = 255
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestEditProfile_TruncatedAvatarWritesNothing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerActive(t, "ana@example.com")
	user, _ := env.db.Users().GetByEmail(ctx, "ana@example.com")

	_, err := env.accounts.EditProfile(ctx, user,
		service.UserDetailsInput{FirstName: "Changed", LastName: "Lovelace", Email: "ana@example.com"},
		service.ProfileInput{
			Bio:    "new bio",
			Avatar: &service.Upload{Filename: "me.png", Data: testPNG(t, 300, 300)[:60]},
		})

	var editErrs *service.EditErrors
	if !errors.As(err, &editErrs) || editErrs.Profile.Fields["avatar"] == "" {
		t.Fatalf("expected avatar field error, got %v", err)
	}

	stored, _ := env.db.Users().GetByID(ctx, user.ID)
	if stored.FirstName != "Ana" {
		t.Fatalf("user must not change, got first name %q", stored.FirstName)
	}
	profile, _ := env.db.Profiles().GetByUserID(ctx, user.ID)
	if profile.Bio != "" || profile.AvatarKey != "" {
		t.Fatalf("profile must not change, got %+v", profile)
	}
	var blobs int
	env.db.SqlDB.QueryRow("SELECT COUNT(*) FROM file_blobs").Scan(&blobs)
	if blobs != 0 {
		t.Fatalf("expected no stored files, found %d", blobs)
	}
}

func TestRegister_OverlongPasswordIsFieldError(t *testing.T) {
	env := newTestEnv(t)
	in := validRegistration("ana@example.com")
	long := "Ab1" + strings.Repeat("z", 79)
	in.Password1, in.Password2 = long, long

	_, err := env.registration.Register(context.Background(), in)
	var verr *domain.ValidationError
	if !errors.As(err, &verr) || verr.Fields["password2"] == "" {
		t.Fatalf("expected password2 field error, got %v", err)
	}
}

func TestDeleteAccount_RemovesProfileFiles(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerActive(t, "ana@example.com")
	user, _ := env.db.Users().GetByEmail(ctx, "ana@example.com")

	profile, err := env.accounts.EditProfile(ctx, user,
		service.UserDetailsInput{FirstName: "Ana", LastName: "Lovelace", Email: "ana@example.com"},
		service.ProfileInput{
			Avatar: &service.Upload{Filename: "me.png", Data: testPNG(t, 100, 100)},
			CV:     &service.Upload{Filename: "cv.pdf", Data: []byte("%PDF")},
		})
	if err != nil {
		t.Fatalf("EditProfile: %v", err)
	}

	if err := env.accounts.DeleteAccount(ctx, user.ID); err != nil {
		t.Fatalf("DeleteAccount: %v", err)
	}

	if _, err := env.db.Users().GetByID(ctx, user.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected user to be gone, got %v", err)
	}
	if _, err := env.db.Profiles().GetByUserID(ctx, user.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected profile to be gone, got %v", err)
	}
	for _, key := range []string{profile.AvatarKey, profile.CVKey} {
		if _, err := env.db.FileStore().Get(ctx, key); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected %s to be removed, got %v", key, err)
		}
	}
}
