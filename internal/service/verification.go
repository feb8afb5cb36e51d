package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/msomdec/accounts/internal/domain"
	"github.com/msomdec/accounts/internal/mail"
)

const verificationPurpose = "email-verification"

// VerifierConfig holds the settings for verification links.
type VerifierConfig struct {
	Secret  string
	BaseURL string
	TTL     time.Duration
	Timeout time.Duration // upper bound on a single mail dispatch
}

// Verifier issues and confirms email-verification links.
type Verifier struct {
	users  domain.UserRepository
	sender mail.Sender
	cfg    VerifierConfig
	now    func() time.Time
}

// NewVerifier creates a new Verifier.
func NewVerifier(users domain.UserRepository, sender mail.Sender, cfg VerifierConfig) *Verifier {
	return &Verifier{users: users, sender: sender, cfg: cfg, now: time.Now}
}

// Send mails a verification link to user. The dispatch is bounded by the
// configured timeout.
func (v *Verifier) Send(ctx context.Context, user *domain.User) error {
	token, err := v.token(user)
	if err != nil {
		return fmt.Errorf("sign verification token: %w", err)
	}

	link := strings.TrimRight(v.cfg.BaseURL, "/") + "/verify-email?token=" + url.QueryEscape(token)
	msg := mail.Message{
		To:       mail.Address{Email: user.Email, Name: user.DisplayName()},
		Subject:  "Verify your email address",
		Text:     fmt.Sprintf("Hello %s,\n\nConfirm your email address by opening this link:\n\n%s\n\nThe link expires in %s.\n", user.DisplayName(), link, v.cfg.TTL),
		HTML:     fmt.Sprintf(`<p>Hello %s,</p><p><a href="%s">Confirm your email address</a></p><p>The link expires in %s.</p>`, user.DisplayName(), link, v.cfg.TTL),
		Category: "email_verification",
	}

	if v.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.cfg.Timeout)
		defer cancel()
	}
	if err := v.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("send verification email: %w", err)
	}
	slog.InfoContext(ctx, "verification email sent", "user_id", user.ID)
	return nil
}

// Confirm validates token and activates the account it was issued for.
// Tokens issued for an address the user no longer has are rejected.
func (v *Verifier) Confirm(ctx context.Context, token string) (*domain.User, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(v.cfg.Secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return nil, domain.ErrInvalidToken
	}

	if purpose, _ := claims["purpose"].(string); purpose != verificationPurpose {
		return nil, domain.ErrInvalidToken
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return nil, domain.ErrInvalidToken
	}
	userID, err := strconv.ParseInt(sub, 10, 64)
	if err != nil {
		return nil, domain.ErrInvalidToken
	}

	user, err := v.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrInvalidToken
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	if email, _ := claims["email"].(string); email != user.Email {
		return nil, domain.ErrInvalidToken
	}

	if err := v.users.MarkVerified(ctx, user.ID, v.now()); err != nil {
		return nil, fmt.Errorf("mark verified: %w", err)
	}
	user.IsActive = true
	return user, nil
}

// Resend mails a new link to a pending account. Unknown or already active
// addresses are ignored so callers cannot probe for accounts.
func (v *Verifier) Resend(ctx context.Context, email string) error {
	user, err := v.users.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("get user: %w", err)
	}
	if user.IsActive {
		return nil
	}
	return v.Send(ctx, user)
}

func (v *Verifier) token(user *domain.User) (string, error) {
	now := v.now()
	claims := jwt.MapClaims{
		"sub":     strconv.FormatInt(user.ID, 10),
		"email":   user.Email,
		"purpose": verificationPurpose,
		"iat":     now.Unix(),
		"exp":     now.Add(v.cfg.TTL).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(v.cfg.Secret))
}
