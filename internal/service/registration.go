package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/msomdec/accounts/internal/domain"
	"github.com/msomdec/accounts/internal/session"
)

// RegistrationService creates accounts and starts their email verification.
type RegistrationService struct {
	accounts domain.Accounts
	creds    *Credentials
	verifier *Verifier
	gate     *AccessGate
}

// NewRegistrationService creates a new RegistrationService.
func NewRegistrationService(accounts domain.Accounts, creds *Credentials, verifier *Verifier, gate *AccessGate) *RegistrationService {
	return &RegistrationService{accounts: accounts, creds: creds, verifier: verifier, gate: gate}
}

// Register creates an ordinary account with an empty profile.
func (s *RegistrationService) Register(ctx context.Context, in RegistrationInput) (*domain.User, error) {
	return s.register(ctx, in, false)
}

// RegisterMain creates a main account. sess must have been unlocked by the
// access gate; otherwise ErrForbidden is returned and nothing is written.
func (s *RegistrationService) RegisterMain(ctx context.Context, sess *session.Session, in RegistrationInput) (*domain.User, error) {
	if !s.gate.Unlocked(sess) {
		return nil, domain.ErrForbidden
	}
	return s.register(ctx, in, true)
}

// register validates in, stores the user with its profile and mails the
// verification link. When only the mail fails, the created user is returned
// together with the error.
func (s *RegistrationService) register(ctx context.Context, in RegistrationInput, main bool) (*domain.User, error) {
	if verr := ValidateRegistration(in); verr != nil {
		return nil, verr
	}

	hash, err := s.creds.Hash(in.Password1)
	if err != nil {
		return nil, err
	}

	email := NormalizeEmail(in.Email)
	user := &domain.User{
		Email:        email,
		Username:     email,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		PasswordHash: hash,
		IsMain:       main,
	}

	if err := s.accounts.CreateWithProfile(ctx, user, &domain.Profile{}); err != nil {
		if errors.Is(err, domain.ErrDuplicateEmail) {
			verr := domain.NewValidationError()
			verr.Add("email", "A user with that email already exists.")
			return nil, verr
		}
		return nil, fmt.Errorf("create account: %w", err)
	}

	if err := s.verifier.Send(ctx, user); err != nil {
		return user, err
	}
	return user, nil
}
