package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Credentials hashes and verifies passwords, and derives the session
// fingerprint that ties a login to the password it was made with.
type Credentials struct {
	cost   int
	secret []byte
	// dummy is compared against when an account does not exist so that
	// unknown emails cost the same bcrypt work as wrong passwords.
	dummy []byte
}

// NewCredentials creates Credentials with the given bcrypt cost. secret keys
// the session fingerprints.
func NewCredentials(bcryptCost int, secret string) *Credentials {
	dummy, err := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcryptCost)
	if err != nil {
		// Only an out-of-range cost fails here; fall back to the default.
		dummy, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.DefaultCost)
	}
	return &Credentials{cost: bcryptCost, secret: []byte(secret), dummy: dummy}
}

// Hash returns the bcrypt hash of password.
func (c *Credentials) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), c.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Verify reports whether password matches hash.
func (c *Credentials) Verify(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// Fingerprint changes whenever the password hash changes, so sessions that
// stored the old value stop validating.
func (c *Credentials) Fingerprint(passwordHash string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(passwordHash))
	return hex.EncodeToString(mac.Sum(nil))
}

// burn spends the same bcrypt work as Verify for a password with no account.
func (c *Credentials) burn(password string) {
	_ = bcrypt.CompareHashAndPassword(c.dummy, []byte(password))
}
