package domain

import "context"

// Database defines lifecycle operations for the underlying database.
// Each implementation owns its own migration files and strategy.
type Database interface {
	Migrate(ctx context.Context) error
	Close() error
}

// Accounts groups writes that must commit together: a user and its profile
// are created as one unit, and profile edits touch both rows at once.
type Accounts interface {
	// CreateWithProfile inserts user and an empty profile for it atomically.
	CreateWithProfile(ctx context.Context, user *User, profile *Profile) error
	// UpdateWithProfile saves both rows in one transaction.
	UpdateWithProfile(ctx context.Context, user *User, profile *Profile) error
}
