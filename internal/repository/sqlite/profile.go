package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/msomdec/accounts/internal/domain"
)

// ProfileRepository implements domain.ProfileRepository using SQLite.
type ProfileRepository struct {
	db *sql.DB
}

// NewProfileRepository creates a new SQLite-backed ProfileRepository.
func NewProfileRepository(db *DB) *ProfileRepository {
	return &ProfileRepository{db: db.SqlDB}
}

func (r *ProfileRepository) Create(ctx context.Context, profile *domain.Profile) error {
	return insertProfile(ctx, r.db, profile)
}

func (r *ProfileRepository) GetByUserID(ctx context.Context, userID int64) (*domain.Profile, error) {
	p := &domain.Profile{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, bio, bio_short, website, linkedin, avatar_key, cv_key, created_at, updated_at
		 FROM profiles WHERE user_id = ?`, userID,
	).Scan(&p.ID, &p.UserID, &p.Bio, &p.BioShort, &p.Website, &p.LinkedIn,
		&p.AvatarKey, &p.CVKey, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("query profile by user: %w", err)
	}
	return p, nil
}

func (r *ProfileRepository) Update(ctx context.Context, profile *domain.Profile) error {
	return updateProfile(ctx, r.db, profile)
}

func (r *ProfileRepository) DeleteByUserID(ctx context.Context, userID int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM profiles WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	return requireRow(result)
}

func insertProfile(ctx context.Context, q querier, p *domain.Profile) error {
	now := time.Now().UTC()
	result, err := q.ExecContext(ctx,
		`INSERT INTO profiles (user_id, bio, bio_short, website, linkedin, avatar_key, cv_key, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.UserID, p.Bio, p.BioShort, p.Website, p.LinkedIn, p.AvatarKey, p.CVKey, now, now,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: profile already exists for user %d", domain.ErrInvalidInput, p.UserID)
		}
		return fmt.Errorf("insert profile: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}

	p.ID = id
	p.CreatedAt = now
	p.UpdatedAt = now
	return nil
}

func updateProfile(ctx context.Context, q querier, p *domain.Profile) error {
	now := time.Now().UTC()
	result, err := q.ExecContext(ctx,
		`UPDATE profiles
		 SET bio = ?, bio_short = ?, website = ?, linkedin = ?, avatar_key = ?, cv_key = ?, updated_at = ?
		 WHERE user_id = ?`,
		p.Bio, p.BioShort, p.Website, p.LinkedIn, p.AvatarKey, p.CVKey, now, p.UserID,
	)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	if err := requireRow(result); err != nil {
		return err
	}
	p.UpdatedAt = now
	return nil
}
