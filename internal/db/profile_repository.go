package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/placelet/convo/internal/backend"
)

// ProfileRepository handles user profile persistence. It satisfies
// backend.ProfileDirectory.
type ProfileRepository struct {
	db *DB
}

// NewProfileRepository creates a new ProfileRepository.
func NewProfileRepository(db *DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// Upsert writes or refreshes a directory record.
func (r *ProfileRepository) Upsert(ctx context.Context, rec backend.ProfileRecord) error {
	if rec.UserID == "" {
		return fmt.Errorf("user id is required")
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO profiles (user_id, first_name, last_name, avatar_url, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			avatar_url = excluded.avatar_url,
			updated_at = excluded.updated_at
	`,
		rec.UserID,
		rec.FirstName,
		rec.LastName,
		rec.AvatarURL,
		time.Now().UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}
	return nil
}

// Lookup returns the record for a user, or backend.ErrProfileNotFound.
func (r *ProfileRepository) Lookup(ctx context.Context, userID string) (backend.ProfileRecord, error) {
	var rec backend.ProfileRecord

	err := r.db.QueryRowContext(ctx, `
		SELECT user_id, first_name, last_name, avatar_url
		FROM profiles
		WHERE user_id = ?
	`, userID).Scan(&rec.UserID, &rec.FirstName, &rec.LastName, &rec.AvatarURL)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return backend.ProfileRecord{}, backend.ErrProfileNotFound
		}
		return backend.ProfileRecord{}, fmt.Errorf("failed to scan profile: %w", err)
	}
	return rec, nil
}
