package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dashborion/dashborion/internal/db/models"
	"github.com/uptrace/bun"
)

// BunSessionRepository implements SessionRepository using Bun ORM
type BunSessionRepository struct {
	db *bun.DB
}

// NewBunSessionRepository creates a new Bun-based session repository
func NewBunSessionRepository(db *bun.DB) *BunSessionRepository {
	return &BunSessionRepository{db: db}
}

// Create inserts a new web session
func (r *BunSessionRepository) Create(ctx context.Context, session *models.WebSession) error {
	_, err := r.db.NewInsert().
		Model(session).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// GetByHash retrieves a session by its cookie token hash
func (r *BunSessionRepository) GetByHash(ctx context.Context, hash string) (*models.WebSession, error) {
	session := new(models.WebSession)
	err := r.db.NewSelect().
		Model(session).
		Where("token_hash = ?", hash).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("session: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("get session by hash: %w", err)
	}
	return session, nil
}

// Touch updates the last_used_at timestamp
func (r *BunSessionRepository) Touch(ctx context.Context, id string) error {
	_, err := r.db.NewUpdate().
		Model((*models.WebSession)(nil)).
		Set("last_used_at = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

// Revoke marks a session as revoked
func (r *BunSessionRepository) Revoke(ctx context.Context, id string) error {
	result, err := r.db.NewUpdate().
		Model((*models.WebSession)(nil)).
		Set("revoked = ?", true).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return nil
}

// RevokeAllForUser revokes every active session belonging to a user. Used
// when an account is disabled.
func (r *BunSessionRepository) RevokeAllForUser(ctx context.Context, userID string) error {
	_, err := r.db.NewUpdate().
		Model((*models.WebSession)(nil)).
		Set("revoked = ?", true).
		Where("user_id = ?", userID).
		Where("revoked = ?", false).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("revoke sessions for user: %w", err)
	}
	return nil
}

// DeleteExpired removes sessions past their expiry and returns the count.
func (r *BunSessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.NewDelete().
		Model((*models.WebSession)(nil)).
		Where("expires_at < ?", time.Now()).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	return rows, nil
}
