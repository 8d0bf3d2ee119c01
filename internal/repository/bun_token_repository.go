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

// BunTokenRepository implements TokenRepository using Bun ORM
type BunTokenRepository struct {
	db *bun.DB
}

// NewBunTokenRepository creates a new Bun-based token repository
func NewBunTokenRepository(db *bun.DB) *BunTokenRepository {
	return &BunTokenRepository{db: db}
}

// CreateAccessToken inserts a new access token record
func (r *BunTokenRepository) CreateAccessToken(ctx context.Context, token *models.AccessToken) error {
	_, err := r.db.NewInsert().
		Model(token).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create access token: %w", err)
	}
	return nil
}

// GetAccessTokenByHash retrieves an access token by its SHA256 hash
func (r *BunTokenRepository) GetAccessTokenByHash(ctx context.Context, hash string) (*models.AccessToken, error) {
	token := new(models.AccessToken)
	err := r.db.NewSelect().
		Model(token).
		Where("token_hash = ?", hash).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("access token: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("get access token by hash: %w", err)
	}
	return token, nil
}

// TouchAccessToken updates the last_used_at timestamp
func (r *BunTokenRepository) TouchAccessToken(ctx context.Context, id string) error {
	_, err := r.db.NewUpdate().
		Model((*models.AccessToken)(nil)).
		Set("last_used_at = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("touch access token: %w", err)
	}
	return nil
}

// RevokeAccessToken marks an access token as revoked
func (r *BunTokenRepository) RevokeAccessToken(ctx context.Context, id string) error {
	result, err := r.db.NewUpdate().
		Model((*models.AccessToken)(nil)).
		Set("revoked = ?", true).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return fmt.Errorf("access token %s: %w", id, ErrNotFound)
	}
	return nil
}

// CreateRefreshToken inserts a new refresh token record
func (r *BunTokenRepository) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	_, err := r.db.NewInsert().
		Model(token).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create refresh token: %w", err)
	}
	return nil
}

// GetRefreshTokenByHash retrieves a refresh token by its SHA256 hash
func (r *BunTokenRepository) GetRefreshTokenByHash(ctx context.Context, hash string) (*models.RefreshToken, error) {
	token := new(models.RefreshToken)
	err := r.db.NewSelect().
		Model(token).
		Where("token_hash = ?", hash).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("refresh token: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("get refresh token by hash: %w", err)
	}
	return token, nil
}

// RevokeRefreshToken marks a refresh token as revoked
func (r *BunTokenRepository) RevokeRefreshToken(ctx context.Context, id string) error {
	result, err := r.db.NewUpdate().
		Model((*models.RefreshToken)(nil)).
		Set("revoked = ?", true).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return fmt.Errorf("refresh token %s: %w", id, ErrNotFound)
	}
	return nil
}
