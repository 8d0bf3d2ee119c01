package repository

import (
	"context"
	"fmt"

	"github.com/dashborion/dashborion/internal/db/models"
	"github.com/uptrace/bun"
)

// BunGrantRepository implements GrantRepository using Bun ORM
type BunGrantRepository struct {
	db *bun.DB
}

// NewBunGrantRepository creates a new Bun-based grant repository
func NewBunGrantRepository(db *bun.DB) *BunGrantRepository {
	return &BunGrantRepository{db: db}
}

// Create inserts a new grant
func (r *BunGrantRepository) Create(ctx context.Context, grant *models.Grant) error {
	_, err := r.db.NewInsert().
		Model(grant).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create grant: %w", err)
	}
	return nil
}

// Delete removes a grant by ID
func (r *BunGrantRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.NewDelete().
		Model((*models.Grant)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete grant: %w", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return fmt.Errorf("grant %s: %w", id, ErrNotFound)
	}
	return nil
}

// ListByGroups returns the grants attached to any of the given groups, in
// creation order so permission evaluation is deterministic. An empty group
// list yields no grants.
func (r *BunGrantRepository) ListByGroups(ctx context.Context, groups []string) ([]models.Grant, error) {
	if len(groups) == 0 {
		return nil, nil
	}
	var grants []models.Grant
	err := r.db.NewSelect().
		Model(&grants).
		Where("group_name IN (?)", bun.In(groups)).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list grants by groups: %w", err)
	}
	return grants, nil
}

// List retrieves all grants
func (r *BunGrantRepository) List(ctx context.Context) ([]models.Grant, error) {
	var grants []models.Grant
	err := r.db.NewSelect().
		Model(&grants).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list grants: %w", err)
	}
	return grants, nil
}
