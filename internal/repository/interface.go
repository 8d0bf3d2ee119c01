package repository

import (
	"context"
	"errors"

	"github.com/dashborion/dashborion/internal/db/models"
)

// ErrNotFound is returned when a lookup matches no row. Callers treat it as
// a deny, not a server fault.
var ErrNotFound = errors.New("not found")

// UserRepository exposes persistence operations for user accounts.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	UpdateLastLogin(ctx context.Context, id string) error
	Disable(ctx context.Context, id string) error
	List(ctx context.Context) ([]models.User, error)
}

// GrantRepository exposes persistence operations for group permission grants.
type GrantRepository interface {
	Create(ctx context.Context, grant *models.Grant) error
	Delete(ctx context.Context, id string) error
	ListByGroups(ctx context.Context, groups []string) ([]models.Grant, error)
	List(ctx context.Context) ([]models.Grant, error)
}

// TokenRepository exposes persistence operations for access and refresh
// tokens. Lookups are by token hash; raw tokens are never stored.
type TokenRepository interface {
	CreateAccessToken(ctx context.Context, token *models.AccessToken) error
	GetAccessTokenByHash(ctx context.Context, hash string) (*models.AccessToken, error)
	TouchAccessToken(ctx context.Context, id string) error
	RevokeAccessToken(ctx context.Context, id string) error

	CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error
	GetRefreshTokenByHash(ctx context.Context, hash string) (*models.RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, id string) error
}

// SessionRepository exposes persistence operations for browser sessions.
type SessionRepository interface {
	Create(ctx context.Context, session *models.WebSession) error
	GetByHash(ctx context.Context, hash string) (*models.WebSession, error)
	Touch(ctx context.Context, id string) error
	Revoke(ctx context.Context, id string) error
	RevokeAllForUser(ctx context.Context, userID string) error
	DeleteExpired(ctx context.Context) (int64, error)
}
