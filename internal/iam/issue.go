package iam

import (
	"context"
	"fmt"
	"time"

	"github.com/dashborion/dashborion/internal/db/bunx"
	"github.com/dashborion/dashborion/internal/db/models"
	"github.com/dashborion/dashborion/internal/envelope"
	"github.com/dashborion/dashborion/internal/repository"
)

// Issuer mints access tokens, refresh tokens, and web sessions. Raw token
// values are returned exactly once; only hashes and sealed metadata persist.
type Issuer struct {
	tokens   repository.TokenRepository
	sessions repository.SessionRepository
	envelope *envelope.Service

	accessTTL  time.Duration
	refreshTTL time.Duration
	sessionTTL time.Duration
}

// NewIssuer builds a token issuer with the configured lifetimes.
func NewIssuer(
	tokens repository.TokenRepository,
	sessions repository.SessionRepository,
	envelopeSvc *envelope.Service,
	accessTTL, refreshTTL, sessionTTL time.Duration,
) *Issuer {
	return &Issuer{
		tokens:     tokens,
		sessions:   sessions,
		envelope:   envelopeSvc,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		sessionTTL: sessionTTL,
	}
}

// TokenPair is the one-time return of a mint operation.
type TokenPair struct {
	AccessToken        string
	AccessFingerprint  string
	AccessExpiresAt    time.Time
	RefreshToken       string
	RefreshFingerprint string
	RefreshExpiresAt   time.Time
}

// IssueTokens mints an access/refresh token pair for a user. The metadata is
// sealed separately per token so the two ciphertexts can never be swapped.
func (i *Issuer) IssueTokens(ctx context.Context, user *models.User) (*TokenPair, error) {
	now := time.Now()

	accessRaw, err := NewToken()
	if err != nil {
		return nil, err
	}
	refreshRaw, err := NewToken()
	if err != nil {
		return nil, err
	}

	meta := TokenMetadata{
		Email:       user.Email,
		UserID:      user.ID,
		Groups:      user.Groups,
		Fingerprint: Fingerprint(accessRaw),
		IssuedAt:    now.Unix(),
	}

	accessHash := HashToken(accessRaw)
	accessCiphertext, err := i.envelope.Encrypt(ctx, meta,
		envelope.NewContext(envelope.PurposeAccessToken, accessHash))
	if err != nil {
		return nil, fmt.Errorf("seal access token metadata: %w", err)
	}

	access := &models.AccessToken{
		ID:         bunx.NewUUIDv7(),
		TokenHash:  accessHash,
		Ciphertext: accessCiphertext,
		ExpiresAt:  now.Add(i.accessTTL),
		CreatedAt:  now,
		LastUsedAt: now,
	}
	if err := i.tokens.CreateAccessToken(ctx, access); err != nil {
		return nil, err
	}

	refreshHash := HashToken(refreshRaw)
	refreshMeta := meta
	refreshMeta.Fingerprint = Fingerprint(refreshRaw)
	refreshCiphertext, err := i.envelope.Encrypt(ctx, refreshMeta,
		envelope.NewContext(envelope.PurposeRefreshToken, refreshHash))
	if err != nil {
		return nil, fmt.Errorf("seal refresh token metadata: %w", err)
	}

	refresh := &models.RefreshToken{
		ID:            bunx.NewUUIDv7(),
		TokenHash:     refreshHash,
		Ciphertext:    refreshCiphertext,
		AccessTokenID: access.ID,
		ExpiresAt:     now.Add(i.refreshTTL),
		CreatedAt:     now,
	}
	if err := i.tokens.CreateRefreshToken(ctx, refresh); err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:        accessRaw,
		AccessFingerprint:  meta.Fingerprint,
		AccessExpiresAt:    access.ExpiresAt,
		RefreshToken:       refreshRaw,
		RefreshFingerprint: refreshMeta.Fingerprint,
		RefreshExpiresAt:   refresh.ExpiresAt,
	}, nil
}

// RefreshTokens exchanges a valid refresh token for a fresh pair. The old
// refresh token and its access token are revoked in the same pass.
func (i *Issuer) RefreshTokens(ctx context.Context, user *models.User, refreshRaw string) (*TokenPair, error) {
	record, err := i.tokens.GetRefreshTokenByHash(ctx, HashToken(refreshRaw))
	if err != nil {
		return nil, err
	}
	if record.Revoked {
		return nil, fmt.Errorf("refresh token is revoked")
	}
	if record.ExpiresAt.Before(time.Now()) {
		return nil, fmt.Errorf("refresh token is expired")
	}

	var meta TokenMetadata
	ec := envelope.NewContext(envelope.PurposeRefreshToken, record.TokenHash)
	if err := i.envelope.Decrypt(ctx, record.Ciphertext, ec, &meta); err != nil {
		return nil, fmt.Errorf("open refresh token metadata: %w", err)
	}
	if meta.UserID != user.ID {
		return nil, fmt.Errorf("refresh token does not belong to user")
	}

	if err := i.tokens.RevokeRefreshToken(ctx, record.ID); err != nil {
		return nil, err
	}
	if err := i.tokens.RevokeAccessToken(ctx, record.AccessTokenID); err != nil {
		return nil, err
	}

	return i.IssueTokens(ctx, user)
}

// CreateSession mints a web session for a user and returns the raw cookie
// value. The ID token and asserted groups are sealed under the web-session
// purpose, bound to this record's hash.
func (i *Issuer) CreateSession(ctx context.Context, user *models.User, payload SessionPayload) (*models.WebSession, string, error) {
	raw, err := NewToken()
	if err != nil {
		return nil, "", err
	}
	now := time.Now()
	hash := HashToken(raw)

	ciphertext, err := i.envelope.Encrypt(ctx, payload,
		envelope.NewContext(envelope.PurposeWebSession, hash))
	if err != nil {
		return nil, "", fmt.Errorf("seal session payload: %w", err)
	}

	session := &models.WebSession{
		ID:         bunx.NewUUIDv7(),
		UserID:     user.ID,
		TokenHash:  hash,
		Ciphertext: ciphertext,
		ExpiresAt:  now.Add(i.sessionTTL),
		CreatedAt:  now,
		LastUsedAt: now,
	}
	if err := i.sessions.Create(ctx, session); err != nil {
		return nil, "", err
	}
	return session, raw, nil
}

// RevokeSession invalidates a session by id.
func (i *Issuer) RevokeSession(ctx context.Context, sessionID string) error {
	return i.sessions.Revoke(ctx, sessionID)
}
