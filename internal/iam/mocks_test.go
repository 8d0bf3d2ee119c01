package iam

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dashborion/dashborion/internal/db/models"
	"github.com/dashborion/dashborion/internal/envelope"
	"github.com/dashborion/dashborion/internal/repository"
)

// mockUserRepository for testing
type mockUserRepository struct {
	users map[string]*models.User // email → user
}

func (m *mockUserRepository) Create(ctx context.Context, user *models.User) error {
	m.users[user.Email] = user
	return nil
}

func (m *mockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, fmt.Errorf("user %s: %w", id, repository.ErrNotFound)
}

func (m *mockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if u, ok := m.users[email]; ok {
		return u, nil
	}
	return nil, fmt.Errorf("user %s: %w", email, repository.ErrNotFound)
}

func (m *mockUserRepository) Update(ctx context.Context, user *models.User) error {
	m.users[user.Email] = user
	return nil
}

func (m *mockUserRepository) UpdateLastLogin(ctx context.Context, id string) error {
	return nil
}

func (m *mockUserRepository) Disable(ctx context.Context, id string) error {
	for _, u := range m.users {
		if u.ID == id {
			now := time.Now()
			u.DisabledAt = &now
			return nil
		}
	}
	return fmt.Errorf("user %s: %w", id, repository.ErrNotFound)
}

func (m *mockUserRepository) List(ctx context.Context) ([]models.User, error) {
	result := make([]models.User, 0, len(m.users))
	for _, u := range m.users {
		result = append(result, *u)
	}
	return result, nil
}

// mockGrantRepository for testing
type mockGrantRepository struct {
	grants []models.Grant
}

func (m *mockGrantRepository) Create(ctx context.Context, grant *models.Grant) error {
	m.grants = append(m.grants, *grant)
	return nil
}

func (m *mockGrantRepository) Delete(ctx context.Context, id string) error {
	for i, g := range m.grants {
		if g.ID == id {
			m.grants = append(m.grants[:i], m.grants[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("grant %s: %w", id, repository.ErrNotFound)
}

func (m *mockGrantRepository) ListByGroups(ctx context.Context, groups []string) ([]models.Grant, error) {
	wanted := make(map[string]bool, len(groups))
	for _, g := range groups {
		wanted[g] = true
	}
	var result []models.Grant
	for _, g := range m.grants {
		if wanted[g.GroupName] {
			result = append(result, g)
		}
	}
	return result, nil
}

func (m *mockGrantRepository) List(ctx context.Context) ([]models.Grant, error) {
	return m.grants, nil
}

// mockTokenRepository for testing
type mockTokenRepository struct {
	access  map[string]*models.AccessToken  // tokenHash → record
	refresh map[string]*models.RefreshToken // tokenHash → record
	touched int
}

func newMockTokenRepository() *mockTokenRepository {
	return &mockTokenRepository{
		access:  make(map[string]*models.AccessToken),
		refresh: make(map[string]*models.RefreshToken),
	}
}

func (m *mockTokenRepository) CreateAccessToken(ctx context.Context, token *models.AccessToken) error {
	m.access[token.TokenHash] = token
	return nil
}

func (m *mockTokenRepository) GetAccessTokenByHash(ctx context.Context, hash string) (*models.AccessToken, error) {
	if t, ok := m.access[hash]; ok {
		return t, nil
	}
	return nil, fmt.Errorf("access token: %w", repository.ErrNotFound)
}

func (m *mockTokenRepository) TouchAccessToken(ctx context.Context, id string) error {
	m.touched++
	return nil
}

func (m *mockTokenRepository) RevokeAccessToken(ctx context.Context, id string) error {
	for _, t := range m.access {
		if t.ID == id {
			t.Revoked = true
			return nil
		}
	}
	return fmt.Errorf("access token %s: %w", id, repository.ErrNotFound)
}

func (m *mockTokenRepository) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	m.refresh[token.TokenHash] = token
	return nil
}

func (m *mockTokenRepository) GetRefreshTokenByHash(ctx context.Context, hash string) (*models.RefreshToken, error) {
	if t, ok := m.refresh[hash]; ok {
		return t, nil
	}
	return nil, fmt.Errorf("refresh token: %w", repository.ErrNotFound)
}

func (m *mockTokenRepository) RevokeRefreshToken(ctx context.Context, id string) error {
	for _, t := range m.refresh {
		if t.ID == id {
			t.Revoked = true
			return nil
		}
	}
	return fmt.Errorf("refresh token %s: %w", id, repository.ErrNotFound)
}

// mockSessionRepository for testing
type mockSessionRepository struct {
	sessions map[string]*models.WebSession // tokenHash → session
}

func (m *mockSessionRepository) Create(ctx context.Context, session *models.WebSession) error {
	m.sessions[session.TokenHash] = session
	return nil
}

func (m *mockSessionRepository) GetByHash(ctx context.Context, hash string) (*models.WebSession, error) {
	if s, ok := m.sessions[hash]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("session: %w", repository.ErrNotFound)
}

func (m *mockSessionRepository) Touch(ctx context.Context, id string) error {
	for _, s := range m.sessions {
		if s.ID == id {
			s.LastUsedAt = time.Now()
			return nil
		}
	}
	return fmt.Errorf("session %s: %w", id, repository.ErrNotFound)
}

func (m *mockSessionRepository) Revoke(ctx context.Context, id string) error {
	for _, s := range m.sessions {
		if s.ID == id {
			s.Revoked = true
			return nil
		}
	}
	return fmt.Errorf("session %s: %w", id, repository.ErrNotFound)
}

func (m *mockSessionRepository) RevokeAllForUser(ctx context.Context, userID string) error {
	for _, s := range m.sessions {
		if s.UserID == userID {
			s.Revoked = true
		}
	}
	return nil
}

func (m *mockSessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	var n int64
	now := time.Now()
	for hash, s := range m.sessions {
		if s.ExpiresAt.Before(now) {
			delete(m.sessions, hash)
			n++
		}
	}
	return n, nil
}

// memoryKeyProvider wraps data keys with a local master key, folding the
// encryption context in as AAD so mismatched contexts fail to open.
type memoryKeyProvider struct {
	master []byte
}

func newMemoryKeyProvider() *memoryKeyProvider {
	master := make([]byte, 32)
	if _, err := rand.Read(master); err != nil {
		panic(err)
	}
	return &memoryKeyProvider{master: master}
}

func (p *memoryKeyProvider) gcm() cipher.AEAD {
	block, err := aes.NewCipher(p.master)
	if err != nil {
		panic(err)
	}
	g, err := cipher.NewGCM(block)
	if err != nil {
		panic(err)
	}
	return g
}

func contextAAD(encryptionContext map[string]string) []byte {
	aad, _ := json.Marshal(encryptionContext)
	return aad
}

func (p *memoryKeyProvider) GenerateDataKey(_ context.Context, encryptionContext map[string]string) ([]byte, []byte, error) {
	plaintext := make([]byte, 32)
	if _, err := rand.Read(plaintext); err != nil {
		return nil, nil, err
	}
	g := p.gcm()
	nonce := make([]byte, g.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, err
	}
	encrypted := append(append([]byte{}, nonce...), g.Seal(nil, nonce, plaintext, contextAAD(encryptionContext))...)
	return plaintext, encrypted, nil
}

func (p *memoryKeyProvider) DecryptDataKey(_ context.Context, encrypted []byte, encryptionContext map[string]string) ([]byte, error) {
	g := p.gcm()
	if len(encrypted) < g.NonceSize() {
		return nil, fmt.Errorf("truncated data key")
	}
	nonce, sealed := encrypted[:g.NonceSize()], encrypted[g.NonceSize():]
	plaintext, err := g.Open(nil, nonce, sealed, contextAAD(encryptionContext))
	if err != nil {
		return nil, fmt.Errorf("invalid ciphertext or context")
	}
	return plaintext, nil
}

func newTestEnvelope() *envelope.Service {
	return envelope.NewService(newMemoryKeyProvider())
}
