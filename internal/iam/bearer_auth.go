package iam

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/dashborion/dashborion/internal/envelope"
	"github.com/dashborion/dashborion/internal/repository"
)

// BearerAuthenticator authenticates requests using opaque bearer tokens.
//
// Flow:
//  1. Extract the Bearer credential
//  2. Return (nil, nil) if not present
//  3. Hash the token, check the in-memory result cache
//  4. Lookup the token record by hash
//  5. Validate: not revoked, not expired
//  6. Open the envelope-encrypted metadata (bound to this record)
//  7. Lookup the user, validate not disabled
//  8. Resolve permissions from the user's merged groups
//  9. Construct Principal, cache it, touch last_used_at
//
// The cache is a bounded expirable LRU: a hit skips the database and the key
// service entirely, so revocation takes effect within the cache TTL.
type BearerAuthenticator struct {
	tokens   repository.TokenRepository
	resolver *Resolver
	envelope *envelope.Service
	cache    *expirable.LRU[string, *Principal]
}

// NewBearerAuthenticator creates a bearer authenticator with a result cache
// of the given size and TTL.
func NewBearerAuthenticator(
	tokens repository.TokenRepository,
	resolver *Resolver,
	envelopeSvc *envelope.Service,
	cacheSize int,
	cacheTTL time.Duration,
) *BearerAuthenticator {
	return &BearerAuthenticator{
		tokens:   tokens,
		resolver: resolver,
		envelope: envelopeSvc,
		cache:    expirable.NewLRU[string, *Principal](cacheSize, nil, cacheTTL),
	}
}

// Authenticate validates a bearer token if one is present.
func (a *BearerAuthenticator) Authenticate(ctx context.Context, req AuthRequest) (*Principal, error) {
	var token string
	for _, cred := range ExtractCredentials(req.Headers) {
		if bearer, ok := cred.(BearerToken); ok {
			token = bearer.Token
			break
		}
	}
	if token == "" {
		return nil, nil
	}

	hash := HashToken(token)
	if principal, ok := a.cache.Get(hash); ok {
		return principal, nil
	}

	record, err := a.tokens.GetAccessTokenByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("unknown access token %s", Fingerprint(token))
		}
		return nil, err
	}

	if record.Revoked {
		return nil, fmt.Errorf("access token %s is revoked", Fingerprint(token))
	}
	if record.ExpiresAt.Before(time.Now()) {
		return nil, fmt.Errorf("access token %s is expired", Fingerprint(token))
	}

	var meta TokenMetadata
	ec := envelope.NewContext(envelope.PurposeAccessToken, record.TokenHash)
	if err := a.envelope.Decrypt(ctx, record.Ciphertext, ec, &meta); err != nil {
		return nil, fmt.Errorf("open token metadata: %w", err)
	}

	user, err := a.resolver.ResolveUser(ctx, meta.Email)
	if err != nil {
		return nil, err
	}

	groups := meta.Groups
	userID := meta.UserID
	name := ""
	if user != nil {
		groups = MergeGroups(user.Groups, meta.Groups)
		userID = user.ID
		name = user.Name
	}

	permissions, err := a.resolver.PermissionsForGroups(ctx, groups)
	if err != nil {
		return nil, err
	}

	principal := &Principal{
		Email:       meta.Email,
		UserID:      userID,
		Name:        name,
		Groups:      groups,
		Permissions: permissions,
		Method:      AuthMethodBearer,
	}
	a.cache.Add(hash, principal)

	// Update last used timestamp (non-blocking)
	go func() {
		_ = a.tokens.TouchAccessToken(context.Background(), record.ID)
	}()

	return principal, nil
}
