package iam

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mitchellh/mapstructure"

	"github.com/dashborion/dashborion/internal/envelope"
	"github.com/dashborion/dashborion/internal/repository"
)

// SessionCookieName is the browser session cookie.
const SessionCookieName = "dashborion.session"

// SessionAuthenticator authenticates requests using session cookies.
//
// Flow:
//  1. Extract the session cookie, return (nil, nil) if absent
//  2. Hash the cookie value, lookup the session record
//  3. Validate: not revoked, not expired
//  4. Open the envelope-encrypted session payload (bound to this record)
//  5. Lookup the user, validate not disabled
//  6. Extract groups from the stored ID token, merge with local groups
//  7. Resolve permissions and construct the Principal
type SessionAuthenticator struct {
	sessions repository.SessionRepository
	users    repository.UserRepository
	resolver *Resolver
	envelope *envelope.Service
}

// NewSessionAuthenticator creates a session cookie authenticator.
func NewSessionAuthenticator(
	sessions repository.SessionRepository,
	users repository.UserRepository,
	resolver *Resolver,
	envelopeSvc *envelope.Service,
) *SessionAuthenticator {
	return &SessionAuthenticator{
		sessions: sessions,
		users:    users,
		resolver: resolver,
		envelope: envelopeSvc,
	}
}

// Authenticate validates a session cookie if one is present.
func (a *SessionAuthenticator) Authenticate(ctx context.Context, req AuthRequest) (*Principal, error) {
	var cookieValue string
	for _, cookie := range req.Cookies {
		if cookie.Name == SessionCookieName {
			cookieValue = cookie.Value
			break
		}
	}
	if cookieValue == "" {
		return nil, nil
	}

	hash := HashToken(cookieValue)
	session, err := a.sessions.GetByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("unknown session")
		}
		return nil, err
	}

	if session.Revoked {
		return nil, fmt.Errorf("session has been revoked")
	}
	if session.ExpiresAt.Before(time.Now()) {
		return nil, fmt.Errorf("session has expired")
	}

	var payload SessionPayload
	ec := envelope.NewContext(envelope.PurposeWebSession, session.TokenHash)
	if err := a.envelope.Decrypt(ctx, session.Ciphertext, ec, &payload); err != nil {
		return nil, fmt.Errorf("open session payload: %w", err)
	}

	user, err := a.users.GetByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("session user: %w", err)
	}
	if user.Disabled() {
		return nil, ErrUserDisabled
	}

	asserted := payload.AssertedGroups
	if payload.IDToken != "" {
		if fromToken, err := ExtractGroupsFromIDToken(payload.IDToken); err == nil && len(fromToken) > 0 {
			asserted = fromToken
		}
	}
	groups := MergeGroups(user.Groups, asserted)

	permissions, err := a.resolver.PermissionsForGroups(ctx, groups)
	if err != nil {
		return nil, err
	}

	principal := &Principal{
		Email:       user.Email,
		UserID:      user.ID,
		Name:        user.Name,
		SessionID:   session.ID,
		Groups:      groups,
		Permissions: permissions,
		Method:      AuthMethodSession,
	}

	// Update session last used timestamp (non-blocking)
	go func() {
		_ = a.sessions.Touch(context.Background(), session.ID)
	}()

	return principal, nil
}

// groupClaims is the claim shape the upstream IdP uses for group membership.
// Groups arrive either as plain strings or as objects with a name field.
type groupClaims struct {
	Groups []any `mapstructure:"groups"`
}

// ExtractGroupsFromIDToken pulls group names out of a stored ID token. The
// signature is NOT verified here: the token was validated at login and is
// stored encrypted; this is claim extraction only.
func ExtractGroupsFromIDToken(idToken string) ([]string, error) {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(idToken, claims); err != nil {
		return nil, fmt.Errorf("parse id token: %w", err)
	}

	var decoded groupClaims
	if err := mapstructure.Decode(map[string]any(claims), &decoded); err != nil {
		return nil, fmt.Errorf("decode group claims: %w", err)
	}

	var groups []string
	for _, entry := range decoded.Groups {
		switch v := entry.(type) {
		case string:
			groups = append(groups, v)
		case map[string]any:
			var named struct {
				Name string `mapstructure:"name"`
			}
			if err := mapstructure.Decode(v, &named); err == nil && named.Name != "" {
				groups = append(groups, named.Name)
			}
		}
	}
	return groups, nil
}
