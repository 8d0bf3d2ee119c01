package iam

import (
	"context"
	"fmt"

	"github.com/dashborion/dashborion/internal/authz"
	"github.com/dashborion/dashborion/internal/identity"
)

// SSOAuthenticator authenticates requests carrying pre-validated identity
// headers from the trusted upstream edge.
//
// The assertion is trusted for identity only. The local account is still
// consulted independently: a disabled account denies even a perfectly valid
// upstream assertion, and locally assigned groups are merged with the
// asserted ones before permissions are resolved.
type SSOAuthenticator struct {
	resolver *Resolver
}

// NewSSOAuthenticator creates an SSO header authenticator.
func NewSSOAuthenticator(resolver *Resolver) *SSOAuthenticator {
	return &SSOAuthenticator{resolver: resolver}
}

// Authenticate validates SSO assertion headers if present.
func (a *SSOAuthenticator) Authenticate(ctx context.Context, req AuthRequest) (*Principal, error) {
	var assertion *SSOAssertion
	for _, cred := range ExtractCredentials(req.Headers) {
		if sso, ok := cred.(SSOAssertion); ok {
			assertion = &sso
			break
		}
	}
	if assertion == nil {
		return nil, nil
	}

	email, err := identity.ValidateEmail(assertion.Email)
	if err != nil {
		return nil, fmt.Errorf("asserted identity: %w", err)
	}

	// Asserted permissions must pass schema validation; a malformed header
	// from the edge denies rather than degrading to header-free behavior.
	var asserted []authz.Permission
	if assertion.PermissionsJSON != "" {
		asserted, err = authz.ParsePermissionsJSON(assertion.PermissionsJSON)
		if err != nil {
			return nil, fmt.Errorf("asserted permissions: %w", err)
		}
	}

	user, err := a.resolver.ResolveUser(ctx, email)
	if err != nil {
		return nil, err
	}

	groups := assertion.Groups
	userID := ""
	name := ""
	if user != nil {
		groups = MergeGroups(user.Groups, assertion.Groups)
		userID = user.ID
		name = user.Name
	}

	granted, err := a.resolver.PermissionsForGroups(ctx, groups)
	if err != nil {
		return nil, err
	}

	return &Principal{
		Email:       email,
		UserID:      userID,
		Name:        name,
		Groups:      groups,
		Permissions: append(asserted, granted...),
		Method:      AuthMethodSSO,
	}, nil
}
