package iam

import (
	"context"
	"errors"
	"fmt"

	"github.com/dashborion/dashborion/internal/authz"
	"github.com/dashborion/dashborion/internal/db/models"
	"github.com/dashborion/dashborion/internal/repository"
)

// ErrUserDisabled denies authentication for a disabled account regardless of
// how valid the presented credential is.
var ErrUserDisabled = errors.New("user account is disabled")

// Resolver turns a verified email plus asserted groups into a local account
// view and an effective permission set. It is shared by every authentication
// path that starts from an identity rather than a stored token.
type Resolver struct {
	users  repository.UserRepository
	grants repository.GrantRepository
}

// NewResolver builds a resolver over the user and grant stores.
func NewResolver(users repository.UserRepository, grants repository.GrantRepository) *Resolver {
	return &Resolver{users: users, grants: grants}
}

// ResolveUser looks up the local account for an email. A missing account is
// not an error: identity paths that carry their own permission assertions may
// proceed without one. A disabled account is always fatal.
func (r *Resolver) ResolveUser(ctx context.Context, email string) (*models.User, error) {
	user, err := r.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if user.Disabled() {
		return nil, ErrUserDisabled
	}
	return user, nil
}

// PermissionsForGroups resolves the union of grants attached to the given
// groups, in grant creation order.
func (r *Resolver) PermissionsForGroups(ctx context.Context, groups []string) ([]authz.Permission, error) {
	grants, err := r.grants.ListByGroups(ctx, groups)
	if err != nil {
		return nil, fmt.Errorf("resolve grants: %w", err)
	}
	perms := make([]authz.Permission, 0, len(grants))
	for _, g := range grants {
		role, err := authz.ParseRole(g.Role)
		if err != nil {
			// A grant row with an unknown role is skipped, never widened.
			continue
		}
		perms = append(perms, authz.Permission{
			Project:     g.Project,
			Environment: g.Environment,
			Role:        role,
			Resources:   g.Resources,
		})
	}
	return perms, nil
}

// MergeGroups combines locally assigned and asserted groups, local first,
// preserving order and dropping duplicates.
func MergeGroups(local, asserted []string) []string {
	seen := make(map[string]struct{}, len(local)+len(asserted))
	merged := make([]string, 0, len(local)+len(asserted))
	for _, g := range local {
		if _, ok := seen[g]; !ok {
			seen[g] = struct{}{}
			merged = append(merged, g)
		}
	}
	for _, g := range asserted {
		if _, ok := seen[g]; !ok {
			seen[g] = struct{}{}
			merged = append(merged, g)
		}
	}
	return merged
}
