package authz

import "context"

// AuthContext captures the authenticated caller for downstream handlers. It is
// built once per request by the authorizer and never mutated or persisted.
type AuthContext struct {
	// Email is the caller's lower-cased email address.
	Email string
	// UserID is the stable identifier of the backing user record, or the
	// upstream principal id when no record exists (bearer path).
	UserID string
	// Groups lists resolved group names in merge order, deduplicated.
	Groups []string
	// Permissions is the resolved permission set evaluated per action.
	Permissions []Permission
}

type authContextKey struct{}

// SetAuthContext stores the authenticated caller on the request context.
func SetAuthContext(ctx context.Context, ac *AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey{}, ac)
}

// FromContext retrieves the authenticated caller from the request context.
func FromContext(ctx context.Context) (*AuthContext, bool) {
	ac, ok := ctx.Value(authContextKey{}).(*AuthContext)
	return ac, ok
}
