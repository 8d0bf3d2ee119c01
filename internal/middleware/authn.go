package middleware

import (
	"context"
	"log"
	"net/http"

	"github.com/dashborion/dashborion/internal/authz"
	"github.com/dashborion/dashborion/internal/iam"
)

type principalKey struct{}

// GetPrincipal retrieves the authenticated principal from the request
// context, if any.
func GetPrincipal(ctx context.Context) (*iam.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*iam.Principal)
	return p, ok
}

// SetPrincipal stores the authenticated principal on the request context,
// together with the evaluator-facing auth context. Exported for handler
// tests.
func SetPrincipal(ctx context.Context, p *iam.Principal) context.Context {
	ctx = context.WithValue(ctx, principalKey{}, p)
	return authz.SetAuthContext(ctx, &authz.AuthContext{
		Email:       p.Email,
		UserID:      p.UserID,
		Groups:      p.Groups,
		Permissions: p.Permissions,
	})
}

// Authentication is the unified authentication middleware.
//
// It runs the full credential chain once per request:
//  1. Build an AuthRequest from headers and cookies
//  2. Try each authenticator via the IAM service
//  3. On success, store the Principal and auth context
//  4. Continue to the next handler
//
// Unauthenticated requests pass through; permission enforcement happens in
// the authorization middleware. A presented-but-invalid credential is
// terminal here with a 401.
func Authentication(iamService *iam.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			principal, err := iamService.Authenticate(ctx, iam.AuthRequest{
				Headers: r.Header,
				Cookies: r.Cookies(),
			})
			if err != nil {
				log.Printf("authentication failed for %s %s: %v", r.Method, r.URL.Path, err)
				http.Error(w, "authentication failed", http.StatusUnauthorized)
				return
			}

			if principal != nil {
				ctx = SetPrincipal(ctx, principal)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
