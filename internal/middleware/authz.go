package middleware

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dashborion/dashborion/internal/authz"
)

// RequireAction enforces a permission check for routes scoped by
// {project}/{environment} URL parameters. The evaluator runs over the
// permissions resolved at authentication time; no state is consulted or
// mutated here.
func RequireAction(action authz.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ac, ok := authz.FromContext(r.Context())
			if !ok {
				unauthenticated(w)
				return
			}

			project := chi.URLParam(r, "project")
			environment := chi.URLParam(r, "environment")
			if project == "" || environment == "" {
				// A route without both scope parameters cannot be evaluated;
				// never degrade to an unscoped allow.
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}

			if !authz.Check(ac.Permissions, project, environment, action) {
				log.Printf("denied %s on %s/%s for %s", action, project, environment, ac.Email)
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireGlobalAdmin gates operations with no natural project or environment
// scope behind the coarse super-user check.
func RequireGlobalAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ac, ok := authz.FromContext(r.Context())
		if !ok {
			unauthenticated(w)
			return
		}
		if !authz.IsGlobalAdmin(ac.Permissions) {
			log.Printf("denied admin operation for %s", ac.Email)
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAuthenticated rejects requests that passed through the
// authentication middleware without any credential.
func RequireAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := authz.FromContext(r.Context()); !ok {
			unauthenticated(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func unauthenticated(w http.ResponseWriter) {
	http.Error(w, "authentication required", http.StatusUnauthorized)
}
