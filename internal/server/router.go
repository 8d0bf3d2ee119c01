package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/dashborion/dashborion/internal/authz"
	"github.com/dashborion/dashborion/internal/awsx"
	"github.com/dashborion/dashborion/internal/iam"
	"github.com/dashborion/dashborion/internal/middleware"
	"github.com/dashborion/dashborion/internal/repository"
)

// RouterOptions controls the construction of the HTTP router.
// The zero value is valid; sensible defaults are applied where fields are not set.
type RouterOptions struct {
	IAMService *iam.Service
	Issuer     *iam.Issuer
	Users      repository.UserRepository
	Grants     repository.GrantRepository
	Sessions   repository.SessionRepository
	Clients    *awsx.ClientCache

	CORSOptions   *cors.Options
	Middleware    []func(http.Handler) http.Handler
	HealthHandler http.HandlerFunc
	ExtraRoutes   func(chi.Router)
}

// DefaultCORSOptions returns the shared development CORS policy.
func DefaultCORSOptions() cors.Options {
	return cors.Options{
		AllowedOrigins: []string{
			"http://localhost:5173",
			"http://127.0.0.1:5173",
		},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{
			"Content-Type",
			"Authorization",
			iam.SSOEmailHeader,
			iam.SSOGroupsHeader,
			iam.SSOPermissionsHeader,
		},
		AllowCredentials: true,
		MaxAge:           300,
	}
}

func defaultHealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// NewRouter assembles a chi.Router with shared middleware, CORS policy, and
// the dashborion handlers mounted. The router can be tailored via
// RouterOptions for CLI usage, tests, or other entrypoints.
func NewRouter(opts RouterOptions) chi.Router {
	r := chi.NewRouter()

	// Baseline middleware shared across entrypoints.
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	corsCfg := DefaultCORSOptions()
	if opts.CORSOptions != nil {
		corsCfg = *opts.CORSOptions
	}
	r.Use(cors.Handler(corsCfg))

	// Apply custom middleware passed from the caller.
	for _, mw := range opts.Middleware {
		if mw != nil {
			r.Use(mw)
		}
	}

	healthHandler := opts.HealthHandler
	if healthHandler == nil {
		healthHandler = defaultHealthHandler
	}
	r.Get("/health", healthHandler)

	if opts.IAMService != nil {
		// The external decision endpoint runs the credential chain itself and
		// always answers 200, so it sits outside the authentication middleware.
		r.Post("/api/auth/authorize", HandleAuthorize(opts.IAMService))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authentication(opts.IAMService))

			r.With(middleware.RequireAuthenticated).Get("/api/auth/whoami", HandleWhoAmI())
			if opts.Issuer != nil && opts.Users != nil {
				r.With(middleware.RequireAuthenticated).Post("/api/auth/session", HandleCreateSession(opts.Issuer, opts.Users))
				r.Post("/api/auth/logout", HandleLogout(opts.Issuer))
			}

			if opts.Clients != nil {
				resources := NewResourceHandlers(opts.Clients)
				r.Route("/api/projects/{project}/environments/{environment}", func(r chi.Router) {
					r.With(middleware.RequireAction(authz.ActionRead)).Get("/overview", resources.Overview)
					r.With(middleware.RequireAction(authz.ActionDeploy)).Post("/deployments", resources.Deploy)
					r.With(middleware.RequireAction(authz.ActionRestart)).Post("/services/{service}/restart", resources.Restart)
					r.With(middleware.RequireAction(authz.ActionScale)).Post("/services/{service}/scale", resources.Scale)
					r.With(middleware.RequireAction(authz.ActionInvalidate)).Post("/cache/invalidate", resources.Invalidate)
					r.With(middleware.RequireAction(authz.ActionRDSControl)).Post("/rds/{action}", resources.RDSControl)
				})
			}

			if opts.Users != nil && opts.Grants != nil && opts.Sessions != nil {
				admin := NewAdminHandlers(opts.Users, opts.Grants, opts.Sessions)
				r.Route("/api/admin", func(r chi.Router) {
					r.Use(middleware.RequireGlobalAdmin)
					r.Get("/grants", admin.ListGrants)
					r.Post("/grants", admin.CreateGrant)
					r.Delete("/grants/{id}", admin.DeleteGrant)
					r.Get("/users", admin.ListUsers)
					r.Post("/users/{id}/disable", admin.DisableUser)
				})
			}
		})
	}

	if opts.ExtraRoutes != nil {
		opts.ExtraRoutes(r)
	}

	return r
}

// NewH2CHandler wraps the shared router with an h2c server to provide HTTP/2
// over cleartext for clients that negotiate it without TLS.
func NewH2CHandler(opts RouterOptions) (http.Handler, error) {
	router := NewRouter(opts)
	return h2c.NewHandler(router, &http2.Server{}), nil
}
