package server

import (
	"log"
	"net/http"
	"time"

	"github.com/dashborion/dashborion/internal/authz"
	"github.com/dashborion/dashborion/internal/iam"
	"github.com/dashborion/dashborion/internal/middleware"
	"github.com/dashborion/dashborion/internal/repository"
)

// HandleAuthorize runs the full credential chain and returns the boundary
// decision contract. The endpoint always answers 200: the deny/allow verdict
// lives in the body, and no internal failure detail crosses this boundary.
func HandleAuthorize(svc *iam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		decision := svc.Authorize(r.Context(), iam.AuthRequest{
			Headers: r.Header,
			Cookies: r.Cookies(),
		})
		writeJSON(w, http.StatusOK, decision)
	}
}

// whoAmIResponse mirrors the authenticated principal for dashboard clients.
type whoAmIResponse struct {
	Email       string             `json:"email"`
	UserID      string             `json:"user_id,omitempty"`
	Name        string             `json:"name,omitempty"`
	Groups      []string           `json:"groups"`
	Permissions []authz.Permission `json:"permissions"`
	Method      iam.AuthMethod     `json:"method"`
}

// HandleWhoAmI returns the caller's resolved identity.
func HandleWhoAmI() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := middleware.GetPrincipal(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		writeJSON(w, http.StatusOK, whoAmIResponse{
			Email:       principal.Email,
			UserID:      principal.UserID,
			Name:        principal.Name,
			Groups:      principal.Groups,
			Permissions: principal.Permissions,
			Method:      principal.Method,
		})
	}
}

// HandleCreateSession exchanges an authenticated request for a browser
// session cookie. The caller must resolve to a local account: sessions are
// always bound to a users row.
func HandleCreateSession(issuer *iam.Issuer, users repository.UserRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := middleware.GetPrincipal(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		if principal.UserID == "" {
			writeError(w, http.StatusForbidden, "no local account")
			return
		}

		user, err := users.GetByID(r.Context(), principal.UserID)
		if err != nil {
			log.Printf("ERROR: session user lookup for %s: %v", principal.Email, err)
			writeError(w, http.StatusForbidden, "no local account")
			return
		}

		session, cookieValue, err := issuer.CreateSession(r.Context(), user, iam.SessionPayload{
			AssertedGroups: principal.Groups,
		})
		if err != nil {
			log.Printf("ERROR: create session for %s: %v", principal.Email, err)
			writeError(w, http.StatusInternalServerError, "session creation failed")
			return
		}

		if err := users.UpdateLastLogin(r.Context(), user.ID); err != nil {
			log.Printf("WARNING: update last login for %s: %v", user.ID, err)
		}

		http.SetCookie(w, &http.Cookie{
			Name:     iam.SessionCookieName,
			Value:    cookieValue,
			Path:     "/",
			Expires:  session.ExpiresAt,
			HttpOnly: true,
			Secure:   r.TLS != nil,
			SameSite: http.SameSiteLaxMode,
		})
		writeJSON(w, http.StatusCreated, map[string]any{
			"session_id": session.ID,
			"expires_at": session.ExpiresAt.Format(time.RFC3339),
		})
	}
}

// HandleLogout revokes the caller's session and clears the cookie. Calls
// without a session are a no-op success so logout stays idempotent.
func HandleLogout(issuer *iam.Issuer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if principal, ok := middleware.GetPrincipal(r.Context()); ok && principal.SessionID != "" {
			if err := issuer.RevokeSession(r.Context(), principal.SessionID); err != nil {
				log.Printf("WARNING: revoke session %s: %v", principal.SessionID, err)
			}
		}

		http.SetCookie(w, &http.Cookie{
			Name:     iam.SessionCookieName,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
		writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
	}
}
