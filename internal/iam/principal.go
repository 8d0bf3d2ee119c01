package iam

import "github.com/dashborion/dashborion/internal/authz"

// Principal represents an authenticated identity with pre-resolved
// permissions.
//
// This struct is IMMUTABLE after construction. Permissions are computed once
// at authentication time and never modified, so authorization checks read
// shared state without locks.
type Principal struct {
	// Email is the normalized (lower-cased) identity. Always set.
	Email string

	// UserID references the backing users row, empty when the identity has
	// no local account (pure assertion-based access).
	UserID string

	// Name is the display name when a local account exists.
	Name string

	// SessionID references the active web session (cookie auth only).
	SessionID string

	// Groups is the merged group list: locally assigned groups first, then
	// asserted groups, deduplicated with order preserved.
	Groups []string

	// Permissions is the effective permission set used for every
	// authorization decision on this request.
	Permissions []authz.Permission

	// Method records which credential type authenticated the request.
	Method AuthMethod
}

// AuthMethod identifies the credential type that produced a principal.
type AuthMethod string

const (
	AuthMethodBearer  AuthMethod = "bearer"
	AuthMethodSSO     AuthMethod = "sso"
	AuthMethodProof   AuthMethod = "identity-proof"
	AuthMethodSession AuthMethod = "session"
)
