package iam

import (
	"context"
	"errors"
	"net/http"
)

// ErrPermissionDenied is the generic terminal failure for authorization.
// The detailed cause stays in server logs; clients only ever see this.
var ErrPermissionDenied = errors.New("permission denied")

// Authenticator validates one credential type and returns a Principal with
// resolved permissions.
//
// Return values:
//   - (principal, nil): Authentication successful
//   - (nil, nil): Credentials not present (not an error, try next authenticator)
//   - (nil, error): Authentication failed (invalid credentials)
//
// The authenticator is responsible for:
//  1. Extracting its credential from the request
//  2. Validating it (lookup, expiry, revocation, account status)
//  3. Resolving the effective permission set
//  4. Constructing an immutable Principal
type Authenticator interface {
	Authenticate(ctx context.Context, req AuthRequest) (*Principal, error)
}

// AuthRequest wraps the request data authenticators inspect. Keeping it a
// plain struct lets the same authenticators serve HTTP middleware and the
// decision endpoint.
type AuthRequest struct {
	// Headers contains HTTP headers (including Authorization)
	Headers http.Header

	// Cookies contains parsed cookies
	Cookies []*http.Cookie
}
