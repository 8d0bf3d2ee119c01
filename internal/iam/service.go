package iam

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"github.com/dashborion/dashborion/internal/authz"
	"github.com/dashborion/dashborion/internal/envelope"
	"github.com/dashborion/dashborion/internal/identity"
)

// Service orchestrates authentication across credential types. One pass per
// request, terminal on first success; a request presenting no credentials at
// all is denied, never half-trusted.
type Service struct {
	authenticators []Authenticator
}

// NewService builds the orchestrator. Authenticators are tried in the order
// given.
func NewService(authenticators ...Authenticator) *Service {
	return &Service{authenticators: authenticators}
}

// Authenticate tries each authenticator in order.
//
// Returns:
//   - (principal, nil): first authenticator that recognized and validated
//     its credential
//   - (nil, nil): no authenticator found credentials on the request
//   - (nil, error): a credential was presented but failed validation
//
// A failed credential stops the chain: falling through to a weaker
// credential after an explicit failure would let an attacker shed a revoked
// token by also sending forged assertion headers.
func (s *Service) Authenticate(ctx context.Context, req AuthRequest) (*Principal, error) {
	for _, authenticator := range s.authenticators {
		principal, err := authenticator.Authenticate(ctx, req)
		if err != nil {
			return nil, err
		}
		if principal != nil {
			return principal, nil
		}
	}
	return nil, nil
}

// Decision is the process-boundary output of an authorization pass. Groups
// and permissions are serialized JSON strings because the consumer sits on
// the other side of a process boundary.
type Decision struct {
	IsAuthorized bool            `json:"isAuthorized"`
	Context      DecisionContext `json:"context"`
}

// DecisionContext carries the identity on success, or a generic reason code
// on failure. Never both.
type DecisionContext struct {
	Email       string `json:"email,omitempty"`
	UserID      string `json:"user_id,omitempty"`
	Groups      string `json:"groups,omitempty"`
	Permissions string `json:"permissions,omitempty"`
	Error       string `json:"error,omitempty"`
	Message     string `json:"message,omitempty"`
}

// Reason codes emitted to callers. Deliberately coarse: internal detail is
// logged, never returned, so the endpoint cannot be used to probe account
// ids or ARN formats.
const (
	ReasonMalformedProof    = "MalformedIdentityProof"
	ReasonAccountNotAllowed = "AccountNotAllowed"
	ReasonInvalidSession    = "InvalidSessionIdentity"
	ReasonOracleUnreachable = "IdentityOracleUnreachable"
	ReasonOracleRejected    = "IdentityOracleRejected"
	ReasonReplayMismatch    = "ReplayProtectionMismatch"
	ReasonDecryptionFailed  = "DecryptionFailed"
	ReasonPermissionDenied  = "PermissionDenied"
)

// Authorize runs the full authentication pass and renders the boundary
// contract. Every failure degrades to a deny with a generic reason; no error
// escapes to the caller.
func (s *Service) Authorize(ctx context.Context, req AuthRequest) Decision {
	principal, err := s.Authenticate(ctx, req)
	if err != nil {
		log.Printf("WARNING: authentication failed: %v", err)
		return denyDecision(err)
	}
	if principal == nil {
		return denyDecision(nil)
	}

	groupsJSON, err := json.Marshal(principal.Groups)
	if err != nil {
		log.Printf("ERROR: encode groups for %s: %v", principal.Email, err)
		return denyDecision(nil)
	}
	permissionsJSON, err := authz.EncodePermissionsJSON(principal.Permissions)
	if err != nil {
		log.Printf("ERROR: encode permissions for %s: %v", principal.Email, err)
		return denyDecision(nil)
	}

	return Decision{
		IsAuthorized: true,
		Context: DecisionContext{
			Email:       principal.Email,
			UserID:      principal.UserID,
			Groups:      string(groupsJSON),
			Permissions: permissionsJSON,
		},
	}
}

func denyDecision(err error) Decision {
	return Decision{
		IsAuthorized: false,
		Context: DecisionContext{
			Error:   reasonCode(err),
			Message: "access denied",
		},
	}
}

// reasonCode maps an internal failure onto the coarse taxonomy.
func reasonCode(err error) string {
	switch {
	case err == nil:
		return ReasonPermissionDenied
	case errors.Is(err, identity.ErrReplayProtectionMismatch):
		return ReasonReplayMismatch
	case errors.Is(err, identity.ErrMalformedProof):
		return ReasonMalformedProof
	case errors.Is(err, identity.ErrAccountNotAllowed):
		return ReasonAccountNotAllowed
	case errors.Is(err, identity.ErrInvalidSessionIdentity):
		return ReasonInvalidSession
	case errors.Is(err, identity.ErrOracleUnreachable):
		return ReasonOracleUnreachable
	case errors.Is(err, identity.ErrOracleRejected):
		return ReasonOracleRejected
	case errors.Is(err, envelope.ErrDecryptionFailed):
		return ReasonDecryptionFailed
	default:
		return ReasonPermissionDenied
	}
}
