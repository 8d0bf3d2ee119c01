package iam

import (
	"context"
	"fmt"

	"github.com/dashborion/dashborion/internal/identity"
)

// ProofAuthenticator authenticates requests carrying a client-signed
// caller-identity request. The proof is replayed against the identity oracle
// by the verifier; a verified identity is then resolved against local
// accounts and grants like any other asserted identity.
type ProofAuthenticator struct {
	verifier *identity.CallerIdentityVerifier
	resolver *Resolver
}

// NewProofAuthenticator creates a signed-proof authenticator.
func NewProofAuthenticator(verifier *identity.CallerIdentityVerifier, resolver *Resolver) *ProofAuthenticator {
	return &ProofAuthenticator{verifier: verifier, resolver: resolver}
}

// Authenticate verifies a signed identity proof if one is present.
func (a *ProofAuthenticator) Authenticate(ctx context.Context, req AuthRequest) (*Principal, error) {
	var proof *SignedIdentityProof
	for _, cred := range ExtractCredentials(req.Headers) {
		if p, ok := cred.(SignedIdentityProof); ok {
			proof = &p
			break
		}
	}
	if proof == nil {
		return nil, nil
	}
	if proof.Request == nil {
		// Headers were present but the components did not decode.
		return nil, fmt.Errorf("identity proof: %w", identity.ErrMalformedProof)
	}

	verified, err := a.verifier.Verify(ctx, proof.Request)
	if err != nil {
		return nil, err
	}

	user, err := a.resolver.ResolveUser(ctx, verified.Email)
	if err != nil {
		return nil, err
	}

	var groups []string
	userID := ""
	name := ""
	if user != nil {
		groups = MergeGroups(user.Groups, nil)
		userID = user.ID
		name = user.Name
	}

	permissions, err := a.resolver.PermissionsForGroups(ctx, groups)
	if err != nil {
		return nil, err
	}

	return &Principal{
		Email:       verified.Email,
		UserID:      userID,
		Name:        name,
		Groups:      groups,
		Permissions: permissions,
		Method:      AuthMethodProof,
	}, nil
}
