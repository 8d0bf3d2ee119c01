package iam

import (
	"net/http"
	"strings"

	"github.com/dashborion/dashborion/internal/identity"
)

// Proof component header names. The four values travel together; a request
// carrying only some of them holds a malformed proof, not no proof.
const (
	ProofMethodHeader  = "X-Amz-Iam-Request-Method"
	ProofURLHeader     = "X-Amz-Iam-Request-Url"
	ProofBodyHeader    = "X-Amz-Iam-Request-Body"
	ProofHeadersHeader = "X-Amz-Iam-Request-Headers"
)

// SSO assertion header names, set by the trusted upstream edge.
const (
	SSOEmailHeader       = "x-auth-user-email"
	SSOGroupsHeader      = "x-auth-user-groups"
	SSOPermissionsHeader = "x-auth-permissions"
)

// Credential is the tagged union of everything a request can present to
// prove identity. Exactly one variant is produced per extraction.
type Credential interface {
	credential()
}

// BearerToken is an opaque token from the Authorization header.
type BearerToken struct {
	Token string
}

// SSOAssertion is a pre-validated identity set by the upstream edge. Groups
// arrive comma-separated; PermissionsJSON is the raw header value, validated
// against the permission schema during authentication.
type SSOAssertion struct {
	Email           string
	Groups          []string
	PermissionsJSON string
}

// SignedIdentityProof carries the decoded components of a client-signed
// caller-identity request.
type SignedIdentityProof struct {
	Request *identity.SignedRequest
}

func (BearerToken) credential()         {}
func (SSOAssertion) credential()        {}
func (SignedIdentityProof) credential() {}

// ExtractCredentials pulls every credential present on the request, in the
// order the orchestrator will try them: bearer first, then SSO assertion,
// then signed proof. A structurally broken proof is returned as an error
// from DecodeSignedRequest at authentication time, not silently skipped, so
// extraction here stays total.
func ExtractCredentials(headers http.Header) []Credential {
	var creds []Credential

	if authz := headers.Get("Authorization"); authz != "" {
		if token, ok := strings.CutPrefix(authz, "Bearer "); ok && token != "" {
			creds = append(creds, BearerToken{Token: token})
		}
	}

	if email := headers.Get(SSOEmailHeader); email != "" {
		creds = append(creds, SSOAssertion{
			Email:           email,
			Groups:          splitGroups(headers.Get(SSOGroupsHeader)),
			PermissionsJSON: headers.Get(SSOPermissionsHeader),
		})
	}

	if hasProofComponents(headers) {
		signed, err := identity.DecodeSignedRequest(
			headers.Get(ProofMethodHeader),
			headers.Get(ProofURLHeader),
			headers.Get(ProofBodyHeader),
			headers.Get(ProofHeadersHeader),
		)
		if err == nil {
			creds = append(creds, SignedIdentityProof{Request: signed})
		} else {
			// A broken proof still counts as a presented credential so the
			// orchestrator denies instead of falling through to "no creds".
			creds = append(creds, SignedIdentityProof{Request: nil})
		}
	}

	return creds
}

// hasProofComponents reports whether any proof header is present.
func hasProofComponents(headers http.Header) bool {
	for _, name := range []string{ProofMethodHeader, ProofURLHeader, ProofBodyHeader, ProofHeadersHeader} {
		if headers.Get(name) != "" {
			return true
		}
	}
	return false
}

func splitGroups(value string) []string {
	if value == "" {
		return nil
	}
	var groups []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			groups = append(groups, trimmed)
		}
	}
	return groups
}
