package identity

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Sentinel errors for the identity-proof taxonomy. Callers match with
// errors.Is; the concrete detail stays in the wrapped message for operator
// logs and is never returned to clients.
var (
	// ErrMalformedProof marks a structurally invalid ARN or proof component.
	ErrMalformedProof = errors.New("malformed identity proof")

	// ErrAccountNotAllowed marks an account outside the configured allow-list
	// or disagreeing with the trusted-channel account.
	ErrAccountNotAllowed = errors.New("account not allowed")

	// ErrInvalidSessionIdentity marks a session name that is not an email and
	// therefore cannot be mapped to a user.
	ErrInvalidSessionIdentity = errors.New("session name is not a valid email")
)

// federatedRolePrefix is the reserved role-name prefix stamped on assumed
// roles issued through centralized SSO. Only roles carrying it are accepted
// as federated identities.
const federatedRolePrefix = "AWSReservedSSO_"

var (
	assumedRoleARNPattern = regexp.MustCompile(`^arn:aws:sts::(\d{12}):assumed-role/([^/]+)/([^/]+)$`)

	// Conservative email grammar. Session names that fail it are rejected
	// outright; there is no anonymous fallback.
	emailPattern = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)
)

// Identity is the normalized result of a successful identity proof, shared by
// the local ARN parser and the remote caller-identity verifier.
type Identity struct {
	// ARN is the full assumed-role ARN presented by the proof.
	ARN string
	// AccountID is the 12-digit account the role lives in.
	AccountID string
	// RoleName is the federated role segment, including the SSO prefix.
	RoleName string
	// SessionName is the raw session segment of the ARN.
	SessionName string
	// Email is the lower-cased session name. Always populated: an identity
	// whose session name is not an email never parses.
	Email string
}

// ParseFederatedARN validates an assumed-role ARN delivered over the
// platform's trusted request metadata and extracts the caller identity.
//
// trustedAccountID is the account asserted by the trusted channel; it must
// agree with the ARN to defeat forged or alternate-path ARNs. allowedAccounts
// is the configured allow-list; empty means unrestricted (single-account
// deployments). Any mismatch rejects the proof entirely — there is no partial
// identity and no default permission set.
func ParseFederatedARN(arn, trustedAccountID string, allowedAccounts []string) (*Identity, error) {
	match := assumedRoleARNPattern.FindStringSubmatch(arn)
	if match == nil {
		return nil, fmt.Errorf("%w: not an assumed-role ARN", ErrMalformedProof)
	}

	accountID, roleName, sessionName := match[1], match[2], match[3]

	if !strings.HasPrefix(roleName, federatedRolePrefix) {
		return nil, fmt.Errorf("%w: role %q is not a federated identity", ErrMalformedProof, roleName)
	}

	if trustedAccountID != "" && accountID != trustedAccountID {
		return nil, fmt.Errorf("%w: ARN account %s disagrees with request account %s",
			ErrAccountNotAllowed, accountID, trustedAccountID)
	}

	if !accountAllowed(accountID, allowedAccounts) {
		return nil, fmt.Errorf("%w: account %s", ErrAccountNotAllowed, accountID)
	}

	email, err := ValidateEmail(sessionName)
	if err != nil {
		return nil, err
	}

	return &Identity{
		ARN:         arn,
		AccountID:   accountID,
		RoleName:    roleName,
		SessionName: sessionName,
		Email:       email,
	}, nil
}

// ValidateEmail checks the session-name email grammar and returns the
// lower-cased address.
func ValidateEmail(s string) (string, error) {
	if !emailPattern.MatchString(s) {
		return "", fmt.Errorf("%w: %q", ErrInvalidSessionIdentity, s)
	}
	return strings.ToLower(s), nil
}

func accountAllowed(accountID string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if a == accountID {
			return true
		}
	}
	return false
}
