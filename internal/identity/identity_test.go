package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFederatedARN_Valid(t *testing.T) {
	arn := "arn:aws:sts::111122223333:assumed-role/AWSReservedSSO_Admin_abcdef/Alice@Example.com"

	id, err := ParseFederatedARN(arn, "111122223333", []string{"111122223333"})
	require.NoError(t, err)

	assert.Equal(t, arn, id.ARN)
	assert.Equal(t, "111122223333", id.AccountID)
	assert.Equal(t, "AWSReservedSSO_Admin_abcdef", id.RoleName)
	assert.Equal(t, "Alice@Example.com", id.SessionName)
	assert.Equal(t, "alice@example.com", id.Email)
}

func TestParseFederatedARN_EmptyAllowListMeansUnrestricted(t *testing.T) {
	arn := "arn:aws:sts::999988887777:assumed-role/AWSReservedSSO_Viewer_123456/bob@example.com"

	id, err := ParseFederatedARN(arn, "999988887777", nil)
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", id.Email)
}

func TestParseFederatedARN_Rejections(t *testing.T) {
	cases := []struct {
		name    string
		arn     string
		trusted string
		allowed []string
		wantErr error
	}{
		{
			name:    "not an STS ARN",
			arn:     "arn:aws:iam::111122223333:role/AWSReservedSSO_Admin_abcdef",
			trusted: "111122223333",
			wantErr: ErrMalformedProof,
		},
		{
			name:    "short account id",
			arn:     "arn:aws:sts::1234:assumed-role/AWSReservedSSO_Admin_abcdef/alice@example.com",
			trusted: "1234",
			wantErr: ErrMalformedProof,
		},
		{
			name:    "non-federated role",
			arn:     "arn:aws:sts::111122223333:assumed-role/DeployRole/alice@example.com",
			trusted: "111122223333",
			wantErr: ErrMalformedProof,
		},
		{
			name:    "account disagrees with trusted channel",
			arn:     "arn:aws:sts::111122223333:assumed-role/AWSReservedSSO_Admin_abcdef/alice@example.com",
			trusted: "444455556666",
			wantErr: ErrAccountNotAllowed,
		},
		{
			name:    "account outside allow-list",
			arn:     "arn:aws:sts::111122223333:assumed-role/AWSReservedSSO_Admin_abcdef/alice@example.com",
			trusted: "111122223333",
			allowed: []string{"444455556666"},
			wantErr: ErrAccountNotAllowed,
		},
		{
			name:    "session name is not an email",
			arn:     "arn:aws:sts::111122223333:assumed-role/AWSReservedSSO_Admin_abcdef/i-0abc123def",
			trusted: "111122223333",
			wantErr: ErrInvalidSessionIdentity,
		},
		{
			name:    "empty session segment",
			arn:     "arn:aws:sts::111122223333:assumed-role/AWSReservedSSO_Admin_abcdef/",
			trusted: "111122223333",
			wantErr: ErrMalformedProof,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			id, err := ParseFederatedARN(tc.arn, tc.trusted, tc.allowed)
			assert.Nil(t, id)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestValidateEmail(t *testing.T) {
	email, err := ValidateEmail("First.Last+ops@Example.Co.UK")
	require.NoError(t, err)
	assert.Equal(t, "first.last+ops@example.co.uk", email)

	for _, bad := range []string{"", "alice", "alice@", "@example.com", "alice@localhost", "a b@example.com"} {
		_, err := ValidateEmail(bad)
		assert.ErrorIs(t, err, ErrInvalidSessionIdentity, "input %q", bad)
	}
}
