package identity

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const callerIdentityBody = "Action=GetCallerIdentity&Version=2011-06-15"

func encodeSignedRequest(t *testing.T, method, targetURL, body string, headers map[string][]string) *SignedRequest {
	t.Helper()

	headerJSON, err := json.Marshal(headers)
	require.NoError(t, err)

	signed, err := DecodeSignedRequest(
		method,
		base64.StdEncoding.EncodeToString([]byte(targetURL)),
		base64.StdEncoding.EncodeToString([]byte(body)),
		base64.StdEncoding.EncodeToString(headerJSON),
	)
	require.NoError(t, err)
	return signed
}

func TestDecodeSignedRequest_RequiresAllComponents(t *testing.T) {
	_, err := DecodeSignedRequest("POST", "", "Qm9keQ==", "e30=")
	assert.ErrorIs(t, err, ErrMalformedProof)

	_, err = DecodeSignedRequest("", "dXJs", "Qm9keQ==", "e30=")
	assert.ErrorIs(t, err, ErrMalformedProof)
}

func TestDecodeSignedRequest_RejectsBadEncoding(t *testing.T) {
	_, err := DecodeSignedRequest("POST", "not base64!!", "Qm9keQ==", "e30=")
	assert.ErrorIs(t, err, ErrMalformedProof)

	// Header bag must decode to a JSON header map.
	badHeaders := base64.StdEncoding.EncodeToString([]byte(`["not","a","map"]`))
	_, err = DecodeSignedRequest("POST", "dXJs", "Qm9keQ==", badHeaders)
	assert.ErrorIs(t, err, ErrMalformedProof)
}

func TestVerify_RejectsBeforeForwarding(t *testing.T) {
	// Any network call would hit this server and fail the test.
	forwarded := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		forwarded = true
	}))
	defer srv.Close()

	verifier := NewCallerIdentityVerifier(VerifierConfig{
		ServerID: "dashborion-prod",
		Endpoint: srv.URL,
	})

	boundHeaders := map[string][]string{ServerIDHeader: {"dashborion-prod"}}

	cases := []struct {
		name    string
		signed  *SignedRequest
		wantErr error
	}{
		{
			name:    "GET method",
			signed:  encodeSignedRequest(t, "GET", srv.URL, callerIdentityBody, boundHeaders),
			wantErr: ErrMalformedProof,
		},
		{
			name:    "untrusted host",
			signed:  encodeSignedRequest(t, "POST", "https://attacker.example.com/", callerIdentityBody, boundHeaders),
			wantErr: ErrMalformedProof,
		},
		{
			name:    "body is not a caller-identity request",
			signed:  encodeSignedRequest(t, "POST", srv.URL, "Action=AssumeRole&Version=2011-06-15", boundHeaders),
			wantErr: ErrMalformedProof,
		},
		{
			name:    "missing server id",
			signed:  encodeSignedRequest(t, "POST", srv.URL, callerIdentityBody, map[string][]string{}),
			wantErr: ErrReplayProtectionMismatch,
		},
		{
			name: "wrong server id",
			signed: encodeSignedRequest(t, "POST", srv.URL, callerIdentityBody,
				map[string][]string{ServerIDHeader: {"someone-else"}}),
			wantErr: ErrReplayProtectionMismatch,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			id, err := verifier.Verify(context.Background(), tc.signed)
			assert.Nil(t, id)
			assert.ErrorIs(t, err, tc.wantErr)
			assert.False(t, forwarded, "proof must be rejected before any network call")
		})
	}
}

func TestVerify_Success(t *testing.T) {
	const responseBody = `<GetCallerIdentityResponse xmlns="https://sts.amazonaws.com/doc/2011-06-15/">
  <GetCallerIdentityResult>
    <Arn>arn:aws:sts::111122223333:assumed-role/AWSReservedSSO_Admin_abcdef/alice@example.com</Arn>
    <UserId>AROAEXAMPLE:alice@example.com</UserId>
    <Account>111122223333</Account>
  </GetCallerIdentityResult>
  <ResponseMetadata><RequestId>abc-123</RequestId></ResponseMetadata>
</GetCallerIdentityResponse>`

	var gotHost string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHost = r.Host
		assert.Equal(t, http.MethodPost, r.Method)
		w.Header().Set("Content-Type", "text/xml")
		_, _ = w.Write([]byte(responseBody))
	}))
	defer srv.Close()

	verifier := NewCallerIdentityVerifier(VerifierConfig{
		ServerID:        "dashborion-prod",
		AllowedAccounts: []string{"111122223333"},
		Endpoint:        srv.URL,
	})

	signed := encodeSignedRequest(t, "POST", srv.URL, callerIdentityBody, map[string][]string{
		ServerIDHeader: {"dashborion-prod"},
		"Host":         {"forged.example.com"}, // must be dropped, not trusted
	})

	id, err := verifier.Verify(context.Background(), signed)
	require.NoError(t, err)

	assert.Equal(t, "alice@example.com", id.Email)
	assert.Equal(t, "111122223333", id.AccountID)
	assert.NotEqual(t, "forged.example.com", gotHost)
}

func TestVerify_OracleFailures(t *testing.T) {
	t.Run("non-2xx status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "signature expired", http.StatusForbidden)
		}))
		defer srv.Close()

		verifier := NewCallerIdentityVerifier(VerifierConfig{Endpoint: srv.URL})
		signed := encodeSignedRequest(t, "POST", srv.URL, callerIdentityBody, map[string][]string{})

		_, err := verifier.Verify(context.Background(), signed)
		assert.ErrorIs(t, err, ErrOracleRejected)
	})

	t.Run("unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		endpoint := srv.URL
		srv.Close() // connection refused from here on

		verifier := NewCallerIdentityVerifier(VerifierConfig{Endpoint: endpoint})
		signed := encodeSignedRequest(t, "POST", endpoint, callerIdentityBody, map[string][]string{})

		_, err := verifier.Verify(context.Background(), signed)
		assert.ErrorIs(t, err, ErrOracleUnreachable)
	})

	t.Run("malformed body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("not xml at all"))
		}))
		defer srv.Close()

		verifier := NewCallerIdentityVerifier(VerifierConfig{Endpoint: srv.URL})
		signed := encodeSignedRequest(t, "POST", srv.URL, callerIdentityBody, map[string][]string{})

		_, err := verifier.Verify(context.Background(), signed)
		assert.ErrorIs(t, err, ErrOracleRejected)
	})
}

func TestParseCallerIdentityResponse_NamespaceDrift(t *testing.T) {
	// A response with an unexpected namespace still parses via the suffix
	// scan fallback.
	const drifted = `<sts:GetCallerIdentityResponse xmlns:sts="https://sts.amazonaws.com/doc/2099-01-01/">
  <sts:GetCallerIdentityResult>
    <sts:Arn>arn:aws:sts::111122223333:assumed-role/AWSReservedSSO_Ops_999/carol@example.com</sts:Arn>
    <sts:UserId>AROAEXAMPLE:carol@example.com</sts:UserId>
    <sts:Account>111122223333</sts:Account>
  </sts:GetCallerIdentityResult>
</sts:GetCallerIdentityResponse>`

	caller, err := parseCallerIdentityResponse([]byte(drifted))
	require.NoError(t, err)
	assert.Equal(t, "111122223333", caller.AccountID)
	assert.Equal(t, "AROAEXAMPLE:carol@example.com", caller.UserID)
	assert.Contains(t, caller.ARN, "carol@example.com")
}
