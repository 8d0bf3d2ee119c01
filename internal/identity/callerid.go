package identity

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// Sentinel errors for the remote verification path.
var (
	// ErrOracleUnreachable marks a transport failure or timeout talking to
	// the identity service.
	ErrOracleUnreachable = errors.New("identity service unreachable")

	// ErrOracleRejected marks a non-success response or an unparseable body
	// from the identity service.
	ErrOracleRejected = errors.New("identity service rejected request")

	// ErrReplayProtectionMismatch marks a proof bound to a different server.
	ErrReplayProtectionMismatch = errors.New("server id mismatch")
)

// ServerIDHeader is the replay-protection header clients embed in the signed
// request. When the server is configured with an id, proofs carrying a
// different (or absent) value are rejected before any network call: a proof
// captured by the wrong server cannot be replayed here.
const ServerIDHeader = "X-Dashborion-Server-ID"

// VerifyTimeout bounds the round-trip to the identity service. A slow oracle
// fails the request closed rather than hanging it.
const VerifyTimeout = 10 * time.Second

const callerIdentityAction = "GetCallerIdentity"

var stsHostPattern = regexp.MustCompile(`^sts(\.[a-z0-9-]+)?\.amazonaws\.com$`)

// SignedRequest carries the components of a client-signed caller-identity
// request: the client signs the request locally with its own credentials and
// sends only the resulting components, never the credentials themselves.
type SignedRequest struct {
	Method  string
	URL     string
	Body    string
	Headers http.Header
}

// DecodeSignedRequest decodes the transported proof components. The URL, body,
// and header bag arrive base64-encoded; the header bag decodes to a JSON map
// of header name to value list. All four components are required together —
// a proof missing any of them is malformed, not partially usable.
func DecodeSignedRequest(method, encodedURL, encodedBody, encodedHeaders string) (*SignedRequest, error) {
	if method == "" || encodedURL == "" || encodedBody == "" || encodedHeaders == "" {
		return nil, fmt.Errorf("%w: incomplete signed request", ErrMalformedProof)
	}

	rawURL, err := base64.StdEncoding.DecodeString(encodedURL)
	if err != nil {
		return nil, fmt.Errorf("%w: decode url: %v", ErrMalformedProof, err)
	}
	rawBody, err := base64.StdEncoding.DecodeString(encodedBody)
	if err != nil {
		return nil, fmt.Errorf("%w: decode body: %v", ErrMalformedProof, err)
	}
	rawHeaders, err := base64.StdEncoding.DecodeString(encodedHeaders)
	if err != nil {
		return nil, fmt.Errorf("%w: decode headers: %v", ErrMalformedProof, err)
	}

	var headerMap map[string][]string
	if err := json.Unmarshal(rawHeaders, &headerMap); err != nil {
		return nil, fmt.Errorf("%w: decode header map: %v", ErrMalformedProof, err)
	}

	headers := make(http.Header, len(headerMap))
	for name, values := range headerMap {
		for _, v := range values {
			headers.Add(name, v)
		}
	}

	return &SignedRequest{
		Method:  strings.ToUpper(strings.TrimSpace(method)),
		URL:     string(rawURL),
		Body:    string(rawBody),
		Headers: headers,
	}, nil
}

// CallerIdentity is the oracle's verdict about the signer of a request.
type CallerIdentity struct {
	ARN       string
	UserID    string
	AccountID string
}

// VerifierConfig configures a CallerIdentityVerifier.
type VerifierConfig struct {
	// ServerID, when non-empty, must match the proof's replay-protection
	// header exactly.
	ServerID string

	// AllowedAccounts restricts accepted identities; empty means no
	// restriction.
	AllowedAccounts []string

	// Endpoint optionally allows a non-standard identity-service URL
	// (regional or test endpoints). Standard sts*.amazonaws.com hosts are
	// always accepted.
	Endpoint string

	// HTTPClient overrides the forwarding client; a client with a bounded
	// timeout is constructed when nil.
	HTTPClient *http.Client
}

// CallerIdentityVerifier validates a signed caller-identity request by
// replaying it against the real identity service and trusting its verdict.
// This is the only core component that performs network I/O.
type CallerIdentityVerifier struct {
	client          *http.Client
	serverID        string
	allowedAccounts []string
	endpoint        string
}

// NewCallerIdentityVerifier constructs a verifier with a bounded-timeout
// client. The verifier holds no per-request state and is safe for concurrent
// use.
func NewCallerIdentityVerifier(cfg VerifierConfig) *CallerIdentityVerifier {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: VerifyTimeout}
	}
	return &CallerIdentityVerifier{
		client:          client,
		serverID:        cfg.ServerID,
		allowedAccounts: cfg.AllowedAccounts,
		endpoint:        cfg.Endpoint,
	}
}

// Verify validates the proof locally, forwards it to the identity service,
// and converts the verdict into a normalized federated identity. Every
// failure — validation, transport, oracle rejection, parse — yields an error
// and no identity; there are no partial successes.
func (v *CallerIdentityVerifier) Verify(ctx context.Context, signed *SignedRequest) (*Identity, error) {
	caller, err := v.forward(ctx, signed)
	if err != nil {
		return nil, err
	}

	// The oracle's reported account is the trusted channel here: the ARN
	// inside the response must agree with it.
	return ParseFederatedARN(caller.ARN, caller.AccountID, v.allowedAccounts)
}

// forward validates and replays the signed request, returning the oracle's
// caller identity.
func (v *CallerIdentityVerifier) forward(ctx context.Context, signed *SignedRequest) (*CallerIdentity, error) {
	if err := v.validate(signed); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, signed.URL, strings.NewReader(signed.Body))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrMalformedProof, err)
	}
	for name, values := range signed.Headers {
		// Host must derive from the target URL, never from a client-supplied
		// header the signature does not bind.
		if strings.EqualFold(name, "Host") {
			continue
		}
		for _, value := range values {
			req.Header.Add(name, value)
		}
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOracleUnreachable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrOracleUnreachable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d", ErrOracleRejected, resp.StatusCode)
	}

	caller, err := parseCallerIdentityResponse(body)
	if err != nil {
		return nil, err
	}
	return caller, nil
}

// validate applies every pre-flight check. Nothing is forwarded until the
// proof targets the right endpoint, encodes the right action, and is bound to
// this server.
func (v *CallerIdentityVerifier) validate(signed *SignedRequest) error {
	if signed.Method != http.MethodPost {
		return fmt.Errorf("%w: method %s", ErrMalformedProof, signed.Method)
	}

	target, err := url.Parse(signed.URL)
	if err != nil {
		return fmt.Errorf("%w: parse url: %v", ErrMalformedProof, err)
	}
	if !v.trustedHost(target) {
		return fmt.Errorf("%w: untrusted host %q", ErrMalformedProof, target.Host)
	}

	values, err := url.ParseQuery(signed.Body)
	if err != nil || values.Get("Action") != callerIdentityAction {
		return fmt.Errorf("%w: body does not request caller identity", ErrMalformedProof)
	}

	if v.serverID != "" {
		if got := signed.Headers.Get(ServerIDHeader); got != v.serverID {
			return fmt.Errorf("%w: got %q", ErrReplayProtectionMismatch, got)
		}
	}

	return nil
}

func (v *CallerIdentityVerifier) trustedHost(target *url.URL) bool {
	if stsHostPattern.MatchString(target.Hostname()) && target.Scheme == "https" {
		return true
	}
	if v.endpoint == "" {
		return false
	}
	configured, err := url.Parse(v.endpoint)
	if err != nil {
		return false
	}
	return target.Scheme == configured.Scheme && target.Host == configured.Host
}

// The identity service answers with a namespaced XML document. The strict
// shape is tried first; a token scan matching element-name suffixes covers
// minor schema or namespace drift.
type callerIdentityResponse struct {
	XMLName xml.Name `xml:"https://sts.amazonaws.com/doc/2011-06-15/ GetCallerIdentityResponse"`
	Result  struct {
		ARN     string `xml:"Arn"`
		UserID  string `xml:"UserId"`
		Account string `xml:"Account"`
	} `xml:"GetCallerIdentityResult"`
}

func parseCallerIdentityResponse(body []byte) (*CallerIdentity, error) {
	var parsed callerIdentityResponse
	if err := xml.Unmarshal(body, &parsed); err == nil && parsed.Result.ARN != "" {
		return &CallerIdentity{
			ARN:       parsed.Result.ARN,
			UserID:    parsed.Result.UserID,
			AccountID: parsed.Result.Account,
		}, nil
	}

	caller, err := scanCallerIdentityResponse(body)
	if err != nil {
		return nil, err
	}
	return caller, nil
}

// scanCallerIdentityResponse walks the XML token stream and picks out the
// first elements whose local names end in Arn, UserId, and Account, ignoring
// namespaces entirely.
func scanCallerIdentityResponse(body []byte) (*CallerIdentity, error) {
	decoder := xml.NewDecoder(bytes.NewReader(body))
	var caller CallerIdentity
	var current string

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: malformed response body", ErrOracleRejected)
		}

		switch t := token.(type) {
		case xml.StartElement:
			current = t.Name.Local
		case xml.CharData:
			value := strings.TrimSpace(string(t))
			if value == "" {
				continue
			}
			switch {
			case caller.ARN == "" && strings.HasSuffix(current, "Arn"):
				caller.ARN = value
			case caller.UserID == "" && strings.HasSuffix(current, "UserId"):
				caller.UserID = value
			case caller.AccountID == "" && strings.HasSuffix(current, "Account"):
				caller.AccountID = value
			}
		case xml.EndElement:
			current = ""
		}
	}

	if caller.ARN == "" || caller.AccountID == "" {
		return nil, fmt.Errorf("%w: response missing caller identity", ErrOracleRejected)
	}
	return &caller, nil
}
