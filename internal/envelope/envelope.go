package envelope

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"
)

// Failure taxonomy. A wrong context and a tampered ciphertext are deliberately
// indistinguishable so callers cannot be used as an oracle for which check
// failed.
var (
	// ErrDecryptionFailed covers context mismatches and corrupted or
	// truncated ciphertext.
	ErrDecryptionFailed = errors.New("decryption failed")

	// ErrMalformedPlaintext marks decrypted bytes that are not valid
	// structured data. Should not occur absent a bug or an attack; fatal for
	// the operation.
	ErrMalformedPlaintext = errors.New("malformed plaintext")
)

// Purpose partitions ciphertexts by use-case. A blob sealed for one purpose
// can never be opened as another, even if an attacker swaps ciphertexts
// between records.
type Purpose string

const (
	PurposeAccessToken  Purpose = "access-token"
	PurposeWebSession   Purpose = "web-session"
	PurposeRefreshToken Purpose = "refresh-token"
)

// serviceName is the fixed service component of every encryption context.
const serviceName = "dashborion"

// idPrefixLength is how much of a record's token hash binds the ciphertext to
// its row.
const idPrefixLength = 16

// Context is the non-secret binding passed to both seal and open. It is
// rebuilt deterministically from the owning record on every operation and
// never stored next to the ciphertext it binds.
type Context struct {
	Service  string
	Purpose  Purpose
	IDPrefix string
}

// NewContext builds the binding for a record: fixed purpose, id prefix taken
// from the record's token hash.
func NewContext(purpose Purpose, tokenHash string) Context {
	prefix := tokenHash
	if len(prefix) > idPrefixLength {
		prefix = prefix[:idPrefixLength]
	}
	return Context{Service: serviceName, Purpose: purpose, IDPrefix: prefix}
}

func (c Context) toMap() map[string]string {
	return map[string]string{
		"service":   c.Service,
		"purpose":   string(c.Purpose),
		"id_prefix": c.IDPrefix,
	}
}

// KeyProvider issues and opens data keys bound to an encryption context. The
// production implementation talks to KMS; tests substitute an in-memory fake.
type KeyProvider interface {
	// GenerateDataKey returns a fresh plaintext data key together with its
	// encrypted form.
	GenerateDataKey(ctx context.Context, encryptionContext map[string]string) (plaintext, encrypted []byte, err error)

	// DecryptDataKey opens an encrypted data key. The provider must verify
	// the encryption context cryptographically and fail on any mismatch.
	DecryptDataKey(ctx context.Context, encrypted []byte, encryptionContext map[string]string) ([]byte, error)
}

// KMSKeyProvider implements KeyProvider on a managed KMS key. The client is
// constructed once at process start and passed in; there is no lazily
// initialized global.
type KMSKeyProvider struct {
	client *kms.Client
	keyID  string
}

// NewKMSKeyProvider wraps a KMS client and master key id.
func NewKMSKeyProvider(client *kms.Client, keyID string) *KMSKeyProvider {
	return &KMSKeyProvider{client: client, keyID: keyID}
}

// GenerateDataKey requests a fresh AES-256 data key bound to the context.
func (p *KMSKeyProvider) GenerateDataKey(ctx context.Context, encryptionContext map[string]string) ([]byte, []byte, error) {
	out, err := p.client.GenerateDataKey(ctx, &kms.GenerateDataKeyInput{
		KeyId:             aws.String(p.keyID),
		KeySpec:           types.DataKeySpecAes256,
		EncryptionContext: encryptionContext,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("generate data key: %w", err)
	}
	return out.Plaintext, out.CiphertextBlob, nil
}

// DecryptDataKey opens an encrypted data key; KMS verifies the context
// binding and refuses mismatches.
func (p *KMSKeyProvider) DecryptDataKey(ctx context.Context, encrypted []byte, encryptionContext map[string]string) ([]byte, error) {
	out, err := p.client.Decrypt(ctx, &kms.DecryptInput{
		CiphertextBlob:    encrypted,
		EncryptionContext: encryptionContext,
	})
	if err != nil {
		return nil, fmt.Errorf("decrypt data key: %w", err)
	}
	return out.Plaintext, nil
}

// sealedBlob is the stored envelope: version, encrypted data key, nonce, and
// ciphertext. JSON keeps the format self-describing; the byte fields encode
// as base64.
type sealedBlob struct {
	Version      int    `json:"v"`
	EncryptedKey []byte `json:"ek"`
	Nonce        []byte `json:"n"`
	Ciphertext   []byte `json:"ct"`
}

const blobVersion = 1

// Service seals and opens sensitive auth payloads with per-record data keys.
// The data key is encrypted by the managed master key; the payload is
// AES-256-GCM under the data key, so both the context binding and payload
// integrity are verified on open.
type Service struct {
	keys KeyProvider
}

// NewService constructs the envelope service around a key provider handle.
func NewService(keys KeyProvider) *Service {
	return &Service{keys: keys}
}

// Encrypt serializes v deterministically and seals it under a fresh data key
// bound to ec. The returned blob is opaque to callers.
func (s *Service) Encrypt(ctx context.Context, v any, ec Context) ([]byte, error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("serialize payload: %w", err)
	}

	dataKey, encryptedKey, err := s.keys.GenerateDataKey(ctx, ec.toMap())
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(dataKey)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("init gcm: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	blob := sealedBlob{
		Version:      blobVersion,
		EncryptedKey: encryptedKey,
		Nonce:        nonce,
		Ciphertext:   gcm.Seal(nil, nonce, plaintext, nil),
	}
	encoded, err := json.Marshal(blob)
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	return encoded, nil
}

// Decrypt opens a sealed blob with the same context used to seal it and
// unmarshals the payload into out. A context mismatch, altered bytes, or a
// truncated envelope all surface as ErrDecryptionFailed.
func (s *Service) Decrypt(ctx context.Context, sealed []byte, ec Context, out any) error {
	var blob sealedBlob
	if err := json.Unmarshal(sealed, &blob); err != nil {
		return fmt.Errorf("%w: unreadable envelope", ErrDecryptionFailed)
	}
	if blob.Version != blobVersion {
		return fmt.Errorf("%w: unsupported envelope version %d", ErrDecryptionFailed, blob.Version)
	}

	dataKey, err := s.keys.DecryptDataKey(ctx, blob.EncryptedKey, ec.toMap())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}

	block, err := aes.NewCipher(dataKey)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	if len(blob.Nonce) != gcm.NonceSize() {
		return fmt.Errorf("%w: bad nonce", ErrDecryptionFailed)
	}

	plaintext, err := gcm.Open(nil, blob.Nonce, blob.Ciphertext, nil)
	if err != nil {
		return fmt.Errorf("%w: integrity check failed", ErrDecryptionFailed)
	}

	if err := json.Unmarshal(plaintext, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPlaintext, err)
	}
	return nil
}
