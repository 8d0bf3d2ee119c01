package envelope

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeKeyProvider mimics the managed key service: data keys are wrapped with
// a local master key and the encryption context is folded into the wrap so a
// mismatched context fails to open, as KMS guarantees.
type fakeKeyProvider struct {
	master []byte
}

func newFakeKeyProvider() *fakeKeyProvider {
	master := make([]byte, 32)
	if _, err := rand.Read(master); err != nil {
		panic(err)
	}
	return &fakeKeyProvider{master: master}
}

func (f *fakeKeyProvider) wrapGCM() (cipher.AEAD, error) {
	block, err := aes.NewCipher(f.master)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func contextAAD(encryptionContext map[string]string) []byte {
	aad, _ := json.Marshal(encryptionContext)
	return aad
}

func (f *fakeKeyProvider) GenerateDataKey(_ context.Context, encryptionContext map[string]string) ([]byte, []byte, error) {
	plaintext := make([]byte, 32)
	if _, err := rand.Read(plaintext); err != nil {
		return nil, nil, err
	}

	gcm, err := f.wrapGCM()
	if err != nil {
		return nil, nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, err
	}

	encrypted := append(append([]byte{}, nonce...), gcm.Seal(nil, nonce, plaintext, contextAAD(encryptionContext))...)
	return plaintext, encrypted, nil
}

func (f *fakeKeyProvider) DecryptDataKey(_ context.Context, encrypted []byte, encryptionContext map[string]string) ([]byte, error) {
	gcm, err := f.wrapGCM()
	if err != nil {
		return nil, err
	}
	if len(encrypted) < gcm.NonceSize() {
		return nil, fmt.Errorf("truncated data key")
	}
	nonce, sealed := encrypted[:gcm.NonceSize()], encrypted[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, sealed, contextAAD(encryptionContext))
	if err != nil {
		return nil, fmt.Errorf("invalid ciphertext or context")
	}
	return plaintext, nil
}

type tokenMetadata struct {
	Email     string `json:"email"`
	UserID    string `json:"user_id"`
	ExpiresAt int64  `json:"expires_at"`
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	svc := NewService(newFakeKeyProvider())
	ec := NewContext(PurposeAccessToken, "9f86d081884c7d659a2feaa0c55ad015")

	in := tokenMetadata{Email: "alice@example.com", UserID: "u-1", ExpiresAt: 1700000000}

	sealed, err := svc.Encrypt(context.Background(), in, ec)
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "alice@example.com")

	var out tokenMetadata
	require.NoError(t, svc.Decrypt(context.Background(), sealed, ec, &out))
	assert.Equal(t, in, out)
}

func TestDecrypt_ContextMismatchFails(t *testing.T) {
	svc := NewService(newFakeKeyProvider())
	hash := "9f86d081884c7d659a2feaa0c55ad015"

	sealed, err := svc.Encrypt(context.Background(), tokenMetadata{Email: "alice@example.com"}, NewContext(PurposeAccessToken, hash))
	require.NoError(t, err)

	var out tokenMetadata

	// Different purpose: a refresh-token blob can never open as an access token.
	err = svc.Decrypt(context.Background(), sealed, NewContext(PurposeRefreshToken, hash), &out)
	assert.ErrorIs(t, err, ErrDecryptionFailed)

	// Different record binding.
	err = svc.Decrypt(context.Background(), sealed, NewContext(PurposeAccessToken, "ffffffffffffffff"), &out)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestDecrypt_TamperedCiphertextFails(t *testing.T) {
	svc := NewService(newFakeKeyProvider())
	ec := NewContext(PurposeWebSession, "aaaabbbbccccdddd")

	sealed, err := svc.Encrypt(context.Background(), tokenMetadata{Email: "bob@example.com"}, ec)
	require.NoError(t, err)

	var blob sealedBlob
	require.NoError(t, json.Unmarshal(sealed, &blob))
	blob.Ciphertext[0] ^= 0xff
	tampered, err := json.Marshal(blob)
	require.NoError(t, err)

	var out tokenMetadata
	err = svc.Decrypt(context.Background(), tampered, ec, &out)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestDecrypt_GarbageInputFails(t *testing.T) {
	svc := NewService(newFakeKeyProvider())
	ec := NewContext(PurposeAccessToken, "aaaabbbbccccdddd")

	var out tokenMetadata
	assert.ErrorIs(t, svc.Decrypt(context.Background(), []byte("not an envelope"), ec, &out), ErrDecryptionFailed)
	assert.ErrorIs(t, svc.Decrypt(context.Background(), bytes.Repeat([]byte("x"), 64), ec, &out), ErrDecryptionFailed)
}

func TestNewContext_PrefixTruncation(t *testing.T) {
	ec := NewContext(PurposeAccessToken, "0123456789abcdef0123456789abcdef")
	assert.Equal(t, "0123456789abcdef", ec.IDPrefix)
	assert.Equal(t, "dashborion", ec.Service)

	short := NewContext(PurposeAccessToken, "abcd")
	assert.Equal(t, "abcd", short.IDPrefix)
}
