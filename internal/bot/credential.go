package bot

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"

	"mew/security/token"
)

// gcmTagSize is fixed for AES-GCM; stored as a separate ciphertext part.
const gcmTagSize = 16

// hkdfInfo domain-separates the derived key from any other use of the
// server key material. Changing it invalidates every stored ciphertext.
const hkdfInfo = "mew bot access token v1"

// HashAccessToken computes the storage lookup hash for a bot access token.
// Same contract as refresh-credential hashing: unkeyed, deterministic, fast.
func HashAccessToken(raw string) string {
	return token.HashHex(raw)
}

// NewAccessToken generates a fresh opaque bot access token.
func NewAccessToken() (string, error) {
	return token.NewOpaque(32)
}

// Codec reversibly encrypts bot access tokens under a key derived from
// server-held key material. The raw token never acts as key input.
type Codec struct {
	aead cipher.AEAD
}

// NewCodec derives a 256-bit AES-GCM key from keyMaterial via HKDF-SHA256.
// The material is a deployment secret (never a bot token); an empty value
// fails construction rather than silently producing a guessable key.
func NewCodec(keyMaterial string) (*Codec, error) {
	if strings.TrimSpace(keyMaterial) == "" {
		return nil, ErrKeyMaterialMissing
	}

	key := make([]byte, 32)
	kdf := hkdf.New(sha256.New, []byte(keyMaterial), nil, []byte(hkdfInfo))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	return &Codec{aead: aead}, nil
}

// Encrypt produces the storage form of a raw token:
// base64url(nonce).base64url(ciphertext).base64url(tag), nonce fresh per call.
func (c *Codec) Encrypt(raw string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	sealed := c.aead.Seal(nil, nonce, []byte(raw), nil)
	ct := sealed[:len(sealed)-gcmTagSize]
	tag := sealed[len(sealed)-gcmTagSize:]

	enc := base64.RawURLEncoding
	return enc.EncodeToString(nonce) + "." + enc.EncodeToString(ct) + "." + enc.EncodeToString(tag), nil
}

// Decrypt recovers the raw token from its storage form. It fails closed:
// wrong part count, bad encoding, wrong nonce size, or tag mismatch all
// error, never return partial plaintext.
func (c *Codec) Decrypt(stored string) (string, error) {
	parts := strings.Split(stored, ".")
	if len(parts) != 3 {
		return "", ErrMalformedCiphertext
	}

	enc := base64.RawURLEncoding
	nonce, err := enc.DecodeString(parts[0])
	if err != nil {
		return "", ErrMalformedCiphertext
	}
	ct, err := enc.DecodeString(parts[1])
	if err != nil {
		return "", ErrMalformedCiphertext
	}
	tag, err := enc.DecodeString(parts[2])
	if err != nil {
		return "", ErrMalformedCiphertext
	}
	if len(nonce) != c.aead.NonceSize() || len(tag) != gcmTagSize {
		return "", ErrMalformedCiphertext
	}

	plain, err := c.aead.Open(nil, nonce, append(ct, tag...), nil)
	if err != nil {
		return "", ErrDecryptFailed
	}
	return string(plain), nil
}
