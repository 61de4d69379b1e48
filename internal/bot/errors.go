package bot

import "errors"

var (
	// ErrKeyMaterialMissing is returned when the codec is built without a secret.
	ErrKeyMaterialMissing = errors.New("bot token key material missing")

	// ErrMalformedCiphertext is returned for storage strings that do not have
	// the expected nonce.ciphertext.tag shape or valid encoding.
	ErrMalformedCiphertext = errors.New("malformed bot token ciphertext")

	// ErrDecryptFailed is returned when authentication of the ciphertext fails
	// (wrong key material or tampering).
	ErrDecryptFailed = errors.New("bot token decryption failed")

	// ErrNotFound is returned when no bot matches the given credential or ID.
	ErrNotFound = errors.New("bot not found")
)
