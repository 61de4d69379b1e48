// Package bot manages machine credentials.
//
// Bot access tokens need two properties user sessions don't: fast
// authentication lookup (a one-way hash, as for refresh credentials) and
// occasional trusted recovery of the plaintext (infrastructure bootstrap
// hands the raw token to a worker process). The two are stored side by
// side: token_hash for lookups, token_enc as an authenticated ciphertext
// recoverable only with the server-held key material. Regeneration replaces
// both columns in one statement so they can never describe different
// secrets.
package bot
