package bot

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestCodec_RoundTrip(t *testing.T) {
	c, err := NewCodec("server-key-material")
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}

	raw := strings.Repeat("t", 32)
	enc, err := c.Encrypt(raw)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if parts := strings.Split(enc, "."); len(parts) != 3 {
		t.Fatalf("expected nonce.ciphertext.tag, got %d parts", len(parts))
	}

	got, err := c.Decrypt(enc)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if got != raw {
		t.Fatalf("round trip mismatch: %q", got)
	}
}

func TestCodec_NonceFreshPerEncryption(t *testing.T) {
	c, err := NewCodec("server-key-material")
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}

	a, _ := c.Encrypt("same-token")
	b, _ := c.Encrypt("same-token")
	if a == b {
		t.Fatalf("two encryptions of the same token must differ")
	}
}

func TestCodec_WrongKeyMaterialFails(t *testing.T) {
	c1, _ := NewCodec("key-material-one")
	c2, _ := NewCodec("key-material-two")

	enc, err := c1.Encrypt(strings.Repeat("x", 32))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	if _, err := c2.Decrypt(enc); !errors.Is(err, ErrDecryptFailed) {
		t.Fatalf("expected ErrDecryptFailed, got %v", err)
	}
}

func TestCodec_MalformedCiphertextFailsClosed(t *testing.T) {
	c, _ := NewCodec("server-key-material")
	enc, err := c.Encrypt(strings.Repeat("x", 32))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	cases := map[string]string{
		"two parts":     "abc.def",
		"four parts":    enc + ".extra",
		"bad base64":    "!!!.def.ghi",
		"empty":         "",
		"truncated":     enc[:len(enc)-4],
		"swapped parts": swapFirstTwoParts(enc),
	}
	for name, in := range cases {
		_, err := c.Decrypt(in)
		if err == nil {
			t.Fatalf("%s: expected error", name)
		}
		if !errors.Is(err, ErrMalformedCiphertext) && !errors.Is(err, ErrDecryptFailed) {
			t.Fatalf("%s: unexpected error %v", name, err)
		}
	}
}

func swapFirstTwoParts(enc string) string {
	parts := strings.Split(enc, ".")
	parts[0], parts[1] = parts[1], parts[0]
	return strings.Join(parts, ".")
}

func TestNewCodec_RequiresKeyMaterial(t *testing.T) {
	if _, err := NewCodec("  "); !errors.Is(err, ErrKeyMaterialMissing) {
		t.Fatalf("expected ErrKeyMaterialMissing, got %v", err)
	}
}

func TestManager_RegenerateReplacesBothFields(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	codec, _ := NewCodec("server-key-material")
	store := NewMemoryStore()
	mgr := NewManager(nil, codec, store)

	oldRaw := strings.Repeat("o", 32)
	store.Put(Row{
		ID:          "bot-1",
		Name:        "feed-bot",
		BotUserID:   "user-bot-1",
		ServiceType: "rss-fetcher",
		TokenHash:   HashAccessToken(oldRaw),
	})

	raw, err := mgr.Regenerate(ctx, now, "bot-1")
	if err != nil {
		t.Fatalf("Regenerate: %v", err)
	}

	// Old token no longer authenticates, new one does.
	if _, err := mgr.Authenticate(ctx, oldRaw); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected old token to be dead, got %v", err)
	}
	row, err := mgr.Authenticate(ctx, raw)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}

	// Hash and ciphertext must describe the same secret.
	if row.TokenHash != HashAccessToken(raw) {
		t.Fatalf("stored hash does not match new token")
	}
	if row.TokenEnc == nil {
		t.Fatalf("ciphertext missing after regeneration")
	}
	dec, err := codec.Decrypt(*row.TokenEnc)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if dec != raw {
		t.Fatalf("ciphertext recovers %q, want the regenerated token", dec)
	}
}

func TestManager_RegenerateUnknownBot(t *testing.T) {
	codec, _ := NewCodec("server-key-material")
	mgr := NewManager(nil, codec, NewMemoryStore())

	if _, err := mgr.Regenerate(context.Background(), time.Now().UTC(), "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestManager_RecoverTokens(t *testing.T) {
	ctx := context.Background()
	codec, _ := NewCodec("server-key-material")
	store := NewMemoryStore()
	mgr := NewManager(nil, codec, store)

	raw := strings.Repeat("r", 32)
	enc, _ := codec.Encrypt(raw)
	store.Put(Row{ID: "bot-1", ServiceType: "rss-fetcher", TokenHash: HashAccessToken(raw), TokenEnc: &enc})
	// Legacy row without reversible storage: recoverable set skips it.
	store.Put(Row{ID: "bot-2", ServiceType: "rss-fetcher", TokenHash: HashAccessToken("legacy")})

	got, err := mgr.RecoverTokens(ctx, "rss-fetcher")
	if err != nil {
		t.Fatalf("RecoverTokens: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 recoverable bot, got %d", len(got))
	}
	if got[0].RawToken != raw {
		t.Fatalf("recovered %q, want original token", got[0].RawToken)
	}

	// Tampered ciphertext aborts recovery.
	bad := "abc.def.ghi"
	store.Put(Row{ID: "bot-3", ServiceType: "rss-fetcher", TokenHash: HashAccessToken("other"), TokenEnc: &bad})
	if _, err := mgr.RecoverTokens(ctx, "rss-fetcher"); err == nil {
		t.Fatalf("expected recovery to fail on tampered ciphertext")
	}
}
