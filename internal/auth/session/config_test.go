package session

import (
	"testing"
	"time"

	paseto "aidanwoods.dev/go-paseto"
)

func TestParseTTLSeconds(t *testing.T) {
	fallback := DefaultAccessTTL

	tests := []struct {
		in   string
		want time.Duration
	}{
		{in: "60", want: 60 * time.Second},
		{in: "90s", want: 90 * time.Second},
		{in: "15m", want: 15 * time.Minute},
		{in: "2h", want: 2 * time.Hour},
		{in: "7d", want: 7 * 24 * time.Hour},
		{in: "2w", want: 14 * 24 * time.Hour},
		{in: " 2h ", want: 2 * time.Hour},
		{in: "", want: fallback},
		{in: "weird", want: fallback},
		{in: "h", want: fallback},
		{in: "0", want: fallback},
		{in: "-5m", want: fallback},
		{in: "10y", want: fallback},
	}

	for _, tc := range tests {
		got := ParseTTLSeconds(tc.in, fallback)
		if got != tc.want {
			t.Fatalf("ParseTTLSeconds(%q)=%v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	secret := paseto.NewV4AsymmetricSecretKey()
	t.Setenv("MEW_PASETO_V4_SECRET_KEY_HEX", secret.ExportHex())
	t.Setenv("MEW_AUTH_ACCESS_TTL", "2h")
	t.Setenv("MEW_AUTH_REFRESH_TTL", "2w")
	t.Setenv("MEW_AUTH_REFRESH_TOKEN_BYTES", "48")

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("LoadConfigFromEnv: %v", err)
	}
	if cfg.AccessTokenTTL != 2*time.Hour {
		t.Fatalf("AccessTokenTTL=%v", cfg.AccessTokenTTL)
	}
	if cfg.RefreshTTL != 14*24*time.Hour {
		t.Fatalf("RefreshTTL=%v", cfg.RefreshTTL)
	}
	if cfg.RefreshTokenBytes != 48 {
		t.Fatalf("RefreshTokenBytes=%d", cfg.RefreshTokenBytes)
	}
}

func TestLoadConfigFromEnv_RequiresSigningKey(t *testing.T) {
	t.Setenv("MEW_PASETO_V4_SECRET_KEY_HEX", "")

	if _, err := LoadConfigFromEnv(); err != ErrConfig {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
}

func TestLoadConfigFromEnv_UnparseableTTLFallsBack(t *testing.T) {
	secret := paseto.NewV4AsymmetricSecretKey()
	t.Setenv("MEW_PASETO_V4_SECRET_KEY_HEX", secret.ExportHex())
	t.Setenv("MEW_AUTH_ACCESS_TTL", "weird")

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("LoadConfigFromEnv: %v", err)
	}
	if cfg.AccessTokenTTL != DefaultAccessTTL {
		t.Fatalf("expected fallback %v, got %v", DefaultAccessTTL, cfg.AccessTokenTTL)
	}
}
