package app

import "time"

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	// If true, /readyz returns 503 unless the database is configured and
	// reachable.
	ReadinessRequireDB bool

	// If true, MEW_TOKEN_HMAC_KEY must be set (>= 32 bytes) and refresh
	// token hashing must run in HMAC mode.
	RequireTokenHMAC bool

	// Key material for the bot credential codec. Bot login and token
	// recovery are disabled when empty.
	BotTokenKey string
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr:  EnvString("MEW_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel:  EnvString("MEW_LOG_LEVEL", "info"),
		LogFormat: EnvString("MEW_LOG_FORMAT", "json"),

		ReadHeaderTimeout: EnvDuration("MEW_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("MEW_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("MEW_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("MEW_HTTP_IDLE_TIMEOUT", 60*time.Second),

		MaxHeaderBytes: EnvInt("MEW_HTTP_MAX_HEADER_BYTES", 1<<20),

		DatabaseURL: EnvString("MEW_DATABASE_URL", ""),
		DBMaxConns:  EnvInt32("MEW_DB_MAX_CONNS", 10),
		DBMinConns:  EnvInt32("MEW_DB_MIN_CONNS", 0),

		ReadinessRequireDB: EnvBool("MEW_READINESS_REQUIRE_DB", false),

		RequireTokenHMAC: EnvBool("MEW_REQUIRE_TOKEN_HMAC", false),
		BotTokenKey:      EnvString("MEW_BOT_TOKEN_KEY", ""),
	}
}
