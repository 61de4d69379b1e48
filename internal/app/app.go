// Package app wires the Mew auth server runtime: config, logging, storage
// and the HTTP surface.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	authapi "mew/internal/auth/api"
	"mew/internal/auth/session"
	"mew/internal/bot"
	"mew/internal/identity"

	"github.com/jackc/pgx/v5/pgxpool"
)

// App owns the HTTP server and the lifecycle of its backing resources.
type App struct {
	cfg Config
	log Logger

	dbPool    *pgxpool.Pool
	dbEnabled bool

	auth  *authapi.Handler
	guard authapi.CsrfGuard
}

// New constructs a fully wired App instance from config and logger.
func New(cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}

	if err := ValidateSecurityConfig(cfg); err != nil {
		return nil, err
	}

	var (
		dbPool    *pgxpool.Pool
		dbEnabled bool

		sessStore  session.Store
		identStore identity.Store
		botStore   bot.Store
	)
	if cfg.DatabaseURL == "" {
		// Dev mode: everything in memory, nothing survives a restart.
		log.Info("db.disabled.inmemory_store")
		sessStore = session.NewMemoryStore()
		identStore = identity.NewMemoryStore()
		botStore = bot.NewMemoryStore()
	} else {
		pool, err := NewDBPool(context.Background(), cfg)
		if err != nil {
			return nil, err
		}
		log.Info("db.enabled.postgres_store")
		dbPool = pool
		dbEnabled = true
		sessStore = session.NewPostgresStore(pool)
		identStore = identity.NewPostgresStore(pool)
		botStore = bot.NewPostgresStore(pool)
	}

	sessCfg, err := session.LoadConfigFromEnv()
	if err != nil {
		if dbPool != nil {
			dbPool.Close()
		}
		return nil, err
	}

	tokens, err := session.NewPasetoV4PublicManager(sessCfg)
	if err != nil {
		if dbPool != nil {
			dbPool.Close()
		}
		return nil, err
	}
	sessions := session.NewService(log, sessCfg, sessStore, tokens)

	identSvc, err := identity.NewService(log, identStore)
	if err != nil {
		if dbPool != nil {
			dbPool.Close()
		}
		return nil, err
	}

	authCfg := authapi.LoadConfigFromEnv()

	var opts []authapi.HandlerOption
	if cfg.BotTokenKey != "" {
		codec, err := bot.NewCodec(cfg.BotTokenKey)
		if err != nil {
			if dbPool != nil {
				dbPool.Close()
			}
			return nil, err
		}
		opts = append(opts, authapi.WithBotManager(bot.NewManager(log, codec, botStore)))
	} else {
		log.Info("bot.disabled.no_key_material")
	}
	if dbEnabled {
		opts = append(opts, authapi.WithAuditPool(dbPool))
	}

	auth, err := authapi.NewHandler(log, authCfg, sessions, identSvc, identSvc, opts...)
	if err != nil {
		if dbPool != nil {
			dbPool.Close()
		}
		return nil, err
	}

	return &App{
		cfg:       cfg,
		log:       log,
		dbPool:    dbPool,
		dbEnabled: dbEnabled,
		auth:      auth,
		guard:     authapi.NewCsrfGuard(authCfg),
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or a
// fatal server error.
func (a *App) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.cfg, a.dbPool, a.dbEnabled, a.auth)

	handler := WithRequestLogging(a.guard.Middleware(mux), a.log)

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "db_enabled", a.dbEnabled)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	if a.dbPool != nil {
		a.dbPool.Close()
	}

	a.log.Info("server.stopped")
	return nil
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
