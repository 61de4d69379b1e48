// Command mew-botctl administers bot credentials against the database
// directly. It is a trusted-infrastructure tool: "recover" prints plaintext
// bot tokens, which is exactly what the reversible credential storage exists
// for, so run it only where the output is safe to display.
//
// Usage:
//
//	mew-botctl regenerate -bot <bot-id>
//	mew-botctl recover -service <service-type>
//
// Required environment: MEW_DATABASE_URL, MEW_BOT_TOKEN_KEY.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"mew/internal/app"
	"mew/internal/bot"
)

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	switch os.Args[1] {
	case "regenerate":
		fs := flag.NewFlagSet("regenerate", flag.ExitOnError)
		botID := fs.String("bot", "", "Bot ID to regenerate the token for")
		_ = fs.Parse(os.Args[2:])
		if *botID == "" {
			fatalf("regenerate: -bot is required")
		}
		run(func(ctx context.Context, m *bot.Manager) error {
			raw, err := m.Regenerate(ctx, time.Now().UTC(), *botID)
			if err != nil {
				return err
			}
			// Printed exactly once; it cannot be retrieved again without
			// the recover command.
			fmt.Println(raw)
			return nil
		})

	case "recover":
		fs := flag.NewFlagSet("recover", flag.ExitOnError)
		service := fs.String("service", "", "Service type to recover tokens for")
		_ = fs.Parse(os.Args[2:])
		if *service == "" {
			fatalf("recover: -service is required")
		}
		run(func(ctx context.Context, m *bot.Manager) error {
			recovered, err := m.RecoverTokens(ctx, *service)
			if err != nil {
				return err
			}
			for _, rec := range recovered {
				fmt.Printf("%s\t%s\t%s\n", rec.Bot.ID, rec.Bot.Name, rec.RawToken)
			}
			return nil
		})

	default:
		usage()
	}
}

func run(fn func(context.Context, *bot.Manager) error) {
	cfg := app.LoadConfig()
	if cfg.DatabaseURL == "" {
		fatalf("MEW_DATABASE_URL is required")
	}
	if cfg.BotTokenKey == "" {
		fatalf("MEW_BOT_TOKEN_KEY is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := app.NewDBPool(ctx, cfg)
	if err != nil {
		fatalf("db: %v", err)
	}
	defer pool.Close()

	codec, err := bot.NewCodec(cfg.BotTokenKey)
	if err != nil {
		fatalf("codec: %v", err)
	}

	m := bot.NewManager(app.NewLogger(cfg.LogLevel, cfg.LogFormat), codec, bot.NewPostgresStore(pool))
	if err := fn(ctx, m); err != nil {
		fatalf("%v", err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: mew-botctl {regenerate -bot <id> | recover -service <type>}")
	os.Exit(2)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "mew-botctl: "+format+"\n", args...)
	os.Exit(1)
}
