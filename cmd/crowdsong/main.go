package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/crowdsong/crowdsong/internal/app"
	"github.com/crowdsong/crowdsong/internal/config"
	"github.com/crowdsong/crowdsong/internal/logger"
)

var (
	version = "dev"
)

const usage = `CrowdSong - crowd-driven song sessions

Usage:
  crowdsong [options]

Every option can also be set with a CROWDSONG_* environment variable
(for example CROWDSONG_PORT=8080); flags win over the environment.

Examples:
  crowdsong                                   # Run on port 8081 with crowdsong.db
  crowdsong -port 8080 -db /data/crowd.db     # Custom port and database
  crowdsong -reputation http://rep:9000       # Weight votes by reputation
  crowdsong -logformat json -loglevel debug   # Structured debug logs

Options:
`

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := config.Load(args, os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			fmt.Fprint(os.Stderr, usage)
			return 0
		}
		fmt.Fprintln(os.Stderr, "crowdsong:", err)
		return 2
	}
	if cfg.ShowVersion {
		fmt.Println("crowdsong", version)
		return 0
	}

	appLog := logger.NewWithOptions(logger.Options{
		Level:  logger.ParseLevel(cfg.LogLevel),
		Format: cfg.LogFormat,
	})
	if cfg.HTTPLogging {
		appLog.EnableHTTPLogging()
	}

	a, err := app.New(cfg, appLog, nil)
	if err != nil {
		appLog.Error("Failed to initialize application", "error", err)
		return 1
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appLog.Info("CrowdSong starting", "version", version, "db", cfg.DBPath)
	if err := a.Run(ctx); err != nil {
		appLog.Error("Server stopped", "error", err)
		return 1
	}
	appLog.Info("Server stopped")
	return 0
}
