// Package main is the entry point for the snippet store HTTP API.
//
// The main package stays minimal. Its job is to:
//  1. Read configuration (flags, overridable from the environment)
//  2. Create dependencies (logger, database handle)
//  3. Run the server until SIGINT/SIGTERM, then close the database
//
// All actual logic lives in internal/.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/sakif/snippet-store/internal/repository/sqlstore"
	"github.com/sakif/snippet-store/internal/server"
)

func main() {
	// === 1. CONFIGURATION ===
	cfg, err := loadConfig()
	if err != nil {
		slog.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(2)
	}

	// === 2. LOGGING ===
	logger := newLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server terminated", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg config, logger *slog.Logger) error {
	// signal.NotifyContext cancels ctx on the first SIGINT/SIGTERM; Start
	// then shuts the listeners down gracefully.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// === 3. DATABASE ===
	if err := ensureDataDir(cfg); err != nil {
		return err
	}

	db, err := sqlstore.Open(ctx, cfg.storeConfig())
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("failed to close database", slog.String("error", err.Error()))
			return
		}
		logger.Info("database closed")
	}()

	logger.Info("database opened",
		slog.String("driver", db.Driver()),
		slog.String("dsn", redactDSN(cfg.DBDriver, cfg.DBDSN)),
	)

	// === 4. SERVER ===
	srv := server.New(server.Config{
		Port:            cfg.Port,
		MetricsPort:     cfg.MetricsPort,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, db, logger)

	return srv.Start(ctx)
}

// ensureDataDir creates the parent directory of a sqlite file (like
// `mkdir -p`). Postgres and in-memory databases need nothing.
func ensureDataDir(cfg config) error {
	dir := cfg.storeConfig().DataDir()
	if dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
