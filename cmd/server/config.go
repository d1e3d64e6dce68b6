package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/kouhin/envflag"

	"github.com/sakif/snippet-store/internal/repository/sqlstore"
)

// config is read from flags, each of which can also be set through the
// environment: envflag maps -db-dsn to DB_DSN, -log-level to LOG_LEVEL and
// so on. A flag given on the command line wins over the environment.
type config struct {
	Port            int
	MetricsPort     int
	DBDriver        string
	DBDSN           string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

func (c *config) register(fs *flag.FlagSet) {
	fs.IntVar(&c.Port, "port", 8080, "the port of the HTTP API listener")
	fs.IntVar(&c.MetricsPort, "metrics-port", 0, "the port for pulling prometheus metrics; 0 serves /metrics on the API port")
	fs.StringVar(&c.DBDriver, "db-driver", "sqlite", "database driver to use. should be `sqlite` (default) or `postgres`")
	fs.StringVar(&c.DBDSN, "db-dsn", "data/snippets.db", "sqlite file path (or :memory:) or postgres connection URL")
	fs.StringVar(&c.LogLevel, "log-level", "info", "minimum log level: debug, info, warn or error")
	fs.StringVar(&c.LogFormat, "log-format", "text", "log output format: text or json")
	fs.DurationVar(&c.ShutdownTimeout, "shutdown-timeout", 30*time.Second, "how long in-flight requests get to finish on shutdown")
}

// loadConfig parses the process flags and environment.
func loadConfig() (config, error) {
	var cfg config
	cfg.register(flag.CommandLine)

	flag.Usage = func() {
		_, _ = fmt.Fprintf(flag.CommandLine.Output(), "starts the snippet store HTTP API\n")
		flag.PrintDefaults()
	}

	if err := envflag.Parse(); err != nil {
		return config{}, fmt.Errorf("parsing flags: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return config{}, err
	}
	return cfg, nil
}

func (c config) storeConfig() sqlstore.Config {
	return sqlstore.Config{Driver: c.DBDriver, DSN: c.DBDSN}
}

func (c config) validate() error {
	switch strings.ToLower(c.DBDriver) {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("invalid -db-driver %q: want sqlite or postgres", c.DBDriver)
	}
	if c.DBDSN == "" {
		return fmt.Errorf("-db-dsn is required")
	}
	if c.Port < 0 || c.MetricsPort < 0 {
		return fmt.Errorf("ports must not be negative")
	}
	if c.MetricsPort != 0 && c.MetricsPort == c.Port {
		return fmt.Errorf("-metrics-port must differ from -port")
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid -log-format %q: want text or json", c.LogFormat)
	}
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid -log-level %q: %w", s, err)
	}
	return level, nil
}

// newLogger builds the process logger. Text is for terminals, JSON for log
// shippers.
func newLogger(w io.Writer, level, format string) *slog.Logger {
	lvl, err := parseLevel(level)
	if err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}

	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
