package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sakif/snippet-store/internal/repository/sqlstore"
	"github.com/sakif/snippet-store/internal/service"
)

// rootOptions carries the persistent flags. Every subcommand gets the
// same *rootOptions, filled in by resolve before any RunE.
type rootOptions struct {
	cfgFile  string
	dbDriver string
	dbDSN    string
	owner    string
	output   string
	verbose  bool
}

// envBindings maps persistent flags to the environment variables that can
// set them. The database variables are the ones cmd/server reads.
var envBindings = map[string]string{
	"db-driver": "DB_DRIVER",
	"db-dsn":    "DB_DSN",
	"owner":     "SNIPPET_OWNER",
	"output":    "SNIPPET_OUTPUT",
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	v := viper.New()

	cmd := &cobra.Command{
		Use:           "snippetctl",
		Short:         "Manage versioned code snippets in a snippet store database",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return opts.resolve(v)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.cfgFile, "config", "", "yaml config file with db-driver, db-dsn, owner and output keys")
	flags.String("db-driver", "sqlite", "database driver: sqlite or postgres")
	flags.String("db-dsn", "data/snippets.db", "sqlite file path or postgres connection URL")
	flags.String("owner", "", "owner id the command acts for")
	flags.StringP("output", "o", "yaml", "output format: yaml or json")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log debug output to stderr")

	// Precedence: explicit flag, then environment, then config file, then
	// the flag default.
	for name, env := range envBindings {
		_ = v.BindPFlag(name, flags.Lookup(name))
		_ = v.BindEnv(name, env)
	}

	cmd.AddCommand(
		newPutCmd(opts),
		newGetCmd(opts),
		newListCmd(opts),
		newHistoryCmd(opts),
		newSearchCmd(opts),
		newRemoveCmd(opts),
	)
	return cmd
}

// resolve reads the optional config file and copies the bound settings
// into o.
func (o *rootOptions) resolve(v *viper.Viper) error {
	if o.cfgFile != "" {
		v.SetConfigFile(o.cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config %s: %w", o.cfgFile, err)
		}
	}

	o.dbDriver = v.GetString("db-driver")
	o.dbDSN = v.GetString("db-dsn")
	o.owner = v.GetString("owner")
	o.output = v.GetString("output")

	if o.output != "yaml" && o.output != "json" {
		return fmt.Errorf("invalid --output %q: want yaml or json", o.output)
	}
	return nil
}

// run opens the store, hands fn a service over it and closes the store
// again, whatever fn returns.
func (o *rootOptions) run(cmd *cobra.Command, fn func(svc *service.SnippetService) error) (err error) {
	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	storeCfg := sqlstore.Config{Driver: o.dbDriver, DSN: o.dbDSN}
	if dir := storeCfg.DataDir(); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	db, err := sqlstore.Open(cmd.Context(), storeCfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := db.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	return fn(service.NewSnippetService(db, logger))
}

func (o *rootOptions) render(w io.Writer, v any) error {
	return render(w, o.output, v)
}
