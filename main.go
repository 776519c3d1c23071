package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"library-circulation/library"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. Flags that are set explicitly override
// the environment and the config file.
func newRootCmd() *cobra.Command {
	var (
		configPath string
		flags      Config
	)

	cmd := &cobra.Command{
		Use:           "library",
		Short:         "Library circulation manager for students, faculty and librarians",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := LoadConfig(configPath)
			if err != nil {
				return err
			}
			applyFlagOverrides(cmd, &cfg, flags)
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	f := cmd.Flags()
	f.StringVar(&configPath, "config", "", "path to a yaml or .env config file")
	f.StringVar(&flags.Store, "store", "", "persistence backend: csv or sqlite")
	f.StringVar(&flags.BooksFile, "books", "", "catalog file for the csv store")
	f.StringVar(&flags.AccountsFile, "accounts", "", "accounts file for the csv store")
	f.StringVar(&flags.DBFile, "db", "", "database file for the sqlite store")
	f.StringVar(&flags.LogLevel, "log-level", "", "debug, info, warn or error")
	f.StringVar(&flags.LogFormat, "log-format", "", "console or json")
	f.BoolVar(&flags.Autosave, "autosave", true, "save after every change instead of only on exit")

	return cmd
}

func applyFlagOverrides(cmd *cobra.Command, cfg *Config, flags Config) {
	set := cmd.Flags().Changed
	if set("store") {
		cfg.Store = flags.Store
	}
	if set("books") {
		cfg.BooksFile = flags.BooksFile
	}
	if set("accounts") {
		cfg.AccountsFile = flags.AccountsFile
	}
	if set("db") {
		cfg.DBFile = flags.DBFile
	}
	if set("log-level") {
		cfg.LogLevel = flags.LogLevel
	}
	if set("log-format") {
		cfg.LogFormat = flags.LogFormat
	}
	if set("autosave") {
		cfg.Autosave = flags.Autosave
	}
}

// openStore returns the Store selected by cfg.
func openStore(cfg Config, log *zap.Logger) (library.Store, error) {
	switch cfg.Store {
	case storeSQLite:
		return library.NewDatabase(cfg.DBFile, log.Named("sqlite"))
	default:
		return library.NewCSVStore(cfg.BooksFile, cfg.AccountsFile, log.Named("csv")), nil
	}
}

func run(ctx context.Context, cfg Config) error {
	if ctx == nil {
		ctx = context.Background()
	}

	log, err := newLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer log.Sync()

	store, err := openStore(cfg, log)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	mgr := library.NewLibraryManager(store,
		library.WithLogger(log.Named("library")),
		library.WithAutosave(cfg.Autosave),
	)
	if err := mgr.Load(ctx); err != nil {
		store.Close()
		return err
	}

	shell := NewShell(os.Stdin, os.Stdout, mgr, log.Named("shell"))

	sd := &shutdown{lib: mgr}

	// The shell blocks on stdin, so a signal saves from here and exits.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)
	go func() {
		sig := <-sigs
		log.Info("shutdown signal received", zap.Stringer("signal", sig))
		shell.Stop(func() {
			first, err := sd.Close(context.Background())
			if !first {
				return
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error saving library: %v\n", err)
				os.Exit(1)
			}
			os.Exit(130)
		})
	}()

	runErr := shell.Run(ctx)

	var closeErr error
	shell.Stop(func() { _, closeErr = sd.Close(ctx) })
	if closeErr != nil {
		return fmt.Errorf("save library: %w", closeErr)
	}
	return runErr
}
