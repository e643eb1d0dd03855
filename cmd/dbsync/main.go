package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/tordrt/dbsync/internal/dbimport"
	"github.com/tordrt/dbsync/internal/formatter"
)

var (
	configPath         string
	dbURL              string
	targetMap          string
	projectFile        string
	defaultPackage     string
	namingStrategy     string
	meaningfulPKTables string
	skipRelationships  bool
	skipPrimaryKeys    bool
	verbose            bool
	quiet              bool

	dryRun     bool
	watch      bool
	format     string
	outputFile string
)

var rootCmd = &cobra.Command{
	Use:   "dbsync",
	Short: "Import database schemas into data map files",
	Long: `dbsync reads the schema of a PostgreSQL, MySQL or SQLite database, compares it with a data map file
and updates the map so that it matches the database.`,
	SilenceUsage: true,
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Merge the database schema into the data map",
	Long: `Merge the database schema into the data map.

With --watch the import runs again whenever the config file changes. Table
metadata read by earlier runs is reused for up to metadata_cache_ttl; tables
matched by a pinned include_tables entry are always re-read from the database.`,
	RunE: runImport,
}

var diffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Show the changes an import would make",
	RunE:  runDiff,
}

func init() {
	addConfigFlags(rootCmd)

	importCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Detect changes without saving them")
	importCmd.Flags().BoolVar(&watch, "watch", false, "Re-import whenever the config file changes (requires --config); only pinned tables bypass the metadata cache")

	diffCmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text or markdown")
	diffCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")

	rootCmd.AddCommand(importCmd, diffCmd)
}

// addConfigFlags registers the flags that override the config file
func addConfigFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "", "TOML config file")
	flags.StringVar(&dbURL, "url", "", "Database URL (postgres://, mysql:// or sqlite://)")
	flags.StringVarP(&targetMap, "target", "t", "", "Data map file (.map.xml, .map.yaml or .map.yml)")
	flags.StringVar(&projectFile, "project", "", "Project descriptor to register the map in")
	flags.StringVar(&defaultPackage, "default-package", "", "Package for new classes")
	flags.StringVar(&namingStrategy, "naming-strategy", "", "Naming strategy: default or legacy")
	flags.StringVar(&meaningfulPKTables, "meaningful-pk-tables", "", "Comma-separated patterns of tables whose primary keys are mapped")
	flags.BoolVar(&skipRelationships, "skip-relationships", false, "Do not import relationships")
	flags.BoolVar(&skipPrimaryKeys, "skip-primary-keys", false, "Do not import primary keys")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Log debug messages")
	flags.BoolVarP(&quiet, "quiet", "q", false, "Only log warnings and errors")
}

// configFromFlags reads the config file, if any, and applies the flags that
// were set on the command line
func configFromFlags(cmd *cobra.Command) (*dbimport.Config, error) {
	cfg := dbimport.NewConfig()
	if configPath != "" {
		var err error
		if cfg, err = dbimport.ReadConfig(configPath); err != nil {
			return nil, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("url") {
		cfg.Source.URL = dbURL
	}
	if flags.Changed("target") {
		cfg.TargetDataMap = targetMap
	}
	if flags.Changed("project") {
		cfg.Project = projectFile
	}
	if flags.Changed("default-package") {
		cfg.DefaultPackage = defaultPackage
	}
	if flags.Changed("naming-strategy") {
		cfg.ReverseEngineering.NamingStrategy = namingStrategy
	}
	if flags.Changed("meaningful-pk-tables") {
		cfg.ReverseEngineering.MeaningfulPKTables = meaningfulPKTables
	}
	if flags.Changed("skip-relationships") {
		cfg.ReverseEngineering.SkipRelationshipsLoading = skipRelationships
	}
	if flags.Changed("skip-primary-keys") {
		cfg.ReverseEngineering.SkipPrimaryKeyLoading = skipPrimaryKeys
	}
	if flags.Changed("dry-run") {
		cfg.DryRun = dryRun
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	switch {
	case verbose:
		level = slog.LevelDebug
	case quiet:
		level = slog.LevelWarn
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(handler).With("run", uuid.NewString())
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	if watch && configPath == "" {
		return fmt.Errorf("--watch requires --config")
	}

	cfg, err := configFromFlags(cmd)
	if err != nil {
		return err
	}

	logger := newLogger(cmd.ErrOrStderr())
	action := dbimport.NewAction(dbimport.ActionOptions{Logger: logger})
	if err := action.Execute(ctx, cfg); err != nil {
		return fmt.Errorf("import failed: %w", err)
	}
	if !watch {
		return nil
	}

	logger.Info(fmt.Sprintf("Watching %s for changes", configPath))
	return watchConfig(ctx, configPath, logger, func(ctx context.Context) error {
		cfg, err := configFromFlags(cmd)
		if err != nil {
			return err
		}
		return action.Execute(ctx, cfg)
	})
}

func runDiff(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	cfg, err := configFromFlags(cmd)
	if err != nil {
		return err
	}

	var writer = cmd.OutOrStdout()
	if outputFile != "" {
		f, err := os.Create(outputFile)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer func() {
			if err := f.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to close output file: %v\n", err)
			}
		}()
		writer = f
	}

	report, err := formatter.New(format, writer)
	if err != nil {
		return err
	}

	action := dbimport.NewAction(dbimport.ActionOptions{Logger: newLogger(cmd.ErrOrStderr())})
	if err := action.Load(ctx, cfg); err != nil {
		return fmt.Errorf("diff failed: %w", err)
	}
	if err := report.Format(action.Tokens()); err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
