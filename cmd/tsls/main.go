package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jward/tsls"
	"github.com/jward/tsls/internal/config"
	"github.com/jward/tsls/internal/logging"
)

// version is overridden at link time with -ldflags "-X main.version=...".
var version = "dev"

var (
	flagConfig     string
	flagLogLevel   string
	flagQueriesDir string
	flagFormat     string
)

// errorHandled is set by outputError so main() doesn't double-print.
var errorHandled bool

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "tsls",
	Short: "Incremental tree-sitter analysis engine and language server",
	Long: "tsls parses documents with tree-sitter, indexes scopes and symbols from query assets, " +
		"and answers definition, reference, rename, completion and symbol requests.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return validateFormat(flagFormat)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to a TOML configuration file")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "override [log] level (trace|debug|info|warn|error)")
	rootCmd.PersistentFlags().StringVar(&flagQueriesDir, "queries-dir", "", "override [queries] dir: query assets layered over the bundled ones")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "json", "output format: json|text")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(symbolsCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(definitionCmd)
	rootCmd.AddCommand(referencesCmd)
	rootCmd.AddCommand(detailCmd)
	rootCmd.AddCommand(scopeAtCmd)
	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(unusedCmd)
	rootCmd.AddCommand(keywordsCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(runCmd)
}

// loadConfig reads --config and applies the flag overrides on top.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	if flagLogLevel != "" {
		cfg.Log.Level = flagLogLevel
	}
	if flagQueriesDir != "" {
		cfg.Queries.Dir = flagQueriesDir
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// session is the configuration, logger and engine a command runs with.
type session struct {
	cfg      *config.Config
	log      zerolog.Logger
	engine   *tsls.Engine
	closeLog func() error
}

// newSession loads configuration and builds the logger and engine. Logs go
// to stderr so stdout stays free for results and the stdio transport.
func newSession(stderr io.Writer) (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log, closeLog, err := logging.New(cfg.Log, stderr)
	if err != nil {
		return nil, err
	}

	opts := []tsls.Option{
		tsls.WithLogger(logging.WithComponent(log, "engine")),
		tsls.WithParallel(cfg.Engine.Parallel),
	}
	if langs := cfg.Languages(); len(langs) > 0 {
		opts = append(opts, tsls.WithLanguages(langs...))
	}
	if cfg.Queries.Dir != "" {
		opts = append(opts, tsls.WithQueriesDir(cfg.Queries.Dir))
	}

	engine, err := tsls.New(opts...)
	if err != nil {
		closeLog()
		return nil, fmt.Errorf("creating engine: %w", err)
	}
	return &session{cfg: cfg, log: log, engine: engine, closeLog: closeLog}, nil
}

func (s *session) Close() error {
	return s.closeLog()
}

// openTargets opens every path, walking directories and opening files
// directly. No paths means the current directory.
func openTargets(ctx context.Context, e *tsls.Engine, paths []string) error {
	if len(paths) == 0 {
		paths = []string{"."}
	}
	var files []string
	var errs []error
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("resolving path %q: %w", p, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return fmt.Errorf("path not found: %s", abs)
		}
		if info.IsDir() {
			if err := e.OpenDirectory(ctx, abs); err != nil {
				errs = append(errs, err)
			}
			continue
		}
		files = append(files, abs)
	}
	if len(files) > 0 {
		if err := e.OpenFiles(ctx, files); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// findRepoRoot walks up from startDir looking for a .git directory.
// Returns the directory containing .git, or startDir if not found.
func findRepoRoot(startDir string) string {
	dir := startDir
	for {
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return startDir
		}
		dir = parent
	}
}

// resolveDBPath returns path unchanged when absolute, otherwise joined to
// the repository root above startDir.
func resolveDBPath(path, startDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(findRepoRoot(startDir), path)
}
