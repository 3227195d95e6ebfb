package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jward/tsls/internal/dump"
	"github.com/jward/tsls/internal/logging"
)

var (
	flagDB      string
	flagWorkers int
	flagForce   bool
)

var dumpCmd = &cobra.Command{
	Use:   "dump [paths...]",
	Short: "Export the analysis to a SQLite database",
	Long: "Opens the given paths and writes their scopes, symbols, occurrences, diagnostics and keywords to SQLite. " +
		"Documents whose content and version are unchanged since the last dump are skipped; documents no longer present are removed.",
	RunE: runDump,
}

func init() {
	dumpCmd.Flags().StringVar(&flagDB, "db", "", "database path (default: [dump] path relative to the repo root)")
	dumpCmd.Flags().IntVar(&flagWorkers, "workers", 0, "batch builders (default: [dump] workers, else one per CPU)")
	dumpCmd.Flags().BoolVar(&flagForce, "force", false, "delete the database and export from scratch")
}

func runDump(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd.ErrOrStderr())
	if err != nil {
		return outputError(cmd, "dump", err)
	}
	defer s.Close()

	start, err := os.Getwd()
	if err != nil {
		return outputError(cmd, "dump", fmt.Errorf("getting cwd: %w", err))
	}
	if len(args) > 0 {
		if start, err = filepath.Abs(args[0]); err != nil {
			return outputError(cmd, "dump", err)
		}
		if info, err := os.Stat(start); err == nil && !info.IsDir() {
			start = filepath.Dir(start)
		}
	}

	dbPath := flagDB
	if dbPath == "" {
		dbPath = s.cfg.Dump.Path
	}
	dbPath = resolveDBPath(dbPath, start)
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return outputError(cmd, "dump", fmt.Errorf("creating %s: %w", filepath.Dir(dbPath), err))
	}
	if flagForce {
		if err := os.Remove(dbPath); err != nil && !os.IsNotExist(err) {
			return outputError(cmd, "dump", fmt.Errorf("removing database for --force: %w", err))
		}
	}

	if err := openTargets(cmd.Context(), s.engine, args); err != nil {
		return outputError(cmd, "dump", err)
	}

	db, err := dump.NewStore(dbPath)
	if err != nil {
		return outputError(cmd, "dump", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return outputError(cmd, "dump", err)
	}

	workers := flagWorkers
	if workers == 0 {
		workers = s.cfg.Dump.Workers
	}
	stats, err := dump.Export(cmd.Context(), db, s.engine.Snapshot(),
		dump.WithWorkers(workers),
		dump.WithLogger(logging.WithComponent(s.log, "dump")),
		dump.WithPrune(true),
	)
	if err != nil {
		return outputError(cmd, "dump", err)
	}

	return outputResult(cmd.OutOrStdout(), CLIResult{Command: "dump", Results: CLIDumpStats{
		Database: dbPath,
		Exported: stats.Exported,
		Skipped:  stats.Skipped,
		Removed:  stats.Removed,
	}})
}
