package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jward/tsls/internal/dump"
	"github.com/jward/tsls/internal/logging"
	"github.com/jward/tsls/internal/runtime"
	"github.com/jward/tsls/scripts"
)

var flagRunDB string

var runCmd = &cobra.Command{
	Use:   "run <script.risor> [paths...]",
	Short: "Run a Risor script against the engine",
	Long: "Opens the given paths, then runs the script with the engine globals (open_src, change, definition, " +
		"references, rename, completion, symbols, search, diagnostics, keywords, ...) and the raw tree helpers. " +
		"Imports resolve relative to the script's directory. A name that is not a file on disk runs the bundled " +
		"script of that name (e.g. roundtrip.risor). With --db, export and db_query are available too.",
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&flagRunDB, "db", "", "SQLite database for export and db_query")
}

func runRun(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd.ErrOrStderr())
	if err != nil {
		return outputError(cmd, "run", err)
	}
	defer s.Close()

	script, dir, err := locateScript(args[0])
	if err != nil {
		return outputError(cmd, "run", err)
	}
	if len(args) > 1 {
		if err := openTargets(cmd.Context(), s.engine, args[1:]); err != nil {
			return outputError(cmd, "run", err)
		}
	}

	opts := []runtime.RuntimeOption{runtime.WithLogger(logging.WithComponent(s.log, "script"))}
	if dir == "" {
		opts = append(opts, runtime.WithRuntimeFS(scripts.FS))
	}
	if flagRunDB != "" {
		db, err := dump.NewStore(flagRunDB)
		if err != nil {
			return outputError(cmd, "run", err)
		}
		defer db.Close()
		if err := db.Migrate(); err != nil {
			return outputError(cmd, "run", err)
		}
		opts = append(opts, runtime.WithDumpStore(db))
	}

	rt := runtime.NewRuntime(s.engine, dir, opts...)
	if err := rt.RunScript(cmd.Context(), script, nil); err != nil {
		return outputError(cmd, "run", err)
	}
	return nil
}

// locateScript returns the script's base name and directory. A path missing
// from disk but present in the bundled scripts yields an empty directory.
func locateScript(arg string) (name, dir string, err error) {
	abs, err := filepath.Abs(arg)
	if err != nil {
		return "", "", err
	}
	if _, statErr := os.Stat(abs); statErr == nil {
		return filepath.Base(abs), filepath.Dir(abs), nil
	}
	if _, statErr := fs.Stat(scripts.FS, arg); statErr == nil {
		return arg, "", nil
	}
	return "", "", fmt.Errorf("script not found: %s", arg)
}
