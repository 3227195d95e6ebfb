package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jward/tsls/internal/config"
	"github.com/jward/tsls/internal/logging"
	"github.com/jward/tsls/internal/lsp"
)

var flagTCP string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the language server",
	Long: "Serves the Language Server Protocol over stdio, or over TCP with --tcp or [server] mode = \"tcp\". " +
		"With [queries] watch enabled, edits to the query assets are applied to open documents live.",
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&flagTCP, "tcp", "", "listen on this address instead of stdio")
}

func runServe(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := lsp.NewServer(s.engine, s.cfg.Server.Name, version,
		logging.WithComponent(s.log, "lsp"), s.cfg.Log.Level == "trace")

	if s.cfg.Queries.Watch && s.cfg.Queries.Dir != "" {
		go func() {
			if err := srv.WatchQueries(ctx, s.cfg.Queries.Dir); err != nil {
				s.log.Error().Err(err).Str("dir", s.cfg.Queries.Dir).Msg("query watcher stopped")
			}
		}()
	}

	switch {
	case flagTCP != "":
		return srv.RunTCP(flagTCP)
	case s.cfg.Server.Mode == config.ModeTCP:
		return srv.RunTCP(s.cfg.Server.Address)
	default:
		return srv.RunStdio()
	}
}
