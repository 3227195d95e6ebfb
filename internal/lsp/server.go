// Package lsp connects an Engine to a language client over glsp.
//
// glsp reads and dispatches one message at a time, so handlers run on a
// single goroutine and document notifications are applied in arrival order.
// Only the query-asset watcher runs beside it; it goes through the same
// Engine, which serialises updates per URI.
package lsp

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"github.com/tliron/glsp/server"

	"github.com/jward/tsls"
	"github.com/jward/tsls/internal/assets"
	"github.com/jward/tsls/internal/diagnostics"
)

// Server is a language server backed by an Engine.
type Server struct {
	engine  *tsls.Engine
	name    string
	version string
	log     zerolog.Logger

	handler protocol.Handler
	server  *server.Server

	mu     sync.Mutex
	notify glsp.NotifyFunc // captured from the first request; nil before
}

// NewServer builds the handler table and the glsp server around e.
func NewServer(e *tsls.Engine, name, version string, log zerolog.Logger, debug bool) *Server {
	s := &Server{
		engine:  e,
		name:    name,
		version: version,
		log:     log,
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidSave:   s.textDocumentDidSave,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentCompletion:     s.textDocumentCompletion,
		TextDocumentHover:          s.textDocumentHover,
		TextDocumentDefinition:     s.textDocumentDefinition,
		TextDocumentReferences:     s.textDocumentReferences,
		TextDocumentRename:         s.textDocumentRename,
		TextDocumentDocumentSymbol: s.textDocumentDocumentSymbol,
		WorkspaceSymbol:            s.workspaceSymbol,
	}
	s.server = server.NewServer(&s.handler, name, debug)
	return s
}

// Handler returns the protocol handler table.
func (s *Server) Handler() *protocol.Handler {
	return &s.handler
}

// RunStdio serves a single client over stdin and stdout.
func (s *Server) RunStdio() error {
	s.log.Info().Str("transport", "stdio").Msg("language server starting")
	return s.server.RunStdio()
}

// RunTCP accepts clients on address.
func (s *Server) RunTCP(address string) error {
	s.log.Info().Str("transport", "tcp").Str("address", address).Msg("language server starting")
	return s.server.RunTCP(address)
}

// WatchQueries reloads query assets under dir when they change and
// republishes the diagnostics of the affected documents. It blocks until
// ctx is done.
func (s *Server) WatchQueries(ctx context.Context, dir string) error {
	w, err := assets.NewWatcher(dir, s.log)
	if err != nil {
		return err
	}
	defer w.Close()

	err = w.Run(ctx, func(language string) {
		s.reload(ctx, language)
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (s *Server) reload(ctx context.Context, language string) {
	if err := s.engine.Refresh(ctx, language); err != nil {
		s.log.Error().Err(err).Str("language", language).Msg("refresh failed")
		return
	}
	if language != "" {
		if err := s.engine.CompileQueries(language); err != nil {
			s.log.Warn().Err(err).Str("language", language).Msg("query assets do not compile")
		}
	}

	s.mu.Lock()
	notify := s.notify
	s.mu.Unlock()
	if notify == nil {
		return
	}
	for _, doc := range s.engine.Snapshot().Documents() {
		if language == "" || doc.LanguageID == language {
			publish(notify, doc)
		}
	}
}

// remember keeps the client's notify function for out-of-band publishing.
func (s *Server) remember(ctx *glsp.Context) {
	if ctx == nil || ctx.Notify == nil {
		return
	}
	s.mu.Lock()
	if s.notify == nil {
		s.notify = ctx.Notify
	}
	s.mu.Unlock()
}

func publish(notify glsp.NotifyFunc, doc *tsls.Document) {
	version := protocol.UInteger(doc.Version)
	notify(protocol.ServerTextDocumentPublishDiagnostics, &protocol.PublishDiagnosticsParams{
		URI:         doc.URI,
		Version:     &version,
		Diagnostics: diagnostics.Protocol(doc.Diagnostics, "tsls"),
	})
}
