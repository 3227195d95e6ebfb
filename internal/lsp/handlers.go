package lsp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/jward/tsls"
	"github.com/jward/tsls/internal/edit"
)

func (s *Server) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	s.remember(ctx)

	capabilities := s.handler.CreateServerCapabilities()
	syncKind := protocol.TextDocumentSyncKindIncremental
	capabilities.TextDocumentSync = protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
		Save:      &protocol.SaveOptions{IncludeText: boolPtr(true)},
	}
	capabilities.CompletionProvider = &protocol.CompletionOptions{}

	client := "unknown"
	if params.ClientInfo != nil {
		client = params.ClientInfo.Name
	}
	s.log.Info().Str("client", client).Msg("initialize")

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    s.name,
			Version: &s.version,
		},
	}, nil
}

func (s *Server) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	s.remember(ctx)
	return nil
}

func (s *Server) shutdown(ctx *glsp.Context) error {
	protocol.SetTraceValue(protocol.TraceValueOff)
	s.log.Info().Msg("shutdown")
	return nil
}

func (s *Server) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	protocol.SetTraceValue(params.Value)
	return nil
}

// --- Document synchronisation ---
//
// Notification failures cannot be answered, so they are logged and
// dropped. The document keeps its last good state.

func (s *Server) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	s.remember(ctx)
	item := params.TextDocument
	doc, err := s.engine.Open(context.Background(), item.URI, item.LanguageID, item.Version, []byte(item.Text))
	if err != nil {
		s.log.Warn().Err(err).Str("uri", item.URI).Str("language", item.LanguageID).Msg("didOpen ignored")
		return nil
	}
	publish(ctx.Notify, doc)
	return nil
}

func (s *Server) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	s.remember(ctx)
	uri := params.TextDocument.URI
	changes, err := edit.FromProtocol(params.ContentChanges)
	if err != nil {
		s.log.Error().Err(err).Str("uri", uri).Msg("didChange ignored")
		return nil
	}
	doc, err := s.engine.Change(context.Background(), uri, params.TextDocument.Version, changes)
	if err != nil {
		ev := s.log.Error()
		if errors.Is(err, tsls.ErrStaleEdit) {
			ev = s.log.Warn()
		}
		ev.Err(err).Str("uri", uri).Int32("version", params.TextDocument.Version).Msg("didChange ignored")
		return nil
	}
	publish(ctx.Notify, doc)
	return nil
}

func (s *Server) textDocumentDidSave(ctx *glsp.Context, params *protocol.DidSaveTextDocumentParams) error {
	s.remember(ctx)
	uri := params.TextDocument.URI
	doc, err := s.engine.Save(context.Background(), uri, params.Text)
	if err != nil {
		s.log.Warn().Err(err).Str("uri", uri).Msg("didSave ignored")
		return nil
	}
	publish(ctx.Notify, doc)
	return nil
}

func (s *Server) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	s.remember(ctx)
	uri := params.TextDocument.URI
	if err := s.engine.Close(uri); err != nil {
		s.log.Warn().Err(err).Str("uri", uri).Msg("didClose ignored")
	}
	ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, &protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

// --- Requests ---

func (s *Server) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	return s.engine.Query().Completion(params.TextDocument.URI, params.Position)
}

func (s *Server) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	detail, err := s.engine.Query().SymbolDetailAt(params.TextDocument.URI, params.Position)
	if err != nil || detail == nil {
		return nil, err
	}
	return &protocol.Hover{
		Contents: protocol.MarkupContent{Kind: protocol.MarkupKindMarkdown, Value: hoverMarkdown(detail)},
	}, nil
}

// hoverMarkdown renders e.g. "function `add`" followed by the reference
// count and any members.
func hoverMarkdown(d *tsls.SymbolDetail) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s `%s`", d.Symbol.Tag, d.Symbol.Name)
	if d.Symbol.Global {
		b.WriteString(" (global)")
	}
	switch d.Symbol.RefCount {
	case 1:
		b.WriteString("\n\n1 reference")
	default:
		fmt.Fprintf(&b, "\n\n%d references", d.Symbol.RefCount)
	}
	if len(d.Children) > 0 {
		b.WriteString("\n\nMembers:")
		for _, c := range d.Children {
			fmt.Fprintf(&b, "\n- %s `%s`", c.Tag, c.Name)
		}
	}
	return b.String()
}

func (s *Server) textDocumentDefinition(ctx *glsp.Context, params *protocol.DefinitionParams) (any, error) {
	return s.engine.Query().DefinitionAt(params.TextDocument.URI, params.Position)
}

func (s *Server) textDocumentReferences(ctx *glsp.Context, params *protocol.ReferenceParams) ([]protocol.Location, error) {
	return s.engine.Query().References(params.TextDocument.URI, params.Position, params.Context.IncludeDeclaration)
}

func (s *Server) textDocumentRename(ctx *glsp.Context, params *protocol.RenameParams) (*protocol.WorkspaceEdit, error) {
	return s.engine.Query().Rename(params.TextDocument.URI, params.Position, params.NewName)
}

func (s *Server) textDocumentDocumentSymbol(ctx *glsp.Context, params *protocol.DocumentSymbolParams) (any, error) {
	return s.engine.Query().DocumentSymbols(params.TextDocument.URI)
}

func (s *Server) workspaceSymbol(ctx *glsp.Context, params *protocol.WorkspaceSymbolParams) ([]protocol.SymbolInformation, error) {
	return s.engine.Query().WorkspaceSymbols(params.Query)
}

func boolPtr(v bool) *bool { return &v }
