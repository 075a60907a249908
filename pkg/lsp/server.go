// Package lsp hosts the completion and auto-close engines behind the language
// server protocol.
package lsp

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/handler"
	"github.com/rs/xid"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/ftlsense/pkg/autoclose"
	"github.com/walteh/ftlsense/pkg/completion"
	"github.com/walteh/ftlsense/pkg/ftl"
	"github.com/walteh/ftlsense/pkg/lsp/protocol"
	"github.com/walteh/ftlsense/pkg/schema"
)

const serverName = "ftlsense"

// Server is one language server instance.
type Server struct {
	id        string
	version   string
	documents *DocumentManager
	closer    *autoclose.Handler

	mu         sync.RWMutex
	baseConfig schema.Config
	initConfig schema.Config
	source     completion.SourceFunc
	htmlSource completion.SourceFunc
	shutdown   bool
}

type ServerOption func(*Server)

// WithSchemaConfig extends the built-in schema for every client.
func WithSchemaConfig(cfg schema.Config) ServerOption {
	return func(s *Server) {
		s.baseConfig = cfg
	}
}

// WithVersion sets the version reported in the initialize result.
func WithVersion(v string) ServerOption {
	return func(s *Server) {
		s.version = v
	}
}

func NewServer(ctx context.Context, opts ...ServerOption) *Server {
	s := &Server{
		id:        xid.New().String(),
		documents: NewDocumentManager(),
		closer:    autoclose.New(autoclose.WithSelfClosing(ftl.BodilessDirectives...)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.rebuildSource()
	zerolog.Ctx(ctx).Debug().Str("server_id", s.id).Msg("created language server")
	return s
}

func (s *Server) ID() string { return s.id }

func (s *Server) Documents() *DocumentManager { return s.documents }

// rebuildSource must be called with mu held for writing, or before the
// server is shared.
func (s *Server) rebuildSource() {
	cfg := s.baseConfig.Merge(s.initConfig)
	s.source = completion.First(completion.SourceWith(cfg), completion.Keywords)
	s.htmlSource = completion.HTMLSourceWith(cfg)
}

// SetSchemaConfig replaces the base schema extension, for example after the
// schema files changed on disk.
func (s *Server) SetSchemaConfig(ctx context.Context, cfg schema.Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.baseConfig = cfg
	s.rebuildSource()
	zerolog.Ctx(ctx).Info().Int("extra_tags", len(cfg.ExtraTags)).Msg("schema reloaded")
}

func (s *Server) completionSource(languageID string) completion.SourceFunc {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if languageID == languageHTML {
		return s.htmlSource
	}
	return s.source
}

// Methods maps every supported method to its handler.
func (s *Server) Methods() handler.Map {
	return handler.Map{
		"initialize":                     protocol.Call(s.Initialize),
		"initialized":                    protocol.Notify(s.Initialized),
		"shutdown":                       protocol.Empty(s.Shutdown),
		"exit":                           protocol.Empty(s.Exit),
		"textDocument/didOpen":           protocol.Notify(s.DidOpen),
		"textDocument/didChange":         protocol.Notify(s.DidChange),
		"textDocument/didClose":          protocol.Notify(s.DidClose),
		"textDocument/completion":        protocol.Call(s.Completion),
		"textDocument/onTypeFormatting":  protocol.Call(s.OnTypeFormatting),
		"textDocument/documentHighlight": protocol.Call(s.DocumentHighlight),
		"textDocument/foldingRange":      protocol.Call(s.FoldingRange),
	}
}

// BuildServerInstance wraps the server in a jrpc2 server whose handlers run
// with ctx, and so with its logger.
func (s *Server) BuildServerInstance(ctx context.Context, opts *jrpc2.ServerOptions) *jrpc2.Server {
	if opts == nil {
		opts = &jrpc2.ServerOptions{}
	}
	if opts.RPCLog == nil {
		opts.RPCLog = &protocol.RPCLogger{Ctx: ctx}
	}
	opts.AllowPush = true
	opts.NewContext = func() context.Context {
		return zerolog.Ctx(ctx).With().Str("server_id", s.id).Logger().WithContext(ctx)
	}
	return jrpc2.NewServer(s.Methods(), opts)
}

func (s *Server) Initialize(ctx context.Context, params *protocol.InitializeParams) (*protocol.InitializeResult, error) {
	logger := zerolog.Ctx(ctx)

	if len(params.InitializationOptions) > 0 && string(params.InitializationOptions) != "null" {
		var cfg schema.Config
		if err := json.Unmarshal(params.InitializationOptions, &cfg); err != nil {
			return nil, errors.Errorf("decoding initialization options: %w", err)
		}
		s.mu.Lock()
		s.initConfig = cfg
		s.rebuildSource()
		s.mu.Unlock()
		logger.Debug().Int("extra_tags", len(cfg.ExtraTags)).Msg("schema extended by client")
	}

	if params.ClientInfo != nil {
		logger.Info().Str("client", params.ClientInfo.Name).Str("client_version", params.ClientInfo.Version).Msg("initializing server")
	}

	return &protocol.InitializeResult{
		Capabilities: protocol.ServerCapabilities{
			TextDocumentSync: protocol.TextDocumentSyncOptions{
				OpenClose: true,
				Change:    protocol.SyncIncremental,
			},
			CompletionProvider: &protocol.CompletionOptions{
				TriggerCharacters: []string{"<", "/", "#"},
			},
			DocumentOnTypeFormattingProvider: &protocol.DocumentOnTypeFormattingOptions{
				FirstTriggerCharacter: ">",
				MoreTriggerCharacter:  []string{"/"},
			},
			DocumentHighlightProvider: true,
			FoldingRangeProvider:      true,
		},
		ServerInfo: &protocol.ServerInfo{Name: serverName, Version: s.version},
	}, nil
}

func (s *Server) Initialized(ctx context.Context, params *protocol.InitializedParams) error {
	zerolog.Ctx(ctx).Debug().Msg("server initialized")
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shutdown = true
	zerolog.Ctx(ctx).Info().Msg("shutting down")
	return nil
}

func (s *Server) Exit(ctx context.Context) error {
	if srv := jrpc2.ServerFromContext(ctx); srv != nil {
		go srv.Stop()
	}
	return nil
}

// document looks up uri, failing with an error that names it.
func (s *Server) document(uri protocol.DocumentURI) (*Document, error) {
	doc, ok := s.documents.Get(uri)
	if !ok {
		return nil, errors.Errorf("document not found: %s", uri)
	}
	return doc, nil
}
