// Package lsp serves a GraphQL language session over the Language Server
// Protocol. It decodes JSON-RPC messages, forwards them to a session.Session
// and publishes the resulting diagnostics back to the client.
package lsp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"
	"go.uber.org/zap"

	"github.com/conduit-lang/graphql-lsp/internal/session"
)

// ServerName is reported to clients in the initialize result
const ServerName = "graphql-lsp"

// Options configures a server
type Options struct {
	// Logger receives server logs. Nil discards them.
	Logger *zap.Logger

	// LoadProject reads the project configuration for the workspace root
	LoadProject func(root string) (session.Project, error)

	// Registerer receives the server metrics. Nil keeps them private.
	Registerer prometheus.Registerer

	// Version is reported to clients in the initialize result
	Version string
}

// Server implements the LSP server for GraphQL documents
type Server struct {
	// session owns the open documents
	session *session.Session

	// conn is the JSON-RPC connection
	conn jsonrpc2.Conn

	// client is the LSP client interface
	client protocol.Client

	logger  *zap.Logger
	metrics *Metrics
	version string

	// cancel is used to signal server shutdown
	cancel context.CancelFunc
}

// NewServer creates a new LSP server instance
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		logger:  logger,
		metrics: NewMetrics(opts.Registerer),
		version: opts.Version,
	}
	s.session = session.New(session.Options{
		Logger:      logger,
		LoadProject: opts.LoadProject,
		OnDiagnostics: func(result session.Result) {
			s.publishDiagnostics(context.Background(), result)
		},
	})
	return s
}

// SessionID identifies the session this server drives
func (s *Server) SessionID() string {
	return s.session.ID()
}

// OpenDocuments returns the number of documents the client has open
func (s *Server) OpenDocuments() int {
	return s.session.OpenDocuments()
}

// Run serves the protocol on stdin and stdout until the client exits or ctx
// is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.Serve(ctx, stdrwc{})
}

// Serve serves the protocol on rwc until the client exits, the stream
// closes, or ctx is cancelled.
func (s *Server) Serve(ctx context.Context, rwc io.ReadWriteCloser) error {
	s.logger.Info("Starting GraphQL language server", zap.String("session", s.session.ID()))

	// Create context with cancellation for shutdown
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	defer cancel()

	stream := jsonrpc2.NewStream(rwc)
	conn := jsonrpc2.NewConn(stream)
	s.conn = conn
	s.client = protocol.ClientDispatcher(conn, s.logger.Named("client"))

	conn.Go(ctx, s.handler())

	select {
	case <-ctx.Done():
	case <-conn.Done():
	}

	s.logger.Info("Shutting down GraphQL language server")
	if err := s.session.Shutdown(context.Background()); err != nil {
		s.logger.Warn("Session shutdown failed", zap.Error(err))
	}

	closeErr := conn.Close()
	<-conn.Done()

	if err := conn.Err(); err != nil && !isClosedStream(err) {
		return err
	}
	if closeErr != nil && !isClosedStream(closeErr) {
		return closeErr
	}
	return nil
}

// handler returns the JSON-RPC handler function
func (s *Server) handler() jsonrpc2.Handler {
	return func(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
		s.logger.Debug("Received", zap.String("method", req.Method()))

		switch req.Method() {
		case protocol.MethodInitialize:
			return s.handleInitialize(ctx, reply, req)
		case protocol.MethodInitialized:
			return s.handleInitialized(ctx, reply, req)
		case protocol.MethodShutdown:
			return s.handleShutdown(ctx, reply, req)
		case protocol.MethodExit:
			return s.handleExit(ctx, reply, req)
		case protocol.MethodTextDocumentDidOpen:
			return s.handleTextDocumentDidOpen(ctx, reply, req)
		case protocol.MethodTextDocumentDidChange:
			return s.handleTextDocumentDidChange(ctx, reply, req)
		case protocol.MethodTextDocumentDidClose:
			return s.handleTextDocumentDidClose(ctx, reply, req)
		case protocol.MethodTextDocumentDidSave:
			return s.handleTextDocumentDidSave(ctx, reply, req)
		case protocol.MethodTextDocumentCompletion:
			return s.async(ctx, reply, req, s.handleTextDocumentCompletion(s.session.Snapshot()))
		case protocol.MethodCompletionItemResolve:
			return s.async(ctx, reply, req, s.handleCompletionItemResolve)
		case protocol.MethodTextDocumentDefinition:
			return s.async(ctx, reply, req, s.handleTextDocumentDefinition(s.session.Snapshot()))
		default:
			s.metrics.observe(req.Method(), "unsupported", time.Now())
			return reply(ctx, nil, jsonrpc2.ErrMethodNotFound)
		}
	}
}

// async runs a request handler off the read loop so slow lookups do not hold
// up lifecycle notifications. Notifications stay on the read loop, which keeps
// them in arrival order. Document requests capture their snapshot on the read
// loop, so a later notification is never visible to an earlier request.
func (s *Server) async(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request, handle jsonrpc2.Handler) error {
	go func() {
		if err := handle(ctx, reply, req); err != nil {
			s.logger.Debug("Request failed", zap.String("method", req.Method()), zap.Error(err))
		}
	}()
	return nil
}

// handleInitialize handles the initialize request
func (s *Server) handleInitialize(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	started := time.Now()

	var params protocol.InitializeParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		s.metrics.observe(req.Method(), "invalid", started)
		return s.replyWithError(ctx, reply, jsonrpc2.InvalidParams, "Failed to parse initialize params")
	}

	if params.ClientInfo != nil {
		s.logger.Info("Initialize from client",
			zap.String("client", params.ClientInfo.Name),
			zap.String("client_version", params.ClientInfo.Version))
	}

	root := workspaceRoot(params)
	result, err := s.session.Initialize(ctx, session.InitializeParams{RootPath: root})
	if err != nil {
		s.metrics.observe(req.Method(), "error", started)
		return s.replyWithError(ctx, reply, jsonrpc2.InternalError, err.Error())
	}

	s.metrics.observe(req.Method(), "ok", started)
	return reply(ctx, protocol.InitializeResult{
		Capabilities: convertCapabilities(result.Capabilities),
		ServerInfo: &protocol.ServerInfo{
			Name:    ServerName,
			Version: s.version,
		},
	}, nil)
}

// workspaceRoot picks the project root from the first workspace folder, the
// root URI, or the root path, in that order.
func workspaceRoot(params protocol.InitializeParams) string {
	if len(params.WorkspaceFolders) > 0 {
		if path, ok := filename(params.WorkspaceFolders[0].URI); ok {
			return path
		}
	}
	if params.RootURI != "" {
		if path, ok := filename(string(params.RootURI)); ok {
			return path
		}
	}
	return params.RootPath
}

// filename converts a file URI to a path. Other schemes have no path.
func filename(docURI string) (string, bool) {
	if !strings.HasPrefix(docURI, uri.FileScheme+":") {
		return "", false
	}
	parsed, err := uri.Parse(docURI)
	if err != nil {
		return "", false
	}
	return parsed.Filename(), true
}

// handleInitialized handles the initialized notification
func (s *Server) handleInitialized(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	s.logger.Debug("Client initialized")
	return reply(ctx, nil, nil)
}

// handleShutdown handles the shutdown request
func (s *Server) handleShutdown(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	s.logger.Info("Shutdown requested")
	if err := s.session.Shutdown(ctx); err != nil {
		s.logger.Warn("Session shutdown failed", zap.Error(err))
	}
	return reply(ctx, nil, nil)
}

// handleExit handles the exit notification
func (s *Server) handleExit(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	s.logger.Info("Exit requested")
	// Reply first, then trigger shutdown
	if err := reply(ctx, nil, nil); err != nil {
		s.logger.Debug("Error replying to exit", zap.Error(err))
	}
	if s.cancel != nil {
		s.cancel()
	}
	return nil
}

// handleTextDocumentDidOpen handles document open notifications
func (s *Server) handleTextDocumentDidOpen(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	started := time.Now()

	var params protocol.DidOpenTextDocumentParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		s.metrics.observe(req.Method(), "invalid", started)
		return s.replyWithError(ctx, reply, jsonrpc2.InvalidParams, "Failed to parse didOpen params")
	}

	result, err := s.session.DidOpen(ctx, session.TextDocumentItem{
		URI:     string(params.TextDocument.URI),
		Text:    params.TextDocument.Text,
		Version: int(params.TextDocument.Version),
	})
	return s.finishLifecycle(ctx, reply, req, started, result, err)
}

// contentChange is a content change whose range may be absent. An absent
// range replaces the whole document.
type contentChange struct {
	Range *protocol.Range `json:"range,omitempty"`
	Text  string          `json:"text"`
}

type didChangeParams struct {
	TextDocument   protocol.VersionedTextDocumentIdentifier `json:"textDocument"`
	ContentChanges []contentChange                          `json:"contentChanges"`
}

// handleTextDocumentDidChange handles document change notifications
func (s *Server) handleTextDocumentDidChange(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	started := time.Now()

	var params didChangeParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		s.metrics.observe(req.Method(), "invalid", started)
		return s.replyWithError(ctx, reply, jsonrpc2.InvalidParams, "Failed to parse didChange params")
	}

	result, err := s.session.DidChange(ctx, session.DidChangeParams{
		URI:     string(params.TextDocument.URI),
		Version: int(params.TextDocument.Version),
		Changes: convertChanges(params.ContentChanges),
	})
	return s.finishLifecycle(ctx, reply, req, started, result, err)
}

type didSaveParams struct {
	TextDocument protocol.TextDocumentIdentifier `json:"textDocument"`
	Text         *string                         `json:"text,omitempty"`
}

// handleTextDocumentDidSave handles document save notifications
func (s *Server) handleTextDocumentDidSave(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	started := time.Now()

	var params didSaveParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		s.metrics.observe(req.Method(), "invalid", started)
		return s.replyWithError(ctx, reply, jsonrpc2.InvalidParams, "Failed to parse didSave params")
	}

	result, err := s.session.DidSave(ctx, session.DidSaveParams{
		URI:  string(params.TextDocument.URI),
		Text: params.Text,
	})
	return s.finishLifecycle(ctx, reply, req, started, result, err)
}

// handleTextDocumentDidClose handles document close notifications
func (s *Server) handleTextDocumentDidClose(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	started := time.Now()

	var params protocol.DidCloseTextDocumentParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		s.metrics.observe(req.Method(), "invalid", started)
		return s.replyWithError(ctx, reply, jsonrpc2.InvalidParams, "Failed to parse didClose params")
	}

	if err := s.session.DidClose(ctx, string(params.TextDocument.URI)); err != nil {
		s.metrics.observe(req.Method(), "invalid", started)
		return s.replyWithError(ctx, reply, jsonrpc2.InvalidParams, err.Error())
	}

	s.metrics.openDocuments.Set(float64(s.session.OpenDocuments()))
	s.metrics.observe(req.Method(), "ok", started)
	return reply(ctx, nil, nil)
}

// finishLifecycle publishes the diagnostics of a lifecycle notification and
// replies.
func (s *Server) finishLifecycle(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request, started time.Time, result session.Result, err error) error {
	if err != nil {
		s.metrics.observe(req.Method(), "invalid", started)
		if errors.Is(err, session.ErrMalformedRequest) {
			return s.replyWithError(ctx, reply, jsonrpc2.InvalidParams, err.Error())
		}
		return s.replyWithError(ctx, reply, jsonrpc2.InternalError, err.Error())
	}

	s.metrics.openDocuments.Set(float64(s.session.OpenDocuments()))
	s.publishDiagnostics(ctx, result)
	s.metrics.observe(req.Method(), "ok", started)
	return reply(ctx, nil, nil)
}

// publishDiagnostics publishes diagnostics for a document
func (s *Server) publishDiagnostics(ctx context.Context, result session.Result) {
	if s.client == nil {
		return
	}

	params := protocol.PublishDiagnosticsParams{
		URI:         protocol.DocumentURI(result.URI),
		Diagnostics: convertDiagnostics(result.Diagnostics),
	}
	if result.Version > 0 {
		params.Version = uint32(result.Version)
	}

	if err := s.client.PublishDiagnostics(ctx, &params); err != nil {
		s.metrics.publishFailures.Inc()
		s.logger.Warn("Error publishing diagnostics", zap.String("uri", result.URI), zap.Error(err))
		return
	}
	s.metrics.diagnostics.Add(float64(len(params.Diagnostics)))
}

// replyWithError sends an LSP-compliant error response
func (s *Server) replyWithError(ctx context.Context, reply jsonrpc2.Replier, code jsonrpc2.Code, message string) error {
	return reply(ctx, nil, &jsonrpc2.Error{
		Code:    code,
		Message: message,
	})
}

func isClosedStream(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, os.ErrClosed)
}

// stdrwc implements io.ReadWriteCloser for stdin/stdout
type stdrwc struct{}

func (stdrwc) Read(p []byte) (int, error) {
	return os.Stdin.Read(p)
}

func (stdrwc) Write(p []byte) (int, error) {
	return os.Stdout.Write(p)
}

func (stdrwc) Close() error {
	if err := os.Stdin.Close(); err != nil {
		return err
	}
	return os.Stdout.Close()
}
