// Package session is the lifecycle controller of a GraphQL language server.
// A Session owns the open documents of one client and answers lifecycle
// notifications with diagnostics and requests with completions and
// definition locations.
//
// Lifecycle calls for the same URI run one at a time in call order. Requests
// read an immutable snapshot of the document taken when they start, and return
// not-found if the document was closed before they finish.
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/vektah/gqlparser/v2/ast"
	"go.lsp.dev/uri"
	"go.uber.org/zap"

	"github.com/conduit-lang/graphql-lsp/internal/cache"
	"github.com/conduit-lang/graphql-lsp/internal/completion"
	"github.com/conduit-lang/graphql-lsp/internal/definition"
	"github.com/conduit-lang/graphql-lsp/internal/diagnostics"
	"github.com/conduit-lang/graphql-lsp/internal/document"
	"github.com/conduit-lang/graphql-lsp/internal/schema"
	"github.com/conduit-lang/graphql-lsp/internal/tooling"
)

// Options configures a session
type Options struct {
	// Logger receives structured logs. Nil discards them.
	Logger *zap.Logger

	// LoadProject reads the project configuration under a root. Nil runs
	// every root with an empty Project.
	LoadProject func(root string) (Project, error)

	// OnDiagnostics receives diagnostics computed outside a lifecycle call,
	// such as after the schema changes on disk.
	OnDiagnostics func(Result)
}

// Session is one client's view of a project.
type Session struct {
	id            string
	logger        *zap.Logger
	store         *document.Store
	seq           *sequencer
	completer     *completion.Provider
	asts          *cache.ASTCache
	loadProject   func(root string) (Project, error)
	onDiagnostics func(Result)

	mu       sync.RWMutex
	root     string
	engine   *diagnostics.Engine
	schemas  *schema.Provider
	resolver *definition.Resolver
	watcher  *schema.Watcher
}

// New creates a session. It serves requests before Initialize with no
// schema and no project root.
func New(opts Options) *Session {
	id := uuid.NewString()

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("session", id))

	asts := cache.NewASTCache()
	schemas := schema.NewProvider("", nil, logger)

	return &Session{
		id:            id,
		logger:        logger,
		store:         document.NewStore(),
		seq:           newSequencer(),
		completer:     completion.NewProvider(),
		asts:          asts,
		loadProject:   opts.LoadProject,
		onDiagnostics: opts.OnDiagnostics,
		engine:        diagnostics.NewEngine(nil),
		schemas:       schemas,
		resolver:      definition.NewResolver(definition.Config{}, asts, schemas, logger),
	}
}

// ID returns the session identifier used in logs
func (s *Session) ID() string {
	return s.id
}

// Root returns the project root set by Initialize
func (s *Session) Root() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.root
}

// OpenDocuments returns the number of open documents
func (s *Session) OpenDocuments() int {
	return s.store.Len()
}

// Snapshot captures the open documents. Requests answered from it see the
// documents as they were at capture time.
func (s *Session) Snapshot() Snapshot {
	return Snapshot{entries: s.store.All()}
}

// Initialize sets the project root, loads its configuration and returns the
// capability descriptor. Calling it again replaces the previous project.
func (s *Session) Initialize(ctx context.Context, params InitializeParams) (InitializeResult, error) {
	root := params.RootPath
	if root != "" {
		if abs, err := filepath.Abs(root); err == nil {
			root = abs
		}
	}

	var project Project
	if s.loadProject != nil && root != "" {
		loaded, err := s.loadProject(root)
		if err != nil {
			s.logger.Warn("Failed to load project configuration, using defaults",
				zap.String("root", root),
				zap.Error(err))
		} else {
			project = loaded
		}
	}

	schemas := schema.NewProvider(root, project.Schema, s.logger)
	resolver := definition.NewResolver(definition.Config{
		Root:        root,
		Extensions:  project.Extensions,
		Excludes:    project.Excludes,
		Concurrency: project.ScanConcurrency,
	}, s.asts, schemas, s.logger)

	var watcher *schema.Watcher
	if project.Watch && schemas.Configured() {
		w, err := schema.NewWatcher(schemas, project.WatchDebounce, func(files []string) {
			s.Reanalyze(context.Background())
		})
		if err == nil {
			err = w.Start()
		}
		if err != nil {
			s.logger.Warn("Schema watching disabled", zap.Error(err))
		} else {
			watcher = w
		}
	}

	s.mu.Lock()
	previous := s.watcher
	if s.root != root {
		s.asts.InvalidateAll()
	}
	s.root = root
	s.engine = diagnostics.NewEngine(project.IgnoredRules)
	s.schemas = schemas
	s.resolver = resolver
	s.watcher = watcher
	s.mu.Unlock()

	if previous != nil {
		if err := previous.Stop(); err != nil {
			s.logger.Debug("Failed to stop previous schema watcher", zap.Error(err))
		}
	}

	s.logger.Info("Session initialized",
		zap.String("root", root),
		zap.Strings("schema", project.Schema),
		zap.Bool("watch", watcher != nil))

	// Documents opened before initialize were analyzed without the schema.
	if s.store.Len() > 0 {
		s.Reanalyze(ctx)
	}

	return InitializeResult{
		Capabilities: Capabilities{
			CompletionProvider: CompletionOptions{ResolveProvider: true},
			DefinitionProvider: true,
			TextDocumentSync:   SyncFull,
		},
	}, nil
}

// DidOpen stores the document and returns its diagnostics. Opening an already
// open URI replaces its content.
func (s *Session) DidOpen(ctx context.Context, item TextDocumentItem) (Result, error) {
	if item.URI == "" {
		return Result{}, fmt.Errorf("didOpen: missing uri: %w", ErrMalformedRequest)
	}

	release := s.seq.acquire(item.URI)
	defer release()

	entry := s.store.Put(item.URI, item.Text, item.Version, s.analyze(ctx, item.Text))
	s.logger.Debug("Document opened",
		zap.String("uri", item.URI),
		zap.Int("version", item.Version),
		zap.Int("diagnostics", len(entry.Diagnostics)))

	return resultOf(entry), nil
}

// DidSave recomputes the diagnostics of a saved document. Without text the
// stored text is reanalyzed, or the file is read from disk when the URI is
// not open. Saving a closed URI opens it.
func (s *Session) DidSave(ctx context.Context, params DidSaveParams) (Result, error) {
	if params.URI == "" {
		return Result{}, fmt.Errorf("didSave: missing uri: %w", ErrMalformedRequest)
	}

	release := s.seq.acquire(params.URI)
	defer release()

	current, open := s.store.Get(params.URI)

	var text string
	version := params.Version
	switch {
	case params.Text != nil:
		text = *params.Text
	case open:
		text = current.Text
	default:
		content, err := readDocument(params.URI)
		if err != nil {
			s.logger.Debug("Saved document is not readable",
				zap.String("uri", params.URI),
				zap.Error(err))
			return Result{URI: params.URI, Version: version, Diagnostics: []tooling.Diagnostic{}}, nil
		}
		text = content
	}
	if open && version == 0 {
		version = current.Version
	}

	entry := s.store.Put(params.URI, text, version, s.analyze(ctx, text))
	s.logger.Debug("Document saved",
		zap.String("uri", params.URI),
		zap.Int("version", version),
		zap.Bool("implicit_open", !open))

	return resultOf(entry), nil
}

// DidChange applies the edits in order to the stored text and returns the
// diagnostics of the final text. A change older than the stored version is
// dropped. Changing a closed URI opens it over empty text.
func (s *Session) DidChange(ctx context.Context, params DidChangeParams) (Result, error) {
	if params.URI == "" {
		return Result{}, fmt.Errorf("didChange: missing uri: %w", ErrMalformedRequest)
	}

	release := s.seq.acquire(params.URI)
	defer release()

	current, open := s.store.Get(params.URI)
	if open && params.Version < current.Version {
		s.logger.Debug("Dropping stale change",
			zap.String("uri", params.URI),
			zap.Int("version", params.Version),
			zap.Int("stored_version", current.Version))
		return resultOf(current), nil
	}

	text := s.store.ApplyIncrementalEdits(params.URI, params.Changes)
	entry := s.store.Put(params.URI, text, params.Version, s.analyze(ctx, text))
	s.logger.Debug("Document changed",
		zap.String("uri", params.URI),
		zap.Int("version", params.Version),
		zap.Int("edits", len(params.Changes)),
		zap.Int("diagnostics", len(entry.Diagnostics)))

	return resultOf(entry), nil
}

// DidClose forgets the document. Closing a URI that is not open is a no-op.
func (s *Session) DidClose(ctx context.Context, docURI string) error {
	if docURI == "" {
		return fmt.Errorf("didClose: missing uri: %w", ErrMalformedRequest)
	}

	release := s.seq.acquire(docURI)
	defer release()

	s.store.Remove(docURI)
	s.logger.Debug("Document closed", zap.String("uri", docURI))
	return nil
}

// Completion returns the items that fit at the position. A nil list with a
// nil error means the document is not open.
func (s *Session) Completion(ctx context.Context, params PositionParams) (*CompletionList, error) {
	return s.CompletionIn(ctx, s.Snapshot(), params)
}

// CompletionIn answers a completion request from snap. Fragments of the
// other documents in snap are offered as spreads.
func (s *Session) CompletionIn(ctx context.Context, snap Snapshot, params PositionParams) (*CompletionList, error) {
	if err := checkPosition("completion", params); err != nil {
		return nil, err
	}

	entry, open := snap.get(params.URI)
	if !open {
		return nil, nil
	}

	var fragments []completion.Fragment
	for _, other := range snap.entries {
		if other.URI == entry.URI {
			continue
		}
		if other.Parse.OK() {
			fragments = append(fragments, completion.FragmentsOf(other.Parse.AST)...)
		} else {
			fragments = append(fragments, completion.FragmentsInText(other.Text)...)
		}
	}

	items := s.completer.Complete(completion.Request{
		Text:      entry.Text,
		Position:  *params.Position,
		Schema:    s.currentSchema(ctx),
		Fragments: fragments,
	})

	if !s.stillOpen(entry) {
		return nil, nil
	}
	return &CompletionList{Items: items}, nil
}

// ResolveCompletionItem fills in the documentation of an item returned by
// Completion. Items that no longer match the schema come back unchanged.
func (s *Session) ResolveCompletionItem(ctx context.Context, item tooling.CompletionItem) (tooling.CompletionItem, error) {
	return s.completer.Resolve(item, s.currentSchema(ctx)), nil
}

// Definition returns the locations defining the reference at the position.
// A nil slice with a nil error means the document is not open; an empty
// slice means nothing was found.
func (s *Session) Definition(ctx context.Context, params PositionParams) ([]tooling.Location, error) {
	return s.DefinitionIn(ctx, s.Snapshot(), params)
}

// DefinitionIn answers a definition request from snap. The documents in snap
// take precedence over the files on disk.
func (s *Session) DefinitionIn(ctx context.Context, snap Snapshot, params PositionParams) ([]tooling.Location, error) {
	if err := checkPosition("definition", params); err != nil {
		return nil, err
	}

	entry, open := snap.get(params.URI)
	if !open {
		return nil, nil
	}

	ref := definition.ReferenceAt(entry.Text, *params.Position)
	if ref.Kind == definition.ReferenceNone {
		return []tooling.Location{}, nil
	}

	s.mu.RLock()
	resolver := s.resolver
	s.mu.RUnlock()

	locations, err := resolver.Resolve(ctx, ref, snap.entries)
	if err != nil {
		s.logger.Warn("Definition lookup failed",
			zap.String("uri", params.URI),
			zap.Stringer("kind", ref.Kind),
			zap.String("name", ref.Name),
			zap.Error(err))
		locations = []tooling.Location{}
	}

	if !s.stillOpen(entry) {
		return nil, nil
	}
	return locations, nil
}

// Reanalyze recomputes the diagnostics of every open document against the
// current schema. A document changed meanwhile keeps its newer analysis.
// Each committed result is also passed to OnDiagnostics.
func (s *Session) Reanalyze(ctx context.Context) []Result {
	results := make([]Result, 0, s.store.Len())
	for _, entry := range s.store.All() {
		committed, ok := s.store.Commit(entry, s.analyze(ctx, entry.Text))
		if !ok {
			continue
		}
		result := resultOf(committed)
		results = append(results, result)
		if s.onDiagnostics != nil {
			s.onDiagnostics(result)
		}
	}

	s.logger.Debug("Reanalyzed open documents", zap.Int("documents", len(results)))
	return results
}

// Shutdown stops background work. The session keeps answering requests.
func (s *Session) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	watcher := s.watcher
	s.watcher = nil
	s.mu.Unlock()

	if watcher == nil {
		return nil
	}
	if err := watcher.Stop(); err != nil {
		return fmt.Errorf("failed to stop schema watcher: %w", err)
	}
	return nil
}

// analyze runs the diagnostics engine with the current schema.
func (s *Session) analyze(ctx context.Context, text string) document.Analysis {
	s.mu.RLock()
	engine := s.engine
	s.mu.RUnlock()

	return engine.Analyze(text, s.currentSchema(ctx))
}

// currentSchema returns the project schema, or nil when none is configured or
// it fails to load.
func (s *Session) currentSchema(ctx context.Context) *ast.Schema {
	s.mu.RLock()
	schemas := s.schemas
	s.mu.RUnlock()

	loaded, err := schemas.Schema(ctx)
	if err != nil {
		if !errors.Is(err, schema.ErrNoSchema) {
			s.logger.Warn("Schema unavailable, skipping validation", zap.Error(err))
		}
		return nil
	}
	return loaded
}

// stillOpen reports whether the open lifetime entry belongs to is current.
func (s *Session) stillOpen(entry *document.Entry) bool {
	current, open := s.store.Get(entry.URI)
	return open && current.ID == entry.ID
}

func checkPosition(method string, params PositionParams) error {
	if params.URI == "" {
		return fmt.Errorf("%s: missing uri: %w", method, ErrMalformedRequest)
	}
	if params.Position == nil {
		return fmt.Errorf("%s: missing position: %w", method, ErrMalformedRequest)
	}
	if params.Position.Line < 0 || params.Position.Character < 0 {
		return fmt.Errorf("%s: negative position: %w", method, ErrMalformedRequest)
	}
	return nil
}

func resultOf(entry *document.Entry) Result {
	diags := entry.Diagnostics
	if diags == nil {
		diags = []tooling.Diagnostic{}
	}
	return Result{
		URI:         entry.URI,
		Version:     entry.Version,
		Diagnostics: diags,
	}
}

// readDocument reads the file a document URI names. Both file URIs and plain
// absolute paths are accepted.
func readDocument(docURI string) (string, error) {
	path, err := pathOf(docURI)
	if err != nil {
		return "", err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(content), nil
}

func pathOf(docURI string) (string, error) {
	if filepath.IsAbs(docURI) {
		return docURI, nil
	}
	if !strings.HasPrefix(docURI, uri.FileScheme+":") {
		return "", fmt.Errorf("not a file uri: %s", docURI)
	}
	parsed, err := uri.Parse(docURI)
	if err != nil {
		return "", err
	}
	return parsed.Filename(), nil
}
