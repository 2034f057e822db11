// Package definition resolves references under the cursor to the locations
// that define them. Fragment spreads are looked up in the open documents
// first and then in the project files on disk; named types resolve through
// the schema.
package definition

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/lexer"
	"github.com/vektah/gqlparser/v2/parser"
	"go.lsp.dev/uri"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/conduit-lang/graphql-lsp/internal/cache"
	"github.com/conduit-lang/graphql-lsp/internal/document"
	"github.com/conduit-lang/graphql-lsp/internal/tooling"
)

// DefaultExtensions are the file extensions scanned for fragment definitions
var DefaultExtensions = []string{".graphql", ".gql"}

// DefaultExcludes are directory names never descended into
var DefaultExcludes = []string{".git", "node_modules"}

// DefaultConcurrency bounds how many files are parsed at once during a scan
const DefaultConcurrency = 8

// TypeLocator finds where a schema type is defined.
type TypeLocator interface {
	Definition(ctx context.Context, name string) (tooling.Location, bool)
}

// Config controls the directory scan
type Config struct {
	// Root is the project directory. An empty root disables scanning.
	Root string

	// Extensions are the file extensions to scan, including the dot
	Extensions []string

	// Excludes are directory names to skip
	Excludes []string

	// Concurrency bounds parallel file parsing
	Concurrency int
}

// Resolver resolves references to definition locations.
type Resolver struct {
	config Config
	asts   *cache.ASTCache
	types  TypeLocator
	logger *zap.Logger
}

// NewResolver creates a resolver. asts memoizes parsed files across calls and
// may be shared; types may be nil when no schema is configured.
func NewResolver(config Config, asts *cache.ASTCache, types TypeLocator, logger *zap.Logger) *Resolver {
	if len(config.Extensions) == 0 {
		config.Extensions = DefaultExtensions
	}
	if config.Excludes == nil {
		config.Excludes = DefaultExcludes
	}
	if config.Concurrency <= 0 {
		config.Concurrency = DefaultConcurrency
	}
	if asts == nil {
		asts = cache.NewASTCache()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Resolver{
		config: config,
		asts:   asts,
		types:  types,
		logger: logger,
	}
}

// Root returns the scanned project directory
func (r *Resolver) Root() string {
	return r.config.Root
}

// Resolve returns every definition of ref. open are the open documents, which
// take precedence over the files on disk. The result is empty, never nil,
// when nothing matches.
func (r *Resolver) Resolve(ctx context.Context, ref Reference, open []*document.Entry) ([]tooling.Location, error) {
	switch ref.Kind {
	case ReferenceFragmentSpread:
		return r.resolveFragment(ctx, ref.Name, open)
	case ReferenceNamedType:
		return r.resolveType(ctx, ref.Name), nil
	default:
		return []tooling.Location{}, nil
	}
}

func (r *Resolver) resolveType(ctx context.Context, name string) []tooling.Location {
	if r.types == nil {
		return []tooling.Location{}
	}
	loc, ok := r.types.Definition(ctx, name)
	if !ok {
		return []tooling.Location{}
	}
	return []tooling.Location{loc}
}

func (r *Resolver) resolveFragment(ctx context.Context, name string, open []*document.Entry) ([]tooling.Location, error) {
	locations := make([]tooling.Location, 0)
	for _, entry := range open {
		locations = append(locations, fragmentLocations(entry.URI, entry.Text, entry.Parse.AST, name)...)
	}
	if len(locations) > 0 {
		return locations, nil
	}

	found, err := r.scan(ctx, name, open)
	if err != nil {
		return nil, err
	}
	return append(locations, found...), nil
}

// scan parses the project files under the root and collects the definitions
// of fragment name. Files open in the editor are skipped.
func (r *Resolver) scan(ctx context.Context, name string, open []*document.Entry) ([]tooling.Location, error) {
	if r.config.Root == "" {
		return nil, nil
	}

	skip := make(map[string]bool, len(open)*2)
	for _, entry := range open {
		skip[entry.URI] = true
	}

	files, err := r.files(ctx, skip)
	if err != nil {
		return nil, err
	}
	r.prune(files)

	var (
		mu        sync.Mutex
		locations []tooling.Location
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.config.Concurrency)
	for _, path := range files {
		path := path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			parsed, ok := r.parse(path)
			if !ok {
				return nil
			}

			found := fragmentLocations(string(uri.File(path)), parsed.Source, parsed.Document, name)
			if len(found) > 0 {
				mu.Lock()
				locations = append(locations, found...)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(locations, func(i, j int) bool {
		if locations[i].URI != locations[j].URI {
			return locations[i].URI < locations[j].URI
		}
		return locations[i].Range.Start.Before(locations[j].Range.Start)
	})

	r.logger.Debug("Scanned project for fragment",
		zap.String("fragment", name),
		zap.Int("files", len(files)),
		zap.Int("matches", len(locations)),
		zap.Int("cached", r.asts.Size()))

	return locations, nil
}

// Files lists the project files under the root that carry a scanned
// extension, in lexical order.
func (r *Resolver) Files(ctx context.Context) ([]string, error) {
	if r.config.Root == "" {
		return nil, nil
	}
	return r.files(ctx, nil)
}

// files lists the candidate files under the root in lexical order.
func (r *Resolver) files(ctx context.Context, skip map[string]bool) ([]string, error) {
	excluded := make(map[string]bool, len(r.config.Excludes))
	for _, dir := range r.config.Excludes {
		excluded[dir] = true
	}

	var files []string
	err := filepath.WalkDir(r.config.Root, func(path string, d fs.DirEntry, err error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err != nil {
			r.logger.Debug("Skipping unreadable path", zap.String("path", path), zap.Error(err))
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if path != r.config.Root && excluded[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}

		if !r.hasExtension(path) {
			return nil
		}
		if skip[path] || skip[string(uri.File(path))] {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	return files, nil
}

// prune drops cached parses of files the last walk no longer lists, such as
// deleted files or files that are now open in the editor.
func (r *Resolver) prune(files []string) {
	listed := make(map[string]bool, len(files))
	for _, path := range files {
		listed[path] = true
	}
	for _, path := range r.asts.Paths() {
		if !listed[path] {
			r.asts.Invalidate(path)
		}
	}
}

func (r *Resolver) hasExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, want := range r.config.Extensions {
		if ext == strings.ToLower(want) {
			return true
		}
	}
	return false
}

// parse reads and parses path, reusing the cached parse while the content
// hash is unchanged. Files that fail to parse are cached without a document.
func (r *Resolver) parse(path string) (*cache.CachedAST, bool) {
	content, err := os.ReadFile(path)
	if err != nil {
		r.logger.Debug("Failed to read project file", zap.String("path", path), zap.Error(err))
		r.asts.Invalidate(path)
		return nil, false
	}

	hash := cache.HashContent(content)
	if cached, ok := r.asts.Lookup(path, hash); ok {
		return cached, true
	}

	source := string(content)
	doc, perr := parser.ParseQuery(&ast.Source{Name: path, Input: source})
	if perr != nil {
		doc = nil
	}
	return r.asts.Set(path, doc, source, hash), true
}

// fragmentLocations finds the definitions of fragment name in one file. The
// parsed document is used when available; otherwise the text is scanned token
// by token so files with unrelated syntax errors still resolve.
func fragmentLocations(docURI, text string, doc *ast.QueryDocument, name string) []tooling.Location {
	var locations []tooling.Location

	if doc != nil {
		for _, frag := range doc.Fragments {
			if frag.Name != name || frag.Position == nil {
				continue
			}
			if r, ok := tooling.NameRangeAfter(text, frag.Position.Line, frag.Position.Column, name); ok {
				locations = append(locations, tooling.Location{URI: docURI, Range: r})
			}
		}
		return locations
	}

	tokens, _ := tooling.Tokenize(text)
	tokens = tooling.WithoutComments(tokens)
	depth := 0
	for i, tok := range tokens {
		switch tok.Kind {
		case lexer.BraceL:
			depth++
		case lexer.BraceR:
			if depth > 0 {
				depth--
			}
		case lexer.Name:
			if depth != 0 || tok.Value != "fragment" {
				continue
			}
			nameTok, on := at(tokens, i+1), at(tokens, i+2)
			if nameTok.Kind == lexer.Name && nameTok.Value == name && on.Kind == lexer.Name && on.Value == "on" {
				locations = append(locations, tooling.Location{URI: docURI, Range: tooling.NameTokenRange(text, nameTok)})
			}
		}
	}
	return locations
}
