// Package schema loads the GraphQL schema a project validates against. The
// schema is read from SDL files named in the project configuration, cached,
// and reloaded after Invalidate.
package schema

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"go.lsp.dev/uri"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/conduit-lang/graphql-lsp/internal/tooling"
)

// ErrNoSchema is returned when the project configures no schema files.
var ErrNoSchema = errors.New("no schema configured")

// Provider loads and caches the project schema.
type Provider struct {
	root     string
	patterns []string
	logger   *zap.Logger

	mu     sync.RWMutex
	schema *ast.Schema
	err    error
	loaded bool
	gen    uint64

	flight singleflight.Group
}

// NewProvider creates a provider for the schema files matching patterns.
// Relative patterns resolve against root; patterns may be globs.
func NewProvider(root string, patterns []string, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		root:     root,
		patterns: patterns,
		logger:   logger,
	}
}

// Configured reports whether any schema pattern is set.
func (p *Provider) Configured() bool {
	return len(p.patterns) > 0
}

// Schema returns the cached schema, loading it on first use. Concurrent
// callers share a single load. Load failures are cached until Invalidate.
func (p *Provider) Schema(ctx context.Context) (*ast.Schema, error) {
	if !p.Configured() {
		return nil, ErrNoSchema
	}

	p.mu.RLock()
	if p.loaded {
		schema, err := p.schema, p.err
		p.mu.RUnlock()
		return schema, err
	}
	p.mu.RUnlock()

	result, err, _ := p.flight.Do("schema", func() (interface{}, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		p.mu.RLock()
		gen := p.gen
		p.mu.RUnlock()

		schema, err := p.load()

		// A load that raced with Invalidate is returned but not cached.
		p.mu.Lock()
		if p.gen == gen {
			p.schema, p.err, p.loaded = schema, err, true
		}
		p.mu.Unlock()

		if err != nil {
			p.logger.Warn("Failed to load schema", zap.Strings("patterns", p.patterns), zap.Error(err))
		} else {
			p.logger.Info("Schema loaded", zap.Int("types", len(schema.Types)))
		}
		return schema, err
	})
	if err != nil {
		return nil, err
	}
	return result.(*ast.Schema), nil
}

// Invalidate drops the cached schema so the next call reloads it.
func (p *Provider) Invalidate() {
	p.mu.Lock()
	p.schema, p.err, p.loaded = nil, nil, false
	p.gen++
	p.mu.Unlock()
}

// Files returns the schema files currently matching the configured patterns.
func (p *Provider) Files() ([]string, error) {
	seen := make(map[string]bool)
	var files []string

	for _, pattern := range p.patterns {
		if !filepath.IsAbs(pattern) {
			pattern = filepath.Join(p.root, pattern)
		}
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid schema pattern %q: %w", pattern, err)
		}
		for _, match := range matches {
			if !seen[match] {
				seen[match] = true
				files = append(files, match)
			}
		}
	}

	sort.Strings(files)
	return files, nil
}

// Definition returns the location of the named type's name in its SDL file,
// addressed by file URI.
func (p *Provider) Definition(ctx context.Context, name string) (tooling.Location, bool) {
	schema, err := p.Schema(ctx)
	if err != nil || schema == nil {
		return tooling.Location{}, false
	}

	def := schema.Types[name]
	if def == nil || def.BuiltIn || def.Position == nil || def.Position.Src == nil {
		return tooling.Location{}, false
	}

	src := def.Position.Src
	r, ok := tooling.NameRangeAfter(src.Input, def.Position.Line, def.Position.Column, name)
	if !ok {
		return tooling.Location{}, false
	}
	return tooling.Location{URI: string(uri.File(src.Name)), Range: r}, true
}

func (p *Provider) load() (*ast.Schema, error) {
	files, err := p.Files()
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("schema patterns %v matched no files", p.patterns)
	}

	sources := make([]*ast.Source, 0, len(files))
	for _, file := range files {
		content, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read schema file: %w", err)
		}
		sources = append(sources, &ast.Source{Name: file, Input: string(content)})
	}

	schema, gerr := gqlparser.LoadSchema(sources...)
	if gerr != nil {
		return nil, fmt.Errorf("invalid schema: %w", gerr)
	}
	return schema, nil
}
