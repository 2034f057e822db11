package cache

import (
	"sync"
	"time"

	"github.com/vektah/gqlparser/v2/ast"
)

// CachedAST represents a parsed project file with metadata
type CachedAST struct {
	// Document is nil when the file failed to parse
	Document *ast.QueryDocument
	Source   string
	Hash     string
	Path     string
	CachedAt time.Time
}

// Parsed reports whether the cached file parsed successfully.
func (c *CachedAST) Parsed() bool {
	return c.Document != nil
}

// ASTCache memoizes parsed project files between directory scans. Entries are
// only served while the file content hash is unchanged.
type ASTCache struct {
	entries map[string]*CachedAST
	mu      sync.RWMutex
}

// NewASTCache creates a new AST cache
func NewASTCache() *ASTCache {
	return &ASTCache{
		entries: make(map[string]*CachedAST),
	}
}

// Lookup returns the cached parse of path if it was made from content with hash.
func (ac *ASTCache) Lookup(path, hash string) (*CachedAST, bool) {
	ac.mu.RLock()
	defer ac.mu.RUnlock()

	entry, exists := ac.entries[path]
	if !exists || entry.Hash != hash {
		return nil, false
	}
	return entry, true
}

// Set stores the parse of path. A nil document records a parse failure.
func (ac *ASTCache) Set(path string, doc *ast.QueryDocument, source, hash string) *CachedAST {
	ac.mu.Lock()
	defer ac.mu.Unlock()

	entry := &CachedAST{
		Document: doc,
		Source:   source,
		Hash:     hash,
		Path:     path,
		CachedAt: time.Now(),
	}
	ac.entries[path] = entry
	return entry
}

// Invalidate removes an entry from the cache
func (ac *ASTCache) Invalidate(path string) {
	ac.mu.Lock()
	defer ac.mu.Unlock()

	delete(ac.entries, path)
}

// InvalidateAll clears the entire cache
func (ac *ASTCache) InvalidateAll() {
	ac.mu.Lock()
	defer ac.mu.Unlock()

	ac.entries = make(map[string]*CachedAST)
}

// Paths returns the cached paths in no particular order
func (ac *ASTCache) Paths() []string {
	ac.mu.RLock()
	defer ac.mu.RUnlock()

	paths := make([]string, 0, len(ac.entries))
	for path := range ac.entries {
		paths = append(paths, path)
	}
	return paths
}

// Size returns the number of cached entries
func (ac *ASTCache) Size() int {
	ac.mu.RLock()
	defer ac.mu.RUnlock()

	return len(ac.entries)
}
