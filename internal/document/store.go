// Package document holds the authoritative in-memory mirror of the documents a
// client has open. Entries are immutable snapshots: every mutation stores a new
// *Entry, so a reader holding an entry never observes a later write.
package document

import (
	"sort"
	"sync"

	"github.com/vektah/gqlparser/v2/ast"

	"github.com/conduit-lang/graphql-lsp/internal/tooling"
)

// Entry is the state of one open document.
type Entry struct {
	// URI is the document identifier exactly as the client sent it
	URI string

	// Text is the full current content
	Text string

	// Version is the client-supplied version of Text
	Version int

	// ID identifies one open lifetime of URI. Reopening after a close yields a new ID.
	ID uint64

	Analysis
}

// Analysis is everything derived from an entry's text.
type Analysis struct {
	// Parse is the parse outcome of the text
	Parse ParseResult

	// Diagnostics are parse errors, or validation findings when parsing succeeded
	Diagnostics []tooling.Diagnostic
}

// ParseResult is either a parsed document (Ok) or the parse errors.
type ParseResult struct {
	AST    *ast.QueryDocument
	Errors []ParseError
}

// OK reports whether the text parsed.
func (p ParseResult) OK() bool {
	return p.AST != nil && len(p.Errors) == 0
}

// ParseError is a syntax error at a location in the text.
type ParseError struct {
	Message string
	Range   tooling.Range
}

// Store caches open documents keyed by exact URI.
type Store struct {
	entries map[string]*Entry
	mu      sync.RWMutex
	nextID  uint64
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		entries: make(map[string]*Entry),
	}
}

// Put inserts or replaces the entry for uri. An already-open uri keeps its ID.
func (s *Store) Put(uri, text string, version int, analysis Analysis) *Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := &Entry{
		URI:      uri,
		Text:     text,
		Version:  version,
		Analysis: analysis,
	}
	if old, exists := s.entries[uri]; exists {
		entry.ID = old.ID
	} else {
		s.nextID++
		entry.ID = s.nextID
	}
	s.entries[uri] = entry

	return entry
}

// Commit replaces prev with a copy carrying analysis, but only while prev is
// still the current entry for its URI. It reports whether the commit applied.
func (s *Store) Commit(prev *Entry, analysis Analysis) (*Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if current, exists := s.entries[prev.URI]; !exists || current != prev {
		return current, false
	}

	entry := *prev
	entry.Analysis = analysis
	s.entries[prev.URI] = &entry
	return &entry, true
}

// ApplyIncrementalEdits applies edits in order to the current text of uri and
// returns the result without storing it. A uri with no entry starts from empty text.
func (s *Store) ApplyIncrementalEdits(uri string, edits []Edit) string {
	base := ""
	if entry, exists := s.Get(uri); exists {
		base = entry.Text
	}
	return ApplyEdits(base, edits)
}

// Get returns the current entry for uri.
func (s *Store) Get(uri string) (*Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, exists := s.entries[uri]
	return entry, exists
}

// Remove deletes the entry for uri. Removing an absent uri is a no-op.
func (s *Store) Remove(uri string) {
	s.mu.Lock()
	delete(s.entries, uri)
	s.mu.Unlock()
}

// All returns the current entries ordered by URI.
func (s *Store) All() []*Entry {
	s.mu.RLock()
	entries := make([]*Entry, 0, len(s.entries))
	for _, entry := range s.entries {
		entries = append(entries, entry)
	}
	s.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].URI < entries[j].URI
	})
	return entries
}

// Len returns the number of open documents.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.entries)
}
