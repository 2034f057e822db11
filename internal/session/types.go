package session

import (
	"errors"
	"sort"
	"time"

	"github.com/conduit-lang/graphql-lsp/internal/document"
	"github.com/conduit-lang/graphql-lsp/internal/tooling"
)

// ErrMalformedRequest is returned when a request lacks a required field. It is
// the only error a session hands back for document requests; everything else
// is recovered into diagnostics or empty results.
var ErrMalformedRequest = errors.New("malformed request")

// Project is the per-root configuration a session runs with.
type Project struct {
	// Schema lists the SDL files or globs the documents validate against
	Schema []string

	// Extensions are the file extensions scanned for fragment definitions
	Extensions []string

	// Excludes are directory names skipped during scans
	Excludes []string

	// ScanConcurrency bounds parallel parsing during scans
	ScanConcurrency int

	// IgnoredRules are validator rules whose findings are dropped. Nil keeps the defaults.
	IgnoredRules []string

	// Watch reloads the schema when its files change
	Watch bool

	// WatchDebounce batches schema file events. Zero uses the watcher default.
	WatchDebounce time.Duration
}

// TextDocumentItem is a document sent on open.
type TextDocumentItem struct {
	URI     string `json:"uri"`
	Text    string `json:"text"`
	Version int    `json:"version"`
}

// DidSaveParams is a save notification. Text is nil when the client does not
// include the saved content.
type DidSaveParams struct {
	URI     string  `json:"uri"`
	Version int     `json:"version"`
	Text    *string `json:"text,omitempty"`
}

// DidChangeParams is an ordered list of edits producing a new version.
type DidChangeParams struct {
	URI     string          `json:"uri"`
	Version int             `json:"version"`
	Changes []document.Edit `json:"contentChanges"`
}

// PositionParams addresses a position in a document. A nil Position makes the
// request malformed.
type PositionParams struct {
	URI      string            `json:"uri"`
	Position *tooling.Position `json:"position"`
}

// Result is the outcome of a lifecycle notification: the diagnostics of the
// stored text.
type Result struct {
	URI         string               `json:"uri"`
	Version     int                  `json:"version"`
	Diagnostics []tooling.Diagnostic `json:"diagnostics"`
}

// CompletionList is the answer to a completion request.
type CompletionList struct {
	Items []tooling.CompletionItem `json:"items"`
}

// InitializeParams starts a session on a project root.
type InitializeParams struct {
	RootPath string `json:"rootPath"`
}

// InitializeResult describes what the session supports.
type InitializeResult struct {
	Capabilities Capabilities `json:"capabilities"`
}

// Capabilities is the capability descriptor returned from Initialize
type Capabilities struct {
	CompletionProvider CompletionOptions `json:"completionProvider"`
	DefinitionProvider bool              `json:"definitionProvider"`
	TextDocumentSync   SyncKind          `json:"textDocumentSync"`
}

// CompletionOptions describes completion support
type CompletionOptions struct {
	ResolveProvider bool `json:"resolveProvider"`
}

// SyncKind is how change notifications carry document content.
type SyncKind int

const (
	// SyncNone means documents are not synchronized
	SyncNone SyncKind = iota
	// SyncFull means each change carries the complete text or an ordered edit list
	SyncFull
	// SyncIncremental means changes are diffs
	SyncIncremental
)

// Snapshot is the set of open documents at one instant, ordered by URI.
type Snapshot struct {
	entries []*document.Entry
}

func (sn Snapshot) get(docURI string) (*document.Entry, bool) {
	i := sort.Search(len(sn.entries), func(i int) bool {
		return sn.entries[i].URI >= docURI
	})
	if i < len(sn.entries) && sn.entries[i].URI == docURI {
		return sn.entries[i], true
	}
	return nil, false
}
