// Package tooling defines the editor-facing value types shared by the analysis
// packages: positions, ranges, locations, diagnostics and completion items.
// They are converted to wire types only at the LSP boundary.
package tooling

// Position represents a position in a document (zero-based for LSP compatibility).
// Character counts UTF-16 code units, as the protocol does.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Range represents a range in a document
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Location represents a source location with URI and range
type Location struct {
	URI   string `json:"uri"`
	Range Range  `json:"range"`
}

// Before reports whether p sorts strictly before other.
func (p Position) Before(other Position) bool {
	if p.Line != other.Line {
		return p.Line < other.Line
	}
	return p.Character < other.Character
}

// Contains reports whether pos lies inside r, both ends inclusive.
func (r Range) Contains(pos Position) bool {
	return !pos.Before(r.Start) && !r.End.Before(pos)
}

// Diagnostic represents a parse or validation problem in a document
type Diagnostic struct {
	Range    Range              `json:"range"`
	Severity DiagnosticSeverity `json:"severity"`
	Code     string             `json:"code,omitempty"`
	Message  string             `json:"message"`
	Source   string             `json:"source,omitempty"`
}

// DiagnosticSeverity indicates the severity of a diagnostic
type DiagnosticSeverity int

const (
	// DiagnosticSeverityError represents an error diagnostic
	DiagnosticSeverityError DiagnosticSeverity = iota
	// DiagnosticSeverityWarning represents a warning diagnostic
	DiagnosticSeverityWarning
	// DiagnosticSeverityInfo represents an informational diagnostic
	DiagnosticSeverityInfo
	// DiagnosticSeverityHint represents a hint diagnostic
	DiagnosticSeverityHint
)

// String returns the lower-case name used in CLI output.
func (s DiagnosticSeverity) String() string {
	switch s {
	case DiagnosticSeverityError:
		return "error"
	case DiagnosticSeverityWarning:
		return "warning"
	case DiagnosticSeverityInfo:
		return "info"
	case DiagnosticSeverityHint:
		return "hint"
	default:
		return "unknown"
	}
}

// CompletionItem represents a completion suggestion
type CompletionItem struct {
	// Label is the text to display
	Label string `json:"label"`

	// Kind categorizes the completion
	Kind CompletionKind `json:"kind"`

	// Detail provides additional information, usually the GraphQL type
	Detail string `json:"detail,omitempty"`

	// Documentation provides help text. Left empty until the item is resolved.
	Documentation string `json:"documentation,omitempty"`

	// Deprecated marks schema members carrying @deprecated
	Deprecated bool `json:"deprecated,omitempty"`

	// Data identifies the schema member so the item can be resolved later
	Data *CompletionData `json:"data,omitempty"`
}

// CompletionData points back at the schema member a completion item came from.
type CompletionData struct {
	// ParentType is the type owning the member (empty for types and keywords)
	ParentType string `json:"parentType,omitempty"`

	// Name is the member name
	Name string `json:"name"`
}

// CompletionKind categorizes completion items
type CompletionKind int

const (
	// CompletionKindKeyword represents a keyword completion
	CompletionKindKeyword CompletionKind = iota
	// CompletionKindType represents a named type completion
	CompletionKindType
	// CompletionKindField represents a field completion
	CompletionKindField
	// CompletionKindFragment represents a fragment spread completion
	CompletionKindFragment
	// CompletionKindArgument represents an argument name completion
	CompletionKindArgument
	// CompletionKindEnumValue represents an enum value completion
	CompletionKindEnumValue
	// CompletionKindDirective represents a directive completion
	CompletionKindDirective
	// CompletionKindSnippet represents a code snippet completion
	CompletionKindSnippet
)
