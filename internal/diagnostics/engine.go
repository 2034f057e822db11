// Package diagnostics turns document text into located diagnostics. It parses
// the text with the GraphQL parser and, when parsing succeeds and a schema is
// available, runs the validator. Analysis is whole-document and side-effect free.
package diagnostics

import (
	"errors"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"github.com/vektah/gqlparser/v2/parser"
	"github.com/vektah/gqlparser/v2/validator"

	// Registers the standard validation rules with the validator.
	_ "github.com/vektah/gqlparser/v2/validator/rules"

	"github.com/conduit-lang/graphql-lsp/internal/document"
	"github.com/conduit-lang/graphql-lsp/internal/tooling"
)

// Source is the diagnostic source reported to clients
const Source = "graphql"

const (
	// CodeParseError marks syntax errors
	CodeParseError = "parse_error"
	// CodeDeprecated marks uses of deprecated schema members
	CodeDeprecated = "deprecated"
)

// DefaultIgnoredRules are validator rules whose findings are dropped. Fragments
// are project-scoped, so a single document cannot decide whether a fragment is
// unknown or unused.
var DefaultIgnoredRules = []string{"NoUnusedFragments", "KnownFragmentNames"}

// Engine analyzes documents.
type Engine struct {
	ignored map[string]bool
}

// NewEngine creates an engine that drops findings of the named validator rules.
// A nil list selects DefaultIgnoredRules.
func NewEngine(ignoredRules []string) *Engine {
	if ignoredRules == nil {
		ignoredRules = DefaultIgnoredRules
	}

	ignored := make(map[string]bool, len(ignoredRules))
	for _, rule := range ignoredRules {
		ignored[rule] = true
	}
	return &Engine{ignored: ignored}
}

// Analyze parses text and, on success, validates it against schema. Parse
// failures skip validation. A nil schema skips validation as well.
func (e *Engine) Analyze(text string, schema *ast.Schema) document.Analysis {
	doc, err := parser.ParseQuery(&ast.Source{Name: "document", Input: text})
	if err != nil {
		parseErrors := toParseErrors(text, err)
		diagnostics := make([]tooling.Diagnostic, 0, len(parseErrors))
		for _, pe := range parseErrors {
			diagnostics = append(diagnostics, tooling.Diagnostic{
				Range:    pe.Range,
				Severity: tooling.DiagnosticSeverityError,
				Code:     CodeParseError,
				Message:  pe.Message,
				Source:   Source,
			})
		}
		return document.Analysis{
			Parse:       document.ParseResult{Errors: parseErrors},
			Diagnostics: diagnostics,
		}
	}

	diagnostics := make([]tooling.Diagnostic, 0)
	if schema != nil {
		for _, verr := range validator.Validate(schema, doc) {
			if e.ignored[verr.Rule] {
				continue
			}
			diagnostics = append(diagnostics, tooling.Diagnostic{
				Range:    errorRange(text, verr),
				Severity: tooling.DiagnosticSeverityError,
				Code:     verr.Rule,
				Message:  verr.Message,
				Source:   Source,
			})
		}
		diagnostics = append(diagnostics, deprecations(text, doc)...)
	}

	return document.Analysis{
		Parse:       document.ParseResult{AST: doc},
		Diagnostics: diagnostics,
	}
}

// toParseErrors flattens the parser error into located parse errors.
func toParseErrors(text string, err error) []document.ParseError {
	var list gqlerror.List
	if errors.As(err, &list) {
		parseErrors := make([]document.ParseError, 0, len(list))
		for _, gerr := range list {
			parseErrors = append(parseErrors, document.ParseError{
				Message: gerr.Message,
				Range:   errorRange(text, gerr),
			})
		}
		return parseErrors
	}

	var gerr *gqlerror.Error
	if errors.As(err, &gerr) {
		return []document.ParseError{{
			Message: gerr.Message,
			Range:   errorRange(text, gerr),
		}}
	}

	return []document.ParseError{{
		Message: err.Error(),
		Range:   tokenRange(text, 1, 1),
	}}
}

// errorRange locates an error at its first reported location.
func errorRange(text string, err *gqlerror.Error) tooling.Range {
	if len(err.Locations) == 0 {
		return tokenRange(text, 1, 1)
	}
	loc := err.Locations[0]
	return tokenRange(text, loc.Line, loc.Column)
}

// tokenRange spans the name token starting at the one-based line and rune
// column, or a single character when no name starts there.
func tokenRange(text string, line, column int) tooling.Range {
	start := tooling.PositionFromRuneColumn(text, line, column)
	end := start

	lineText := tooling.LineAt(text, start.Line)
	offset := tooling.OffsetAt(lineText, tooling.Position{Character: start.Character})
	width := 0
	for offset+width < len(lineText) && tooling.IsNameByte(lineText[offset+width]) {
		width++
	}
	if width == 0 {
		width = 1
	}
	end.Character += width
	return tooling.Range{Start: start, End: end}
}
