package definition

import (
	"github.com/vektah/gqlparser/v2/lexer"

	"github.com/conduit-lang/graphql-lsp/internal/tooling"
)

// ReferenceKind is the kind of symbol use under the cursor
type ReferenceKind int

const (
	// ReferenceNone means the cursor is not on a resolvable name
	ReferenceNone ReferenceKind = iota
	// ReferenceFragmentSpread is the name in "...name"
	ReferenceFragmentSpread
	// ReferenceNamedType is a type condition or a variable type
	ReferenceNamedType
)

// String returns a short name for logs
func (k ReferenceKind) String() string {
	switch k {
	case ReferenceFragmentSpread:
		return "fragment_spread"
	case ReferenceNamedType:
		return "named_type"
	default:
		return "none"
	}
}

// Reference is a symbol use found in a document
type Reference struct {
	Kind  ReferenceKind
	Name  string
	Range tooling.Range
}

// ReferenceAt finds the reference whose name token contains pos. A cursor
// just past the end of a name still selects it. Lexing stops at the first
// error, so references after a malformed token are not found.
func ReferenceAt(text string, pos tooling.Position) Reference {
	tokens, _ := tooling.Tokenize(text)
	tokens = tooling.WithoutComments(tokens)

	braces, parens := 0, 0
	// variables is set inside an operation's variable definitions and
	// defaults while a default value is being read.
	variables, defaults := false, false
	for i, tok := range tokens {
		switch tok.Kind {
		case lexer.BraceL:
			braces++
		case lexer.BraceR:
			braces--
		case lexer.ParenL:
			if braces == 0 && parens == 0 && opensVariables(tokens, i) {
				variables, defaults = true, false
			}
			parens++
		case lexer.ParenR:
			parens--
			if parens <= 0 {
				variables, defaults = false, false
			}
		case lexer.Equals:
			if variables && parens == 1 {
				defaults = true
			}
		case lexer.Dollar:
			defaults = false
		case lexer.Name:
			r := tooling.NameTokenRange(text, tok)
			if !r.Contains(pos) {
				continue
			}
			kind := classify(tokens, i, variables && parens == 1 && !defaults)
			if kind == ReferenceNone {
				// The cursor may also touch the start of the following name.
				continue
			}
			return Reference{Kind: kind, Name: tok.Value, Range: r}
		}
	}

	return Reference{Kind: ReferenceNone}
}

// classify decides what the Name token at i refers to. inVariables is true
// inside an operation's variable definitions.
func classify(tokens []lexer.Token, i int, inVariables bool) ReferenceKind {
	tok := tokens[i]
	prev := at(tokens, i-1)
	pprev := at(tokens, i-2)

	switch {
	case prev.Kind == lexer.Spread && tok.Value != "on":
		return ReferenceFragmentSpread
	case prev.Kind == lexer.Name && prev.Value == "on":
		// Inline fragment ("... on T") or fragment definition ("fragment f on T").
		if pprev.Kind == lexer.Spread {
			return ReferenceNamedType
		}
		if pprev.Kind == lexer.Name && at(tokens, i-3).Kind == lexer.Name && at(tokens, i-3).Value == "fragment" {
			return ReferenceNamedType
		}
	case inVariables && (prev.Kind == lexer.Colon || prev.Kind == lexer.BracketL):
		return ReferenceNamedType
	}
	return ReferenceNone
}

// opensVariables reports whether the paren at i follows an operation keyword,
// optionally with the operation name in between.
func opensVariables(tokens []lexer.Token, i int) bool {
	prev := at(tokens, i-1)
	if prev.Kind != lexer.Name {
		return false
	}
	if isOperationKeyword(prev.Value) {
		return true
	}
	pprev := at(tokens, i-2)
	return pprev.Kind == lexer.Name && isOperationKeyword(pprev.Value)
}

func isOperationKeyword(value string) bool {
	return value == "query" || value == "mutation" || value == "subscription"
}

func at(tokens []lexer.Token, i int) lexer.Token {
	if i < 0 || i >= len(tokens) {
		return lexer.Token{Kind: lexer.Invalid}
	}
	return tokens[i]
}
