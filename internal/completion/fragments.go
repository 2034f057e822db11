package completion

import (
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/lexer"

	"github.com/conduit-lang/graphql-lsp/internal/tooling"
)

// FragmentsInText finds fragment definitions in text without parsing it, so a
// document with errors elsewhere still offers its own fragments.
func FragmentsInText(text string) []Fragment {
	tokens, _ := tooling.Tokenize(text)
	tokens = tooling.WithoutComments(tokens)

	var fragments []Fragment
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
			name, on, cond, next := tokenAt(tokens, i+1), tokenAt(tokens, i+2), tokenAt(tokens, i+3), tokenAt(tokens, i+4)
			if name.Kind == lexer.Name && isName(on, "on") && cond.Kind == lexer.Name &&
				(next.Kind == lexer.BraceL || next.Kind == lexer.At) {
				fragments = append(fragments, Fragment{Name: name.Value, TypeCondition: cond.Value})
			}
		}
	}
	return fragments
}

// FragmentsOf lists the fragments defined in a parsed document.
func FragmentsOf(doc *ast.QueryDocument) []Fragment {
	if doc == nil {
		return nil
	}

	fragments := make([]Fragment, 0, len(doc.Fragments))
	for _, frag := range doc.Fragments {
		fragments = append(fragments, Fragment{Name: frag.Name, TypeCondition: frag.TypeCondition})
	}
	return fragments
}
