package tooling

import (
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/lexer"
)

// Tokenize lexes text with the GraphQL lexer. It reports false when the lexer
// fails, returning the tokens read up to that point.
func Tokenize(text string) ([]lexer.Token, bool) {
	lex := lexer.New(&ast.Source{Name: "document", Input: text})

	var tokens []lexer.Token
	for {
		tok, err := lex.ReadToken()
		if err != nil {
			return tokens, false
		}
		if tok.Kind == lexer.EOF {
			return tokens, true
		}
		tokens = append(tokens, tok)
	}
}

// WithoutComments drops comment tokens.
func WithoutComments(tokens []lexer.Token) []lexer.Token {
	kept := make([]lexer.Token, 0, len(tokens))
	for _, tok := range tokens {
		if tok.Kind != lexer.Comment {
			kept = append(kept, tok)
		}
	}
	return kept
}

// NameTokenRange returns the range a Name token covers in text.
func NameTokenRange(text string, tok lexer.Token) Range {
	start := PositionFromRuneColumn(text, tok.Pos.Line, tok.Pos.Column)
	end := start
	end.Character += len(tok.Value)
	return Range{Start: start, End: end}
}
