package tooling

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vektah/gqlparser/v2/lexer"
)

func TestTokenize(t *testing.T) {
	tokens, ok := Tokenize("{ hero # the hero\n }")
	assert.True(t, ok)
	assert.Len(t, tokens, 4)
	assert.Equal(t, lexer.Comment, tokens[2].Kind)

	kept := WithoutComments(tokens)
	assert.Len(t, kept, 3)
	assert.Equal(t, "hero", kept[1].Value)
}

func TestTokenizeStopsAtError(t *testing.T) {
	tokens, ok := Tokenize(`{ hero(episode: "unterminated`)
	assert.False(t, ok)
	assert.Len(t, tokens, 5)
}

func TestNameTokenRange(t *testing.T) {
	// The emoji is one rune but two UTF-16 units.
	text := "{\n  \"\U0001F600\" name\n}"
	tokens, _ := Tokenize(text)

	var name lexer.Token
	for _, tok := range tokens {
		if tok.Value == "name" {
			name = tok
		}
	}
	assert.Equal(t, Range{
		Start: Position{Line: 1, Character: 7},
		End:   Position{Line: 1, Character: 11},
	}, NameTokenRange(text, name))
}
