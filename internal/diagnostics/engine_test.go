package diagnostics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/graphql-lsp/internal/testing/fixtures"
	"github.com/conduit-lang/graphql-lsp/internal/tooling"
)

func TestAnalyzeParseError(t *testing.T) {
	engine := NewEngine(nil)

	text := "\n  {\n    hero(episode: NEWHOPE){\n    }\n  }\n  "
	analysis := engine.Analyze(text, fixtures.StarWarsSchema())

	require.False(t, analysis.Parse.OK())
	require.Len(t, analysis.Parse.Errors, 1)
	require.Len(t, analysis.Diagnostics, 1)

	diag := analysis.Diagnostics[0]
	assert.Equal(t, tooling.DiagnosticSeverityError, diag.Severity)
	assert.Equal(t, CodeParseError, diag.Code)
	assert.Equal(t, Source, diag.Source)
	assert.NotEmpty(t, diag.Message)
	// The parser stops at the closing brace of the empty selection set.
	assert.Equal(t, tooling.Position{Line: 3, Character: 4}, diag.Range.Start)
	assert.Equal(t, analysis.Parse.Errors[0].Range, diag.Range)
}

func TestAnalyzeValidDocument(t *testing.T) {
	engine := NewEngine(nil)

	text := "{\n  hero(episode: NEWHOPE) {\n    name\n  }\n}\n"
	analysis := engine.Analyze(text, fixtures.StarWarsSchema())

	require.True(t, analysis.Parse.OK())
	assert.NotNil(t, analysis.Diagnostics)
	assert.Empty(t, analysis.Diagnostics)
}

func TestAnalyzeValidationError(t *testing.T) {
	engine := NewEngine(nil)

	text := "{\n  hero(episode: NOTANEPISODE) {\n    name\n  }\n}\n"
	analysis := engine.Analyze(text, fixtures.StarWarsSchema())

	require.True(t, analysis.Parse.OK(), "semantic errors still parse")
	require.NotEmpty(t, analysis.Diagnostics)

	diag := analysis.Diagnostics[0]
	assert.Equal(t, tooling.DiagnosticSeverityError, diag.Severity)
	assert.Equal(t, 1, diag.Range.Start.Line)
	assert.NotEmpty(t, diag.Code)
}

func TestAnalyzeUnknownField(t *testing.T) {
	engine := NewEngine(nil)

	analysis := engine.Analyze("{ hero { starship } }", fixtures.StarWarsSchema())

	require.Len(t, analysis.Diagnostics, 1)
	diag := analysis.Diagnostics[0]
	assert.Contains(t, diag.Message, "starship")
	assert.Equal(t, tooling.Range{
		Start: tooling.Position{Line: 0, Character: 9},
		End:   tooling.Position{Line: 0, Character: 17},
	}, diag.Range)
}

func TestAnalyzeWithoutSchemaSkipsValidation(t *testing.T) {
	engine := NewEngine(nil)

	analysis := engine.Analyze("{ hero { starship } }", nil)

	assert.True(t, analysis.Parse.OK())
	assert.Empty(t, analysis.Diagnostics)
}

func TestAnalyzeEmptyDocument(t *testing.T) {
	engine := NewEngine(nil)

	analysis := engine.Analyze("", fixtures.StarWarsSchema())

	assert.True(t, analysis.Parse.OK())
	assert.Empty(t, analysis.Diagnostics)
}

func TestAnalyzeIgnoresFragmentScopeRules(t *testing.T) {
	schema := fixtures.StarWarsSchema()

	// testFragment lives in another file; this fragment is used elsewhere.
	text := "{ hero { ...testFragment } }\nfragment unused on Character { name }\n"

	assert.Empty(t, NewEngine(nil).Analyze(text, schema).Diagnostics)
	assert.Len(t, NewEngine([]string{}).Analyze(text, schema).Diagnostics, 2)
}

func TestAnalyzeDeprecations(t *testing.T) {
	engine := NewEngine(nil)

	text := "{\n  hero(episode: PHANTOM) {\n    secretBackstory\n  }\n}\n"
	analysis := engine.Analyze(text, fixtures.StarWarsSchema())

	require.Len(t, analysis.Diagnostics, 2)
	for _, diag := range analysis.Diagnostics {
		assert.Equal(t, tooling.DiagnosticSeverityWarning, diag.Severity)
		assert.Equal(t, CodeDeprecated, diag.Code)
	}

	// Arguments are visited before the selection set.
	assert.Contains(t, analysis.Diagnostics[0].Message, "Episode.PHANTOM")
	assert.Contains(t, analysis.Diagnostics[0].Message, "Prequels are not supported")
	assert.Equal(t, tooling.Position{Line: 1, Character: 16}, analysis.Diagnostics[0].Range.Start)
	assert.Contains(t, analysis.Diagnostics[1].Message, "Character.secretBackstory")
	assert.Equal(t, tooling.Position{Line: 2, Character: 4}, analysis.Diagnostics[1].Range.Start)
}

func TestAnalyzeIsIdempotent(t *testing.T) {
	engine := NewEngine(nil)
	schema := fixtures.StarWarsSchema()

	text := "{ hero(episode: NOPE) { name } }"
	first := engine.Analyze(text, schema)
	second := engine.Analyze(text, schema)

	assert.Equal(t, first.Diagnostics, second.Diagnostics)
}

func TestTokenRange(t *testing.T) {
	text := "{\n  hero {\n    name\n  }\n}"

	assert.Equal(t, tooling.Range{
		Start: tooling.Position{Line: 1, Character: 2},
		End:   tooling.Position{Line: 1, Character: 6},
	}, tokenRange(text, 2, 3))

	// Punctuation gets a single character.
	assert.Equal(t, tooling.Range{
		Start: tooling.Position{Line: 3, Character: 2},
		End:   tooling.Position{Line: 3, Character: 3},
	}, tokenRange(text, 4, 3))
}
