package document

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/conduit-lang/graphql-lsp/internal/tooling"
)

func span(startLine, startChar, endLine, endChar int) *tooling.Range {
	return &tooling.Range{
		Start: tooling.Position{Line: startLine, Character: startChar},
		End:   tooling.Position{Line: endLine, Character: endChar},
	}
}

func TestApplyEdits(t *testing.T) {
	tests := []struct {
		name     string
		base     string
		edits    []Edit
		expected string
	}{
		{
			name:     "No edits",
			base:     "{ hero }",
			expected: "{ hero }",
		},
		{
			name:     "Sequential full replacements keep the last",
			base:     "{ a }",
			edits:    []Edit{{Text: "{ b }"}, {Text: "{ c }"}},
			expected: "{ c }",
		},
		{
			name:     "Insert",
			base:     "{ hero }",
			edits:    []Edit{{Range: span(0, 6, 0, 6), Text: " { name }"}},
			expected: "{ hero { name } }",
		},
		{
			name:     "Delete",
			base:     "{ hero { name } }",
			edits:    []Edit{{Range: span(0, 6, 0, 15), Text: ""}},
			expected: "{ hero }",
		},
		{
			name:     "Multi-line replace",
			base:     "{\n  hero\n}",
			edits:    []Edit{{Range: span(0, 1, 2, 0), Text: " villain "}},
			expected: "{ villain }",
		},
		{
			name: "Later edits see earlier results",
			base: "{ a }",
			edits: []Edit{
				{Range: span(0, 2, 0, 3), Text: "abc"},
				{Range: span(0, 5, 0, 5), Text: "d"},
			},
			expected: "{ abcd }",
		},
		{
			name: "Full replacement resets the base for later ranged edits",
			base: "{ old }",
			edits: []Edit{
				{Range: span(0, 2, 0, 5), Text: "ignored"},
				{Text: "{ hero }"},
				{Range: span(0, 6, 0, 6), Text: " { name }"},
			},
			expected: "{ hero { name } }",
		},
		{
			name:     "Reversed range is normalized",
			base:     "{ hero }",
			edits:    []Edit{{Range: span(0, 6, 0, 2), Text: "villain"}},
			expected: "{ villain }",
		},
		{
			name:     "Out of bounds range clamps",
			base:     "{ a }",
			edits:    []Edit{{Range: span(3, 0, 9, 9), Text: "\n{ b }"}},
			expected: "{ a }\n{ b }",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ApplyEdits(tt.base, tt.edits))
		})
	}
}

func TestEditIsFull(t *testing.T) {
	assert.True(t, Edit{Text: "x"}.IsFull())
	assert.False(t, Edit{Range: span(0, 0, 0, 0)}.IsFull())
}
