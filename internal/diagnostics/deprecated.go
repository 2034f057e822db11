package diagnostics

import (
	"fmt"

	"github.com/vektah/gqlparser/v2/ast"

	"github.com/conduit-lang/graphql-lsp/internal/schema"
	"github.com/conduit-lang/graphql-lsp/internal/tooling"
)

// deprecations reports uses of deprecated fields and enum values. It relies on
// the schema annotations the validator leaves on the document.
func deprecations(text string, doc *ast.QueryDocument) []tooling.Diagnostic {
	w := &deprecationWalker{text: text}
	for _, op := range doc.Operations {
		w.walkSelections(op.SelectionSet)
	}
	for _, frag := range doc.Fragments {
		w.walkSelections(frag.SelectionSet)
	}
	return w.found
}

type deprecationWalker struct {
	text  string
	found []tooling.Diagnostic
}

func (w *deprecationWalker) walkSelections(set ast.SelectionSet) {
	for _, sel := range set {
		switch sel := sel.(type) {
		case *ast.Field:
			if sel.Definition != nil {
				if reason, ok := schema.DeprecationReason(sel.Definition.Directives); ok && sel.Position != nil {
					parent := ""
					if sel.ObjectDefinition != nil {
						parent = sel.ObjectDefinition.Name + "."
					}
					w.report(sel.Position, fmt.Sprintf("The field %s%s is deprecated. %s", parent, sel.Name, reason))
				}
			}
			for _, arg := range sel.Arguments {
				w.walkValue(arg.Value)
			}
			w.walkSelections(sel.SelectionSet)
		case *ast.InlineFragment:
			w.walkSelections(sel.SelectionSet)
		case *ast.FragmentSpread:
			// Fragment bodies are walked once from doc.Fragments.
		}
	}
}

func (w *deprecationWalker) walkValue(value *ast.Value) {
	if value == nil {
		return
	}

	if value.Kind == ast.EnumValue && value.Definition != nil && value.Position != nil {
		if enumValue := value.Definition.EnumValues.ForName(value.Raw); enumValue != nil {
			if reason, ok := schema.DeprecationReason(enumValue.Directives); ok {
				w.report(value.Position, fmt.Sprintf("The enum value %s.%s is deprecated. %s", value.Definition.Name, value.Raw, reason))
			}
		}
	}

	for _, child := range value.Children {
		w.walkValue(child.Value)
	}
}

func (w *deprecationWalker) report(pos *ast.Position, message string) {
	w.found = append(w.found, tooling.Diagnostic{
		Range:    tokenRange(w.text, pos.Line, pos.Column),
		Severity: tooling.DiagnosticSeverityWarning,
		Code:     CodeDeprecated,
		Message:  message,
		Source:   Source,
	})
}
