package completion

import (
	"fmt"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"

	"github.com/conduit-lang/graphql-lsp/internal/schema"
	"github.com/conduit-lang/graphql-lsp/internal/tooling"
)

// Resolve fills in the documentation of an item produced by Complete. Items
// without Data, or whose schema member no longer exists, are returned as is.
func (p *Provider) Resolve(item tooling.CompletionItem, s *ast.Schema) tooling.CompletionItem {
	if item.Data == nil || s == nil {
		return item
	}

	description, directives, ok := lookupMember(s, item.Kind, *item.Data)
	if !ok {
		return item
	}

	doc := description
	if reason, deprecated := schema.DeprecationReason(directives); deprecated {
		item.Deprecated = true
		note := fmt.Sprintf("**Deprecated:** %s", reason)
		if doc == "" {
			doc = note
		} else {
			doc += "\n\n" + note
		}
	}
	item.Documentation = doc
	return item
}

// lookupMember finds the description and directives of the schema member an
// item refers to.
func lookupMember(s *ast.Schema, kind tooling.CompletionKind, data tooling.CompletionData) (string, ast.DirectiveList, bool) {
	switch kind {
	case tooling.CompletionKindType:
		if def := s.Types[data.Name]; def != nil {
			return def.Description, def.Directives, true
		}

	case tooling.CompletionKindField:
		if def := s.Types[data.ParentType]; def != nil {
			if field := def.Fields.ForName(data.Name); field != nil {
				return field.Description, field.Directives, true
			}
		}

	case tooling.CompletionKindEnumValue:
		if def := s.Types[data.ParentType]; def != nil {
			if value := def.EnumValues.ForName(data.Name); value != nil {
				return value.Description, value.Directives, true
			}
		}

	case tooling.CompletionKindDirective:
		if dir := s.Directives[data.Name]; dir != nil {
			return dir.Description, nil, true
		}

	case tooling.CompletionKindArgument:
		args, ok := ownerArguments(s, data.ParentType)
		if !ok {
			break
		}
		if arg := args.ForName(data.Name); arg != nil {
			return arg.Description, arg.Directives, true
		}
	}

	return "", nil, false
}

// ownerArguments resolves an argument owner written as "Type.field" or "@directive".
func ownerArguments(s *ast.Schema, owner string) (ast.ArgumentDefinitionList, bool) {
	if name, ok := strings.CutPrefix(owner, "@"); ok {
		if dir := s.Directives[name]; dir != nil {
			return dir.Arguments, true
		}
		return nil, false
	}

	typeName, fieldName, ok := strings.Cut(owner, ".")
	if !ok {
		return nil, false
	}
	def := s.Types[typeName]
	if def == nil {
		return nil, false
	}
	field := def.Fields.ForName(fieldName)
	if field == nil {
		return nil, false
	}
	return field.Arguments, true
}
