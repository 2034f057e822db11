// Package completion suggests what may be typed at a cursor position in a
// GraphQL document. The context is recovered from the tokens before the cursor,
// so incomplete documents complete as well as valid ones. Exactly one rule
// supplies the items for a request.
package completion

import (
	"sort"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"

	"github.com/conduit-lang/graphql-lsp/internal/schema"
	"github.com/conduit-lang/graphql-lsp/internal/tooling"
)

// Fragment is a fragment definition visible to spreads
type Fragment struct {
	Name          string
	TypeCondition string
}

// Request is one completion request against a snapshot of a document
type Request struct {
	// Text is the document text
	Text string

	// Position is the cursor
	Position tooling.Position

	// Schema is the project schema, nil when none is configured
	Schema *ast.Schema

	// Fragments are fragments defined outside Text, typically in other open documents
	Fragments []Fragment
}

// Provider computes completion items.
type Provider struct{}

// NewProvider creates a completion provider
func NewProvider() *Provider {
	return &Provider{}
}

// Complete returns the items for req. The result is never nil; an empty list
// means nothing fits at the position.
func (p *Provider) Complete(req Request) []tooling.CompletionItem {
	ctx := ContextAt(req.Text, req.Position, req.Schema)
	items := p.buildCompletions(ctx, req)
	return filterAndDedupe(items, ctx.Prefix)
}

// buildCompletions builds completion items based on context
func (p *Provider) buildCompletions(ctx Context, req Request) []tooling.CompletionItem {
	switch ctx.Kind {
	case ContextTopLevel:
		return keywordCompletions()
	case ContextSelection:
		return fieldCompletions(ctx.ParentType)
	case ContextFragmentSpread:
		fragments := append(FragmentsInText(req.Text), req.Fragments...)
		return fragmentCompletions(req.Schema, ctx.ParentType, fragments)
	case ContextTypeCondition:
		return typeConditionCompletions(req.Schema, ctx.ParentType)
	case ContextArgument:
		return argumentCompletions(ctx)
	case ContextArgumentValue:
		return valueCompletions(req.Schema, ctx.ValueType)
	case ContextObjectField:
		return objectFieldCompletions(ctx)
	case ContextDirective:
		return directiveCompletions(req.Schema, ctx.DirectiveLocation)
	case ContextVariableType:
		return inputTypeCompletions(req.Schema)
	default:
		return nil
	}
}

// keywordCompletions returns the definitions that may start at the top level
func keywordCompletions() []tooling.CompletionItem {
	return []tooling.CompletionItem{
		{Label: "query", Kind: tooling.CompletionKindKeyword, Detail: "Query operation"},
		{Label: "mutation", Kind: tooling.CompletionKindKeyword, Detail: "Mutation operation"},
		{Label: "subscription", Kind: tooling.CompletionKindKeyword, Detail: "Subscription operation"},
		{Label: "fragment", Kind: tooling.CompletionKindKeyword, Detail: "Fragment definition"},
		{Label: "{", Kind: tooling.CompletionKindKeyword, Detail: "Anonymous query"},
	}
}

func fieldCompletions(parent *ast.Definition) []tooling.CompletionItem {
	if parent == nil || !parent.IsCompositeType() {
		return nil
	}

	items := make([]tooling.CompletionItem, 0, len(parent.Fields)+1)
	for _, field := range parent.Fields {
		_, deprecated := schema.DeprecationReason(field.Directives)
		items = append(items, tooling.CompletionItem{
			Label:      field.Name,
			Kind:       tooling.CompletionKindField,
			Detail:     field.Type.String(),
			Deprecated: deprecated,
			Data:       &tooling.CompletionData{ParentType: parent.Name, Name: field.Name},
		})
	}
	items = append(items, tooling.CompletionItem{
		Label:  "__typename",
		Kind:   tooling.CompletionKindField,
		Detail: "String!",
	})
	return items
}

func fragmentCompletions(s *ast.Schema, parent *ast.Definition, fragments []Fragment) []tooling.CompletionItem {
	items := make([]tooling.CompletionItem, 0, len(fragments))
	for _, frag := range fragments {
		if s != nil && parent != nil {
			cond := s.Types[frag.TypeCondition]
			if cond == nil || !overlaps(s, parent, cond) {
				continue
			}
		}
		items = append(items, tooling.CompletionItem{
			Label:  frag.Name,
			Kind:   tooling.CompletionKindFragment,
			Detail: "on " + frag.TypeCondition,
		})
	}
	return items
}

func typeConditionCompletions(s *ast.Schema, parent *ast.Definition) []tooling.CompletionItem {
	if s == nil {
		return nil
	}

	var items []tooling.CompletionItem
	for _, def := range sortedTypes(s) {
		if !def.IsCompositeType() {
			continue
		}
		if parent != nil && !overlaps(s, parent, def) {
			continue
		}
		items = append(items, typeItem(def))
	}
	return items
}

func argumentCompletions(ctx Context) []tooling.CompletionItem {
	items := make([]tooling.CompletionItem, 0, len(ctx.Arguments))
	for _, arg := range ctx.Arguments {
		if ctx.Used[arg.Name] {
			continue
		}
		_, deprecated := schema.DeprecationReason(arg.Directives)
		items = append(items, tooling.CompletionItem{
			Label:      arg.Name,
			Kind:       tooling.CompletionKindArgument,
			Detail:     arg.Type.String(),
			Deprecated: deprecated,
			Data:       &tooling.CompletionData{ParentType: ctx.ArgumentOwner, Name: arg.Name},
		})
	}
	return items
}

func valueCompletions(s *ast.Schema, valueType *ast.Type) []tooling.CompletionItem {
	if s == nil || valueType == nil {
		return nil
	}

	def := s.Types[valueType.Name()]
	if def == nil {
		return nil
	}

	switch {
	case def.Kind == ast.Enum:
		items := make([]tooling.CompletionItem, 0, len(def.EnumValues))
		for _, value := range def.EnumValues {
			_, deprecated := schema.DeprecationReason(value.Directives)
			items = append(items, tooling.CompletionItem{
				Label:      value.Name,
				Kind:       tooling.CompletionKindEnumValue,
				Detail:     def.Name,
				Deprecated: deprecated,
				Data:       &tooling.CompletionData{ParentType: def.Name, Name: value.Name},
			})
		}
		return items
	case def.Name == "Boolean":
		return []tooling.CompletionItem{
			{Label: "true", Kind: tooling.CompletionKindKeyword, Detail: "Boolean"},
			{Label: "false", Kind: tooling.CompletionKindKeyword, Detail: "Boolean"},
		}
	}
	return nil
}

func objectFieldCompletions(ctx Context) []tooling.CompletionItem {
	if ctx.ParentType == nil || ctx.ParentType.Kind != ast.InputObject {
		return nil
	}

	items := make([]tooling.CompletionItem, 0, len(ctx.ParentType.Fields))
	for _, field := range ctx.ParentType.Fields {
		if ctx.Used[field.Name] {
			continue
		}
		items = append(items, tooling.CompletionItem{
			Label:  field.Name,
			Kind:   tooling.CompletionKindField,
			Detail: field.Type.String(),
			Data:   &tooling.CompletionData{ParentType: ctx.ParentType.Name, Name: field.Name},
		})
	}
	return items
}

func directiveCompletions(s *ast.Schema, location ast.DirectiveLocation) []tooling.CompletionItem {
	if s == nil {
		return nil
	}

	names := make([]string, 0, len(s.Directives))
	for name, dir := range s.Directives {
		for _, loc := range dir.Locations {
			if loc == location {
				names = append(names, name)
				break
			}
		}
	}
	sort.Strings(names)

	items := make([]tooling.CompletionItem, 0, len(names))
	for _, name := range names {
		items = append(items, tooling.CompletionItem{
			Label:  name,
			Kind:   tooling.CompletionKindDirective,
			Detail: "@" + name,
			Data:   &tooling.CompletionData{Name: name},
		})
	}
	return items
}

func inputTypeCompletions(s *ast.Schema) []tooling.CompletionItem {
	if s == nil {
		return nil
	}

	var items []tooling.CompletionItem
	for _, def := range sortedTypes(s) {
		if def.IsInputType() {
			items = append(items, typeItem(def))
		}
	}
	return items
}

func typeItem(def *ast.Definition) tooling.CompletionItem {
	return tooling.CompletionItem{
		Label:  def.Name,
		Kind:   tooling.CompletionKindType,
		Detail: strings.ToLower(string(def.Kind)),
		Data:   &tooling.CompletionData{Name: def.Name},
	}
}

// sortedTypes returns the schema's types by name, without introspection types.
func sortedTypes(s *ast.Schema) []*ast.Definition {
	defs := make([]*ast.Definition, 0, len(s.Types))
	for name, def := range s.Types {
		if strings.HasPrefix(name, "__") {
			continue
		}
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool {
		return defs[i].Name < defs[j].Name
	})
	return defs
}

// overlaps reports whether some object type is both an a and a b, which is
// when a fragment on b may be spread inside a selection on a.
func overlaps(s *ast.Schema, a, b *ast.Definition) bool {
	if a.Name == b.Name {
		return true
	}

	possible := make(map[string]bool)
	for _, def := range possibleTypes(s, a) {
		possible[def.Name] = true
	}
	for _, def := range possibleTypes(s, b) {
		if possible[def.Name] {
			return true
		}
	}
	return false
}

func possibleTypes(s *ast.Schema, def *ast.Definition) []*ast.Definition {
	if def.Kind == ast.Object {
		return []*ast.Definition{def}
	}
	return s.GetPossibleTypes(def)
}

// filterAndDedupe keeps items whose label starts with prefix, ignoring case,
// and drops repeated labels. The first occurrence wins.
func filterAndDedupe(items []tooling.CompletionItem, prefix string) []tooling.CompletionItem {
	prefix = strings.ToLower(prefix)
	seen := make(map[string]bool, len(items))

	result := make([]tooling.CompletionItem, 0, len(items))
	for _, item := range items {
		if seen[item.Label] || !strings.HasPrefix(strings.ToLower(item.Label), prefix) {
			continue
		}
		seen[item.Label] = true
		result = append(result, item)
	}
	return result
}
