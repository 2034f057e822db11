package completion

import (
	"strings"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/lexer"

	"github.com/conduit-lang/graphql-lsp/internal/tooling"
)

// ContextKind categorizes the grammar position at the cursor
type ContextKind int

const (
	// ContextNone means no rule applies (inside a comment or string, or naming a new definition)
	ContextNone ContextKind = iota
	// ContextTopLevel is between definitions, where a new definition may start
	ContextTopLevel
	// ContextSelection is inside a selection set
	ContextSelection
	// ContextFragmentSpread follows a spread operator
	ContextFragmentSpread
	// ContextTypeCondition follows the "on" of a fragment or inline fragment
	ContextTypeCondition
	// ContextArgument is inside an argument list, before an argument name
	ContextArgument
	// ContextArgumentValue follows an argument's colon or sits inside a list value
	ContextArgumentValue
	// ContextObjectField is inside an input object value, before a field name
	ContextObjectField
	// ContextDirective follows an "@"
	ContextDirective
	// ContextVariableType follows a variable definition's colon
	ContextVariableType
)

// Context describes the completion context at a position
type Context struct {
	// Kind of completion requested
	Kind ContextKind

	// Prefix is the partial name under the cursor. Items are filtered by it.
	Prefix string

	// ParentType is the selection type for selections, spreads and type
	// conditions, or the input object type for object fields
	ParentType *ast.Definition

	// Arguments are the argument definitions in scope for ContextArgument
	Arguments ast.ArgumentDefinitionList

	// ArgumentOwner names the argument owner: "Type.field" or "@directive"
	ArgumentOwner string

	// Used holds argument or object field names already supplied
	Used map[string]bool

	// ValueType is the expected type at an argument value
	ValueType *ast.Type

	// DirectiveLocation is where a directive would be applied
	DirectiveLocation ast.DirectiveLocation
}

type frameKind int

const (
	frameSelection frameKind = iota
	frameArguments
	frameVariables
	frameObject
	frameList
)

// frame is one open bracket the scanner is inside of.
type frame struct {
	kind frameKind

	// typ is the selection type, or the input object type of an object value
	typ *ast.Definition

	// args and owner describe an argument list
	args  ast.ArgumentDefinitionList
	owner string
	used  map[string]bool

	// valueType is the type expected by the pending or current value
	valueType     *ast.Type
	awaitingValue bool
}

type headerState int

const (
	headerNone headerState = iota
	headerOperation
	headerFragment
)

// scanner tracks brackets and headers across the tokens before the cursor.
// It never fails: unknown names leave types unresolved.
type scanner struct {
	schema *ast.Schema
	stack  []*frame
	header headerState

	// pendingType is the type the next selection set opens on
	pendingType *ast.Definition
	// lastField is the most recent field name in the innermost selection set
	lastField *ast.FieldDefinition
	// opLocation is the directive location of the current operation header
	opLocation ast.DirectiveLocation
}

// ContextAt determines the completion context at pos. Only the text before the
// cursor is examined, so documents that do not parse still complete.
func ContextAt(text string, pos tooling.Position, schema *ast.Schema) Context {
	offset := tooling.OffsetAt(text, pos)
	start := offset
	for start > 0 && tooling.IsNameByte(text[start-1]) {
		start--
	}
	before := text[:start]

	tokens, ok := tooling.Tokenize(before)
	if !ok {
		// The cursor is inside an unterminated string or past a lexing error.
		return Context{Kind: ContextNone}
	}
	if n := len(tokens); n > 0 && tokens[n-1].Kind == lexer.Comment && strings.HasSuffix(before, tokens[n-1].Value) {
		return Context{Kind: ContextNone}
	}

	s := &scanner{schema: schema}
	tokens = tooling.WithoutComments(tokens)
	for i := range tokens {
		s.step(tokens, i)
	}

	ctx := s.context(tokens)
	ctx.Prefix = text[start:offset]
	return ctx
}

func (s *scanner) top() *frame {
	if len(s.stack) == 0 {
		return nil
	}
	return s.stack[len(s.stack)-1]
}

func (s *scanner) push(f *frame) {
	s.stack = append(s.stack, f)
}

func (s *scanner) pop(kinds ...frameKind) {
	top := s.top()
	if top == nil {
		return
	}
	for _, kind := range kinds {
		if top.kind == kind {
			s.stack = s.stack[:len(s.stack)-1]
			return
		}
	}
}

// lookup resolves a type name against the schema.
func (s *scanner) lookup(name string) *ast.Definition {
	if s.schema == nil || name == "" {
		return nil
	}
	return s.schema.Types[name]
}

func (s *scanner) step(tokens []lexer.Token, i int) {
	tok := tokens[i]
	prev := tokenAt(tokens, i-1)
	top := s.top()

	switch tok.Kind {
	case lexer.BraceL:
		if top != nil && top.inValue() {
			top.awaitingValue = false
			s.push(&frame{kind: frameObject, typ: s.lookup(typeName(top.valueType)), used: map[string]bool{}})
			return
		}
		typ := s.pendingType
		switch {
		case top == nil && s.header == headerNone && s.schema != nil:
			typ = s.schema.Query
		case prev.Kind == lexer.Spread && top != nil:
			typ = top.typ
		}
		s.push(&frame{kind: frameSelection, typ: typ})
		s.pendingType = nil
		s.lastField = nil
		s.header = headerNone

	case lexer.BraceR:
		s.pop(frameSelection, frameObject)
		s.lastField = nil

	case lexer.ParenL:
		pprev := tokenAt(tokens, i-2)
		switch {
		case prev.Kind == lexer.Name && pprev.Kind == lexer.At:
			f := &frame{kind: frameArguments, owner: "@" + prev.Value, used: map[string]bool{}}
			if s.schema != nil {
				if dir := s.schema.Directives[prev.Value]; dir != nil {
					f.args = dir.Arguments
				}
			}
			s.push(f)
		case top == nil && s.header == headerOperation:
			s.push(&frame{kind: frameVariables})
		case top != nil && top.kind == frameSelection && s.lastField != nil && top.typ != nil:
			s.push(&frame{
				kind:  frameArguments,
				args:  s.lastField.Arguments,
				owner: top.typ.Name + "." + s.lastField.Name,
				used:  map[string]bool{},
			})
		default:
			s.push(&frame{kind: frameArguments, used: map[string]bool{}})
		}

	case lexer.ParenR:
		s.pop(frameArguments, frameVariables)

	case lexer.BracketL:
		if top != nil && top.inValue() {
			elem := top.valueType
			if elem != nil {
				elem = elem.Elem
			}
			top.awaitingValue = false
			s.push(&frame{kind: frameList, valueType: elem})
		}

	case lexer.BracketR:
		s.pop(frameList)

	case lexer.Colon:
		if top == nil {
			return
		}
		switch top.kind {
		case frameArguments:
			if prev.Kind == lexer.Name {
				top.valueType = nil
				if arg := top.args.ForName(prev.Value); arg != nil {
					top.valueType = arg.Type
				}
				top.awaitingValue = true
			}
		case frameObject:
			if prev.Kind == lexer.Name {
				top.valueType = nil
				if top.typ != nil {
					if field := top.typ.Fields.ForName(prev.Value); field != nil {
						top.valueType = field.Type
					}
				}
				top.awaitingValue = true
			}
		case frameVariables:
			top.awaitingValue = true
		case frameSelection:
			// An alias; the field name follows.
			s.lastField = nil
		}

	case lexer.Equals:
		if top != nil && top.kind == frameVariables {
			top.valueType = nil
			top.awaitingValue = true
		}

	case lexer.Name:
		s.name(tokens, i)

	case lexer.Int, lexer.Float, lexer.String, lexer.BlockString:
		if top != nil && top.kind != frameList {
			top.awaitingValue = false
		}
	}
}

func (s *scanner) name(tokens []lexer.Token, i int) {
	tok := tokens[i]
	prev := tokenAt(tokens, i-1)
	pprev := tokenAt(tokens, i-2)
	top := s.top()

	if prev.Kind == lexer.At {
		return
	}

	if top == nil {
		switch s.header {
		case headerNone:
			switch tok.Value {
			case "query", "mutation", "subscription":
				s.header = headerOperation
				s.pendingType, s.opLocation = s.rootType(tok.Value)
			case "fragment":
				s.header = headerFragment
			}
		case headerFragment:
			if isName(prev, "on") {
				s.pendingType = s.lookup(tok.Value)
			}
		}
		return
	}

	switch top.kind {
	case frameSelection:
		switch {
		case prev.Kind == lexer.Spread:
			// A fragment name, or the "on" of an inline fragment.
		case isName(prev, "on") && pprev.Kind == lexer.Spread:
			s.pendingType = s.lookup(tok.Value)
		default:
			s.lastField = nil
			s.pendingType = nil
			if top.typ != nil {
				if field := top.typ.Fields.ForName(tok.Value); field != nil {
					s.lastField = field
					s.pendingType = s.lookup(field.Type.Name())
				}
			}
		}

	case frameArguments, frameObject:
		if top.awaitingValue {
			top.awaitingValue = false
			return
		}
		if top.used != nil {
			top.used[tok.Value] = true
		}

	case frameVariables:
		top.awaitingValue = false
	}
}

func (s *scanner) rootType(keyword string) (*ast.Definition, ast.DirectiveLocation) {
	var root *ast.Definition
	location := ast.LocationQuery
	switch keyword {
	case "query":
		if s.schema != nil {
			root = s.schema.Query
		}
	case "mutation":
		location = ast.LocationMutation
		if s.schema != nil {
			root = s.schema.Mutation
		}
	case "subscription":
		location = ast.LocationSubscription
		if s.schema != nil {
			root = s.schema.Subscription
		}
	}
	return root, location
}

// context reports the innermost context once every token has been consumed.
func (s *scanner) context(tokens []lexer.Token) Context {
	last := tokenAt(tokens, len(tokens)-1)
	prev := tokenAt(tokens, len(tokens)-2)
	top := s.top()

	if top == nil {
		switch s.header {
		case headerNone:
			return Context{Kind: ContextTopLevel}
		case headerFragment:
			switch {
			case isName(last, "on"):
				return Context{Kind: ContextTypeCondition}
			case last.Kind == lexer.At:
				return Context{Kind: ContextDirective, DirectiveLocation: ast.LocationFragmentDefinition}
			}
		case headerOperation:
			if last.Kind == lexer.At {
				return Context{Kind: ContextDirective, DirectiveLocation: s.opLocation}
			}
		}
		return Context{Kind: ContextNone}
	}

	switch top.kind {
	case frameSelection:
		switch {
		case last.Kind == lexer.Spread:
			return Context{Kind: ContextFragmentSpread, ParentType: top.typ}
		case isName(last, "on") && prev.Kind == lexer.Spread:
			return Context{Kind: ContextTypeCondition, ParentType: top.typ}
		case last.Kind == lexer.At:
			location := ast.LocationField
			p3 := tokenAt(tokens, len(tokens)-3)
			p4 := tokenAt(tokens, len(tokens)-4)
			switch {
			case prev.Kind == lexer.Spread, prev.Kind == lexer.Name && isName(p3, "on") && p4.Kind == lexer.Spread:
				location = ast.LocationInlineFragment
			case prev.Kind == lexer.Name && p3.Kind == lexer.Spread:
				location = ast.LocationFragmentSpread
			}
			return Context{Kind: ContextDirective, DirectiveLocation: location}
		}
		return Context{Kind: ContextSelection, ParentType: top.typ}

	case frameArguments:
		if top.awaitingValue {
			return Context{Kind: ContextArgumentValue, ValueType: top.valueType}
		}
		return Context{
			Kind:          ContextArgument,
			Arguments:     top.args,
			ArgumentOwner: top.owner,
			Used:          top.used,
		}

	case frameObject:
		if top.awaitingValue {
			return Context{Kind: ContextArgumentValue, ValueType: top.valueType}
		}
		return Context{Kind: ContextObjectField, ParentType: top.typ, Used: top.used}

	case frameList:
		return Context{Kind: ContextArgumentValue, ValueType: top.valueType}

	case frameVariables:
		if top.awaitingValue && (last.Kind == lexer.Colon || last.Kind == lexer.BracketL) {
			return Context{Kind: ContextVariableType}
		}
	}

	return Context{Kind: ContextNone}
}

// inValue reports whether the frame is waiting for a value.
func (f *frame) inValue() bool {
	if f.kind == frameList {
		return true
	}
	return (f.kind == frameArguments || f.kind == frameObject) && f.awaitingValue
}

func tokenAt(tokens []lexer.Token, i int) lexer.Token {
	if i < 0 || i >= len(tokens) {
		return lexer.Token{Kind: lexer.Invalid}
	}
	return tokens[i]
}

func isName(tok lexer.Token, value string) bool {
	return tok.Kind == lexer.Name && tok.Value == value
}

func typeName(t *ast.Type) string {
	if t == nil {
		return ""
	}
	return t.Name()
}
