package schema

import "github.com/vektah/gqlparser/v2/ast"

// DefaultDeprecationReason is the reason @deprecated carries when none is given
const DefaultDeprecationReason = "No longer supported"

// DeprecationReason returns the reason of a @deprecated directive in
// directives, and whether the directive is present.
func DeprecationReason(directives ast.DirectiveList) (string, bool) {
	deprecated := directives.ForName("deprecated")
	if deprecated == nil {
		return "", false
	}

	if arg := deprecated.Arguments.ForName("reason"); arg != nil && arg.Value != nil {
		return arg.Value.Raw, true
	}
	return DefaultDeprecationReason, true
}
