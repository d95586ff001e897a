package decl

import (
	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
)

// Variable is a declared input variable.
type Variable struct {
	Name        string
	Description string
	Type        cty.Type
	Default     cty.Value // NilVal when the declaration has no default
	Sensitive   bool
	DeclRange   hcl.Range
}

// Required reports whether a value must be supplied at resolve time.
func (v *Variable) Required() bool {
	return v.Default == cty.NilVal
}

// Local is a named value derived from literals or other declarations.
type Local struct {
	Name      string
	Expr      hcl.Expression
	DeclRange hcl.Range
}
