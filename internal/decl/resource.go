package decl

import (
	"github.com/hashicorp/hcl/v2"
)

// Resource is a single declared infrastructure object. Attribute and
// nested-block expressions stay unevaluated until interpolation.
type Resource struct {
	Type      string
	Name      string
	Attrs     map[string]hcl.Expression
	Blocks    []*NestedBlock
	DependsOn []string
	DeclRange hcl.Range
}

// Address returns the type.name reference address.
func (r *Resource) Address() string {
	return r.Type + "." + r.Name
}

// NestedBlock is a configuration group inside a resource body, such as
// a lifecycle rule or instance settings.
type NestedBlock struct {
	Type   string
	Labels []string
	Attrs  map[string]hcl.Expression
	Blocks []*NestedBlock
}

// Backend selects where a state snapshot is stored. Settings are
// literal key/value pairs; expressions are rejected at load time.
type Backend struct {
	Type      string
	Settings  map[string]string
	DeclRange hcl.Range
}
