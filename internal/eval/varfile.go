package eval

import (
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/groundplan-io/groundplan/internal/decl"
)

// ParseVarFile reads name = literal assignments from an HCL var-file.
func ParseVarFile(path string) (map[string]cty.Value, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &decl.FileNotFoundError{Path: path, Err: err}
		}
		return nil, fmt.Errorf("cannot read var-file %s: %w", path, err)
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, path)
	if diags.HasErrors() {
		return nil, decl.NewParseError(diags)
	}

	attrs, diags := file.Body.JustAttributes()
	if diags.HasErrors() {
		return nil, decl.NewParseError(diags)
	}

	vals := make(map[string]cty.Value, len(attrs))
	for name, attr := range attrs {
		val, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return nil, decl.NewParseError(diags)
		}
		vals[name] = val
	}
	return vals, nil
}
