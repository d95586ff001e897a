package eval

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/ext/typeexpr"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"

	"github.com/groundplan-io/groundplan/internal/decl"
	"github.com/groundplan-io/groundplan/internal/logging"
)

// rootSchema lists the block types a declaration file may contain.
var rootSchema = &hcl.BodySchema{
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "variable", LabelNames: []string{"name"}},
		{Type: "locals"},
		{Type: "resource", LabelNames: []string{"type", "name"}},
		{Type: "backend", LabelNames: []string{"type"}},
	},
}

var variableSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "description"},
		{Name: "type"},
		{Name: "default"},
		{Name: "sensitive"},
	},
}

// Loader parses declaration files into a merged set.
type Loader struct {
	parser *hclparse.Parser
}

func NewLoader() *Loader {
	return &Loader{parser: hclparse.NewParser()}
}

// Load reads a single .hcl file or every .hcl file in a directory and
// merges the declarations. Files parse in lexical filename order so the
// resulting set does not depend on directory iteration order.
func (l *Loader) Load(path string) (*decl.Set, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &decl.FileNotFoundError{Path: path, Err: err}
		}
		return nil, fmt.Errorf("cannot access %s: %w", path, err)
	}

	var filenames []string
	if info.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, fmt.Errorf("cannot read directory %s: %w", path, err)
		}
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".hcl") {
				continue
			}
			filenames = append(filenames, filepath.Join(path, entry.Name()))
		}
		sort.Strings(filenames)
		if len(filenames) == 0 {
			return nil, decl.ParseErrorf("no .hcl files found in %s", path)
		}
	} else {
		filenames = []string{path}
	}

	var files []*decl.File
	for _, filename := range filenames {
		f, err := l.loadFile(filename)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}

	set, err := decl.BuildSet(files)
	if err != nil {
		return nil, err
	}

	logging.Debug("declaration set loaded",
		"files", len(files),
		"variables", len(set.Variables),
		"locals", len(set.Locals),
		"resources", len(set.Resources))
	return set, nil
}

func (l *Loader) loadFile(filename string) (*decl.File, error) {
	src, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &decl.FileNotFoundError{Path: filename, Err: err}
		}
		return nil, fmt.Errorf("cannot read %s: %w", filename, err)
	}
	return l.parseFile(filename, src)
}

func (l *Loader) parseFile(filename string, src []byte) (*decl.File, error) {
	hclFile, diags := l.parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, decl.NewParseError(diags)
	}

	content, diags := hclFile.Body.Content(rootSchema)
	if diags.HasErrors() {
		return nil, decl.NewParseError(diags)
	}

	f := &decl.File{}
	for _, block := range content.Blocks {
		switch block.Type {
		case "variable":
			v, err := decodeVariable(block)
			if err != nil {
				return nil, err
			}
			f.Variables = append(f.Variables, v)
		case "locals":
			locals, err := decodeLocals(block)
			if err != nil {
				return nil, err
			}
			f.Locals = append(f.Locals, locals...)
		case "resource":
			r, err := decodeResource(block)
			if err != nil {
				return nil, err
			}
			f.Resources = append(f.Resources, r)
		case "backend":
			b, err := decodeBackend(block)
			if err != nil {
				return nil, err
			}
			f.Backends = append(f.Backends, b)
		}
	}
	return f, nil
}

func decodeVariable(block *hcl.Block) (*decl.Variable, error) {
	v := &decl.Variable{
		Name:      block.Labels[0],
		Type:      cty.DynamicPseudoType,
		DeclRange: block.DefRange,
	}

	content, diags := block.Body.Content(variableSchema)
	if diags.HasErrors() {
		return nil, decl.NewParseError(diags)
	}

	if attr, ok := content.Attributes["description"]; ok {
		val, err := literalValue(attr, cty.String)
		if err != nil {
			return nil, err
		}
		v.Description = val.AsString()
	}

	if attr, ok := content.Attributes["type"]; ok {
		ty, diags := typeexpr.TypeConstraint(attr.Expr)
		if diags.HasErrors() {
			return nil, decl.NewParseError(diags)
		}
		v.Type = ty
	}

	if attr, ok := content.Attributes["sensitive"]; ok {
		val, err := literalValue(attr, cty.Bool)
		if err != nil {
			return nil, err
		}
		v.Sensitive = val.True()
	}

	if attr, ok := content.Attributes["default"]; ok {
		val, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return nil, decl.NewParseError(diags)
		}
		if !v.Type.Equals(cty.DynamicPseudoType) {
			converted, err := convert.Convert(val, v.Type)
			if err != nil {
				return nil, decl.ParseErrorf("%s: default for variable %q does not match type %s: %s",
					attr.Range, v.Name, v.Type.FriendlyName(), err)
			}
			val = converted
		}
		v.Default = val
	}

	return v, nil
}

// literalValue evaluates an attribute with no variable scope and
// converts it to the wanted type.
func literalValue(attr *hcl.Attribute, want cty.Type) (cty.Value, error) {
	val, diags := attr.Expr.Value(nil)
	if diags.HasErrors() {
		return cty.NilVal, decl.NewParseError(diags)
	}
	converted, err := convert.Convert(val, want)
	if err != nil {
		return cty.NilVal, decl.ParseErrorf("%s: invalid value for %s: %s", attr.Range, attr.Name, err)
	}
	if converted.IsNull() {
		return cty.NilVal, decl.ParseErrorf("%s: %s must not be null", attr.Range, attr.Name)
	}
	return converted, nil
}

func decodeLocals(block *hcl.Block) ([]*decl.Local, error) {
	attrs, diags := block.Body.JustAttributes()
	if diags.HasErrors() {
		return nil, decl.NewParseError(diags)
	}

	locals := make([]*decl.Local, 0, len(attrs))
	for name, attr := range attrs {
		locals = append(locals, &decl.Local{
			Name:      name,
			Expr:      attr.Expr,
			DeclRange: attr.NameRange,
		})
	}
	sort.Slice(locals, func(i, j int) bool { return locals[i].Name < locals[j].Name })
	return locals, nil
}

func decodeResource(block *hcl.Block) (*decl.Resource, error) {
	r := &decl.Resource{
		Type:      block.Labels[0],
		Name:      block.Labels[1],
		DeclRange: block.DefRange,
	}

	body, ok := block.Body.(*hclsyntax.Body)
	if !ok {
		return nil, decl.ParseErrorf("%s: resource %q uses an unsupported body syntax", block.DefRange, r.Address())
	}

	// Resource attribute sets are provider-defined, so the body is
	// walked schema-free; depends_on is the one reserved attribute.
	r.Attrs = make(map[string]hcl.Expression, len(body.Attributes))
	for name, attr := range body.Attributes {
		if name == "depends_on" {
			refs, err := decodeDependsOn(attr)
			if err != nil {
				return nil, err
			}
			r.DependsOn = refs
			continue
		}
		r.Attrs[name] = attr.Expr
	}

	for _, child := range body.Blocks {
		nested, err := decodeNestedBlock(child)
		if err != nil {
			return nil, err
		}
		r.Blocks = append(r.Blocks, nested)
	}

	return r, nil
}

func decodeNestedBlock(block *hclsyntax.Block) (*decl.NestedBlock, error) {
	nb := &decl.NestedBlock{
		Type:   block.Type,
		Labels: block.Labels,
		Attrs:  make(map[string]hcl.Expression, len(block.Body.Attributes)),
	}
	for name, attr := range block.Body.Attributes {
		nb.Attrs[name] = attr.Expr
	}
	for _, child := range block.Body.Blocks {
		nested, err := decodeNestedBlock(child)
		if err != nil {
			return nil, err
		}
		nb.Blocks = append(nb.Blocks, nested)
	}
	return nb, nil
}

func decodeDependsOn(attr *hclsyntax.Attribute) ([]string, error) {
	exprs, diags := hcl.ExprList(attr.Expr)
	if diags.HasErrors() {
		return nil, decl.NewParseError(diags)
	}

	refs := make([]string, 0, len(exprs))
	for _, expr := range exprs {
		traversal, diags := hcl.AbsTraversalForExpr(expr)
		if diags.HasErrors() {
			return nil, decl.NewParseError(diags)
		}
		if len(traversal) != 2 {
			return nil, decl.ParseErrorf("%s: depends_on entries must be type.name references", expr.Range())
		}
		root, rootOk := traversal[0].(hcl.TraverseRoot)
		step, stepOk := traversal[1].(hcl.TraverseAttr)
		if !rootOk || !stepOk {
			return nil, decl.ParseErrorf("%s: depends_on entries must be type.name references", expr.Range())
		}
		refs = append(refs, root.Name+"."+step.Name)
	}
	return refs, nil
}

func decodeBackend(block *hcl.Block) (*decl.Backend, error) {
	b := &decl.Backend{
		Type:      block.Labels[0],
		Settings:  map[string]string{},
		DeclRange: block.DefRange,
	}

	attrs, diags := block.Body.JustAttributes()
	if diags.HasErrors() {
		return nil, decl.NewParseError(diags)
	}

	for name, attr := range attrs {
		// No eval context: references inside backend blocks fail here.
		val, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return nil, decl.NewParseError(diags)
		}
		str, err := convert.Convert(val, cty.String)
		if err != nil {
			return nil, decl.ParseErrorf("%s: backend setting %q must be a string-compatible literal: %s", attr.Range, name, err)
		}
		if str.IsNull() {
			return nil, decl.ParseErrorf("%s: backend setting %q must not be null", attr.Range, name)
		}
		b.Settings[name] = str.AsString()
	}
	return b, nil
}
