package engine

import (
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"

	"github.com/groundplan-io/groundplan/internal/decl"
	"github.com/groundplan-io/groundplan/internal/eval"
	"github.com/groundplan-io/groundplan/internal/logging"
)

// identifierAttrs are resource attributes that name the object on the
// provider side. They must never interpolate to an empty string.
var identifierAttrs = []string{"name", "dataset_id"}

// Interpolator evaluates every local and resource expression in a
// declaration set against resolved variable values, producing the
// emitted document.
type Interpolator struct {
	baseDir string
}

// NewInterpolator returns an interpolator whose file-reading functions
// resolve relative paths against baseDir.
func NewInterpolator(baseDir string) *Interpolator {
	return &Interpolator{baseDir: baseDir}
}

// Interpolate runs the full evaluation pipeline and returns the
// resolved document. Values must contain one entry per declared
// variable.
func (it *Interpolator) Interpolate(set *decl.Set, values map[string]cty.Value) (*decl.Document, error) {
	session, err := it.Run(set, values)
	if err != nil {
		return nil, err
	}
	return session.Document(), nil
}

// Run evaluates the declaration set and keeps the final evaluation
// context alive, so callers can evaluate further expressions against
// it (the console does this).
func (it *Interpolator) Run(set *decl.Set, values map[string]cty.Value) (*Session, error) {
	dag, err := BuildDAG(set)
	if err != nil {
		return nil, err
	}

	errlog := &eval.FileErrorLog{}
	session := &Session{
		set:       set,
		values:    values,
		locals:    make(map[string]cty.Value),
		resources: make(map[string]map[string]cty.Value),
		funcs:     eval.Functions(it.baseDir, errlog),
		errlog:    errlog,
	}

	for _, addr := range dag.EvalOrder() {
		if name, isLocal := strings.CutPrefix(addr, localPrefix); isLocal {
			val, err := session.evalExpr(set.Locals[name].Expr)
			if err != nil {
				return nil, fmt.Errorf("failed to interpolate %s: %w", addr, err)
			}
			session.locals[name] = val
			continue
		}

		res, _ := set.Resource(addr)
		obj, err := session.evalResource(res)
		if err != nil {
			return nil, err
		}
		byName := session.resources[res.Type]
		if byName == nil {
			byName = make(map[string]cty.Value)
			session.resources[res.Type] = byName
		}
		byName[res.Name] = obj
	}

	session.doc = session.buildDocument()
	logging.Debug("interpolation complete",
		"locals", len(set.Locals),
		"resources", len(set.Resources))

	return session, nil
}

// Session is a fully evaluated declaration set. It exposes the
// resolved document and an expression evaluator bound to the same
// context the pipeline used.
type Session struct {
	set       *decl.Set
	values    map[string]cty.Value
	locals    map[string]cty.Value
	resources map[string]map[string]cty.Value // type -> name -> object
	funcs     map[string]function.Function
	errlog    *eval.FileErrorLog
	doc       *decl.Document
}

// Document returns the resolved document built by Run.
func (s *Session) Document() *decl.Document {
	return s.doc
}

// Eval parses src as a single HCL expression and evaluates it against
// the session context.
func (s *Session) Eval(src string) (cty.Value, error) {
	expr, diags := hclsyntax.ParseExpression([]byte(src), "<console>", hcl.Pos{Line: 1, Column: 1})
	if diags.HasErrors() {
		return cty.NilVal, decl.NewParseError(diags)
	}
	for _, traversal := range expr.Variables() {
		if _, err := validateTraversal(s.set, traversal); err != nil {
			return cty.NilVal, err
		}
	}
	return s.evalExpr(expr)
}

func (s *Session) evalExpr(expr hcl.Expression) (cty.Value, error) {
	if err := s.checkTraversals(expr.Variables()); err != nil {
		return cty.NilVal, err
	}

	s.errlog.Reset()
	val, diags := expr.Value(s.context())
	if diags.HasErrors() {
		if fnf := s.errlog.First(); fnf != nil {
			return cty.NilVal, fnf
		}
		return cty.NilVal, decl.NewParseError(diags)
	}
	return val, nil
}

// checkTraversals verifies that attribute steps into already evaluated
// resource objects name attributes those objects actually carry. Root
// and name steps were validated when the graph was built.
func (s *Session) checkTraversals(traversals []hcl.Traversal) error {
	for _, traversal := range traversals {
		root := traversal.RootName()
		if root == "var" || root == "local" {
			continue
		}
		name, ok := traversalAttr(traversal, 1)
		if !ok {
			continue
		}
		obj, evaluated := s.resources[root][name]
		if !evaluated {
			continue
		}
		attr, ok := traversalAttr(traversal, 2)
		if !ok {
			continue
		}
		if !obj.Type().HasAttribute(attr) {
			ref := root + "." + name + "." + attr
			return &decl.ReferenceError{Ref: ref, Subject: traversal.SourceRange()}
		}
	}
	return nil
}

// context assembles the evaluation scope: resolved variables under
// "var", evaluated locals under "local", and one object per resource
// type keyed by resource name.
func (s *Session) context() *hcl.EvalContext {
	scope := map[string]cty.Value{
		"var":   cty.ObjectVal(s.values),
		"local": cty.ObjectVal(s.locals),
	}
	for typ, byName := range s.resources {
		scope[typ] = cty.ObjectVal(byName)
	}
	return &hcl.EvalContext{
		Variables: scope,
		Functions: s.funcs,
	}
}

func (s *Session) evalResource(res *decl.Resource) (cty.Value, error) {
	attrs := make(map[string]cty.Value, len(res.Attrs))
	for _, name := range sortedExprKeys(res.Attrs) {
		val, err := s.evalExpr(res.Attrs[name])
		if err != nil {
			return cty.NilVal, fmt.Errorf("failed to interpolate %s.%s: %w", res.Address(), name, err)
		}
		attrs[name] = val
	}

	for _, typ := range blockTypes(res.Blocks) {
		if _, taken := attrs[typ]; taken {
			return cty.NilVal, decl.ParseErrorf("%s: %s declares both an attribute and a block named %q",
				res.DeclRange, res.Address(), typ)
		}
		vals, err := s.evalBlockGroup(res.Address(), blocksOfType(res.Blocks, typ))
		if err != nil {
			return cty.NilVal, err
		}
		attrs[typ] = cty.TupleVal(vals)
	}

	for _, id := range identifierAttrs {
		val, declared := attrs[id]
		if !declared || val.IsNull() || val.Type() != cty.String {
			continue
		}
		if val.AsString() == "" {
			return cty.NilVal, decl.ParseErrorf("%s: attribute %q of %s interpolates to an empty identifier",
				res.DeclRange, id, res.Address())
		}
	}

	return cty.ObjectVal(attrs), nil
}

func (s *Session) evalBlockGroup(addr string, blocks []*decl.NestedBlock) ([]cty.Value, error) {
	vals := make([]cty.Value, 0, len(blocks))
	for _, block := range blocks {
		val, err := s.evalBlock(addr, block)
		if err != nil {
			return nil, err
		}
		vals = append(vals, val)
	}
	return vals, nil
}

func (s *Session) evalBlock(addr string, block *decl.NestedBlock) (cty.Value, error) {
	attrs := make(map[string]cty.Value, len(block.Attrs))
	for _, name := range sortedExprKeys(block.Attrs) {
		val, err := s.evalExpr(block.Attrs[name])
		if err != nil {
			return cty.NilVal, fmt.Errorf("failed to interpolate %s block %q attribute %q: %w",
				addr, block.Type, name, err)
		}
		attrs[name] = val
	}
	for _, typ := range blockTypes(block.Blocks) {
		vals, err := s.evalBlockGroup(addr, blocksOfType(block.Blocks, typ))
		if err != nil {
			return cty.NilVal, err
		}
		attrs[typ] = cty.TupleVal(vals)
	}
	return cty.ObjectVal(attrs), nil
}

// blockTypes returns nested block types in order of first appearance.
func blockTypes(blocks []*decl.NestedBlock) []string {
	var types []string
	seen := make(map[string]bool)
	for _, block := range blocks {
		if !seen[block.Type] {
			seen[block.Type] = true
			types = append(types, block.Type)
		}
	}
	return types
}

func blocksOfType(blocks []*decl.NestedBlock, typ string) []*decl.NestedBlock {
	var out []*decl.NestedBlock
	for _, block := range blocks {
		if block.Type == typ {
			out = append(out, block)
		}
	}
	return out
}

func (s *Session) buildDocument() *decl.Document {
	doc := &decl.Document{
		FormatVersion: decl.FormatVersion,
		Variables:     make(map[string]any, len(s.values)),
		Resources:     make(map[string]map[string]any, len(s.set.Resources)),
	}

	for name, val := range s.values {
		doc.Variables[name] = GoValue(val)
	}

	for name, v := range s.set.Variables {
		if v.Sensitive {
			doc.SensitiveVariables = append(doc.SensitiveVariables, name)
		}
	}
	sort.Strings(doc.SensitiveVariables)

	for _, res := range s.set.Resources {
		obj := s.resources[res.Type][res.Name]
		attrs, _ := GoValue(obj).(map[string]any)
		doc.Resources[res.Address()] = attrs
	}

	if s.set.Backend != nil {
		settings := make(map[string]string, len(s.set.Backend.Settings))
		for k, v := range s.set.Backend.Settings {
			settings[k] = v
		}
		doc.Backend = &decl.BackendSummary{
			Type:     s.set.Backend.Type,
			Settings: settings,
		}
	}

	return doc
}

// GoValue converts a cty value into plain Go values suitable for JSON
// and YAML encoding. Whole numbers come back as int64 so they encode
// without a decimal point.
func GoValue(val cty.Value) any {
	if val == cty.NilVal || val.IsNull() {
		return nil
	}

	typ := val.Type()
	switch {
	case typ == cty.String:
		return val.AsString()
	case typ == cty.Number:
		bf := val.AsBigFloat()
		if i, acc := bf.Int64(); acc == big.Exact {
			return i
		}
		f, _ := bf.Float64()
		return f
	case typ == cty.Bool:
		return val.True()
	case typ.IsTupleType() || typ.IsListType() || typ.IsSetType():
		out := make([]any, 0, val.LengthInt())
		for it := val.ElementIterator(); it.Next(); {
			_, ev := it.Element()
			out = append(out, GoValue(ev))
		}
		return out
	case typ.IsObjectType() || typ.IsMapType():
		out := make(map[string]any)
		for it := val.ElementIterator(); it.Next(); {
			kv, ev := it.Element()
			out[kv.AsString()] = GoValue(ev)
		}
		return out
	default:
		return nil
	}
}
