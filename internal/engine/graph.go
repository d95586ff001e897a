package engine

import (
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2"

	"github.com/groundplan-io/groundplan/internal/decl"
)

// localPrefix namespaces local-value nodes so they never collide with
// resource addresses.
const localPrefix = "local."

// DAG is the reference graph over locals and resources. Its
// topological order guarantees every referenced value is evaluated
// before the expression that reads it.
type DAG struct {
	nodes map[string]*dagNode
	order []string // topological evaluation order
}

type dagNode struct {
	addr     string
	edges    []string // nodes this node references
	revEdges []string // nodes that reference this node
}

// BuildDAG constructs the reference graph for a declaration set. Edges
// come from expression traversals (implicit references) and from
// depends_on lists (explicit ordering). Every traversal is checked
// against the declared names, so a dangling reference fails here with
// a ReferenceError before any evaluation happens.
func BuildDAG(set *decl.Set) (*DAG, error) {
	dag := &DAG{nodes: make(map[string]*dagNode)}

	for name := range set.Locals {
		addr := localPrefix + name
		dag.nodes[addr] = &dagNode{addr: addr}
	}
	for _, res := range set.Resources {
		dag.nodes[res.Address()] = &dagNode{addr: res.Address()}
	}

	localNames := make([]string, 0, len(set.Locals))
	for name := range set.Locals {
		localNames = append(localNames, name)
	}
	sort.Strings(localNames)

	for _, name := range localNames {
		node := dag.nodes[localPrefix+name]
		if err := dag.addReferenceEdges(set, node, set.Locals[name].Expr); err != nil {
			return nil, err
		}
	}

	for _, res := range set.Resources {
		node := dag.nodes[res.Address()]
		for _, expr := range resourceExprs(res) {
			if err := dag.addReferenceEdges(set, node, expr); err != nil {
				return nil, err
			}
		}
		for _, dep := range res.DependsOn {
			if _, ok := set.Resource(dep); !ok {
				return nil, &decl.ReferenceError{Ref: dep, Subject: res.DeclRange}
			}
			node.addEdge(dep)
		}
	}

	for addr, node := range dag.nodes {
		for _, dep := range node.edges {
			dag.nodes[dep].revEdges = append(dag.nodes[dep].revEdges, addr)
		}
	}

	order, err := dag.topoSort()
	if err != nil {
		return nil, err
	}
	dag.order = order

	return dag, nil
}

// EvalOrder returns node addresses in dependency-respecting order.
func (d *DAG) EvalOrder() []string {
	return d.order
}

// Dependencies returns the sorted direct dependencies of a node.
func (d *DAG) Dependencies(addr string) []string {
	node, ok := d.nodes[addr]
	if !ok {
		return nil
	}
	deps := append([]string(nil), node.edges...)
	sort.Strings(deps)
	return deps
}

func (n *dagNode) addEdge(dep string) {
	for _, existing := range n.edges {
		if existing == dep {
			return
		}
	}
	n.edges = append(n.edges, dep)
}

// addReferenceEdges validates every traversal in expr and records the
// graph edges the traversals induce.
func (d *DAG) addReferenceEdges(set *decl.Set, node *dagNode, expr hcl.Expression) error {
	for _, traversal := range expr.Variables() {
		edge, err := validateTraversal(set, traversal)
		if err != nil {
			return err
		}
		if edge != "" {
			node.addEdge(edge)
		}
	}
	return nil
}

// validateTraversal checks that a traversal names a declared variable,
// local, or resource. It returns the graph edge the traversal induces;
// variable references return "" because variables are resolved before
// interpolation starts.
func validateTraversal(set *decl.Set, traversal hcl.Traversal) (string, error) {
	root := traversal.RootName()
	subject := traversal.SourceRange()

	switch root {
	case "var":
		name, ok := traversalAttr(traversal, 1)
		if !ok {
			return "", &decl.ReferenceError{Ref: root, Subject: subject}
		}
		if _, declared := set.Variables[name]; !declared {
			return "", &decl.ReferenceError{Ref: "var." + name, Subject: subject}
		}
		return "", nil

	case "local":
		name, ok := traversalAttr(traversal, 1)
		if !ok {
			return "", &decl.ReferenceError{Ref: root, Subject: subject}
		}
		if _, declared := set.Locals[name]; !declared {
			return "", &decl.ReferenceError{Ref: localPrefix + name, Subject: subject}
		}
		return localPrefix + name, nil

	default:
		if !set.HasResourceType(root) {
			return "", &decl.ReferenceError{Ref: root, Subject: subject}
		}
		name, ok := traversalAttr(traversal, 1)
		if !ok {
			return "", &decl.ReferenceError{Ref: root, Subject: subject}
		}
		addr := root + "." + name
		if _, declared := set.Resource(addr); !declared {
			return "", &decl.ReferenceError{Ref: addr, Subject: subject}
		}
		return addr, nil
	}
}

func traversalAttr(traversal hcl.Traversal, index int) (string, bool) {
	if len(traversal) <= index {
		return "", false
	}
	step, ok := traversal[index].(hcl.TraverseAttr)
	if !ok {
		return "", false
	}
	return step.Name, true
}

// resourceExprs collects every expression in a resource body in a
// stable order: sorted attributes first, then nested blocks in
// declaration order.
func resourceExprs(res *decl.Resource) []hcl.Expression {
	exprs := make([]hcl.Expression, 0, len(res.Attrs))
	for _, name := range sortedExprKeys(res.Attrs) {
		exprs = append(exprs, res.Attrs[name])
	}
	for _, block := range res.Blocks {
		exprs = append(exprs, blockExprs(block)...)
	}
	return exprs
}

func blockExprs(block *decl.NestedBlock) []hcl.Expression {
	exprs := make([]hcl.Expression, 0, len(block.Attrs))
	for _, name := range sortedExprKeys(block.Attrs) {
		exprs = append(exprs, block.Attrs[name])
	}
	for _, child := range block.Blocks {
		exprs = append(exprs, blockExprs(child)...)
	}
	return exprs
}

func sortedExprKeys(attrs map[string]hcl.Expression) []string {
	keys := make([]string, 0, len(attrs))
	for name := range attrs {
		keys = append(keys, name)
	}
	sort.Strings(keys)
	return keys
}

// topoSort performs Kahn's algorithm. The ready queue stays sorted so
// the evaluation order is stable across runs.
func (d *DAG) topoSort() ([]string, error) {
	inDegree := make(map[string]int, len(d.nodes))
	for addr, node := range d.nodes {
		inDegree[addr] = len(node.edges)
	}

	var queue []string
	for addr, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, addr)
		}
	}
	sort.Strings(queue)

	sorted := make([]string, 0, len(d.nodes))
	for len(queue) > 0 {
		addr := queue[0]
		queue = queue[1:]
		sorted = append(sorted, addr)

		for _, dependent := range d.nodes[addr].revEdges {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
		sort.Strings(queue)
	}

	if len(sorted) != len(d.nodes) {
		var remaining []string
		for addr := range d.nodes {
			if inDegree[addr] > 0 {
				remaining = append(remaining, addr)
			}
		}
		sort.Strings(remaining)
		return nil, decl.ParseErrorf("reference cycle detected among %s", strings.Join(remaining, ", "))
	}

	return sorted, nil
}
