package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/groundplan-io/groundplan/internal/engine"
	"github.com/groundplan-io/groundplan/internal/eval"
)

var graphCmd = &cobra.Command{
	Use:   "graph [PATH]",
	Short: "Output the reference graph in DOT format",
	Long: `Generates a visual representation of the declaration reference graph
in Graphviz DOT format. Pipe the output to 'dot' to generate an image:

  groundplan graph | dot -Tpng > graph.png`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGraph,
}

func runGraph(cmd *cobra.Command, args []string) error {
	path, _, err := declSource(args)
	if err != nil {
		return err
	}

	set, err := eval.NewLoader().Load(path)
	if err != nil {
		return fmt.Errorf("failed to load declarations: %w", err)
	}

	dag, err := engine.BuildDAG(set)
	if err != nil {
		return fmt.Errorf("failed to build graph: %w", err)
	}

	// Output DOT format
	fmt.Println("digraph groundplan {")
	fmt.Println("  rankdir = \"BT\";")
	fmt.Println("  node [shape = rect];")
	fmt.Println()

	for _, name := range sortedDocKeys(set.Locals) {
		fmt.Printf("  %q [shape = ellipse];\n", "local."+name)
	}
	for _, res := range set.Resources {
		fmt.Printf("  %q;\n", res.Address())
	}
	fmt.Println()

	for _, addr := range dag.EvalOrder() {
		for _, dep := range dag.Dependencies(addr) {
			fmt.Printf("  %q -> %q;\n", addr, dep)
		}
	}

	fmt.Println("}")
	return nil
}
