package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/groundplan-io/groundplan/internal/engine"
)

var resolveJSON bool

var resolveCmd = &cobra.Command{
	Use:   "resolve [PATH]",
	Short: "Resolve variable values and print them",
	Long: `Resolves every declared variable through the override chain
(defaults, var-file, GP_VAR_ environment values, --var flags) and
prints the result. Sensitive values are masked in table output; use
--json to get the raw values for scripting.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runResolve,
}

func init() {
	addPipelineFlags(resolveCmd)
	resolveCmd.Flags().BoolVar(&resolveJSON, "json", false, "output resolved values as JSON")
}

func runResolve(cmd *cobra.Command, args []string) error {
	path, _, err := declSource(args)
	if err != nil {
		return err
	}

	set, values, warns, err := resolvePipeline(path)
	printWarnings(warns)
	if err != nil {
		return err
	}

	if resolveJSON {
		out := make(map[string]any, len(values))
		for name, val := range values {
			out[name] = engine.GoValue(val)
		}
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode values: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	width := len("NAME")
	for name := range values {
		if len(name) > width {
			width = len(name)
		}
	}

	fmt.Printf("%-*s  VALUE\n", width, "NAME")
	for _, name := range sortedDocKeys(values) {
		rendered := formatValue(engine.GoValue(values[name]))
		if set.Variables[name].Sensitive {
			rendered = "(sensitive)"
		}
		fmt.Printf("%-*s  %s\n", width, name, rendered)
	}
	return nil
}
