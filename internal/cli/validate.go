package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/groundplan-io/groundplan/internal/engine"
	"github.com/groundplan-io/groundplan/internal/eval"
	"github.com/groundplan-io/groundplan/internal/state"
)

var validateCmd = &cobra.Command{
	Use:   "validate [PATH]",
	Short: "Validate a declaration set",
	Long: `Parses the declaration files, checks every reference against the
declared variables, locals, and resources, and verifies the backend
configuration. No variable values are required.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	path, _, err := declSource(args)
	if err != nil {
		return err
	}

	fmt.Printf("Validating %s... ", path)

	set, err := eval.NewLoader().Load(path)
	if err != nil {
		fmt.Println("FAILED")
		return fmt.Errorf("validation failed: %w", err)
	}

	if _, err := engine.BuildDAG(set); err != nil {
		fmt.Println("FAILED")
		return fmt.Errorf("validation failed: %w", err)
	}

	if _, err := state.ParseConfig(set.Backend); err != nil {
		fmt.Println("FAILED")
		return fmt.Errorf("validation failed: %w", err)
	}
	fmt.Println("OK")

	fmt.Printf("\n%d variable(s), %d local(s), %d resource(s)\n",
		len(set.Variables), len(set.Locals), len(set.Resources))
	fmt.Println("Declaration set is valid!")
	return nil
}
