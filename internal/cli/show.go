package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/groundplan-io/groundplan/internal/decl"
)

var showJSON bool

var showCmd = &cobra.Command{
	Use:   "show FILE",
	Short: "Show an emitted document",
	Long: `Displays a human-readable view of a previously emitted document.
Sensitive variable values are masked; use --json for the canonical
document encoding.`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

func init() {
	showCmd.Flags().BoolVar(&showJSON, "json", false, "Output the canonical JSON encoding")
}

func runShow(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		if os.IsNotExist(err) {
			return &decl.FileNotFoundError{Path: args[0], Err: err}
		}
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}

	doc, err := decl.DecodeDocument(data)
	if err != nil {
		return fmt.Errorf("failed to decode %s: %w", args[0], err)
	}

	if showJSON {
		out, err := doc.EncodeJSON()
		if err != nil {
			return fmt.Errorf("failed to encode document: %w", err)
		}
		os.Stdout.Write(out)
		return nil
	}

	sensitive := make(map[string]bool, len(doc.SensitiveVariables))
	for _, name := range doc.SensitiveVariables {
		sensitive[name] = true
	}

	fmt.Printf("Document: format_version=%d\n", doc.FormatVersion)
	fmt.Printf("Variables: %d, Resources: %d\n\n", len(doc.Variables), len(doc.Resources))

	fmt.Println("Variables:")
	for _, name := range sortedDocKeys(doc.Variables) {
		rendered := formatValue(doc.Variables[name])
		if sensitive[name] {
			rendered = "(sensitive)"
		}
		fmt.Printf("  %s = %s\n", name, rendered)
	}
	fmt.Println()

	for _, addr := range sortedDocKeys(doc.Resources) {
		fmt.Printf("# %s\n", addr)
		attrs := doc.Resources[addr]
		for _, name := range sortedDocKeys(attrs) {
			fmt.Printf("  %s = %s\n", name, formatValue(attrs[name]))
		}
		fmt.Println()
	}

	if doc.Backend != nil {
		fmt.Printf("Backend: %s\n", doc.Backend.Type)
		for _, name := range sortedDocKeys(doc.Backend.Settings) {
			fmt.Printf("  %s = %q\n", name, doc.Backend.Settings[name])
		}
	}

	return nil
}
