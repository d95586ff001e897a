package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/spf13/cobra"
	"github.com/zclconf/go-cty/cty"

	"github.com/groundplan-io/groundplan/internal/decl"
	"github.com/groundplan-io/groundplan/internal/engine"
	"github.com/groundplan-io/groundplan/internal/eval"
)

// Flags shared by every command that resolves a declaration set.
var (
	varFlags    []string
	varFileFlag string
	strictFlag  bool
)

// colorize returns the ANSI escape code, or an empty string when color
// output is disabled.
func colorize(code string) string {
	if noColor {
		return ""
	}
	return code
}

// addPipelineFlags registers the variable-override flags on a command
// that runs the resolve pipeline.
func addPipelineFlags(cmd *cobra.Command) {
	cmd.Flags().StringArrayVar(&varFlags, "var", nil, "set a variable value as name=value (repeatable)")
	cmd.Flags().StringVar(&varFileFlag, "var-file", "", "read variable values from an HCL file")
	cmd.Flags().BoolVar(&strictFlag, "strict", false, "treat resolve warnings as errors")
}

// declSource turns the optional positional PATH argument into the
// declaration source and the directory file functions resolve against.
// Without an argument the current working directory is the source.
func declSource(args []string) (path, baseDir string, err error) {
	if len(args) == 0 {
		wd, err := os.Getwd()
		if err != nil {
			return "", "", fmt.Errorf("failed to get working directory: %w", err)
		}
		return wd, wd, nil
	}

	absPath, err := filepath.Abs(args[0])
	if err != nil {
		return "", "", fmt.Errorf("failed to resolve path %s: %w", args[0], err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		// Let the loader report the missing path with a typed error.
		return absPath, filepath.Dir(absPath), nil
	}
	if info.IsDir() {
		return absPath, absPath, nil
	}
	return absPath, filepath.Dir(absPath), nil
}

// parseVarFlags splits repeated --var name=value flags into a map.
func parseVarFlags(flags []string) (map[string]string, error) {
	vals := make(map[string]string, len(flags))
	for _, f := range flags {
		name, value, ok := strings.Cut(f, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --var value %q (expected name=value)", f)
		}
		vals[name] = value
	}
	return vals, nil
}

// buildOverrides assembles the override set from the var-file, the
// process environment and the --var flags.
func buildOverrides() (eval.Overrides, error) {
	ov := eval.Overrides{
		EnvValues: eval.EnvOverrides(os.Environ()),
	}

	flagVals, err := parseVarFlags(varFlags)
	if err != nil {
		return ov, err
	}
	ov.FlagValues = flagVals

	if varFileFlag != "" {
		fileVals, err := eval.ParseVarFile(varFileFlag)
		if err != nil {
			return ov, err
		}
		ov.FileValues = fileVals
	}
	return ov, nil
}

// resolvePipeline runs Load and Resolve for the declaration set at
// path, honoring the shared override flags.
func resolvePipeline(path string) (*decl.Set, map[string]cty.Value, hcl.Diagnostics, error) {
	set, err := eval.NewLoader().Load(path)
	if err != nil {
		return nil, nil, nil, err
	}

	ov, err := buildOverrides()
	if err != nil {
		return nil, nil, nil, err
	}

	resolver := &eval.Resolver{Strict: strictFlag}
	values, warns, err := resolver.Resolve(set, ov)
	if err != nil {
		return nil, nil, warns, err
	}
	return set, values, warns, nil
}

// interpolatePipeline runs the full Load, Resolve and Interpolate
// sequence and returns the resolved document.
func interpolatePipeline(args []string) (*decl.Set, *decl.Document, error) {
	path, baseDir, err := declSource(args)
	if err != nil {
		return nil, nil, err
	}

	set, values, warns, err := resolvePipeline(path)
	printWarnings(warns)
	if err != nil {
		return nil, nil, err
	}

	doc, err := engine.NewInterpolator(baseDir).Interpolate(set, values)
	if err != nil {
		return nil, nil, err
	}
	return set, doc, nil
}

// printWarnings writes resolve warnings to stderr so document output on
// stdout stays clean.
func printWarnings(warns hcl.Diagnostics) {
	for _, w := range warns {
		fmt.Fprintf(os.Stderr, "%sWarning:%s %s\n", colorize("\033[33m"), colorize("\033[0m"), w.Summary)
		if w.Detail != "" {
			fmt.Fprintf(os.Stderr, "  %s\n", w.Detail)
		}
	}
}

// formatValue renders a resolved value for table output. Strings are
// quoted so empty values stay visible.
func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return fmt.Sprintf("%q", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// sortedDocKeys returns map keys in lexical order.
func sortedDocKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
