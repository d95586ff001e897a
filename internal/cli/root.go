package cli

import (
	"github.com/spf13/cobra"

	"github.com/groundplan-io/groundplan/internal/logging"
)

var (
	logLevel  string
	logFormat string
	noColor   bool
)

var rootCmd = &cobra.Command{
	Use:   "groundplan",
	Short: "Declarative infrastructure declaration resolver",
	Long: `Groundplan resolves HCL declaration sets into fully interpolated
infrastructure documents.

It provides a strict, deterministic pipeline with:
  • Typed variables with file, environment, and flag overrides
  • Reference-ordered interpolation of locals and resources
  • Byte-identical JSON and YAML document output
  • Pluggable local and remote state snapshot storage`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init(logLevel, logFormat)
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(emitCmd)
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(fmtCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(consoleCmd)
	rootCmd.AddCommand(policyCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(workspaceCmd)
	rootCmd.AddCommand(versionCmd)
}
