package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/groundplan-io/groundplan/internal/engine"
)

var consoleCmd = &cobra.Command{
	Use:   "console [PATH]",
	Short: "Interactive console for evaluating expressions",
	Long: `Opens an interactive console bound to the resolved declaration set.
Any line that is not a console command is evaluated as an HCL
expression against the resolved variables, locals, and resources.

Available commands:
  vars               List resolved variable values
  locals             List local names
  resources          List resource addresses
  help               Show available commands
  exit / quit        Exit the console`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConsole,
}

func init() {
	addPipelineFlags(consoleCmd)
}

func runConsole(cmd *cobra.Command, args []string) error {
	path, baseDir, err := declSource(args)
	if err != nil {
		return err
	}

	set, values, warns, err := resolvePipeline(path)
	printWarnings(warns)
	if err != nil {
		return err
	}

	session, err := engine.NewInterpolator(baseDir).Run(set, values)
	if err != nil {
		return err
	}

	fmt.Println("Groundplan Console (type 'help' for commands, 'exit' to quit)")
	fmt.Printf("Loaded: %d variable(s), %d local(s), %d resource(s)\n\n",
		len(set.Variables), len(set.Locals), len(set.Resources))

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("groundplan> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch line {
		case "exit", "quit":
			fmt.Println("Bye!")
			return nil

		case "help":
			fmt.Println("Available commands:")
			fmt.Println("  vars               - List resolved variable values")
			fmt.Println("  locals             - List local names")
			fmt.Println("  resources          - List resource addresses")
			fmt.Println("  exit / quit        - Exit the console")
			fmt.Println("Anything else is evaluated as an HCL expression, e.g.")
			fmt.Println("  var.project")
			fmt.Println("  \"${local.data_lake_bucket}_${var.project}\"")

		case "vars":
			for _, name := range sortedDocKeys(values) {
				rendered := formatValue(engine.GoValue(values[name]))
				if set.Variables[name].Sensitive {
					rendered = "(sensitive)"
				}
				fmt.Printf("  var.%s = %s\n", name, rendered)
			}

		case "locals":
			if len(set.Locals) == 0 {
				fmt.Println("No locals declared.")
				break
			}
			for _, name := range sortedDocKeys(set.Locals) {
				fmt.Printf("  local.%s\n", name)
			}

		case "resources":
			if len(set.Resources) == 0 {
				fmt.Println("No resources declared.")
				break
			}
			for _, res := range set.Resources {
				fmt.Printf("  %s\n", res.Address())
			}

		default:
			val, err := session.Eval(line)
			if err != nil {
				fmt.Printf("Error: %s\n", err)
				continue
			}
			data, err := json.MarshalIndent(engine.GoValue(val), "", "  ")
			if err != nil {
				fmt.Printf("Error: %s\n", err)
				continue
			}
			fmt.Println(string(data))
		}
	}

	return nil
}
