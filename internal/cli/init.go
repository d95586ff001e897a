package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new groundplan project",
	Long:  `Creates the groundplan working directory and a starter declaration file.`,
	RunE:  runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	if err := os.MkdirAll(groundplanDir, 0755); err != nil {
		return fmt.Errorf("failed to create %s directory: %w", groundplanDir, err)
	}

	// Create main.hcl if it doesn't exist
	mainHCL := "main.hcl"
	if _, err := os.Stat(mainHCL); os.IsNotExist(err) {
		content := `# Groundplan declaration set
# See: https://github.com/groundplan-io/groundplan

variable "project" {
  description = "Project identifier interpolated into resource names"
  type        = string
}

backend "local" {
  path = ".groundplan/state"
}

# resource "google_storage_bucket" "example" {
#   name     = "example-${var.project}"
#   location = "US"
# }
`
		if err := os.WriteFile(mainHCL, []byte(content), 0644); err != nil {
			return fmt.Errorf("failed to create %s: %w", mainHCL, err)
		}
		fmt.Printf("Created %s\n", mainHCL)
	}

	fmt.Println("\nGroundplan initialized successfully!")
	fmt.Println("Next steps:")
	fmt.Println("  1. Edit main.hcl to declare your variables and resources")
	fmt.Println("  2. Run 'groundplan validate' to check the declaration set")
	fmt.Println("  3. Run 'groundplan emit' to produce the resolved document")

	return nil
}
