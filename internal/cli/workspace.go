package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

// groundplanDir is the working directory holding workspace snapshots,
// the workspace pointer, and the history log.
const groundplanDir = ".groundplan"

var workspaceCmd = &cobra.Command{
	Use:   "workspace",
	Short: "Manage workspaces",
	Long: `Workspaces are named state snapshot slots for the same declaration
set. Groundplan only selects the slot; snapshot contents are written
by the external provisioning engine.

The default workspace is called "default".`,
}

var workspaceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List workspaces",
	RunE:  runWorkspaceList,
}

var workspaceNewCmd = &cobra.Command{
	Use:   "new <name>",
	Short: "Create a new workspace",
	Args:  cobra.ExactArgs(1),
	RunE:  runWorkspaceNew,
}

var workspaceSelectCmd = &cobra.Command{
	Use:   "select <name>",
	Short: "Switch to another workspace",
	Args:  cobra.ExactArgs(1),
	RunE:  runWorkspaceSelect,
}

var workspaceDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a workspace",
	Args:  cobra.ExactArgs(1),
	RunE:  runWorkspaceDelete,
}

var workspaceShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current workspace name",
	RunE:  runWorkspaceShow,
}

func init() {
	workspaceCmd.AddCommand(workspaceListCmd)
	workspaceCmd.AddCommand(workspaceNewCmd)
	workspaceCmd.AddCommand(workspaceSelectCmd)
	workspaceCmd.AddCommand(workspaceDeleteCmd)
	workspaceCmd.AddCommand(workspaceShowCmd)
}

func workspaceFile() string {
	return filepath.Join(groundplanDir, "workspace")
}

func currentWorkspace() string {
	data, err := os.ReadFile(workspaceFile())
	if err != nil {
		return "default"
	}
	ws := strings.TrimSpace(string(data))
	if ws == "" {
		return "default"
	}
	return ws
}

// WorkspaceStatePath returns the snapshot path for the current workspace.
func WorkspaceStatePath() string {
	ws := currentWorkspace()
	if ws == "default" {
		return filepath.Join(groundplanDir, "state")
	}
	return filepath.Join(groundplanDir, "state."+ws)
}

func workspaceStateFile(name string) string {
	return filepath.Join(groundplanDir, "state."+name)
}

func listWorkspaces() ([]string, error) {
	workspaces := []string{"default"}
	seen := map[string]bool{"default": true}

	entries, err := os.ReadDir(groundplanDir)
	if err != nil {
		if os.IsNotExist(err) {
			return workspaces, nil
		}
		return nil, fmt.Errorf("failed to read %s directory: %w", groundplanDir, err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, "state.") || strings.HasSuffix(name, ".lock") {
			continue
		}
		ws := strings.TrimPrefix(name, "state.")
		if ws != "" && !seen[ws] {
			workspaces = append(workspaces, ws)
			seen[ws] = true
		}
	}

	return workspaces, nil
}

func runWorkspaceList(cmd *cobra.Command, args []string) error {
	workspaces, err := listWorkspaces()
	if err != nil {
		return err
	}

	current := currentWorkspace()
	for _, ws := range workspaces {
		if ws == current {
			fmt.Printf("* %s\n", ws)
		} else {
			fmt.Printf("  %s\n", ws)
		}
	}
	return nil
}

func runWorkspaceNew(cmd *cobra.Command, args []string) error {
	name := args[0]
	if name == "default" {
		return fmt.Errorf("cannot create a workspace named 'default' - it already exists")
	}

	statePath := workspaceStateFile(name)
	if _, err := os.Stat(statePath); err == nil {
		return fmt.Errorf("workspace %q already exists", name)
	}

	if err := os.MkdirAll(groundplanDir, 0755); err != nil {
		return fmt.Errorf("failed to create %s directory: %w", groundplanDir, err)
	}

	// An empty slot: the external engine seeds the snapshot.
	if err := os.WriteFile(statePath, nil, 0644); err != nil {
		return fmt.Errorf("failed to create workspace slot: %w", err)
	}

	if err := os.WriteFile(workspaceFile(), []byte(name), 0644); err != nil {
		return fmt.Errorf("failed to switch workspace: %w", err)
	}

	fmt.Printf("Created and switched to workspace %q\n", name)
	return nil
}

func runWorkspaceSelect(cmd *cobra.Command, args []string) error {
	name := args[0]

	if name != "default" {
		if _, err := os.Stat(workspaceStateFile(name)); os.IsNotExist(err) {
			return fmt.Errorf("workspace %q does not exist", name)
		}
	}

	if err := os.MkdirAll(groundplanDir, 0755); err != nil {
		return fmt.Errorf("failed to create %s directory: %w", groundplanDir, err)
	}
	if err := os.WriteFile(workspaceFile(), []byte(name), 0644); err != nil {
		return fmt.Errorf("failed to switch workspace: %w", err)
	}

	fmt.Printf("Switched to workspace %q\n", name)
	return nil
}

func runWorkspaceDelete(cmd *cobra.Command, args []string) error {
	name := args[0]
	if name == "default" {
		return fmt.Errorf("cannot delete the default workspace")
	}

	if currentWorkspace() == name {
		return fmt.Errorf("cannot delete the currently active workspace %q - switch to another workspace first", name)
	}

	statePath := workspaceStateFile(name)
	if _, err := os.Stat(statePath); os.IsNotExist(err) {
		return fmt.Errorf("workspace %q does not exist", name)
	}

	if err := os.Remove(statePath); err != nil {
		return fmt.Errorf("failed to delete workspace snapshot: %w", err)
	}

	// Also remove lock file if exists
	os.Remove(statePath + ".lock")

	fmt.Printf("Deleted workspace %q\n", name)
	return nil
}

func runWorkspaceShow(cmd *cobra.Command, args []string) error {
	fmt.Println(currentWorkspace())
	return nil
}
