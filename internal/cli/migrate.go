package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/groundplan-io/groundplan/internal/eval"
	"github.com/groundplan-io/groundplan/internal/state"
)

var migrateTo string

var migrateCmd = &cobra.Command{
	Use:   "migrate --to TYPE [PATH]",
	Short: "Copy the state snapshot between backends",
	Long: `Copies the opaque state snapshot between the local workspace slot and
the remote backend declared in the declaration set. The snapshot is
moved byte-for-byte; groundplan never interprets its contents.

The declaration set must declare the remote backend:

  groundplan migrate --to s3      # local slot -> declared s3 backend
  groundplan migrate --to local   # declared s3 backend -> local slot`,
	Args: cobra.MaximumNArgs(1),
	RunE: runMigrate,
}

func init() {
	migrateCmd.Flags().StringVar(&migrateTo, "to", "", "destination backend type (local or s3)")
	migrateCmd.MarkFlagRequired("to")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	if migrateTo != string(state.KindLocal) && migrateTo != string(state.KindS3) {
		return fmt.Errorf("unsupported migration target %q (expected local or s3)", migrateTo)
	}

	path, baseDir, err := declSource(args)
	if err != nil {
		return err
	}

	set, err := eval.NewLoader().Load(path)
	if err != nil {
		return fmt.Errorf("failed to load declarations: %w", err)
	}

	declared, err := state.ParseConfig(set.Backend)
	if err != nil {
		return err
	}
	if declared.Kind != state.KindS3 {
		return fmt.Errorf("migration needs an s3 backend block in the declaration set (found %q)", declared.Kind)
	}

	remote, err := declared.Open(baseDir)
	if err != nil {
		return fmt.Errorf("failed to open s3 backend: %w", err)
	}
	local := state.NewManager(WorkspaceStatePath())

	var src, dst state.Backend
	var srcName, dstName string
	if migrateTo == string(state.KindS3) {
		src, dst = local, remote
		srcName, dstName = "local", "s3"
	} else {
		src, dst = remote, local
		srcName, dstName = "s3", "local"
	}

	ctx := cmd.Context()

	data, err := src.Read(ctx)
	if err != nil {
		return fmt.Errorf("failed to read snapshot from %s backend: %w", srcName, err)
	}
	if data == nil {
		return fmt.Errorf("no state snapshot to migrate in %s backend", srcName)
	}
	fmt.Printf("Read %d byte(s) from %s backend\n", len(data), srcName)

	if err := dst.Lock(); err != nil {
		return err
	}
	defer dst.Unlock()

	if err := dst.Write(ctx, data); err != nil {
		return fmt.Errorf("failed to write snapshot to %s backend: %w", dstName, err)
	}

	fmt.Printf("Migration complete! Snapshot copied to %s backend\n", dstName)
	return nil
}
