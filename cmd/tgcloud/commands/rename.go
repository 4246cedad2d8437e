package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var renameCmd = &cobra.Command{
	Use:   "rename <old-name> <new-name>",
	Short: "Rename a stored file",
	Long: `Rename changes a file's logical name in the metadata store. No chunk
moves; the operation fails if the new name is already taken.`,
	Args: cobra.ExactArgs(2),
	RunE: runRename,
}

func runRename(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	svc, err := newService(ctx)
	if err != nil {
		return err
	}
	defer svc.close(ctx)

	if err := svc.engine.RenameFile(ctx, args[0], args[1]); err != nil {
		return err
	}
	fmt.Printf("Renamed %q to %q\n", args[0], args[1])
	return nil
}
