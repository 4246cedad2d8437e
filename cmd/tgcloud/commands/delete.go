package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/tgcloud/internal/cli/prompt"
)

var deleteYes bool

var deleteCmd = &cobra.Command{
	Use:     "delete <name>",
	Aliases: []string{"rm"},
	Short:   "Delete a stored file",
	Long: `Delete removes every chunk of the named file from Telegram, then the
metadata record. If any chunk cannot be removed the metadata is kept so the
delete can be retried.`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

func init() {
	deleteCmd.Flags().BoolVarP(&deleteYes, "yes", "y", false, "skip the confirmation prompt")
}

func runDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	name := args[0]

	if !deleteYes {
		ok, err := prompt.Confirm(fmt.Sprintf("Delete %q permanently?", name), false)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("Aborted")
			return nil
		}
	}

	svc, err := newService(ctx)
	if err != nil {
		return err
	}
	defer svc.close(ctx)

	if err := svc.engine.DeleteFile(ctx, name); err != nil {
		return err
	}
	fmt.Printf("Deleted %q\n", name)
	return nil
}
