package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/tgcloud/internal/bytesize"
	"github.com/marmos91/tgcloud/internal/cli/output"
)

var listCmd = &cobra.Command{
	Use:   "list [prefix]",
	Short: "List stored files",
	Long: `List shows the files in the metadata store, optionally filtered by a
name prefix.

Examples:
  # All files
  tgcloud list

  # Files under a logical directory
  tgcloud list backups/2026-08/`,
	Args: cobra.MaximumNArgs(1),
	RunE: runList,
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	svc, err := newService(ctx)
	if err != nil {
		return err
	}
	defer svc.close(ctx)

	prefix := ""
	if len(args) == 1 {
		prefix = args[0]
	}

	files, err := svc.engine.ListFiles(ctx, prefix)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Println("No files found")
		return nil
	}

	table := output.NewTableData("NAME", "SIZE", "CHUNKS", "SHA256", "CREATED")
	for _, f := range files {
		table.AddRow(
			f.OriginalName,
			bytesize.ByteSize(f.Size).String(),
			fmt.Sprintf("%d", f.TotalChunks),
			shortDigest(f.SHA256),
			f.CreatedAt.Local().Format("2006-01-02 15:04"),
		)
	}
	return output.PrintTable(os.Stdout, table)
}

func shortDigest(sha string) string {
	if len(sha) > 12 {
		return sha[:12]
	}
	return sha
}
