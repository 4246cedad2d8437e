package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/marmos91/tgcloud/internal/cli/progress"
	"github.com/marmos91/tgcloud/pkg/engine"
)

var (
	uploadName  string
	uploadQuiet bool
)

var uploadCmd = &cobra.Command{
	Use:   "upload <path>",
	Short: "Upload a file to Telegram storage",
	Long: `Upload splits the file into chunks, spreads them across the configured
bots in parallel, and records the placement in the metadata store. The file
becomes visible under its logical name only once every chunk is stored.

Examples:
  # Upload under the file's own name
  tgcloud upload backup.tar.gz

  # Upload under a different logical name
  tgcloud upload backup.tar.gz --name backups/2026-08/backup.tar.gz`,
	Args: cobra.ExactArgs(1),
	RunE: runUpload,
}

func init() {
	uploadCmd.Flags().StringVarP(&uploadName, "name", "n", "", "logical name to store the file under (default: the file's base name)")
	uploadCmd.Flags().BoolVarP(&uploadQuiet, "quiet", "q", false, "suppress progress output")
}

func runUpload(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	path := args[0]

	svc, err := newService(ctx)
	if err != nil {
		return err
	}
	defer svc.close(ctx)

	name := uploadName
	if name == "" {
		name = filepath.Base(path)
	}

	events := make(chan engine.UploadEvent, 16)
	done := make(chan error, 1)
	go func() {
		done <- svc.engine.UploadFileAs(ctx, path, name, events)
	}()

	var bar *progress.Bar
	for {
		select {
		case ev := <-events:
			switch ev.State {
			case engine.UploadStarted:
				if !uploadQuiet {
					fmt.Fprintf(os.Stderr, "Uploading %s as %q (%d chunks)\n", path, name, ev.TotalChunks)
					bar = progress.Start(os.Stderr, "upload", ev.TotalSize, ev.Progress)
				}
			case engine.UploadHashComplete:
				if !uploadQuiet {
					fmt.Fprintf(os.Stderr, "sha256: %s\n", ev.SHA256)
				}
			}
		case err := <-done:
			if bar != nil {
				bar.Stop(err == nil)
			}
			if err != nil {
				return err
			}
			fmt.Printf("Uploaded %q\n", name)
			return nil
		}
	}
}
