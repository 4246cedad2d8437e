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
	downloadOutput string
	downloadQuiet  bool
)

var downloadCmd = &cobra.Command{
	Use:   "download <name>",
	Short: "Download a file from Telegram storage",
	Long: `Download fetches every chunk of the named file in parallel, reassembles
them in order, and verifies the result against the SHA-256 recorded at upload
time before handing it over.

Examples:
  # Download next to the current directory
  tgcloud download backups/2026-08/backup.tar.gz

  # Download to an explicit path
  tgcloud download backup.tar.gz --output /tmp/restore.tar.gz`,
	Args: cobra.ExactArgs(1),
	RunE: runDownload,
}

func init() {
	downloadCmd.Flags().StringVarP(&downloadOutput, "output", "o", "", "output path (default: the file's base name in the current directory)")
	downloadCmd.Flags().BoolVarP(&downloadQuiet, "quiet", "q", false, "suppress progress output")
}

func runDownload(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	name := args[0]

	svc, err := newService(ctx)
	if err != nil {
		return err
	}
	defer svc.close(ctx)

	outPath := downloadOutput
	if outPath == "" {
		outPath = filepath.Base(name)
	}

	events := make(chan engine.DownloadEvent, 16)
	done := make(chan error, 1)
	go func() {
		done <- svc.engine.DownloadFile(ctx, name, outPath, events)
	}()

	var bar *progress.Bar
	for {
		select {
		case ev := <-events:
			switch ev.State {
			case engine.DownloadStarted:
				if !downloadQuiet {
					fmt.Fprintf(os.Stderr, "Downloading %q (%d chunks)\n", name, ev.TotalChunks)
					bar = progress.Start(os.Stderr, "download", ev.TotalSize, ev.Progress)
				}
			case engine.DownloadVerifying:
				if bar != nil {
					bar.Stop(true)
					bar = nil
				}
				if !downloadQuiet {
					fmt.Fprintln(os.Stderr, "Verifying checksum...")
				}
			}
		case err := <-done:
			if bar != nil {
				bar.Stop(err == nil)
			}
			if err != nil {
				return err
			}
			fmt.Printf("Downloaded %q to %s\n", name, outPath)
			return nil
		}
	}
}
