package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/franz/photo-janitor/internal/organize"
	"github.com/franz/photo-janitor/internal/util"
)

var organizeCmd = &cobra.Command{
	Use:   "organize",
	Short: "Move photos into per-year directories",
	Long: `Move photos from a source tree into <destination>/<year>/ directories.

The year comes from the photo's embedded capture date when present, otherwise
from the file's modification time. Files whose year cannot be determined go
into an "unsorted" directory. A file already present at its destination with
identical size and mtime is skipped.

This command is independent of the duplicate detection pipeline; run it after
execute to tidy up the surviving originals.`,
	RunE: runOrganize,
}

func init() {
	organizeCmd.Flags().StringP("source", "s", "", "source directory to organize")
	organizeCmd.Flags().StringP("dest", "d", "", "destination directory for year folders")
	organizeCmd.Flags().Bool("dry-run", false, "preview moves without executing them")

	rootCmd.AddCommand(organizeCmd)
}

func runOrganize(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	verbose, quiet := applyLogLevel()

	source, _ := cmd.Flags().GetString("source")
	dest, _ := cmd.Flags().GetString("dest")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	if source == "" || dest == "" {
		return fmt.Errorf("both --source and --dest are required")
	}
	if _, err := os.Stat(source); os.IsNotExist(err) {
		return fmt.Errorf("source directory does not exist: %s", source)
	}

	logger := newEventLogger(verbose, quiet)
	defer logger.Close()

	util.InfoLog("=== Organize by Year ===")

	organizer := organize.New(&organize.Config{
		Source:      source,
		Destination: dest,
		DryRun:      dryRun,
		RetryConfig: retryConfigFor(source, dest),
		Logger:      logger,
	})

	startTime := time.Now()

	result, err := organizer.Run(ctx)
	if err != nil {
		return fmt.Errorf("organize failed: %w", err)
	}

	util.SuccessLog("Organize complete in %v", time.Since(startTime).Round(time.Millisecond))
	util.InfoLog("  Files found: %d", result.FilesFound)
	util.InfoLog("  Moved: %d", result.Moved)
	util.InfoLog("  Skipped: %d", result.Skipped)
	if len(result.Errors) > 0 {
		util.WarnLog("  Errors: %d", len(result.Errors))
	}

	return nil
}
