package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/franz/photo-janitor/internal/phase"
	"github.com/franz/photo-janitor/internal/util"
)

var flagCmd = &cobra.Command{
	Use:   "flag",
	Short: "Flag verified duplicates for removal",
	Long: `Flag every binary-verified duplicate for removal.

This phase only updates the database; nothing on disk is touched. Originals
can never be flagged. Review the flags with "plc report" before executing.`,
	RunE: runFlag,
}

func init() {
	rootCmd.AddCommand(flagCmd)
}

func runFlag(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	verbose, quiet := applyLogLevel()

	db, err := openStore()
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	logger := newEventLogger(verbose, quiet)
	defer logger.Close()

	util.InfoLog("=== Flag Phase ===")

	startTime := time.Now()

	result, err := phase.Flag(ctx, &phase.FlagConfig{
		Store:  db,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("flag failed: %w", err)
	}

	util.SuccessLog("Flag complete in %v", time.Since(startTime).Round(time.Millisecond))
	util.InfoLog("  Candidates: %d", result.Candidates)
	util.InfoLog("  Flagged: %d", result.Flagged)
	if result.Skipped > 0 {
		util.WarnLog("  Skipped: %d", result.Skipped)
	}
	if len(result.Errors) > 0 {
		util.WarnLog("  Errors: %d", len(result.Errors))
	}

	recoverable, _ := db.SumFlaggedBytes()
	util.InfoLog("  Space recoverable: %s", util.FormatBytes(recoverable))

	util.InfoLog("")
	util.InfoLog("Next step: plc execute --quarantine <directory> [--dry-run]")

	return nil
}
