package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/franz/photo-janitor/internal/phase"
	"github.com/franz/photo-janitor/internal/util"
)

var executeCmd = &cobra.Command{
	Use:   "execute",
	Short: "Move flagged duplicates to the quarantine directory",
	Long: `Move every flagged duplicate into the quarantine directory, preserving
its root-relative path. Nothing is ever deleted: restoring a file is a plain
move back.

Every move is verified (the destination is re-checked after the move) before
the database records it. Failed moves are recorded and retried on the next
run. Use --dry-run to preview the moves without touching anything.`,
	RunE: runExecute,
}

func init() {
	executeCmd.Flags().String("quarantine", "", "quarantine directory for removed duplicates")
	executeCmd.Flags().Bool("dry-run", false, "preview moves without executing them")
	executeCmd.Flags().IntP("concurrency", "c", 0, "number of parallel workers")

	viper.BindPFlag("quarantine", executeCmd.Flags().Lookup("quarantine"))

	rootCmd.AddCommand(executeCmd)
}

func runExecute(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	verbose, quiet := applyLogLevel()

	quarantine := viper.GetString("quarantine")
	if quarantine == "" {
		return fmt.Errorf("quarantine directory is required (use --quarantine or set in config)")
	}

	dryRun, _ := cmd.Flags().GetBool("dry-run")
	concurrency, _ := cmd.Flags().GetInt("concurrency")
	if concurrency <= 0 {
		concurrency = GetConfigInt("concurrency", 4)
	}

	db, err := openStore()
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	logger := newEventLogger(verbose, quiet)
	defer logger.Close()

	util.InfoLog("=== Execute Phase ===")
	util.InfoLog("Quarantine: %s", quarantine)

	executor := phase.NewExecutor(&phase.ExecuteConfig{
		Store:          db,
		QuarantineRoot: quarantine,
		Concurrency:    concurrency,
		DryRun:         dryRun,
		RetryConfig:    retryConfigFor(quarantine),
		Logger:         logger,
	})

	startTime := time.Now()

	result, err := executor.Execute(ctx)
	if result != nil {
		util.InfoLog("  Candidates: %d", result.Candidates)
		util.InfoLog("  Moved: %d", result.Moved)
		if result.Failed > 0 {
			util.WarnLog("  Failed: %d", result.Failed)
		}
		if result.Skipped > 0 {
			util.WarnLog("  Skipped: %d", result.Skipped)
		}
		util.InfoLog("  Space freed: %s", util.FormatBytes(result.BytesMoved))
		util.InfoLog("  Duration: %v", time.Since(startTime).Round(time.Millisecond))
	}
	if err != nil {
		return fmt.Errorf("execute failed: %w", err)
	}

	return nil
}
