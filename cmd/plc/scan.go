package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/franz/photo-janitor/internal/phase"
	"github.com/franz/photo-janitor/internal/util"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan roots, fingerprint photos and identify duplicate groups",
	Long: `Scan one or more root directories for image files.

This command performs the full detection pipeline:
1. Discovery: walks each root, recording size, mtime and capture date
2. Fingerprinting: computes a normalized content fingerprint per image
3. Verification: byte-compares fingerprint matches to confirm true duplicates
4. Selection: picks the canonical original of each verified group

Unchanged files (same size and mtime as last scan) are skipped, so an
interrupted scan resumes cheaply. Use --force-rescan to discard previous
verdicts and reprocess everything.`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().StringSliceP("root", "r", nil, "root directory to scan (repeatable)")
	scanCmd.Flags().Int("canvas-size", 0, "fingerprint canvas edge length in pixels (default 64)")
	scanCmd.Flags().Bool("force-rescan", false, "discard previous verdicts and reprocess all files")
	scanCmd.Flags().IntP("concurrency", "c", 0, "number of parallel workers")

	viper.BindPFlag("roots", scanCmd.Flags().Lookup("root"))
	viper.BindPFlag("canvas_size", scanCmd.Flags().Lookup("canvas-size"))
	viper.BindPFlag("concurrency", scanCmd.Flags().Lookup("concurrency"))

	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	verbose, quiet := applyLogLevel()

	roots := viper.GetStringSlice("roots")
	if len(roots) == 0 {
		return fmt.Errorf("at least one root directory is required (use --root/-r or set roots in config)")
	}

	for _, root := range roots {
		if _, err := os.Stat(root); os.IsNotExist(err) {
			return fmt.Errorf("root directory does not exist: %s", root)
		}
	}

	concurrency := GetConfigInt("concurrency", 8)
	forceRescan, _ := cmd.Flags().GetBool("force-rescan")

	db, err := openStore()
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	logger := newEventLogger(verbose, quiet)
	defer logger.Close()

	util.InfoLog("=== Scan Phase ===")
	for _, root := range roots {
		util.InfoLog("Root: %s", root)
	}
	util.InfoLog("Concurrency: %d", concurrency)

	scanner := phase.NewScanner(&phase.ScanConfig{
		Store:       db,
		Roots:       roots,
		CanvasSize:  viper.GetInt("canvas_size"),
		Concurrency: concurrency,
		ForceRescan: forceRescan,
		Logger:      logger,
	})

	startTime := time.Now()

	result, err := scanner.Run(ctx)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	util.SuccessLog("Scan complete in %v", time.Since(startTime).Round(time.Millisecond))
	util.InfoLog("  Files found: %d", result.FilesFound)
	util.InfoLog("  Files fingerprinted: %d", result.FilesFingerprinted)
	util.InfoLog("  Files unchanged: %d", result.FilesUnchanged)
	if result.FilesUndecodable > 0 {
		util.WarnLog("  Undecodable images: %d", result.FilesUndecodable)
	}
	util.InfoLog("  Candidate groups: %d", result.CandidateGroups)
	util.InfoLog("  Groups verified: %d", result.GroupsVerified)
	if result.Collisions > 0 {
		util.WarnLog("  Fingerprint collisions: %d", result.Collisions)
	}
	if len(result.Errors) > 0 {
		util.WarnLog("  Errors: %d", len(result.Errors))
	}

	util.InfoLog("")
	util.InfoLog("Next step: plc flag")

	return nil
}
