package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/franz/photo-janitor/internal/report"
	"github.com/franz/photo-janitor/internal/util"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate a summary report of the current database state",
	Long: `Generate a read-only snapshot report of the detection pipeline state.

The report includes:
- Tracked file counts per role
- Duplicate group statistics, including cross-root groups
- Flagging and quarantine progress
- Recoverable and freed space
- The largest duplicate groups by size

Markdown output is saved to artifacts/reports/<timestamp>/summary.md, or use
--json to print the raw data to stdout instead.`,
	RunE: runReport,
}

func init() {
	reportCmd.Flags().String("out", "", "Output directory for report (default: artifacts/reports/<timestamp>)")
	reportCmd.Flags().String("event-log", "", "Path to event log file (optional)")
	reportCmd.Flags().Bool("json", false, "Print the report as JSON to stdout")

	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	applyLogLevel()

	dbPath := viper.GetString("db")
	asJSON, _ := cmd.Flags().GetBool("json")

	if !asJSON {
		util.InfoLog("=== Generating Summary Report ===")
		util.InfoLog("Database: %s", dbPath)
	}

	db, err := openStore()
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.CheckIntegrity(); err != nil {
		util.WarnLog("Database integrity check failed: %v", err)
	}

	eventLogPath, _ := cmd.Flags().GetString("event-log")

	summaryReport, err := report.GenerateSummaryReport(db, eventLogPath)
	if err != nil {
		return fmt.Errorf("failed to generate report: %w", err)
	}

	summaryReport.DatabasePath = dbPath

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summaryReport)
	}

	// Determine output path
	outputDir, _ := cmd.Flags().GetString("out")
	if outputDir == "" {
		timestamp := time.Now().Format("20060102-150405")
		outputDir = filepath.Join("artifacts", "reports", timestamp)
	}

	outputPath := filepath.Join(outputDir, "summary.md")

	util.InfoLog("Writing report to: %s", outputPath)
	if err := report.WriteMarkdownReport(summaryReport, outputPath); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	util.SuccessLog("Report generated successfully!")
	util.InfoLog("")
	util.InfoLog("Summary:")
	util.InfoLog("  Files tracked: %d", summaryReport.FilesTracked)
	util.InfoLog("  Originals: %d", summaryReport.Originals)
	util.InfoLog("  Verified duplicates: %d", summaryReport.Duplicates)
	if summaryReport.DuplicateGroups > 0 {
		util.InfoLog("  Duplicate groups: %d (%d cross-root)",
			summaryReport.DuplicateGroups, summaryReport.CrossRootGroups)
	}
	if summaryReport.FlaggedFiles > 0 {
		util.InfoLog("  Flagged: %d (%s recoverable)",
			summaryReport.FlaggedFiles, util.FormatBytes(summaryReport.RecoverableBytes))
	}
	if summaryReport.MovedFiles > 0 {
		util.InfoLog("  Moved to quarantine: %d (%s freed)",
			summaryReport.MovedFiles, util.FormatBytes(summaryReport.FreedBytes))
	}
	if summaryReport.MoveErrors > 0 {
		util.WarnLog("  Move errors: %d", summaryReport.MoveErrors)
	}

	return nil
}
