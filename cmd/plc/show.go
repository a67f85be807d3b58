package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/franz/photo-janitor/internal/store"
	"github.com/franz/photo-janitor/internal/util"
)

var showCmd = &cobra.Command{
	Use:   "show [path]",
	Short: "Show a file's record and full transition history",
	Long: `Display everything the database knows about one file:

- Current classification (original / verified duplicate / unclassified)
- Fingerprint, size, capture date
- Deletion flag and quarantine destination, if any
- The complete append-only transition history, oldest first

With no path argument, lists all flagged files awaiting execution.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runShow,
}

func init() {
	rootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	applyLogLevel()

	db, err := openStore()
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if len(args) == 0 {
		return showFlagged(db)
	}

	return showFile(db, args[0])
}

// showFlagged lists every file flagged and awaiting a quarantine move
func showFlagged(db *store.Store) error {
	flagged, err := db.GetFlaggedNotMoved()
	if err != nil {
		return fmt.Errorf("failed to load flagged files: %w", err)
	}

	if len(flagged) == 0 {
		util.InfoLog("No files flagged for removal.")
		return nil
	}

	util.InfoLog("=== Flagged for Removal (%d files) ===", len(flagged))
	var total int64
	for _, f := range flagged {
		util.InfoLog("  %s (%s) -> duplicate of %s",
			f.Path, util.FormatBytes(f.SizeBytes), f.OriginalPath)
		total += f.SizeBytes
	}
	util.InfoLog("")
	util.InfoLog("Total recoverable: %s", util.FormatBytes(total))

	return nil
}

// showFile prints one file's record and its audit history
func showFile(db *store.Store, path string) error {
	f, err := db.GetFileByPath(path)
	if err != nil {
		return fmt.Errorf("failed to load file: %w", err)
	}
	if f == nil {
		return fmt.Errorf("not tracked: %s", path)
	}

	util.InfoLog("=== %s ===", f.Path)
	util.InfoLog("  Root: %s", f.Root)
	util.InfoLog("  Role: %s", f.Role)
	util.InfoLog("  Size: %s", util.FormatBytes(f.SizeBytes))
	util.InfoLog("  Modified: %s", time.Unix(f.MtimeUnix, 0).Format("2006-01-02 15:04:05"))
	if f.CaptureDate != nil {
		util.InfoLog("  Captured: %s", f.CaptureDate.Format("2006-01-02 15:04:05"))
	}
	if f.Fingerprint != "" {
		util.InfoLog("  Fingerprint: %s", f.Fingerprint)
	}
	util.InfoLog("  Binary verified: %t", f.BinaryVerified)
	if f.OriginalPath != "" {
		util.InfoLog("  Duplicate of: %s", f.OriginalPath)
	}
	if f.DeletionFlagged {
		util.WarnLog("  Flagged for deletion")
	}
	if f.Deleted {
		util.WarnLog("  Moved to quarantine: %s", f.QuarantinePath)
	}
	if f.Note != "" {
		util.InfoLog("  Note: %s", f.Note)
	}

	transitions, err := db.GetTransitions(path)
	if err != nil {
		return fmt.Errorf("failed to load transitions: %w", err)
	}

	if len(transitions) > 0 {
		util.InfoLog("")
		util.InfoLog("History:")
		for _, t := range transitions {
			line := fmt.Sprintf("  %s  %s", t.CreatedAt.Format("2006-01-02 15:04:05"), t.Transition)
			if t.Detail != "" {
				line += "  " + t.Detail
			}
			util.InfoLog("%s", line)
		}
	}

	return nil
}
