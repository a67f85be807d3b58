package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/franz/photo-janitor/internal/store"
	"github.com/franz/photo-janitor/internal/util"
)

// SummaryReport is a read-only snapshot of the database state. Generating it
// never mutates anything, so it is safe to run between or during phases.
type SummaryReport struct {
	GeneratedAt time.Time `json:"generated_at"`

	// File statistics
	FilesTracked  int `json:"files_tracked"`
	Unclassified  int `json:"unclassified"`
	Originals     int `json:"originals"`
	Duplicates    int `json:"verified_duplicates"`
	FlaggedFiles  int `json:"flagged_files"`
	MovedFiles    int `json:"moved_files"`
	MoveErrors    int `json:"move_errors"`

	// Group statistics
	DuplicateGroups int `json:"duplicate_groups"`
	CrossRootGroups int `json:"cross_root_groups"`

	// Space statistics
	RecoverableBytes int64 `json:"recoverable_bytes"`
	FreedBytes       int64 `json:"freed_bytes"`

	// Details
	TopGroups []GroupSummary `json:"top_groups,omitempty"`

	// Metadata
	DatabasePath string `json:"database_path,omitempty"`
	EventLogPath string `json:"event_log_path,omitempty"`
}

// GroupSummary is one duplicate group in the report, largest groups first
type GroupSummary struct {
	Fingerprint  string   `json:"fingerprint"`
	OriginalPath string   `json:"original_path"`
	CrossRoot    bool     `json:"cross_root"`
	MemberCount  int      `json:"member_count"`
	TotalBytes   int64    `json:"total_bytes"`
	FilesFlagged int      `json:"files_flagged"`
	FilesMoved   int      `json:"files_moved"`
	Duplicates   []string `json:"duplicates,omitempty"`
}

// topGroupLimit caps the number of groups detailed in the report
const topGroupLimit = 20

// GenerateSummaryReport creates a summary report from the current database state
func GenerateSummaryReport(db *store.Store, eventLogPath string) (*SummaryReport, error) {
	report := &SummaryReport{
		GeneratedAt:  time.Now(),
		EventLogPath: eventLogPath,
		TopGroups:    make([]GroupSummary, 0),
	}

	var err error
	if report.FilesTracked, err = db.CountFiles(); err != nil {
		return nil, fmt.Errorf("failed to count files: %w", err)
	}

	report.Unclassified, _ = db.CountFilesByRole(store.RoleUnclassified)
	report.Originals, _ = db.CountFilesByRole(store.RoleOriginal)
	report.Duplicates, _ = db.CountFilesByRole(store.RoleVerifiedDuplicate)
	report.FlaggedFiles, _ = db.CountFlagged()
	report.MovedFiles, _ = db.CountMoved()
	report.MoveErrors, _ = db.CountMoveErrors()

	report.DuplicateGroups, _ = db.CountGroups()
	report.CrossRootGroups, _ = db.CountCrossRootGroups()

	report.RecoverableBytes, _ = db.SumFlaggedBytes()
	report.FreedBytes, _ = db.SumMovedBytes()

	groups, err := db.GetAllGroups()
	if err != nil {
		return nil, fmt.Errorf("failed to load groups: %w", err)
	}
	report.TopGroups = gatherTopGroups(db, groups, topGroupLimit)

	return report, nil
}

// gatherTopGroups details the largest groups by total bytes. GetAllGroups
// already orders by size, so only the head of the list is expanded.
func gatherTopGroups(db *store.Store, groups []*store.DuplicateGroup, limit int) []GroupSummary {
	if len(groups) > limit {
		groups = groups[:limit]
	}

	summaries := make([]GroupSummary, 0, len(groups))
	for _, g := range groups {
		summary := GroupSummary{
			Fingerprint:  g.Fingerprint,
			OriginalPath: g.OriginalPath,
			CrossRoot:    g.CrossRoot,
			MemberCount:  g.MemberCount,
			TotalBytes:   g.TotalBytes,
			FilesFlagged: g.FilesFlagged,
			FilesMoved:   g.FilesMoved,
		}

		members, _ := db.GetFilesByFingerprint(g.Fingerprint)
		for _, m := range members {
			if m.Role == store.RoleVerifiedDuplicate {
				summary.Duplicates = append(summary.Duplicates, m.Path)
			}
		}

		summaries = append(summaries, summary)
	}

	return summaries
}

// WriteMarkdownReport writes the summary report as Markdown
func WriteMarkdownReport(report *SummaryReport, outputPath string) error {
	// Create output directory
	dir := filepath.Dir(outputPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	// Generate markdown content
	var md strings.Builder

	// Header
	md.WriteString("# Photo Library Cleaner - Summary Report\n\n")
	md.WriteString(fmt.Sprintf("**Generated:** %s\n\n", report.GeneratedAt.Format("2006-01-02 15:04:05")))

	if report.DatabasePath != "" {
		md.WriteString(fmt.Sprintf("**Database:** `%s`\n\n", report.DatabasePath))
	}
	if report.EventLogPath != "" {
		md.WriteString(fmt.Sprintf("**Event Log:** `%s`\n\n", report.EventLogPath))
	}

	md.WriteString("---\n\n")

	// Overview
	md.WriteString("## 📊 Overview\n\n")
	md.WriteString("| Metric | Value |\n")
	md.WriteString("|--------|-------|\n")
	md.WriteString(fmt.Sprintf("| Files Tracked | %d |\n", report.FilesTracked))
	md.WriteString(fmt.Sprintf("| Unclassified | %d |\n", report.Unclassified))
	md.WriteString(fmt.Sprintf("| Originals | %d |\n", report.Originals))
	md.WriteString(fmt.Sprintf("| Verified Duplicates | %d |\n", report.Duplicates))
	md.WriteString("\n")

	// Groups
	if report.DuplicateGroups > 0 {
		md.WriteString("## 🔗 Duplicate Groups\n\n")
		md.WriteString("| Metric | Value |\n")
		md.WriteString("|--------|-------|\n")
		md.WriteString(fmt.Sprintf("| Total Groups | %d |\n", report.DuplicateGroups))
		md.WriteString(fmt.Sprintf("| Cross-Root Groups | %d |\n", report.CrossRootGroups))
		md.WriteString("\n")
	}

	// Progress
	md.WriteString("## ⚡ Progress\n\n")
	md.WriteString("| Metric | Value |\n")
	md.WriteString("|--------|-------|\n")
	md.WriteString(fmt.Sprintf("| Flagged for Deletion | %d |\n", report.FlaggedFiles))
	md.WriteString(fmt.Sprintf("| Moved to Quarantine | %d |\n", report.MovedFiles))
	if report.MoveErrors > 0 {
		md.WriteString(fmt.Sprintf("| Move Errors | %d |\n", report.MoveErrors))
	}
	md.WriteString(fmt.Sprintf("| Space Recoverable | %s |\n", util.FormatBytes(report.RecoverableBytes)))
	md.WriteString(fmt.Sprintf("| Space Freed | %s |\n", util.FormatBytes(report.FreedBytes)))
	md.WriteString("\n")

	// Top groups
	if len(report.TopGroups) > 0 {
		md.WriteString("## 🔍 Largest Duplicate Groups\n\n")
		md.WriteString("*Showing groups with the most recoverable space*\n\n")

		for i, g := range report.TopGroups {
			md.WriteString(fmt.Sprintf("### %d. Group %s\n\n", i+1, shortFingerprint(g.Fingerprint)))

			md.WriteString(fmt.Sprintf("**Copies:** %d | **Total size:** %s", g.MemberCount, util.FormatBytes(g.TotalBytes)))
			if g.CrossRoot {
				md.WriteString(" | **cross-root**")
			}
			md.WriteString("\n\n")

			md.WriteString("**✅ Original (kept):**\n")
			md.WriteString(fmt.Sprintf("- `%s`\n\n", truncatePath(g.OriginalPath, 80)))

			if len(g.Duplicates) > 0 {
				md.WriteString("**❌ Duplicates:**\n\n")
				for j, dup := range g.Duplicates {
					md.WriteString(fmt.Sprintf("%d. `%s`\n", j+1, truncatePath(dup, 80)))
				}
				md.WriteString("\n")
			}
		}
	}

	// Footer
	md.WriteString("---\n\n")
	md.WriteString("*Generated by [PLC](https://github.com/franz/photo-janitor) - Photo Library Cleaner*\n")

	// Write to file
	if err := os.WriteFile(outputPath, []byte(md.String()), 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	return nil
}

// shortFingerprint abbreviates a fingerprint hash for display
func shortFingerprint(fp string) string {
	if len(fp) <= 12 {
		return fp
	}
	return fp[:12]
}

// truncatePath truncates a file path to a maximum length
func truncatePath(path string, maxLen int) string {
	if len(path) <= maxLen {
		return path
	}
	// Truncate from the middle, keeping start and end
	start := maxLen/2 - 2
	end := len(path) - (maxLen/2 - 2)
	return path[:start] + "..." + path[end:]
}
