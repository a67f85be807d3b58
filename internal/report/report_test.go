package report

import (
	"bufio"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/franz/photo-janitor/internal/store"
)

func seedStore(t *testing.T) *store.Store {
	t.Helper()

	db, err := store.Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	files := []struct {
		path, fp string
	}{
		{"/photos/orig.jpg", "fp1"},
		{"/photos/dup.jpg", "fp1"},
		{"/backup/dup2.jpg", "fp1"},
		{"/photos/lonely.jpg", "fp9"},
	}
	for _, f := range files {
		err := db.UpsertScanned(&store.MediaFile{
			Path: f.path, Root: filepath.Dir(f.path), RelPath: filepath.Base(f.path),
			SizeBytes: 1000, MtimeUnix: 1234567890, Fingerprint: f.fp,
		})
		if err != nil {
			t.Fatalf("failed to seed %s: %v", f.path, err)
		}
	}

	err = db.Transaction(func(tx *sql.Tx) error {
		if err := db.MarkOriginalTx(tx, "/photos/orig.jpg", ""); err != nil {
			return err
		}
		if err := db.MarkVerifiedDuplicateTx(tx, "/photos/dup.jpg", "/photos/orig.jpg", ""); err != nil {
			return err
		}
		if err := db.MarkVerifiedDuplicateTx(tx, "/backup/dup2.jpg", "/photos/orig.jpg", ""); err != nil {
			return err
		}
		return db.UpsertGroupTx(tx, &store.DuplicateGroup{
			Fingerprint: "fp1", OriginalPath: "/photos/orig.jpg",
			Roots: "/backup,/photos", CrossRoot: true,
			MemberCount: 3, TotalBytes: 3000,
			VerificationStatus: "binary_verified",
		})
	})
	if err != nil {
		t.Fatalf("failed to classify seed data: %v", err)
	}

	if err := db.FlagForDeletion("/photos/dup.jpg", ""); err != nil {
		t.Fatalf("failed to flag: %v", err)
	}
	if err := db.FlagForDeletion("/backup/dup2.jpg", ""); err != nil {
		t.Fatalf("failed to flag: %v", err)
	}
	if err := db.MarkMoved("/backup/dup2.jpg", "/quarantine/dup2.jpg", ""); err != nil {
		t.Fatalf("failed to mark moved: %v", err)
	}

	return db
}

func TestGenerateSummaryReport(t *testing.T) {
	db := seedStore(t)

	r, err := GenerateSummaryReport(db, "")
	if err != nil {
		t.Fatalf("failed to generate report: %v", err)
	}

	if r.FilesTracked != 4 {
		t.Errorf("expected 4 files tracked, got %d", r.FilesTracked)
	}
	if r.Originals != 1 {
		t.Errorf("expected 1 original, got %d", r.Originals)
	}
	if r.Duplicates != 2 {
		t.Errorf("expected 2 duplicates, got %d", r.Duplicates)
	}
	if r.FlaggedFiles != 1 {
		t.Errorf("expected 1 flagged (not yet moved), got %d", r.FlaggedFiles)
	}
	if r.MovedFiles != 1 {
		t.Errorf("expected 1 moved, got %d", r.MovedFiles)
	}
	if r.DuplicateGroups != 1 || r.CrossRootGroups != 1 {
		t.Errorf("expected 1 cross-root group, got %d/%d", r.DuplicateGroups, r.CrossRootGroups)
	}
	if r.RecoverableBytes != 1000 {
		t.Errorf("expected 1000 recoverable bytes, got %d", r.RecoverableBytes)
	}
	if r.FreedBytes != 1000 {
		t.Errorf("expected 1000 freed bytes, got %d", r.FreedBytes)
	}
	if len(r.TopGroups) != 1 {
		t.Fatalf("expected 1 top group, got %d", len(r.TopGroups))
	}
	if r.TopGroups[0].OriginalPath != "/photos/orig.jpg" {
		t.Errorf("unexpected top group original: %s", r.TopGroups[0].OriginalPath)
	}
}

func TestWriteMarkdownReport(t *testing.T) {
	db := seedStore(t)

	r, err := GenerateSummaryReport(db, "")
	if err != nil {
		t.Fatalf("failed to generate report: %v", err)
	}

	outPath := filepath.Join(t.TempDir(), "reports", "summary.md")
	if err := WriteMarkdownReport(r, outPath); err != nil {
		t.Fatalf("failed to write report: %v", err)
	}

	content, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("failed to read report: %v", err)
	}

	md := string(content)
	for _, want := range []string{
		"# Photo Library Cleaner",
		"| Files Tracked | 4 |",
		"Cross-Root Groups | 1",
		"/photos/orig.jpg",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("report missing %q", want)
		}
	}
}

func TestSummaryReportIsJSONSerializable(t *testing.T) {
	db := seedStore(t)

	r, err := GenerateSummaryReport(db, "")
	if err != nil {
		t.Fatalf("failed to generate report: %v", err)
	}

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("failed to marshal report: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("failed to unmarshal report: %v", err)
	}
	if decoded["files_tracked"].(float64) != 4 {
		t.Errorf("unexpected files_tracked in JSON: %v", decoded["files_tracked"])
	}
}

func TestEventLoggerWritesJSONL(t *testing.T) {
	dir := t.TempDir()

	logger, err := NewEventLogger(dir, LevelInfo)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}

	logger.LogGroup("fp1", 3)
	logger.LogCollision("fp2", "/photos/odd.jpg")
	logger.LogScan("/photos/quiet.jpg", 100, true) // debug level, filtered out

	if err := logger.Close(); err != nil {
		t.Fatalf("failed to close logger: %v", err)
	}

	f, err := os.Open(logger.Path())
	if err != nil {
		t.Fatalf("failed to open event log: %v", err)
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e Event
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			t.Fatalf("invalid JSONL line: %v", err)
		}
		events = append(events, e)
	}

	if len(events) != 2 {
		t.Fatalf("expected 2 events (debug filtered), got %d", len(events))
	}
	if events[0].Event != EventGroup || events[1].Event != EventCollision {
		t.Errorf("unexpected event order: %s, %s", events[0].Event, events[1].Event)
	}
	if events[1].Fingerprint != "fp2" {
		t.Errorf("expected fingerprint fp2, got %s", events[1].Fingerprint)
	}
}

func TestEventLoggerRecordsCaptureDate(t *testing.T) {
	dir := t.TempDir()

	logger, err := NewEventLogger(dir, LevelDebug)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}

	captured := time.Date(2016, 7, 4, 9, 30, 0, 0, time.UTC)
	logger.LogMeta("/photos/dated.jpg", &captured, nil)
	logger.LogMeta("/photos/dateless.png", nil, nil)

	if err := logger.Close(); err != nil {
		t.Fatalf("failed to close logger: %v", err)
	}

	data, err := os.ReadFile(logger.Path())
	if err != nil {
		t.Fatalf("failed to read event log: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 events, got %d", len(lines))
	}

	var dated Event
	if err := json.Unmarshal([]byte(lines[0]), &dated); err != nil {
		t.Fatalf("invalid JSONL line: %v", err)
	}
	if dated.Event != EventMeta {
		t.Errorf("expected meta event, got %s", dated.Event)
	}
	if dated.Extra["capture_date"] != "2016-07-04T09:30:00Z" {
		t.Errorf("unexpected capture date: %q", dated.Extra["capture_date"])
	}

	var dateless Event
	if err := json.Unmarshal([]byte(lines[1]), &dateless); err != nil {
		t.Fatalf("invalid JSONL line: %v", err)
	}
	if _, ok := dateless.Extra["capture_date"]; ok {
		t.Error("dateless file must not record a capture date")
	}
}

func TestNullLoggerIsSafe(t *testing.T) {
	logger := NullLogger()

	// Every method must be a no-op on the nil logger
	if err := logger.LogGroup("fp", 2); err != nil {
		t.Errorf("nil logger returned error: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("nil logger close returned error: %v", err)
	}
	if logger.Path() != "" {
		t.Errorf("nil logger path should be empty, got %q", logger.Path())
	}
}
