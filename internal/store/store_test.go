package store

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/franz/photo-janitor/internal/util"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return store
}

func scannedFile(t *testing.T, s *Store, path, root, relPath, fingerprint string) {
	t.Helper()

	err := s.UpsertScanned(&MediaFile{
		Path:        path,
		Root:        root,
		RelPath:     relPath,
		SizeBytes:   1024,
		MtimeUnix:   1234567890,
		Fingerprint: fingerprint,
	})
	if err != nil {
		t.Fatalf("failed to upsert %s: %v", path, err)
	}
}

func TestStoreOpenAndMigrate(t *testing.T) {
	store := openTestStore(t)

	version, err := store.getSchemaVersion()
	if err != nil {
		t.Fatalf("failed to get schema version: %v", err)
	}
	if version != currentSchemaVersion {
		t.Errorf("expected schema version %d, got %d", currentSchemaVersion, version)
	}

	tables := []string{"media_files", "duplicate_groups", "transitions", "schema_version"}
	for _, table := range tables {
		var count int
		err := store.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
		if err != nil {
			t.Fatalf("failed to query table %s: %v", table, err)
		}
		if count != 1 {
			t.Errorf("expected table %s to exist", table)
		}
	}

	// Verify v2 indexes exist
	v2Indexes := []string{
		"idx_transitions_path",
		"idx_media_files_role_flags",
		"idx_media_files_flagged",
	}
	for _, index := range v2Indexes {
		var count int
		err := store.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='index' AND name=?", index).Scan(&count)
		if err != nil {
			t.Fatalf("failed to query index %s: %v", index, err)
		}
		if count != 1 {
			t.Errorf("expected index %s to exist (schema v2)", index)
		}
	}
}

func TestUpsertScannedAndRetrieve(t *testing.T) {
	store := openTestStore(t)

	captureDate := time.Date(2019, 7, 14, 12, 30, 0, 0, time.UTC)
	err := store.UpsertScanned(&MediaFile{
		Path:        "/photos/2019/img001.jpg",
		Root:        "/photos",
		RelPath:     "2019/img001.jpg",
		SizeBytes:   2048,
		MtimeUnix:   1563100200,
		CaptureDate: &captureDate,
		Fingerprint: "abc123",
	})
	if err != nil {
		t.Fatalf("failed to upsert file: %v", err)
	}

	f, err := store.GetFileByPath("/photos/2019/img001.jpg")
	if err != nil {
		t.Fatalf("failed to retrieve file: %v", err)
	}
	if f == nil {
		t.Fatal("expected to retrieve file, got nil")
	}

	if f.Role != RoleUnclassified {
		t.Errorf("expected role unclassified, got %s", f.Role)
	}
	if f.Fingerprint != "abc123" {
		t.Errorf("expected fingerprint abc123, got %s", f.Fingerprint)
	}
	if f.CaptureDate == nil || !f.CaptureDate.Equal(captureDate) {
		t.Errorf("expected capture date %v, got %v", captureDate, f.CaptureDate)
	}
	if f.LastTransition != TransitionScanned {
		t.Errorf("expected last transition %s, got %s", TransitionScanned, f.LastTransition)
	}
}

func TestUpsertScannedPersistsUndecodable(t *testing.T) {
	store := openTestStore(t)

	err := store.UpsertScanned(&MediaFile{
		Path: "/photos/broken.jpg", Root: "/photos", RelPath: "broken.jpg",
		SizeBytes: 512, MtimeUnix: 1234567890, Undecodable: true,
	})
	if err != nil {
		t.Fatalf("failed to upsert file: %v", err)
	}

	f, err := store.GetFileByPath("/photos/broken.jpg")
	if err != nil {
		t.Fatalf("failed to retrieve file: %v", err)
	}
	if !f.Undecodable {
		t.Error("expected undecodable marker persisted")
	}
	if f.Fingerprint != "" {
		t.Errorf("undecodable file must have no fingerprint, got %q", f.Fingerprint)
	}

	// A forced rescan clears the marker along with the other derived state
	if err := store.ClearScanDerivedState(); err != nil {
		t.Fatalf("failed to clear scan state: %v", err)
	}
	f, _ = store.GetFileByPath("/photos/broken.jpg")
	if f.Undecodable {
		t.Error("expected undecodable marker cleared by rescan reset")
	}
}

func TestUpsertScannedResetsClassificationOnChange(t *testing.T) {
	store := openTestStore(t)

	scannedFile(t, store, "/photos/a.jpg", "/photos", "a.jpg", "fp1")
	scannedFile(t, store, "/photos/b.jpg", "/photos", "b.jpg", "fp1")

	// Classify the pair
	err := store.Transaction(func(tx *sql.Tx) error {
		if err := store.MarkOriginalTx(tx, "/photos/a.jpg", ""); err != nil {
			return err
		}
		return store.MarkVerifiedDuplicateTx(tx, "/photos/b.jpg", "/photos/a.jpg", "")
	})
	if err != nil {
		t.Fatalf("failed to classify: %v", err)
	}

	// Re-scan b with changed content: its verdict must be reset
	err = store.UpsertScanned(&MediaFile{
		Path: "/photos/b.jpg", Root: "/photos", RelPath: "b.jpg",
		SizeBytes: 9999, MtimeUnix: 1234567999, Fingerprint: "fp2",
	})
	if err != nil {
		t.Fatalf("failed to re-upsert: %v", err)
	}

	f, _ := store.GetFileByPath("/photos/b.jpg")
	if f.Role != RoleUnclassified {
		t.Errorf("expected changed file reset to unclassified, got %s", f.Role)
	}
	if f.BinaryVerified {
		t.Error("expected binary_verified cleared on content change")
	}
	if f.OriginalPath != "" {
		t.Errorf("expected original_path cleared, got %s", f.OriginalPath)
	}
}

func TestOriginalCannotBeFlagged(t *testing.T) {
	store := openTestStore(t)

	scannedFile(t, store, "/photos/keep.jpg", "/photos", "keep.jpg", "fp1")

	err := store.Transaction(func(tx *sql.Tx) error {
		return store.MarkOriginalTx(tx, "/photos/keep.jpg", "")
	})
	if err != nil {
		t.Fatalf("failed to mark original: %v", err)
	}

	err = store.FlagForDeletion("/photos/keep.jpg", "should fail")
	if !errors.Is(err, util.ErrOriginalProtected) {
		t.Errorf("expected ErrOriginalProtected, got %v", err)
	}

	f, _ := store.GetFileByPath("/photos/keep.jpg")
	if f.DeletionFlagged {
		t.Error("original must never carry a deletion flag")
	}
}

func TestDuplicateCannotReferenceItself(t *testing.T) {
	store := openTestStore(t)

	scannedFile(t, store, "/photos/x.jpg", "/photos", "x.jpg", "fp1")

	err := store.Transaction(func(tx *sql.Tx) error {
		return store.MarkVerifiedDuplicateTx(tx, "/photos/x.jpg", "/photos/x.jpg", "")
	})
	if !errors.Is(err, util.ErrSelfReference) {
		t.Fatalf("expected ErrSelfReference, got %v", err)
	}
}

func TestFlagIsIdempotent(t *testing.T) {
	store := openTestStore(t)

	scannedFile(t, store, "/photos/orig.jpg", "/photos", "orig.jpg", "fp1")
	scannedFile(t, store, "/photos/dup.jpg", "/photos", "dup.jpg", "fp1")

	err := store.Transaction(func(tx *sql.Tx) error {
		if err := store.MarkOriginalTx(tx, "/photos/orig.jpg", ""); err != nil {
			return err
		}
		if err := store.MarkVerifiedDuplicateTx(tx, "/photos/dup.jpg", "/photos/orig.jpg", ""); err != nil {
			return err
		}
		return store.UpsertGroupTx(tx, &DuplicateGroup{
			Fingerprint: "fp1", OriginalPath: "/photos/orig.jpg",
			Roots: "/photos", MemberCount: 2, TotalBytes: 2048,
			VerificationStatus: "binary_verified",
		})
	})
	if err != nil {
		t.Fatalf("failed to set up group: %v", err)
	}

	if err := store.FlagForDeletion("/photos/dup.jpg", "dup of orig"); err != nil {
		t.Fatalf("first flag failed: %v", err)
	}
	before, _ := store.CountTransitions()

	// Flagging again must be a no-op, including the audit ledger
	if err := store.FlagForDeletion("/photos/dup.jpg", "dup of orig"); err != nil {
		t.Fatalf("second flag failed: %v", err)
	}
	after, _ := store.CountTransitions()
	if after != before {
		t.Errorf("expected no new transitions on repeated flag, got %d -> %d", before, after)
	}

	g, _ := store.GetGroupByFingerprint("fp1")
	if g.FilesFlagged != 1 {
		t.Errorf("expected files_flagged 1, got %d", g.FilesFlagged)
	}
}

func TestMarkMovedKeepsHistoricalRow(t *testing.T) {
	store := openTestStore(t)

	scannedFile(t, store, "/photos/orig.jpg", "/photos", "orig.jpg", "fp1")
	scannedFile(t, store, "/photos/dup.jpg", "/photos", "dup.jpg", "fp1")

	err := store.Transaction(func(tx *sql.Tx) error {
		if err := store.MarkOriginalTx(tx, "/photos/orig.jpg", ""); err != nil {
			return err
		}
		if err := store.MarkVerifiedDuplicateTx(tx, "/photos/dup.jpg", "/photos/orig.jpg", ""); err != nil {
			return err
		}
		return store.UpsertGroupTx(tx, &DuplicateGroup{
			Fingerprint: "fp1", OriginalPath: "/photos/orig.jpg",
			Roots: "/photos", MemberCount: 2, TotalBytes: 2048,
			VerificationStatus: "binary_verified",
		})
	})
	if err != nil {
		t.Fatalf("failed to set up group: %v", err)
	}

	if err := store.FlagForDeletion("/photos/dup.jpg", ""); err != nil {
		t.Fatalf("failed to flag: %v", err)
	}
	if err := store.MarkMoved("/photos/dup.jpg", "/quarantine/dup.jpg", "moved to quarantine"); err != nil {
		t.Fatalf("failed to mark moved: %v", err)
	}

	f, _ := store.GetFileByPath("/photos/dup.jpg")
	if f == nil {
		t.Fatal("moved file must survive as a historical row")
	}
	if !f.Deleted {
		t.Error("expected deleted = true")
	}
	if f.QuarantinePath != "/quarantine/dup.jpg" {
		t.Errorf("expected quarantine path recorded, got %q", f.QuarantinePath)
	}

	// Moved files no longer appear in phase selections
	flagged, _ := store.GetFlaggedNotMoved()
	if len(flagged) != 0 {
		t.Errorf("expected no flagged-not-moved files, got %d", len(flagged))
	}

	g, _ := store.GetGroupByFingerprint("fp1")
	if g.FilesMoved != 1 {
		t.Errorf("expected files_moved 1, got %d", g.FilesMoved)
	}

	moved, _ := store.CountMoved()
	if moved != 1 {
		t.Errorf("expected 1 moved file, got %d", moved)
	}
}

func TestMarkMoveErrorKeepsFlag(t *testing.T) {
	store := openTestStore(t)

	scannedFile(t, store, "/photos/orig.jpg", "/photos", "orig.jpg", "fp1")
	scannedFile(t, store, "/photos/dup.jpg", "/photos", "dup.jpg", "fp1")

	err := store.Transaction(func(tx *sql.Tx) error {
		if err := store.MarkOriginalTx(tx, "/photos/orig.jpg", ""); err != nil {
			return err
		}
		return store.MarkVerifiedDuplicateTx(tx, "/photos/dup.jpg", "/photos/orig.jpg", "")
	})
	if err != nil {
		t.Fatalf("failed to classify: %v", err)
	}

	if err := store.FlagForDeletion("/photos/dup.jpg", ""); err != nil {
		t.Fatalf("failed to flag: %v", err)
	}
	if err := store.MarkMoveError("/photos/dup.jpg", "device busy"); err != nil {
		t.Fatalf("failed to mark move error: %v", err)
	}

	// A failed move stays flagged so the next execute run retries it
	flagged, _ := store.GetFlaggedNotMoved()
	if len(flagged) != 1 {
		t.Fatalf("expected 1 flagged-not-moved file after error, got %d", len(flagged))
	}

	errCount, _ := store.CountMoveErrors()
	if errCount != 1 {
		t.Errorf("expected 1 move error, got %d", errCount)
	}
}

func TestTransitionLedgerIsAppendOnly(t *testing.T) {
	store := openTestStore(t)

	scannedFile(t, store, "/photos/orig.jpg", "/photos", "orig.jpg", "fp1")
	scannedFile(t, store, "/photos/dup.jpg", "/photos", "dup.jpg", "fp1")

	err := store.Transaction(func(tx *sql.Tx) error {
		if err := store.MarkOriginalTx(tx, "/photos/orig.jpg", ""); err != nil {
			return err
		}
		return store.MarkVerifiedDuplicateTx(tx, "/photos/dup.jpg", "/photos/orig.jpg", "")
	})
	if err != nil {
		t.Fatalf("failed to classify: %v", err)
	}
	if err := store.FlagForDeletion("/photos/dup.jpg", ""); err != nil {
		t.Fatalf("failed to flag: %v", err)
	}
	if err := store.MarkMoved("/photos/dup.jpg", "/q/dup.jpg", ""); err != nil {
		t.Fatalf("failed to mark moved: %v", err)
	}

	transitions, err := store.GetTransitions("/photos/dup.jpg")
	if err != nil {
		t.Fatalf("failed to load transitions: %v", err)
	}

	want := []string{
		TransitionScanned,
		TransitionVerifiedDuplicate,
		TransitionFlagged,
		TransitionMoved,
	}
	if len(transitions) != len(want) {
		t.Fatalf("expected %d transitions, got %d", len(want), len(transitions))
	}
	for i, w := range want {
		if transitions[i].Transition != w {
			t.Errorf("transition %d: expected %s, got %s", i, w, transitions[i].Transition)
		}
	}
}

func TestTransitionOnMissingFile(t *testing.T) {
	store := openTestStore(t)

	err := store.FlagForDeletion("/photos/nope.jpg", "")
	if !errors.Is(err, util.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestClearScanDerivedState(t *testing.T) {
	store := openTestStore(t)

	scannedFile(t, store, "/photos/orig.jpg", "/photos", "orig.jpg", "fp1")
	scannedFile(t, store, "/photos/dup.jpg", "/photos", "dup.jpg", "fp1")
	scannedFile(t, store, "/photos/moved.jpg", "/photos", "moved.jpg", "fp2")

	err := store.Transaction(func(tx *sql.Tx) error {
		if err := store.MarkOriginalTx(tx, "/photos/orig.jpg", ""); err != nil {
			return err
		}
		if err := store.MarkVerifiedDuplicateTx(tx, "/photos/dup.jpg", "/photos/orig.jpg", ""); err != nil {
			return err
		}
		return store.UpsertGroupTx(tx, &DuplicateGroup{
			Fingerprint: "fp1", OriginalPath: "/photos/orig.jpg",
			Roots: "/photos", MemberCount: 2, TotalBytes: 2048,
			VerificationStatus: "binary_verified",
		})
	})
	if err != nil {
		t.Fatalf("failed to set up: %v", err)
	}

	if err := store.FlagForDeletion("/photos/moved.jpg", ""); err != nil {
		t.Fatalf("failed to flag: %v", err)
	}
	if err := store.MarkMoved("/photos/moved.jpg", "/q/moved.jpg", ""); err != nil {
		t.Fatalf("failed to mark moved: %v", err)
	}

	if err := store.ClearScanDerivedState(); err != nil {
		t.Fatalf("failed to clear scan state: %v", err)
	}

	// Active rows reset, groups dropped
	orig, _ := store.GetFileByPath("/photos/orig.jpg")
	if orig.Role != RoleUnclassified || orig.Fingerprint != "" || orig.BinaryVerified {
		t.Errorf("expected orig fully reset, got role=%s fp=%q verified=%t",
			orig.Role, orig.Fingerprint, orig.BinaryVerified)
	}

	groups, _ := store.CountGroups()
	if groups != 0 {
		t.Errorf("expected groups cleared, got %d", groups)
	}

	// Moved rows survive as history
	movedRow, _ := store.GetFileByPath("/photos/moved.jpg")
	if movedRow == nil || !movedRow.Deleted {
		t.Error("expected moved row preserved through rescan reset")
	}
}

func TestGroupUpsertIsIdempotent(t *testing.T) {
	store := openTestStore(t)

	group := &DuplicateGroup{
		Fingerprint: "fp1", OriginalPath: "/photos/a.jpg",
		Roots: "/photos,/backup", CrossRoot: true,
		MemberCount: 3, TotalBytes: 3072,
		VerificationStatus: "binary_verified",
	}

	for i := 0; i < 2; i++ {
		err := store.Transaction(func(tx *sql.Tx) error {
			return store.UpsertGroupTx(tx, group)
		})
		if err != nil {
			t.Fatalf("upsert %d failed: %v", i, err)
		}
	}

	count, _ := store.CountGroups()
	if count != 1 {
		t.Errorf("expected 1 group after repeated upsert, got %d", count)
	}

	crossRoot, _ := store.CountCrossRootGroups()
	if crossRoot != 1 {
		t.Errorf("expected 1 cross-root group, got %d", crossRoot)
	}

	g, _ := store.GetGroupByFingerprint("fp1")
	if g.MemberCount != 3 || !g.CrossRoot {
		t.Errorf("unexpected group state: %+v", g)
	}
}
