package store

import (
	"database/sql"
	"fmt"
	"time"
)

const mediaFileColumns = `
	id, path, root, rel_path, size_bytes, mtime_unix,
	capture_date, COALESCE(fingerprint, ''), binary_verified, role,
	deletion_flagged, deleted, COALESCE(original_path, ''),
	COALESCE(quarantine_path, ''), COALESCE(note, ''),
	first_seen_at, last_transition, last_transition_at, undecodable`

func scanMediaFile(row interface{ Scan(...any) error }) (*MediaFile, error) {
	f := &MediaFile{}
	var captureDate sql.NullString
	var verified, flagged, deleted, undecodable int

	err := row.Scan(
		&f.ID, &f.Path, &f.Root, &f.RelPath, &f.SizeBytes, &f.MtimeUnix,
		&captureDate, &f.Fingerprint, &verified, &f.Role,
		&flagged, &deleted, &f.OriginalPath,
		&f.QuarantinePath, &f.Note,
		&f.FirstSeenAt, &f.LastTransition, &f.LastTransitionAt, &undecodable,
	)
	if err != nil {
		return nil, err
	}

	f.BinaryVerified = verified == 1
	f.DeletionFlagged = flagged == 1
	f.Deleted = deleted == 1
	f.Undecodable = undecodable == 1

	if captureDate.Valid && captureDate.String != "" {
		if t, perr := time.Parse(time.RFC3339, captureDate.String); perr == nil {
			f.CaptureDate = &t
		}
	}

	return f, nil
}

func captureDateValue(f *MediaFile) any {
	if f.CaptureDate == nil {
		return nil
	}
	return f.CaptureDate.UTC().Format(time.RFC3339)
}

// UpsertScanned inserts a newly observed file, or refreshes the scan-derived
// fields of an existing row whose content changed. Classification fields are
// reset on update because a changed file invalidates any prior verdict.
// The transition ledger records the observation.
func (s *Store) UpsertScanned(f *MediaFile) error {
	return s.Transaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO media_files
				(path, root, rel_path, size_bytes, mtime_unix, capture_date,
				 fingerprint, undecodable, role, last_transition, last_transition_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, 'unclassified', ?, CURRENT_TIMESTAMP)
			ON CONFLICT(path) DO UPDATE SET
				root = excluded.root,
				rel_path = excluded.rel_path,
				size_bytes = excluded.size_bytes,
				mtime_unix = excluded.mtime_unix,
				capture_date = excluded.capture_date,
				fingerprint = excluded.fingerprint,
				undecodable = excluded.undecodable,
				binary_verified = 0,
				role = 'unclassified',
				original_path = NULL,
				last_transition = excluded.last_transition,
				last_transition_at = CURRENT_TIMESTAMP
		`, f.Path, f.Root, f.RelPath, f.SizeBytes, f.MtimeUnix, captureDateValue(f),
			nullableString(f.Fingerprint), boolToInt(f.Undecodable), TransitionScanned)
		if err != nil {
			return fmt.Errorf("failed to upsert file: %w", err)
		}

		return appendTransitionTx(tx, f.Path, TransitionScanned, "")
	})
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// GetFileByPath retrieves a file by its absolute path
func (s *Store) GetFileByPath(path string) (*MediaFile, error) {
	row := s.db.QueryRow(`SELECT `+mediaFileColumns+` FROM media_files WHERE path = ?`, path)

	f, err := scanMediaFile(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get file: %w", err)
	}

	return f, nil
}

func (s *Store) queryFiles(query string, args ...any) ([]*MediaFile, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query files: %w", err)
	}
	defer rows.Close()

	var files []*MediaFile
	for rows.Next() {
		f, err := scanMediaFile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan file: %w", err)
		}
		files = append(files, f)
	}

	return files, rows.Err()
}

// GetFilesByFingerprint returns all not-yet-moved files sharing a fingerprint
func (s *Store) GetFilesByFingerprint(fingerprint string) ([]*MediaFile, error) {
	return s.queryFiles(`
		SELECT `+mediaFileColumns+` FROM media_files
		WHERE fingerprint = ? AND deleted = 0
		ORDER BY path
	`, fingerprint)
}

// GetDuplicatesToFlag is the flag phase selection: verified duplicates with
// no active deletion flag that are still on disk
func (s *Store) GetDuplicatesToFlag() ([]*MediaFile, error) {
	return s.queryFiles(`
		SELECT ` + mediaFileColumns + ` FROM media_files
		WHERE role = 'verified_duplicate'
		  AND binary_verified = 1
		  AND deletion_flagged = 0
		  AND deleted = 0
		ORDER BY path
	`)
}

// GetFlaggedNotMoved is the execute phase selection: flagged files that have
// not yet been moved to quarantine
func (s *Store) GetFlaggedNotMoved() ([]*MediaFile, error) {
	return s.queryFiles(`
		SELECT ` + mediaFileColumns + ` FROM media_files
		WHERE deletion_flagged = 1 AND deleted = 0
		ORDER BY path
	`)
}

// GetActiveFingerprinted returns all files still on disk that carry a
// fingerprint; this is the scan phase's grouping population
func (s *Store) GetActiveFingerprinted() ([]*MediaFile, error) {
	return s.queryFiles(`
		SELECT ` + mediaFileColumns + ` FROM media_files
		WHERE deleted = 0 AND fingerprint IS NOT NULL
		ORDER BY path
	`)
}

// GetAllFiles returns every tracked file, including historical (moved) rows
func (s *Store) GetAllFiles() ([]*MediaFile, error) {
	return s.queryFiles(`SELECT ` + mediaFileColumns + ` FROM media_files ORDER BY path`)
}

// CountFilesByRole returns the number of files with a given role
func (s *Store) CountFilesByRole(role Role) (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM media_files WHERE role = ?", string(role)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count files: %w", err)
	}
	return count, nil
}

// CountFiles returns the total number of tracked files
func (s *Store) CountFiles() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM media_files").Scan(&count)
	return count, err
}

// CountFlagged returns the number of files currently flagged and not moved
func (s *Store) CountFlagged() (int, error) {
	var count int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM media_files WHERE deletion_flagged = 1 AND deleted = 0").Scan(&count)
	return count, err
}

// CountMoved returns the number of files moved to quarantine
func (s *Store) CountMoved() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM media_files WHERE deleted = 1").Scan(&count)
	return count, err
}

// CountMoveErrors returns the number of files whose last transition was a
// failed quarantine move; these stay flagged and retry on the next execute run
func (s *Store) CountMoveErrors() (int, error) {
	var count int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM media_files WHERE last_transition = ? AND deleted = 0",
		TransitionMoveError).Scan(&count)
	return count, err
}

// SumFlaggedBytes returns the total size of files flagged but not yet moved
func (s *Store) SumFlaggedBytes() (int64, error) {
	var total sql.NullInt64
	err := s.db.QueryRow(
		"SELECT SUM(size_bytes) FROM media_files WHERE deletion_flagged = 1 AND deleted = 0").Scan(&total)
	return total.Int64, err
}

// SumMovedBytes returns the total size of files moved to quarantine
func (s *Store) SumMovedBytes() (int64, error) {
	var total sql.NullInt64
	err := s.db.QueryRow(
		"SELECT SUM(size_bytes) FROM media_files WHERE deleted = 1").Scan(&total)
	return total.Int64, err
}

// ClearScanDerivedState resets classification for a forced full rescan.
// Rows are kept (the store never forgets a path); only verdicts derived from
// a previous scan are cleared. Files already moved to quarantine stay
// untouched as historical records, and duplicate groups are rebuilt.
func (s *Store) ClearScanDerivedState() error {
	return s.Transaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			UPDATE media_files SET
				fingerprint = NULL,
				undecodable = 0,
				binary_verified = 0,
				role = 'unclassified',
				deletion_flagged = 0,
				original_path = NULL,
				last_transition = ?,
				last_transition_at = CURRENT_TIMESTAMP
			WHERE deleted = 0
		`, TransitionRescanReset)
		if err != nil {
			return fmt.Errorf("failed to reset file state: %w", err)
		}

		if _, err := tx.Exec(`DELETE FROM duplicate_groups`); err != nil {
			return fmt.Errorf("failed to clear duplicate groups: %w", err)
		}

		return appendTransitionTx(tx, "*", TransitionRescanReset, "forced full rescan")
	})
}
