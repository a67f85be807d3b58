package store

import (
	"database/sql"
	"fmt"

	"github.com/franz/photo-janitor/internal/util"
)

// Transition types form the fixed, enumerated set of mutations a MediaFile
// can undergo. Every mutation carries exactly one of these tags; there is no
// free-form field update path.
const (
	TransitionScanned           = "SCANNED"
	TransitionMarkedOriginal    = "MARKED_AS_ORIGINAL"
	TransitionVerifiedDuplicate = "BINARY_VERIFIED_DUPLICATE"
	TransitionFlagged           = "FLAGGED_FOR_DELETION"
	TransitionMoved             = "MOVED_TO_QUARANTINE"
	TransitionMoveError         = "DELETION_ERROR"
	TransitionRescanReset       = "RESCAN_RESET"
)

// appendTransitionTx writes one row to the append-only audit ledger
func appendTransitionTx(tx *sql.Tx, path, transition, detail string) error {
	_, err := tx.Exec(`
		INSERT INTO transitions (path, transition, detail)
		VALUES (?, ?, ?)
	`, path, transition, detail)
	if err != nil {
		return fmt.Errorf("failed to append transition: %w", err)
	}
	return nil
}

// GetTransitions returns the full audit history for a path, oldest first
func (s *Store) GetTransitions(path string) ([]*TransitionRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, path, transition, COALESCE(detail, ''), created_at
		FROM transitions
		WHERE path = ?
		ORDER BY id
	`, path)
	if err != nil {
		return nil, fmt.Errorf("failed to query transitions: %w", err)
	}
	defer rows.Close()

	var records []*TransitionRecord
	for rows.Next() {
		r := &TransitionRecord{}
		if err := rows.Scan(&r.ID, &r.Path, &r.Transition, &r.Detail, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transition: %w", err)
		}
		records = append(records, r)
	}

	return records, rows.Err()
}

// CountTransitions returns the total number of ledger rows
func (s *Store) CountTransitions() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM transitions").Scan(&count)
	return count, err
}

func transitionFileTx(tx *sql.Tx, path, transition, detail, set string, args ...any) error {
	args = append([]any{transition}, args...)
	args = append(args, path)

	res, err := tx.Exec(`
		UPDATE media_files SET
			last_transition = ?,
			last_transition_at = CURRENT_TIMESTAMP`+set+`
		WHERE path = ?`, args...)
	if err != nil {
		return fmt.Errorf("failed to apply %s: %w", transition, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", path, util.ErrNotFound)
	}

	return appendTransitionTx(tx, path, transition, detail)
}

// MarkOriginalTx designates the file as the canonical copy of its clique.
// An original never carries a deletion flag, so any stale flag is cleared.
func (s *Store) MarkOriginalTx(tx *sql.Tx, path, note string) error {
	return transitionFileTx(tx, path, TransitionMarkedOriginal, note, `,
			role = 'original',
			binary_verified = 1,
			deletion_flagged = 0,
			original_path = NULL,
			note = ?`, note)
}

// MarkVerifiedDuplicateTx records the file as byte-identical to its original.
// A file never references itself.
func (s *Store) MarkVerifiedDuplicateTx(tx *sql.Tx, path, originalPath, note string) error {
	if path == originalPath {
		return fmt.Errorf("%s: %w", path, util.ErrSelfReference)
	}

	return transitionFileTx(tx, path, TransitionVerifiedDuplicate, note, `,
			role = 'verified_duplicate',
			binary_verified = 1,
			original_path = ?,
			note = ?`, originalPath, note)
}

// FlagForDeletion marks a verified duplicate for the execute phase. It is a
// hard invariant, not just a query filter, that an original is never flagged:
// the role is re-read inside the same transaction and the call fails with
// ErrOriginalProtected rather than flagging blindly.
func (s *Store) FlagForDeletion(path, note string) error {
	return s.Transaction(func(tx *sql.Tx) error {
		var role string
		var flagged, deleted int
		err := tx.QueryRow(`
			SELECT role, deletion_flagged, deleted FROM media_files WHERE path = ?
		`, path).Scan(&role, &flagged, &deleted)
		if err == sql.ErrNoRows {
			return fmt.Errorf("%s: %w", path, util.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to read role: %w", err)
		}

		if Role(role) == RoleOriginal {
			return fmt.Errorf("%s: %w", path, util.ErrOriginalProtected)
		}
		if flagged == 1 || deleted == 1 {
			// Already flagged or already moved; flagging is idempotent
			return nil
		}

		if err := transitionFileTx(tx, path, TransitionFlagged, note, `,
			deletion_flagged = 1,
			note = ?`, note); err != nil {
			return err
		}
		return incrementGroupFlaggedTx(tx, path)
	})
}

// MarkMoved records a completed move to quarantine. The row survives as a
// historical record; deleted = 1 always carries the quarantine destination.
func (s *Store) MarkMoved(path, quarantinePath, note string) error {
	return s.Transaction(func(tx *sql.Tx) error {
		if err := transitionFileTx(tx, path, TransitionMoved, note, `,
			deleted = 1,
			quarantine_path = ?,
			note = ?`, quarantinePath, note); err != nil {
			return err
		}
		return incrementGroupMovedTx(tx, path)
	})
}

// MarkMoveError records an exhausted-retries move failure. The deletion flag
// stays set so a later execute run retries without re-running scan or flag.
func (s *Store) MarkMoveError(path, note string) error {
	return s.Transaction(func(tx *sql.Tx) error {
		return transitionFileTx(tx, path, TransitionMoveError, note, `,
			note = ?`, note)
	})
}

// incrementGroupMovedTx bumps the moved counter on the file's group, if any
func incrementGroupMovedTx(tx *sql.Tx, path string) error {
	_, err := tx.Exec(`
		UPDATE duplicate_groups SET
			files_moved = files_moved + 1,
			last_update_type = ?,
			last_update_at = CURRENT_TIMESTAMP
		WHERE fingerprint = (SELECT fingerprint FROM media_files WHERE path = ?)
	`, TransitionMoved, path)
	if err != nil {
		return fmt.Errorf("failed to update group move count: %w", err)
	}
	return nil
}
