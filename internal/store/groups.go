package store

import (
	"database/sql"
	"fmt"
)

const duplicateGroupColumns = `
	id, fingerprint, original_path, roots, cross_root, member_count,
	total_bytes, files_flagged, files_moved, verification_status,
	created_at, COALESCE(last_update_type, ''), last_update_at`

func scanDuplicateGroup(row interface{ Scan(...any) error }) (*DuplicateGroup, error) {
	g := &DuplicateGroup{}
	var crossRoot int

	err := row.Scan(
		&g.ID, &g.Fingerprint, &g.OriginalPath, &g.Roots, &crossRoot, &g.MemberCount,
		&g.TotalBytes, &g.FilesFlagged, &g.FilesMoved, &g.VerificationStatus,
		&g.CreatedAt, &g.LastUpdateType, &g.LastUpdateAt,
	)
	if err != nil {
		return nil, err
	}

	g.CrossRoot = crossRoot == 1
	return g, nil
}

// UpsertGroupTx creates a duplicate group the first time its fingerprint is
// verified, or refreshes membership data on a re-scan. Keying on fingerprint
// makes scan re-runs idempotent: an already-verified group is updated in
// place, never duplicated.
func (s *Store) UpsertGroupTx(tx *sql.Tx, g *DuplicateGroup) error {
	crossRoot := 0
	if g.CrossRoot {
		crossRoot = 1
	}

	_, err := tx.Exec(`
		INSERT INTO duplicate_groups
			(fingerprint, original_path, roots, cross_root, member_count,
			 total_bytes, verification_status, last_update_type)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(fingerprint) DO UPDATE SET
			original_path = excluded.original_path,
			roots = excluded.roots,
			cross_root = excluded.cross_root,
			member_count = excluded.member_count,
			total_bytes = excluded.total_bytes,
			verification_status = excluded.verification_status,
			last_update_type = excluded.last_update_type,
			last_update_at = CURRENT_TIMESTAMP
	`, g.Fingerprint, g.OriginalPath, g.Roots, crossRoot, g.MemberCount,
		g.TotalBytes, g.VerificationStatus, TransitionVerifiedDuplicate)
	if err != nil {
		return fmt.Errorf("failed to upsert duplicate group: %w", err)
	}

	return nil
}

// GetGroupByFingerprint retrieves a group by its fingerprint
func (s *Store) GetGroupByFingerprint(fingerprint string) (*DuplicateGroup, error) {
	row := s.db.QueryRow(
		`SELECT `+duplicateGroupColumns+` FROM duplicate_groups WHERE fingerprint = ?`,
		fingerprint)

	g, err := scanDuplicateGroup(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}

	return g, nil
}

// GetAllGroups returns every duplicate group, for reporting
func (s *Store) GetAllGroups() ([]*DuplicateGroup, error) {
	rows, err := s.db.Query(
		`SELECT ` + duplicateGroupColumns + ` FROM duplicate_groups ORDER BY total_bytes DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query groups: %w", err)
	}
	defer rows.Close()

	var groups []*DuplicateGroup
	for rows.Next() {
		g, err := scanDuplicateGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, g)
	}

	return groups, rows.Err()
}

// CountGroups returns the total number of duplicate groups
func (s *Store) CountGroups() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM duplicate_groups").Scan(&count)
	return count, err
}

// CountCrossRootGroups returns the number of groups spanning multiple roots
func (s *Store) CountCrossRootGroups() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM duplicate_groups WHERE cross_root = 1").Scan(&count)
	return count, err
}

// incrementGroupFlaggedTx bumps the flagged counter on the file's group, if any
func incrementGroupFlaggedTx(tx *sql.Tx, path string) error {
	_, err := tx.Exec(`
		UPDATE duplicate_groups SET
			files_flagged = files_flagged + 1,
			last_update_type = ?,
			last_update_at = CURRENT_TIMESTAMP
		WHERE fingerprint = (SELECT fingerprint FROM media_files WHERE path = ?)
	`, TransitionFlagged, path)
	if err != nil {
		return fmt.Errorf("failed to update group flag count: %w", err)
	}
	return nil
}
