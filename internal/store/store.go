package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

const (
	currentSchemaVersion = 3
)

// Store represents the application's persistent state. It is the single
// source of truth across runs and the only shared mutable resource between
// phase workers; all mutations go through it.
type Store struct {
	db *sql.DB
}

// OpenOptions holds options for opening a database
type OpenOptions struct {
	NetworkOptimized bool // Apply network-optimized pragmas
}

// Open opens or creates a SQLite database at the given path with default options
func Open(path string) (*Store, error) {
	return OpenWithOptions(path, nil)
}

// OpenWithOptions opens or creates a SQLite database with custom options
func OpenWithOptions(path string, opts *OpenOptions) (*Store, error) {
	if opts == nil {
		opts = &OpenOptions{}
	}

	// Open with pragmas for performance and reliability
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_timeout=5000&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite works best with a single writer; this also gives the
	// single-writer-per-row discipline the phases rely on
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	store := &Store{db: db}

	if opts.NetworkOptimized {
		if err := store.applyNetworkPragmas(); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply network pragmas: %w", err)
		}
	}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return store, nil
}

// applyNetworkPragmas applies SQLite optimizations for network filesystems
func (s *Store) applyNetworkPragmas() error {
	pragmas := []string{
		// NORMAL is safe with WAL mode: fsync only at checkpoints
		"PRAGMA synchronous = NORMAL",

		// Keep temp tables in memory instead of on network disk
		"PRAGMA temp_store = MEMORY",

		// 64MB cache to reduce network round-trips
		"PRAGMA cache_size = -64000",

		// 8KB pages work better over the network; only applies to new databases
		"PRAGMA page_size = 8192",
	}

	for _, pragma := range pragmas {
		if _, err := s.db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %s: %w", pragma, err)
		}
	}

	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection for custom queries
func (s *Store) DB() *sql.DB {
	return s.db
}

// CheckIntegrity runs PRAGMA integrity_check on the database
func (s *Store) CheckIntegrity() error {
	var result string
	err := s.db.QueryRow("PRAGMA integrity_check").Scan(&result)
	if err != nil {
		return fmt.Errorf("integrity check query failed: %w", err)
	}

	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}

	return nil
}

// migrate applies database migrations
func (s *Store) migrate() error {
	version, err := s.getSchemaVersion()
	if err != nil {
		return err
	}

	if version >= currentSchemaVersion {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if version < 1 {
		if _, err := tx.Exec(schemaV1); err != nil {
			return fmt.Errorf("failed to apply schema v1: %w", err)
		}
		if err := s.setSchemaVersion(tx, 1); err != nil {
			return fmt.Errorf("failed to set schema version: %w", err)
		}
	}

	if version < 2 {
		if _, err := tx.Exec(schemaV2); err != nil {
			return fmt.Errorf("failed to apply schema v2: %w", err)
		}
		if err := s.setSchemaVersion(tx, 2); err != nil {
			return fmt.Errorf("failed to set schema version: %w", err)
		}
	}

	if version < 3 {
		if _, err := tx.Exec(schemaV3); err != nil {
			return fmt.Errorf("failed to apply schema v3: %w", err)
		}
		if err := s.setSchemaVersion(tx, 3); err != nil {
			return fmt.Errorf("failed to set schema version: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration: %w", err)
	}

	return nil
}

// getSchemaVersion returns the current schema version
func (s *Store) getSchemaVersion() (int, error) {
	var exists int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM sqlite_master
		WHERE type='table' AND name='schema_version'
	`).Scan(&exists)
	if err != nil {
		return 0, err
	}

	if exists == 0 {
		return 0, nil
	}

	var version int
	err = s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version)
	if err != nil {
		return 0, err
	}

	return version, nil
}

// setSchemaVersion records a schema version in a transaction
func (s *Store) setSchemaVersion(tx *sql.Tx, version int) error {
	_, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version)
	return err
}

// Transaction executes a function within a transaction. Phase steps use this
// so all mutations for one file or group commit atomically.
func (s *Store) Transaction(fn func(*sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Role classifies a media file within its duplicate group
type Role string

const (
	RoleUnclassified      Role = "unclassified"
	RoleOriginal          Role = "original"
	RoleVerifiedDuplicate Role = "verified_duplicate"
)

// MediaFile represents one tracked file. Rows are created on first scan and
// mutated only through the typed transition methods; they are never deleted.
type MediaFile struct {
	ID               int64
	Path             string
	Root             string
	RelPath          string
	SizeBytes        int64
	MtimeUnix        int64
	CaptureDate      *time.Time
	Fingerprint      string
	Undecodable      bool
	BinaryVerified   bool
	Role             Role
	DeletionFlagged  bool
	Deleted          bool
	OriginalPath     string
	QuarantinePath   string
	Note             string
	FirstSeenAt      time.Time
	LastTransition   string
	LastTransitionAt time.Time
}

// DuplicateGroup represents one confirmed byte-identical fingerprint cluster
type DuplicateGroup struct {
	ID                 int64
	Fingerprint        string
	OriginalPath       string
	Roots              string
	CrossRoot          bool
	MemberCount        int
	TotalBytes         int64
	FilesFlagged       int
	FilesMoved         int
	VerificationStatus string
	CreatedAt          time.Time
	LastUpdateType     string
	LastUpdateAt       time.Time
}

// TransitionRecord is one row of the append-only audit ledger
type TransitionRecord struct {
	ID         int64
	Path       string
	Transition string
	Detail     string
	CreatedAt  time.Time
}
