package store

// Schema v1 - Initial database schema
const schemaV1 = `
-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_version (
  version INTEGER PRIMARY KEY,
  applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- One row per unique absolute media file path. Rows are never deleted;
-- a moved file becomes a historical record.
CREATE TABLE IF NOT EXISTS media_files (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  path TEXT UNIQUE NOT NULL,
  root TEXT NOT NULL,
  rel_path TEXT NOT NULL,
  size_bytes INTEGER,
  mtime_unix INTEGER,
  capture_date TEXT,
  fingerprint TEXT,
  binary_verified INTEGER NOT NULL DEFAULT 0,
  role TEXT NOT NULL DEFAULT 'unclassified',
  deletion_flagged INTEGER NOT NULL DEFAULT 0,
  deleted INTEGER NOT NULL DEFAULT 0,
  original_path TEXT,
  quarantine_path TEXT,
  note TEXT,
  first_seen_at DATETIME DEFAULT CURRENT_TIMESTAMP,
  last_transition TEXT NOT NULL DEFAULT 'SCANNED',
  last_transition_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_media_files_fingerprint ON media_files(fingerprint);
CREATE INDEX IF NOT EXISTS idx_media_files_root ON media_files(root);

-- One row per confirmed byte-identical fingerprint cluster
CREATE TABLE IF NOT EXISTS duplicate_groups (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  fingerprint TEXT UNIQUE NOT NULL,
  original_path TEXT NOT NULL,
  roots TEXT NOT NULL,
  cross_root INTEGER NOT NULL DEFAULT 0,
  member_count INTEGER NOT NULL,
  total_bytes INTEGER NOT NULL,
  files_flagged INTEGER NOT NULL DEFAULT 0,
  files_moved INTEGER NOT NULL DEFAULT 0,
  verification_status TEXT NOT NULL DEFAULT 'binary_verified',
  created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
  last_update_type TEXT,
  last_update_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_duplicate_groups_cross_root ON duplicate_groups(cross_root);
`

// Schema v2 - Append-only transition ledger and phase-query indexes
const schemaV2 = `
-- Full audit history: one row per applied transition, never updated
CREATE TABLE IF NOT EXISTS transitions (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  path TEXT NOT NULL,
  transition TEXT NOT NULL,
  detail TEXT,
  created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_transitions_path ON transitions(path);

-- Covering indexes for the flag and execute phase selections
CREATE INDEX IF NOT EXISTS idx_media_files_role_flags
  ON media_files(role, deletion_flagged, deleted);
CREATE INDEX IF NOT EXISTS idx_media_files_flagged
  ON media_files(deletion_flagged, deleted);
`

// Schema v3 - Persisted decode outcome, so a rescan can tell "cannot
// fingerprint" apart from "never fingerprinted" and skip unchanged
// undecodable files
const schemaV3 = `
ALTER TABLE media_files ADD COLUMN undecodable INTEGER NOT NULL DEFAULT 0;
`
