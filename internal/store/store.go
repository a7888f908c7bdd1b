// SPDX-License-Identifier: MIT

// Package store persists assets, jobs and moderation records in SQLite.
//
// The worker is the only writer; the API serves reads from the same file.
// WAL mode keeps readers from blocking the worker's narrow row updates.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	_ "modernc.org/sqlite"
)

// Store wraps the SQLite handle.
type Store struct {
	db *sql.DB
}

// Open opens (and migrates) the database at path. The DSN enables WAL and a
// busy timeout so concurrent API reads do not fail during worker writes.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?%s", path, url.Values{
		"_pragma": []string{
			"journal_mode(WAL)",
			"busy_timeout(5000)",
			"foreign_keys(ON)",
			"synchronous(NORMAL)",
		},
	}.Encode())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// modernc sqlite serializes writes internally; a single connection avoids
	// SQLITE_BUSY between our own goroutines.
	db.SetMaxOpenConns(1)
	db.SetConnMaxIdleTime(5 * time.Minute)

	s := &Store{db: db}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// OpenMemory opens an in-memory database, used by tests.
func OpenMemory() (*Store, error) {
	return Open(":memory:")
}

// Close closes the underlying handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS assets (
	id                 TEXT PRIMARY KEY,
	owner_id           TEXT NOT NULL,
	status             TEXT NOT NULL,
	source_path        TEXT NOT NULL,
	duration           REAL,
	width              INTEGER,
	height             INTEGER,
	frame_rate         REAL,
	codec              TEXT,
	audio_codec        TEXT,
	aspect_ratio       TEXT,
	bitrate_kbps       INTEGER,
	video_bitrate_kbps INTEGER,
	audio_bitrate_kbps INTEGER,
	size_bytes         INTEGER,
	manifest_path      TEXT NOT NULL DEFAULT '',
	thumbnail_path     TEXT NOT NULL DEFAULT '',
	subtitle_type      TEXT NOT NULL DEFAULT 'none',
	subtitle_languages TEXT NOT NULL DEFAULT '',
	subtitle_checked_at TIMESTAMP,
	caption_draft_ref  TEXT NOT NULL DEFAULT '',
	caption_language   TEXT NOT NULL DEFAULT '',
	created_at         TIMESTAMP NOT NULL,
	updated_at         TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS jobs (
	id         TEXT PRIMARY KEY,
	asset_id   TEXT NOT NULL REFERENCES assets(id),
	kind       TEXT NOT NULL,
	status     TEXT NOT NULL,
	error      TEXT NOT NULL DEFAULT '',
	attempts   INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_jobs_asset ON jobs(asset_id);

CREATE TABLE IF NOT EXISTS moderation_records (
	asset_id        TEXT PRIMARY KEY REFERENCES assets(id),
	status          TEXT NOT NULL,
	policy_level    TEXT NOT NULL,
	threshold       REAL NOT NULL,
	frames_scored   INTEGER NOT NULL DEFAULT 0,
	frames_flagged  INTEGER NOT NULL DEFAULT 0,
	flagged_json    TEXT NOT NULL DEFAULT '[]',
	max_neutral     REAL NOT NULL DEFAULT 0,
	max_low         REAL NOT NULL DEFAULT 0,
	max_medium      REAL NOT NULL DEFAULT 0,
	max_high        REAL NOT NULL DEFAULT 0,
	verdict         TEXT NOT NULL DEFAULT '',
	confidence      REAL NOT NULL DEFAULT 0,
	error           TEXT NOT NULL DEFAULT '',
	started_at      TIMESTAMP NOT NULL,
	completed_at    TIMESTAMP
);
`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}
