// corevta - Taekwondo VTA scoring/broadcast event pipeline core.
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"fmt"
	"time"
)

// Migration is a single, ordered, append-only schema change.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

const schemaVersionTable = `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

func migrations() []Migration {
	return []Migration{
		{Version: 1, Name: "initial_schema", SQL: initialSchemaSQL},
		{Version: 2, Name: "match_current_round", SQL: matchCurrentRoundSQL},
		{Version: 3, Name: "archived_events", SQL: archivedEventsSQL},
	}
}

// migrate computes current_version and applies any migrations beyond it,
// each in its own transaction. Startup fails with "schema ahead" if the
// database's recorded version exceeds the highest known migration.
func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaVersionTable); err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	current, err := s.currentVersion(ctx)
	if err != nil {
		return err
	}

	all := migrations()
	target := 0
	for _, m := range all {
		if m.Version > target {
			target = m.Version
		}
	}
	if current > target {
		return fmt.Errorf("schema ahead: database is at version %d, binary knows up to %d", current, target)
	}

	for _, m := range all {
		if m.Version <= current {
			continue
		}
		if err := s.applyMigration(ctx, m); err != nil {
			return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Name, err)
		}
	}
	return nil
}

func (s *Store) applyMigration(ctx context.Context, m Migration) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
		_ = tx.Rollback()
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_version (version, name, applied_at) VALUES (?, ?, ?)`,
		m.Version, m.Name, time.Now().UTC()); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *Store) currentVersion(ctx context.Context) (int, error) {
	var version int
	row := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_version`)
	if err := row.Scan(&version); err != nil {
		return 0, fmt.Errorf("query current schema version: %w", err)
	}
	return version, nil
}

const initialSchemaSQL = `
CREATE TABLE matches (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	external_match_id TEXT NOT NULL UNIQUE,
	number INTEGER,
	category TEXT,
	weight_class TEXT,
	division TEXT,
	total_rounds INTEGER,
	round_duration_s INTEGER,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE athletes (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	code TEXT NOT NULL UNIQUE,
	short_name TEXT NOT NULL,
	long_name TEXT,
	country_code TEXT
);

CREATE TABLE match_athletes (
	match_id INTEGER NOT NULL REFERENCES matches(id),
	athlete_id INTEGER NOT NULL REFERENCES athletes(id),
	position INTEGER NOT NULL CHECK (position IN (1, 2)),
	PRIMARY KEY (match_id, position)
);

CREATE TABLE rounds (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	match_id INTEGER NOT NULL REFERENCES matches(id),
	round_number INTEGER NOT NULL,
	started_at DATETIME,
	ended_at DATETIME,
	UNIQUE (match_id, round_number)
);

CREATE TABLE event_types (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	code TEXT NOT NULL UNIQUE
);

CREATE TABLE pss_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id INTEGER NOT NULL,
	match_id INTEGER REFERENCES matches(id),
	round_id INTEGER REFERENCES rounds(id),
	event_type_id INTEGER NOT NULL REFERENCES event_types(id),
	timestamp DATETIME NOT NULL,
	raw TEXT NOT NULL,
	parsed TEXT NOT NULL,
	sequence INTEGER NOT NULL,
	valid INTEGER NOT NULL,
	error TEXT,
	UNIQUE (session_id, sequence)
);

CREATE TABLE pss_event_details (
	event_id INTEGER NOT NULL REFERENCES pss_events(id),
	key TEXT NOT NULL,
	value TEXT,
	kind TEXT NOT NULL
);

CREATE TABLE scores (
	match_id INTEGER NOT NULL REFERENCES matches(id),
	round_id INTEGER REFERENCES rounds(id),
	position INTEGER NOT NULL CHECK (position IN (1, 2)),
	kind TEXT NOT NULL,
	value INTEGER NOT NULL,
	timestamp DATETIME NOT NULL,
	UNIQUE (match_id, round_id, position, kind)
);

CREATE TABLE warnings (
	match_id INTEGER NOT NULL REFERENCES matches(id),
	round_id INTEGER REFERENCES rounds(id),
	position INTEGER NOT NULL CHECK (position IN (1, 2)),
	kind TEXT NOT NULL,
	count INTEGER NOT NULL,
	timestamp DATETIME NOT NULL,
	UNIQUE (match_id, round_id, position, kind)
);

CREATE TABLE sessions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	config_id TEXT NOT NULL,
	started_at DATETIME NOT NULL,
	ended_at DATETIME,
	state TEXT NOT NULL
);

CREATE TABLE recording_sessions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	match_id INTEGER NOT NULL REFERENCES matches(id),
	directory TEXT NOT NULL,
	filename TEXT NOT NULL,
	state TEXT NOT NULL,
	start_at DATETIME,
	end_at DATETIME,
	controller_name TEXT,
	tournament INTEGER NOT NULL,
	tournament_day INTEGER NOT NULL
);

CREATE INDEX idx_pss_events_match ON pss_events(match_id);
CREATE INDEX idx_scores_match ON scores(match_id);
CREATE INDEX idx_warnings_match ON warnings(match_id);
`

// matchCurrentRoundSQL tracks the round a RoundEvent last opened for a
// match, so a later Points event can be attributed to it for
// per_round_sum accumulation without re-deriving it from the clock.
const matchCurrentRoundSQL = `
ALTER TABLE matches ADD COLUMN current_round_id INTEGER REFERENCES rounds(id);
`

// archivedEventsSQL mirrors pss_events for rows moved out of the hot table
// by maintenance archival; it drops the per-session sequence uniqueness
// constraint since archived rows from many sessions coexist here.
const archivedEventsSQL = `
CREATE TABLE archived_pss_events (
	id INTEGER PRIMARY KEY,
	session_id INTEGER NOT NULL,
	match_id INTEGER,
	round_id INTEGER,
	event_type_id INTEGER NOT NULL,
	timestamp DATETIME NOT NULL,
	raw TEXT NOT NULL,
	parsed TEXT NOT NULL,
	sequence INTEGER NOT NULL,
	valid INTEGER NOT NULL,
	error TEXT,
	archived_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX idx_archived_pss_events_match ON archived_pss_events(match_id);
`
