// corevta - Taekwondo VTA scoring/broadcast event pipeline core.
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// ArchiveOldEvents moves pss_events rows older than olderThan into
// archived_pss_events and rebuilds planner statistics. It returns the
// number of rows moved. Event details are left attached to the archived
// event id; callers that need them join archived_pss_events back to
// pss_event_details, which retains rows for both tables by design (it is
// keyed by event_id, not a foreign key with cascade).
func (s *Store) ArchiveOldEvents(ctx context.Context, olderThan time.Time) (int64, error) {
	var moved int64
	err := s.timedQuery("archive_old_events", func() error {
		return s.transactionWithRetry(ctx, 5, func(tx *sql.Tx) error {
			res, err := tx.ExecContext(ctx, `
				INSERT INTO archived_pss_events (id, session_id, match_id, round_id, event_type_id, timestamp, raw, parsed, sequence, valid, error)
				SELECT id, session_id, match_id, round_id, event_type_id, timestamp, raw, parsed, sequence, valid, error
				FROM pss_events WHERE timestamp < ?`, olderThan.UTC())
			if err != nil {
				return fmt.Errorf("copy to archive: %w", err)
			}
			moved, err = res.RowsAffected()
			if err != nil {
				return err
			}

			if _, err := tx.ExecContext(ctx, `DELETE FROM pss_events WHERE timestamp < ?`, olderThan.UTC()); err != nil {
				return fmt.Errorf("delete archived originals: %w", err)
			}
			return nil
		})
	})
	if err != nil {
		return 0, err
	}
	if moved > 0 {
		if err := s.RunAnalyze(ctx); err != nil {
			return moved, err
		}
	}
	return moved, nil
}

// RestoreArchivedEvents is the inverse of ArchiveOldEvents: it moves rows
// for the given session back into the hot pss_events table. It is the
// caller's responsibility to ensure the session's sequence space does not
// collide with events inserted since archival.
func (s *Store) RestoreArchivedEvents(ctx context.Context, sessionID int64) (int64, error) {
	var restored int64
	err := s.timedQuery("restore_archived_events", func() error {
		return s.transactionWithRetry(ctx, 5, func(tx *sql.Tx) error {
			res, err := tx.ExecContext(ctx, `
				INSERT INTO pss_events (id, session_id, match_id, round_id, event_type_id, timestamp, raw, parsed, sequence, valid, error)
				SELECT id, session_id, match_id, round_id, event_type_id, timestamp, raw, parsed, sequence, valid, error
				FROM archived_pss_events WHERE session_id = ?`, sessionID)
			if err != nil {
				return fmt.Errorf("copy from archive: %w", err)
			}
			restored, err = res.RowsAffected()
			if err != nil {
				return err
			}

			if _, err := tx.ExecContext(ctx, `DELETE FROM archived_pss_events WHERE session_id = ?`, sessionID); err != nil {
				return fmt.Errorf("delete restored archive rows: %w", err)
			}
			return nil
		})
	})
	return restored, err
}
