// corevta - Taekwondo VTA scoring/broadcast event pipeline core.
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/tkdvta/corevta/internal/domain"
)

// CreateRecordingSession inserts a new recording_sessions row for the
// Recording Controller's active session and returns its id.
func (s *Store) CreateRecordingSession(ctx context.Context, rs domain.RecordingSession) (int64, error) {
	var id int64
	err := s.timedQuery("create_recording_session", func() error {
		res, err := s.db.ExecContext(ctx, `
			INSERT INTO recording_sessions (match_id, directory, filename, state, controller_name, tournament, tournament_day)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			rs.MatchID, rs.Directory, rs.Filename, rs.State, rs.ControllerName, rs.Tournament, rs.TournamentDay)
		if err != nil {
			return fmt.Errorf("insert recording_session: %w", err)
		}
		id, err = res.LastInsertId()
		return err
	})
	return id, err
}

// UpdateRecordingSessionState transitions a recording_sessions row to a new
// state, stamping start_at/end_at when provided.
func (s *Store) UpdateRecordingSessionState(ctx context.Context, id int64, state domain.RecordingState, startAt, endAt interface{}) error {
	return s.timedQuery("update_recording_session_state", func() error {
		_, err := s.db.ExecContext(ctx, `
			UPDATE recording_sessions
			SET state = ?,
			    start_at = COALESCE(?, start_at),
			    end_at = COALESCE(?, end_at)
			WHERE id = ?`,
			state, startAt, endAt, id)
		if err != nil {
			return fmt.Errorf("update recording_session state: %w", err)
		}
		return nil
	})
}

// GetRecordingSession fetches a recording_sessions row by id.
func (s *Store) GetRecordingSession(ctx context.Context, id int64) (domain.RecordingSession, error) {
	var rs domain.RecordingSession
	var startAt, endAt sql.NullTime
	var controllerName sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, match_id, directory, filename, state, start_at, end_at, controller_name, tournament, tournament_day
		FROM recording_sessions WHERE id = ?`, id).
		Scan(&rs.ID, &rs.MatchID, &rs.Directory, &rs.Filename, &rs.State, &startAt, &endAt, &controllerName, &rs.Tournament, &rs.TournamentDay)
	if err != nil {
		return domain.RecordingSession{}, fmt.Errorf("get recording_session: %w", err)
	}
	if startAt.Valid {
		rs.StartAt = &startAt.Time
	}
	if endAt.Valid {
		rs.EndAt = &endAt.Time
	}
	if controllerName.Valid {
		rs.ControllerName = &controllerName.String
	}
	return rs, nil
}
