// corevta - Taekwondo VTA scoring/broadcast event pipeline core.
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tkdvta/corevta/internal/domain"
)

// CreateSession inserts a new running Session row for one continuous
// listener lifetime, identified by the active configuration id.
func (s *Store) CreateSession(ctx context.Context, configID string) (int64, error) {
	var id int64
	err := s.timedQuery("create_session", func() error {
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO sessions (config_id, started_at, state) VALUES (?, ?, ?)`,
			configID, time.Now().UTC(), domain.SessionStateRunning)
		if err != nil {
			return fmt.Errorf("insert session: %w", err)
		}
		id, err = res.LastInsertId()
		return err
	})
	return id, err
}

// EndSession marks a session row stopped, recording its end time.
func (s *Store) EndSession(ctx context.Context, sessionID int64) error {
	return s.timedQuery("end_session", func() error {
		_, err := s.db.ExecContext(ctx,
			`UPDATE sessions SET state = ?, ended_at = ? WHERE id = ?`,
			domain.SessionStateEnded, time.Now().UTC(), sessionID)
		if err != nil {
			return fmt.Errorf("end session: %w", err)
		}
		return nil
	})
}

// GetSession fetches a session row by id.
func (s *Store) GetSession(ctx context.Context, sessionID int64) (domain.Session, error) {
	var sess domain.Session
	var endedAt sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT id, config_id, started_at, ended_at, state FROM sessions WHERE id = ?`, sessionID).
		Scan(&sess.ID, &sess.ConfigID, &sess.StartedAt, &endedAt, &sess.State)
	if err != nil {
		return domain.Session{}, fmt.Errorf("get session: %w", err)
	}
	if endedAt.Valid {
		sess.EndedAt = &endedAt.Time
	}
	return sess, nil
}
