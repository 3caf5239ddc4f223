// corevta - Taekwondo VTA scoring/broadcast event pipeline core.
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	json "github.com/goccy/go-json"

	"github.com/tkdvta/corevta/internal/domain"
)

// InsertEvent resolves or inserts the match row, assigns a monotone
// sequence per session, serializes the parsed payload, persists the raw
// line verbatim, extracts per-event details, and idempotently projects
// domain events (Athletes, CurrentScores, Warnings) onto their summary
// tables. Returns the assigned event id.
func (s *Store) InsertEvent(ctx context.Context, sessionID int64, externalMatchID string, payload domain.PssPayload, raw string, valid bool, parseErr *string) (int64, error) {
	var eventID int64
	err := s.timedQuery("insert_event", func() error {
		return s.transactionWithRetry(ctx, 5, func(tx *sql.Tx) error {
			var matchID *int64
			if externalMatchID != "" {
				id, err := resolveMatch(ctx, tx, externalMatchID)
				if err != nil {
					return err
				}
				matchID = &id
			}

			var roundID *int64
			if re, ok := payload.(domain.RoundEvent); ok && matchID != nil {
				id, err := resolveRound(ctx, tx, *matchID, re.Number)
				if err != nil {
					return err
				}
				roundID = &id
				if _, err := tx.ExecContext(ctx, `UPDATE matches SET current_round_id = ? WHERE id = ?`, id, *matchID); err != nil {
					return fmt.Errorf("update current round: %w", err)
				}
			}

			eventTypeID, err := resolveEventType(ctx, tx, eventCode(payload, parseErr))
			if err != nil {
				return err
			}

			sequence, err := nextSequence(ctx, tx, sessionID)
			if err != nil {
				return err
			}

			var parsedJSON []byte
			if payload != nil {
				parsedJSON, err = json.Marshal(payload)
				if err != nil {
					return fmt.Errorf("marshal parsed payload: %w", err)
				}
			} else {
				parsedJSON = []byte("null")
			}

			res, err := tx.ExecContext(ctx, `
				INSERT INTO pss_events (session_id, match_id, round_id, event_type_id, timestamp, raw, parsed, sequence, valid, error)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				sessionID, nullableInt64(matchID), nullableInt64(roundID), eventTypeID,
				time.Now().UTC(), raw, string(parsedJSON), sequence, valid, parseErr)
			if err != nil {
				return fmt.Errorf("insert pss_event: %w", err)
			}
			eventID, err = res.LastInsertId()
			if err != nil {
				return err
			}

			if err := insertDetails(ctx, tx, eventID, payload); err != nil {
				return err
			}

			if matchID != nil {
				if err := project(ctx, tx, *matchID, roundID, payload); err != nil {
					return err
				}
			}
			return nil
		})
	})
	return eventID, err
}

func nullableInt64(p *int64) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

// ResolveMatchID returns the numeric match id for externalMatchID, creating
// the match row lazily if it has not been seen before. Unlike InsertEvent,
// it opens its own short transaction; callers outside the insert path (the
// recording controller mapping an mch:<number> id to a row for its
// recording_sessions foreign key) use this directly.
func (s *Store) ResolveMatchID(ctx context.Context, externalMatchID string) (int64, error) {
	var id int64
	err := s.transactionWithRetry(ctx, 5, func(tx *sql.Tx) error {
		var err error
		id, err = resolveMatch(ctx, tx, externalMatchID)
		return err
	})
	return id, err
}

func resolveMatch(ctx context.Context, tx *sql.Tx, externalMatchID string) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, `SELECT id FROM matches WHERE external_match_id = ?`, externalMatchID).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("resolve match: %w", err)
	}
	res, err := tx.ExecContext(ctx, `INSERT INTO matches (external_match_id, created_at) VALUES (?, ?)`,
		externalMatchID, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("insert match: %w", err)
	}
	return res.LastInsertId()
}

func resolveRound(ctx context.Context, tx *sql.Tx, matchID int64, roundNumber int) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, `SELECT id FROM rounds WHERE match_id = ? AND round_number = ?`, matchID, roundNumber).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("resolve round: %w", err)
	}
	res, err := tx.ExecContext(ctx, `INSERT INTO rounds (match_id, round_number, started_at) VALUES (?, ?, ?)`,
		matchID, roundNumber, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("insert round: %w", err)
	}
	return res.LastInsertId()
}

func resolveEventType(ctx context.Context, tx *sql.Tx, code string) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, `SELECT id FROM event_types WHERE code = ?`, code).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("resolve event type: %w", err)
	}
	res, err := tx.ExecContext(ctx, `INSERT INTO event_types (code) VALUES (?)`, code)
	if err != nil {
		return 0, fmt.Errorf("insert event type: %w", err)
	}
	return res.LastInsertId()
}

func nextSequence(ctx context.Context, tx *sql.Tx, sessionID int64) (uint64, error) {
	var max sql.NullInt64
	err := tx.QueryRowContext(ctx, `SELECT MAX(sequence) FROM pss_events WHERE session_id = ?`, sessionID).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("compute next sequence: %w", err)
	}
	if !max.Valid {
		return 1, nil
	}
	return uint64(max.Int64) + 1, nil
}

func eventCode(payload domain.PssPayload, parseErr *string) string {
	if parseErr != nil {
		return domain.EventTypeRaw
	}
	if payload == nil {
		return domain.EventTypeRaw
	}
	return payload.Code()
}

// insertDetails extracts a flat key/value projection from the parsed
// payload. This is a pure function of the payload; it never reads or
// writes the database beyond the insert itself.
func insertDetails(ctx context.Context, tx *sql.Tx, eventID int64, payload domain.PssPayload) error {
	for key, value := range detailFields(payload) {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO pss_event_details (event_id, key, value, kind) VALUES (?, ?, ?, ?)`,
			eventID, key, value, "string"); err != nil {
			return fmt.Errorf("insert event detail %s: %w", key, err)
		}
	}
	return nil
}

func detailFields(payload domain.PssPayload) map[string]string {
	switch v := payload.(type) {
	case domain.Points:
		return map[string]string{"athlete": fmt.Sprint(v.Athlete), "point_type": fmt.Sprint(v.PointType)}
	case domain.HitLevel:
		return map[string]string{"athlete": fmt.Sprint(v.Athlete), "level": fmt.Sprint(v.Level)}
	case domain.Clock:
		return map[string]string{"time": v.Time, "action": v.Action}
	default:
		return nil
	}
}

// project idempotently updates the athletes, scores, and warnings
// projection tables. Reprocessing a duplicate event must not produce
// duplicate rows, so every write here is an upsert keyed by the same
// uniqueness constraint used at insert time. SQLite's UNIQUE treats NULLs
// as distinct, so current-score and warning rows whose round_id is NULL are
// deleted and re-inserted instead of relying on ON CONFLICT.
func project(ctx context.Context, tx *sql.Tx, matchID int64, roundID *int64, payload domain.PssPayload) error {
	switch v := payload.(type) {
	case domain.Athletes:
		return projectAthletes(ctx, tx, matchID, v)
	case domain.CurrentScores:
		return projectCurrentScore(ctx, tx, matchID, v)
	case domain.RoundScore:
		return projectRoundScore(ctx, tx, matchID, v)
	case domain.Warnings:
		return projectWarnings(ctx, tx, matchID, roundID, v)
	case domain.Points:
		return projectPoints(ctx, tx, matchID, v)
	}
	return nil
}

// projectPoints accumulates a Points event into the match's currently open
// round, per the per_round_sum invariant: the projection onto scores
// equals the sum of Points values partitioned by round. A Points event
// observed before any Round event has a NULL current_round_id, so SQLite's
// UNIQUE treats each as distinct and accumulation does not occur; protocol
// streams always open a round before scoring.
func projectPoints(ctx context.Context, tx *sql.Tx, matchID int64, v domain.Points) error {
	var currentRoundID sql.NullInt64
	if err := tx.QueryRowContext(ctx, `SELECT current_round_id FROM matches WHERE id = ?`, matchID).Scan(&currentRoundID); err != nil {
		return fmt.Errorf("read current round: %w", err)
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO scores (match_id, round_id, position, kind, value, timestamp) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(match_id, round_id, position, kind) DO UPDATE SET value = value + excluded.value, timestamp = excluded.timestamp`,
		matchID, nullableNullInt64(currentRoundID), v.Athlete, domain.ScoreKindPerRoundSum, v.PointType, time.Now().UTC())
	return err
}

func nullableNullInt64(n sql.NullInt64) interface{} {
	if !n.Valid {
		return nil
	}
	return n.Int64
}

func upsertAthlete(ctx context.Context, tx *sql.Tx, code, shortName, longName, countryCode string) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, `SELECT id FROM athletes WHERE code = ?`, code).Scan(&id)
	if err == nil {
		_, err = tx.ExecContext(ctx, `UPDATE athletes SET short_name=?, long_name=?, country_code=? WHERE id=?`,
			shortName, longName, countryCode, id)
		return id, err
	}
	if err != sql.ErrNoRows {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, `INSERT INTO athletes (code, short_name, long_name, country_code) VALUES (?, ?, ?, ?)`,
		code, shortName, longName, countryCode)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func projectAthletes(ctx context.Context, tx *sql.Tx, matchID int64, a domain.Athletes) error {
	id1, err := upsertAthlete(ctx, tx, a.Athlete1.ShortName, a.Athlete1.ShortName, a.Athlete1.LongName, a.Athlete1.CountryCode)
	if err != nil {
		return fmt.Errorf("upsert athlete 1: %w", err)
	}
	id2, err := upsertAthlete(ctx, tx, a.Athlete2.ShortName, a.Athlete2.ShortName, a.Athlete2.LongName, a.Athlete2.CountryCode)
	if err != nil {
		return fmt.Errorf("upsert athlete 2: %w", err)
	}
	for pos, athleteID := range map[domain.MatchPosition]int64{domain.PositionOne: id1, domain.PositionTwo: id2} {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO match_athletes (match_id, athlete_id, position) VALUES (?, ?, ?)
			ON CONFLICT(match_id, position) DO UPDATE SET athlete_id=excluded.athlete_id`,
			matchID, athleteID, pos)
		if err != nil {
			return fmt.Errorf("upsert match_athlete: %w", err)
		}
	}
	return nil
}

func projectCurrentScore(ctx context.Context, tx *sql.Tx, matchID int64, v domain.CurrentScores) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM scores WHERE match_id = ? AND round_id IS NULL AND position = ? AND kind = ?`,
		matchID, v.Athlete, domain.ScoreKindCurrent); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO scores (match_id, round_id, position, kind, value, timestamp) VALUES (?, NULL, ?, ?, ?, ?)
		ON CONFLICT(match_id, round_id, position, kind) DO UPDATE SET value=excluded.value, timestamp=excluded.timestamp`,
		matchID, v.Athlete, domain.ScoreKindCurrent, v.Score, time.Now().UTC())
	return err
}

func projectRoundScore(ctx context.Context, tx *sql.Tx, matchID int64, v domain.RoundScore) error {
	roundID, err := resolveRound(ctx, tx, matchID, v.Round)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO scores (match_id, round_id, position, kind, value, timestamp) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(match_id, round_id, position, kind) DO UPDATE SET value=excluded.value, timestamp=excluded.timestamp`,
		matchID, roundID, v.Athlete, domain.ScoreKindPerRound, v.Score, time.Now().UTC())
	return err
}

func projectWarnings(ctx context.Context, tx *sql.Tx, matchID int64, roundID *int64, v domain.Warnings) error {
	for pos, count := range map[domain.MatchPosition]int{domain.PositionOne: v.N1, domain.PositionTwo: v.N2} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM warnings WHERE match_id = ? AND round_id IS ? AND position = ? AND kind = 'gam-jeom'`,
			matchID, nullableInt64(roundID), pos); err != nil {
			return fmt.Errorf("replace warning: %w", err)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO warnings (match_id, round_id, position, kind, count, timestamp) VALUES (?, ?, ?, 'gam-jeom', ?, ?)
			ON CONFLICT(match_id, round_id, position, kind) DO UPDATE SET count=excluded.count, timestamp=excluded.timestamp`,
			matchID, nullableInt64(roundID), pos, count, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("insert warning: %w", err)
		}
	}
	return nil
}
