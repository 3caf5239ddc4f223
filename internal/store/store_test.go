// corevta - Taekwondo VTA scoring/broadcast event pipeline core.
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tkdvta/corevta/internal/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), t.TempDir(), "vta", 4)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenRunsMigrations(t *testing.T) {
	s := openTestStore(t)
	v, err := s.currentVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, v)
}

func TestInsertEventCreatesMatchLazily(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.InsertEvent(ctx, 1, "mch:42", domain.RoundEvent{Number: 1}, "rnd;1", true, nil)
	require.NoError(t, err)
	assert.NotZero(t, id)

	var count int
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM matches WHERE external_match_id = ?`, "mch:42").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestInsertEventSequenceIsMonotonePerSession(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.InsertEvent(ctx, 7, "", domain.RoundEvent{Number: 1}, "rnd;1", true, nil)
	require.NoError(t, err)
	_, err = s.InsertEvent(ctx, 7, "", domain.RoundEvent{Number: 2}, "rnd;2", true, nil)
	require.NoError(t, err)

	var sequences []int
	rows, err := s.db.QueryContext(ctx, `SELECT sequence FROM pss_events WHERE session_id = ? ORDER BY sequence`, 7)
	require.NoError(t, err)
	defer rows.Close()
	for rows.Next() {
		var seq int
		require.NoError(t, rows.Scan(&seq))
		sequences = append(sequences, seq)
	}
	assert.Equal(t, []int{1, 2}, sequences)
}

func TestInsertEventPersistsInvalidRawEvent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	reason := "missing literal wg2"

	id, err := s.InsertEvent(ctx, 1, "", nil, "wg1;2;3", false, &reason)
	require.NoError(t, err)

	var valid bool
	var storedErr string
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT valid, error FROM pss_events WHERE id = ?`, id).Scan(&valid, &storedErr))
	assert.False(t, valid)
	assert.Equal(t, reason, storedErr)
}

func TestProjectAthletesIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	athletes := domain.Athletes{
		Athlete1: domain.AthleteSlot{ShortName: "JD", LongName: "John Doe", CountryCode: "USA"},
		Athlete2: domain.AthleteSlot{ShortName: "MS", LongName: "Mary Smith", CountryCode: "GBR"},
	}
	_, err := s.InsertEvent(ctx, 1, "mch:1", athletes, "at1;...", true, nil)
	require.NoError(t, err)
	_, err = s.InsertEvent(ctx, 1, "mch:1", athletes, "at1;...", true, nil)
	require.NoError(t, err)

	var count int
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM match_athletes`).Scan(&count))
	assert.Equal(t, 2, count)
}

func TestPointsAccumulatePerRound(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	events := []struct {
		payload domain.PssPayload
		raw     string
	}{
		{domain.RoundEvent{Number: 1}, "rnd;1"},
		{domain.Points{Athlete: domain.PositionOne, PointType: 2}, "pt1;2"},
		{domain.Points{Athlete: domain.PositionOne, PointType: 3}, "pt1;3"},
		{domain.RoundEvent{Number: 2}, "rnd;2"},
		{domain.Points{Athlete: domain.PositionOne, PointType: 1}, "pt1;1"},
	}
	for _, e := range events {
		_, err := s.InsertEvent(ctx, 1, "mch:points", e.payload, e.raw, true, nil)
		require.NoError(t, err)
	}

	var round1, round2 int
	require.NoError(t, s.db.QueryRowContext(ctx, `
		SELECT value FROM scores sc
		JOIN matches m ON m.id = sc.match_id
		JOIN rounds r ON r.id = sc.round_id
		WHERE m.external_match_id = ? AND r.round_number = 1 AND sc.kind = ? AND sc.position = 1`,
		"mch:points", domain.ScoreKindPerRoundSum).Scan(&round1))
	assert.Equal(t, 5, round1)

	require.NoError(t, s.db.QueryRowContext(ctx, `
		SELECT value FROM scores sc
		JOIN matches m ON m.id = sc.match_id
		JOIN rounds r ON r.id = sc.round_id
		WHERE m.external_match_id = ? AND r.round_number = 2 AND sc.kind = ? AND sc.position = 1`,
		"mch:points", domain.ScoreKindPerRoundSum).Scan(&round2))
	assert.Equal(t, 1, round2)
}

func TestSessionLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.CreateSession(ctx, "vta-default")
	require.NoError(t, err)

	sess, err := s.GetSession(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionStateRunning, sess.State)
	assert.Nil(t, sess.EndedAt)

	require.NoError(t, s.EndSession(ctx, id))

	sess, err = s.GetSession(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionStateEnded, sess.State)
	require.NotNil(t, sess.EndedAt)
}

func TestArchiveAndRestoreOldEvents(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.InsertEvent(ctx, 3, "", domain.RoundEvent{Number: 1}, "rnd;1", true, nil)
	require.NoError(t, err)

	moved, err := s.ArchiveOldEvents(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), moved)

	var liveCount int
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pss_events WHERE session_id = 3`).Scan(&liveCount))
	assert.Equal(t, 0, liveCount)

	var archivedCount int
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM archived_pss_events WHERE session_id = 3`).Scan(&archivedCount))
	assert.Equal(t, 1, archivedCount)

	restored, err := s.RestoreArchivedEvents(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(1), restored)

	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pss_events WHERE session_id = 3`).Scan(&liveCount))
	assert.Equal(t, 1, liveCount)
}

func TestRecordingSessionLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.InsertEvent(ctx, 1, "mch:99", domain.RoundEvent{Number: 1}, "rnd;1", true, nil)
	require.NoError(t, err)
	var matchID int64
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT id FROM matches WHERE external_match_id = ?`, "mch:99").Scan(&matchID))

	id, err := s.CreateRecordingSession(ctx, domain.RecordingSession{
		MatchID:    matchID,
		Directory:  "/videos/Tournament 1/Day 1",
		Filename:   "1_A VS B_%DD-%MM-%CCYY_%hh-%mm-%ss",
		State:      domain.RecordingStatePreparing,
		Tournament: 1, TournamentDay: 1,
	})
	require.NoError(t, err)

	rs, err := s.GetRecordingSession(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.RecordingStatePreparing, rs.State)
	assert.Nil(t, rs.StartAt)

	require.NoError(t, s.UpdateRecordingSessionState(ctx, id, domain.RecordingStateRecording, time.Now().UTC(), nil))

	rs, err = s.GetRecordingSession(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.RecordingStateRecording, rs.State)
	require.NotNil(t, rs.StartAt)
}

func TestRunFullMaintenanceSucceeds(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.RunFullMaintenance(context.Background()))
}

func TestCreateAndListBackups(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	path, err := s.CreateBackup(ctx, "manual")
	require.NoError(t, err)
	assert.FileExists(t, path)

	backups, err := s.ListBackups()
	require.NoError(t, err)
	require.Len(t, backups, 1)
	assert.Equal(t, "manual.db", backups[0].Name)
}
