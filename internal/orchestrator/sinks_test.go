// corevta - Taekwondo VTA scoring/broadcast event pipeline core.
// SPDX-License-Identifier: AGPL-3.0-or-later

package orchestrator

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tkdvta/corevta/internal/domain"
	"github.com/tkdvta/corevta/internal/queue"
	"github.com/tkdvta/corevta/internal/store"
	"github.com/tkdvta/corevta/internal/udpserver"
)

func openTestStoreAndQueue(t *testing.T) (*store.Store, *queue.Queue) {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(context.Background(), dir, "vta", 4)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	q, err := queue.Open(filepath.Join(dir, "queue"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = q.Close() })

	return st, q
}

func TestPersistenceSinkWritesEventAndConfirmsQueue(t *testing.T) {
	st, q := openTestStoreAndQueue(t)
	ctx := context.Background()

	sessionID, err := st.CreateSession(ctx, "default")
	require.NoError(t, err)

	sink := newPersistenceSink(q, st, nil, sessionID, &currentMatch{})
	sink.Handle(ctx, udpserver.Received{
		Payload:   domain.RoundEvent{Number: 1},
		Raw:       "rnd;1",
		Timestamp: time.Now(),
	})
	sink.stop()

	pending, err := q.GetPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestPersistenceSinkTracksCurrentMatchAcrossEvents(t *testing.T) {
	st, q := openTestStoreAndQueue(t)
	ctx := context.Background()

	sessionID, err := st.CreateSession(ctx, "default")
	require.NoError(t, err)

	match := &currentMatch{}
	sink := newPersistenceSink(q, st, nil, sessionID, match)
	sink.Handle(ctx, udpserver.Received{Payload: domain.MatchConfig{Number: 7, MatchID: "mch:7"}, Raw: "mch;..."})
	sink.Handle(ctx, udpserver.Received{Payload: domain.RoundEvent{Number: 1}, Raw: "rnd;1"})
	sink.stop()

	assert.Equal(t, "mch:7", match.observe(domain.RoundEvent{Number: 2}))
}

func TestDistributorSinkAssignsMonotoneSequence(t *testing.T) {
	rh := &recordingHost{}
	sink := newDistributorSink(rh, 1, &currentMatch{})

	for i := 0; i < 3; i++ {
		sink.Handle(context.Background(), udpserver.Received{Payload: domain.RoundEvent{Number: i}, Raw: "rnd"})
	}

	assert.Equal(t, 3, rh.broadcasts)
	assert.Equal(t, []uint64{1, 2, 3}, rh.sequences)
}

func TestDistributorSinkSkipsParseErrors(t *testing.T) {
	rh := &recordingHost{}
	sink := newDistributorSink(rh, 1, &currentMatch{})

	sink.Handle(context.Background(), udpserver.Received{Err: assertParseErr, Raw: "garbage"})

	assert.Equal(t, 0, rh.broadcasts)
}

type parseErr struct{}

func (parseErr) Error() string { return "parse failure" }

var assertParseErr = parseErr{}
