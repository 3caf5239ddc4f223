// corevta - Taekwondo VTA scoring/broadcast event pipeline core.
// SPDX-License-Identifier: AGPL-3.0-or-later

package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestQueue(t *testing.T) *Queue {
	t.Helper()
	q, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = q.Close() })
	return q
}

func TestWriteThenGetPending(t *testing.T) {
	q := openTestQueue(t)
	ctx := context.Background()

	id, err := q.Write(ctx, "rnd;2", "127.0.0.1:1234")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	pending, err := q.GetPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "rnd;2", pending[0].Raw)
}

func TestConfirmRemovesFromPending(t *testing.T) {
	q := openTestQueue(t)
	ctx := context.Background()

	id, err := q.Write(ctx, "rnd;2", "")
	require.NoError(t, err)

	require.NoError(t, q.Confirm(ctx, id))

	pending, err := q.GetPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestConfirmUnknownEntryFails(t *testing.T) {
	q := openTestQueue(t)
	err := q.Confirm(context.Background(), "does-not-exist")
	assert.Error(t, err)
}

func TestCompactRemovesOldConfirmedEntries(t *testing.T) {
	q := openTestQueue(t)
	ctx := context.Background()

	id, err := q.Write(ctx, "rnd;2", "")
	require.NoError(t, err)
	require.NoError(t, q.Confirm(ctx, id))

	removed, err := q.Compact(ctx, -time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
}

func TestStatsReflectsPendingCount(t *testing.T) {
	q := openTestQueue(t)
	ctx := context.Background()

	_, err := q.Write(ctx, "rnd;1", "")
	require.NoError(t, err)
	_, err = q.Write(ctx, "rnd;2", "")
	require.NoError(t, err)

	assert.Equal(t, int64(2), q.Stats().PendingCount)
}
