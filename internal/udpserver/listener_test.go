// corevta - Taekwondo VTA scoring/broadcast event pipeline core.
// SPDX-License-Identifier: AGPL-3.0-or-later

package udpserver

import (
	"context"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu       sync.Mutex
	received []Received
}

func (s *recordingSink) Handle(_ context.Context, r Received) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.received = append(s.received, r)
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.received)
}

func freePort(t *testing.T) int {
	t.Helper()
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer conn.Close()
	_, portStr, err := net.SplitHostPort(conn.LocalAddr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return port
}

func TestListenerLifecycleAndFanOut(t *testing.T) {
	persistence := &recordingSink{}
	triggers := &recordingSink{}
	distributor := &recordingSink{}
	l := New(persistence, triggers, distributor)

	port := freePort(t)
	require.NoError(t, l.Start(context.Background(), "127.0.0.1", port))
	assert.Equal(t, StateRunning, l.State())
	defer l.Stop()

	conn, err := net.Dial("udp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("rnd;2"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return persistence.count() == 1
	}, time.Second, 10*time.Millisecond)

	assert.Equal(t, 1, triggers.count())
	assert.Equal(t, 1, distributor.count())

	snap := l.Snapshot()
	assert.Equal(t, uint64(1), snap.PacketsReceived)
}

func TestListenerTracksParseErrors(t *testing.T) {
	persistence := &recordingSink{}
	l := New(persistence, nil, nil)

	port := freePort(t)
	require.NoError(t, l.Start(context.Background(), "127.0.0.1", port))
	defer l.Stop()

	conn, err := net.Dial("udp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("wg1;2;3"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return l.Snapshot().ParseErrors == 1
	}, time.Second, 10*time.Millisecond)
}
