// corevta - Taekwondo VTA scoring/broadcast event pipeline core.
// SPDX-License-Identifier: AGPL-3.0-or-later

package distributor

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tkdvta/corevta/internal/domain"
)

type fakeHost struct {
	names []string
}

func (f *fakeHost) EmitCustomEvent(name string, payload interface{}) {
	f.names = append(f.names, name)
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func TestDistributorBroadcastsToOverlaySocketAndUI(t *testing.T) {
	host := &fakeHost{}
	d := New(host)
	port := freePort(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, d.Start(ctx, port, 2))
	defer d.Stop()

	conn, err := net.Dial("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	require.NoError(t, err)
	defer conn.Close()
	time.Sleep(20 * time.Millisecond)

	d.EmitPssEvent(1, "mch:1", 1, domain.Winner{Name: "RED"}, "win;RED")

	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	reader := bufio.NewReader(conn)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, line, "\"event_code\":\"WINNER\"")

	time.Sleep(20 * time.Millisecond)
	assert.Contains(t, host.names, "pss_event")
}

func TestDistributorEmitCustomEventBypassesSocket(t *testing.T) {
	host := &fakeHost{}
	d := New(host)
	d.EmitCustomEvent("log_event", map[string]string{"level": "info"})
	assert.Equal(t, []string{"log_event"}, host.names)
}

func TestStreamProcessorAccumulatesAthleteStats(t *testing.T) {
	proc := newStreamProcessor(2)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	proc.Start(ctx)
	defer proc.Stop()

	proc.Ingest(BroadcastEvent{SessionID: 1, MatchID: "mch:1", Payload: domain.Points{Athlete: domain.PositionOne, PointType: 2}})
	proc.Ingest(BroadcastEvent{SessionID: 1, MatchID: "mch:1", Payload: domain.Points{Athlete: domain.PositionOne, PointType: 3}})

	require.Eventually(t, func() bool {
		s, ok := proc.AthleteStats("mch:1", domain.PositionOne)
		return ok && s.Points == 5
	}, time.Second, 5*time.Millisecond)
}

func TestStreamProcessorInvalidateMatchClearsCache(t *testing.T) {
	proc := newStreamProcessor(1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	proc.Start(ctx)
	defer proc.Stop()

	proc.Ingest(BroadcastEvent{MatchID: "mch:2", Payload: domain.RoundEvent{Number: 1}})
	require.Eventually(t, func() bool {
		_, ok := proc.MatchEvents("mch:2")
		return ok
	}, time.Second, 5*time.Millisecond)

	proc.InvalidateMatch("mch:2")
	_, ok := proc.MatchEvents("mch:2")
	assert.False(t, ok)
}
