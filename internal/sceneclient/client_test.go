// corevta - Taekwondo VTA scoring/broadcast event pipeline core.
// SPDX-License-Identifier: AGPL-3.0-or-later

package sceneclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// fakeServer wires a minimal mock of the wire protocol: GetCurrentProgramScene
// always returns "Main", the three status ops report outputActive true,
// every other op echoes an empty object, and it can push one
// server-initiated event on demand.
func fakeServer(t *testing.T, pushEvent chan frame) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		go func() {
			for ev := range pushEvent {
				_ = conn.WriteJSON(ev)
			}
		}()

		for {
			var f frame
			if err := conn.ReadJSON(&f); err != nil {
				return
			}
			var data json.RawMessage
			switch f.Op {
			case "GetCurrentProgramScene":
				data, _ = json.Marshal(map[string]string{"sceneName": "Main"})
			case "GetRecordStatus", "GetStreamStatus", "GetReplayBufferStatus":
				data, _ = json.Marshal(map[string]bool{"outputActive": true})
			default:
				data = []byte(`{}`)
			}
			_ = conn.WriteJSON(frame{RequestID: f.RequestID, Data: data})
		}
	}))
}

func testEndpoint(t *testing.T, server *httptest.Server) Endpoint {
	t.Helper()
	url := strings.TrimPrefix(server.URL, "http://")
	host, portStr, err := splitHostPort(url)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return Endpoint{Name: "test", Host: host, Port: port}
}

func splitHostPort(hostport string) (string, string, error) {
	idx := strings.LastIndex(hostport, ":")
	if idx < 0 {
		return hostport, "", nil
	}
	return hostport[:idx], hostport[idx+1:], nil
}

func TestClientConnectAndRequest(t *testing.T) {
	server := fakeServer(t, make(chan frame))
	defer server.Close()

	c := New(testEndpoint(t, server))
	require.NoError(t, c.Connect(context.Background()))
	defer c.Close()

	require.Equal(t, StateAuthenticated, c.State())

	name, err := c.GetCurrentScene(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Main", name)
}

func TestClientStatusAggregatesFields(t *testing.T) {
	server := fakeServer(t, make(chan frame))
	defer server.Close()

	c := New(testEndpoint(t, server))
	require.NoError(t, c.Connect(context.Background()))
	defer c.Close()

	st, err := c.Status(context.Background())
	require.NoError(t, err)
	require.True(t, st.Recording)
	require.True(t, st.Streaming)
	require.True(t, st.ReplayBuf)
}

func TestClientReceivesTranslatedEvent(t *testing.T) {
	push := make(chan frame, 1)
	server := fakeServer(t, push)
	defer server.Close()

	c := New(testEndpoint(t, server))
	require.NoError(t, c.Connect(context.Background()))
	defer c.Close()

	data, _ := json.Marshal(map[string]bool{"active": true})
	push <- frame{Type: "RecordStateChanged", Data: data}

	select {
	case ev := <-c.Events():
		require.Equal(t, "RecordStateChanged", ev.Kind)
		require.True(t, ev.Active)
	case <-time.After(2 * time.Second):
		t.Fatal("event not received")
	}
}

func TestManagerAssignsSingleRoleForOneEndpoint(t *testing.T) {
	require.Equal(t, []Role{RoleSingle}, assignRoles(1))
}

func TestManagerAssignsRecAndStrForTwoEndpoints(t *testing.T) {
	require.Equal(t, []Role{RoleRec, RoleStr}, assignRoles(2))
}
