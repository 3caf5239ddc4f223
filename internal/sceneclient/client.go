// corevta - Taekwondo VTA scoring/broadcast event pipeline core.
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package sceneclient speaks the WebSocket-framed JSON-RPC protocol used by
// external production ("scene controller") endpoints: get/set scene,
// recording, streaming, and replay-buffer control.
package sceneclient

import (
	"context"
	"fmt"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tkdvta/corevta/internal/logging"
	"github.com/tkdvta/corevta/internal/metrics"
)

const (
	writeWait       = 10 * time.Second
	pongWait        = 60 * time.Second
	pingPeriod      = (pongWait * 9) / 10
	requestTimeout  = 5 * time.Second
)

// State is the connection lifecycle for one endpoint.
type State string

const (
	StateDisconnected   State = "disconnected"
	StateConnecting     State = "connecting"
	StateConnected      State = "connected"
	StateAuthenticating State = "authenticating"
	StateAuthenticated  State = "authenticated"
	StateError          State = "error"
)

// Endpoint describes one configured scene-controller target.
type Endpoint struct {
	Name     string
	Host     string
	Port     int
	Password string
}

// Event is a server-initiated, translated notification.
type Event struct {
	Kind   string
	Active bool
}

// frame is the wire envelope: requests carry RequestID and Method/Data;
// responses and events carry RequestID (if a reply) or Type (if a push).
type frame struct {
	RequestID string          `json:"requestId,omitempty"`
	Op        string          `json:"op,omitempty"`
	Type      string          `json:"type,omitempty"`
	Data      json.RawMessage `json:"d,omitempty"`
}

type pendingRequest struct {
	resultCh chan json.RawMessage
	errCh    chan error
}

// Client maintains one connection to one scene-controller endpoint.
type Client struct {
	endpoint Endpoint
	events   chan Event
	breaker  *gobreaker.CircuitBreaker[interface{}]
	log      *logging.PSSLogger

	mu      sync.Mutex
	state   State
	conn    *websocket.Conn
	pending map[string]*pendingRequest
}

// New creates a client for endpoint. Events must be drained by the caller;
// it is closed when the client disconnects.
func New(endpoint Endpoint) *Client {
	return &Client{
		endpoint: endpoint,
		events:   make(chan Event, 32),
		pending:  make(map[string]*pendingRequest),
		state:    StateDisconnected,
		log:      logging.NewPSSLogger("sceneclient"),
		breaker: NewCircuitBreaker(CircuitBreakerConfig{
			Name:             endpoint.Name,
			MaxRequests:      1,
			Interval:         30 * time.Second,
			Timeout:          10 * time.Second,
			FailureThreshold: 5,
		}),
	}
}

// Events returns the channel of translated server-initiated events.
func (c *Client) Events() <-chan Event { return c.events }

// Name returns the configured endpoint name, for logging and status
// payloads.
func (c *Client) Name() string { return c.endpoint.Name }

// State returns the current connection lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Connect dials the endpoint and, if a password is configured,
// authenticates; it then spawns the single reader task.
func (c *Client) Connect(ctx context.Context) error {
	c.setState(StateConnecting)
	url := fmt.Sprintf("ws://%s:%d", c.endpoint.Host, c.endpoint.Port)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		c.setState(StateError)
		return fmt.Errorf("dial scene controller %s: %w", c.endpoint.Name, err)
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.setState(StateConnected)

	if c.endpoint.Password != "" {
		c.setState(StateAuthenticating)
		if _, err := c.SendRequest(ctx, "Authenticate", map[string]string{"password": c.endpoint.Password}); err != nil {
			c.setState(StateError)
			return fmt.Errorf("authenticate with %s: %w", c.endpoint.Name, err)
		}
	}
	c.setState(StateAuthenticated)

	go c.readLoop()
	go c.pingLoop()
	return nil
}

// Close terminates the connection and fails any in-flight requests.
func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	pending := c.pending
	c.pending = make(map[string]*pendingRequest)
	c.mu.Unlock()

	for _, p := range pending {
		p.errCh <- fmt.Errorf("connection closed")
	}
	c.setState(StateDisconnected)
	if conn == nil {
		return nil
	}
	return conn.Close()
}

// SendRequest assigns a new requestId, registers a one-shot waiter, writes
// the frame, and awaits completion with a bounded timeout. A late response
// (after cancellation) is discarded by readLoop.
func (c *Client) SendRequest(ctx context.Context, method string, data interface{}) (json.RawMessage, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.sendRequestUnprotected(ctx, method, data)
	})
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.SceneControllerRequests.WithLabelValues(c.endpoint.Name, method, status).Inc()
	metrics.SceneControllerCircuitState.WithLabelValues(c.endpoint.Name).Set(breakerStateValue(c.breaker))
	if err != nil {
		return nil, err
	}
	return result.(json.RawMessage), nil
}

// breakerStateValue converts gobreaker state to the metric's
// 0=closed/1=half-open/2=open scale.
func breakerStateValue(cb *gobreaker.CircuitBreaker[interface{}]) float64 {
	switch cb.State() {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 2
	}
}

func (c *Client) sendRequestUnprotected(ctx context.Context, method string, data interface{}) (json.RawMessage, error) {
	id := uuid.NewString()
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal request data: %w", err)
	}

	p := &pendingRequest{resultCh: make(chan json.RawMessage, 1), errCh: make(chan error, 1)}
	c.mu.Lock()
	c.pending[id] = p
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return nil, fmt.Errorf("not connected to %s", c.endpoint.Name)
	}

	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(frame{RequestID: id, Op: method, Data: raw}); err != nil {
		c.dropPending(id)
		return nil, fmt.Errorf("send request %s: %w", method, err)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	select {
	case res := <-p.resultCh:
		return res, nil
	case err := <-p.errCh:
		return nil, err
	case <-timeoutCtx.Done():
		c.dropPending(id)
		return nil, fmt.Errorf("request %s to %s timed out", method, c.endpoint.Name)
	}
}

func (c *Client) dropPending(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Client) readLoop() {
	defer close(c.events)
	for {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn == nil {
			return
		}

		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			c.setState(StateError)
			return
		}

		if f.RequestID != "" {
			c.mu.Lock()
			p, ok := c.pending[f.RequestID]
			if ok {
				delete(c.pending, f.RequestID)
			}
			c.mu.Unlock()
			if ok {
				p.resultCh <- f.Data
			}
			// A late response with no registered waiter is discarded.
			continue
		}

		if ev, ok := translateEvent(f); ok {
			select {
			case c.events <- ev:
			default:
				c.log.LogBroadcastDropped(context.Background(), c.endpoint.Name)
			}
		}
	}
}

func (c *Client) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for range ticker.C {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn == nil {
			return
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
			return
		}
	}
}

// translateEvent recognizes the minimum required server-initiated events;
// unknown events are ignored.
func translateEvent(f frame) (Event, bool) {
	switch f.Type {
	case "SceneChanged":
		return Event{Kind: f.Type}, true
	case "RecordStateChanged", "StreamStateChanged", "ReplayBufferStateChanged":
		var payload struct {
			Active bool `json:"active"`
		}
		_ = json.Unmarshal(f.Data, &payload)
		return Event{Kind: f.Type, Active: payload.Active}, true
	case "":
		return Event{}, false
	default:
		return Event{}, false
	}
}
