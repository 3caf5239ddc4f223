// corevta - Taekwondo VTA scoring/broadcast event pipeline core.
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package distributor fans every parsed PSS event out to a TCP overlay
// socket and a UI side-channel, and maintains short-TTL match/athlete/
// tournament caches for the stream processor (§4.G).
package distributor

import (
	"context"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"github.com/tkdvta/corevta/internal/domain"
	"github.com/tkdvta/corevta/internal/logging"
	"github.com/tkdvta/corevta/internal/metrics"
)

const publishBufferSize = 1000

// BroadcastEvent is the JSON envelope sent to overlay socket clients and to
// the UI side-channel for every parsed PSS event.
type BroadcastEvent struct {
	SessionID int64       `json:"session_id"`
	MatchID   string      `json:"match_id,omitempty"`
	EventCode string      `json:"event_code"`
	Sequence  uint64      `json:"sequence"`
	Raw       string      `json:"raw"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// CustomEvent is the envelope for UI side-channel events that are not a
// parsed PSS event (log_event, obs_path_decision_needed, and component
// status events).
type CustomEvent struct {
	Name      string      `json:"name"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// Host receives the UI side-channel events the distributor and other
// components emit. The orchestrator's concrete Host implementation bridges
// this to whatever transport the UI shell uses.
type Host interface {
	EmitCustomEvent(name string, payload interface{})
}

// Distributor owns the single in-process publish channel and fans it out
// to the overlay TCP server and the stream processor worker pool.
type Distributor struct {
	publish chan BroadcastEvent
	host    Host
	log     *logging.PSSLogger

	server *overlayServer
	proc   *streamProcessor

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New builds a Distributor. Call Start to launch the overlay socket server
// and the stream processor workers.
func New(host Host) *Distributor {
	return &Distributor{
		publish: make(chan BroadcastEvent, publishBufferSize),
		host:    host,
		log:     logging.NewPSSLogger("distributor"),
	}
}

// Start binds the overlay TCP server on port and launches workerCount
// stream processor workers plus the fan-out loop.
func (d *Distributor) Start(ctx context.Context, port int, workerCount int) error {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	srv, err := newOverlayServer(port, d.log)
	if err != nil {
		cancel()
		return err
	}
	d.server = srv
	d.proc = newStreamProcessor(workerCount)

	d.wg.Add(1)
	go d.run(ctx)

	srv.Start(ctx)
	d.proc.Start(ctx)
	return nil
}

// Stop halts the fan-out loop, the overlay server, and the worker pool.
func (d *Distributor) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
	if d.server != nil {
		d.server.Stop()
	}
	if d.proc != nil {
		d.proc.Stop()
	}
	d.wg.Wait()
}

// EmitPssEvent publishes a parsed PSS event to every consumer: the overlay
// socket, the UI side-channel, and the stream processor's cache update.
// Never blocks the caller for longer than the publish channel's capacity
// allows; a full channel drops the event and increments DistributorDropped.
func (d *Distributor) EmitPssEvent(sessionID int64, matchID string, sequence uint64, payload domain.PssPayload, raw string) {
	ev := BroadcastEvent{
		SessionID: sessionID,
		MatchID:   matchID,
		EventCode: payload.Code(),
		Sequence:  sequence,
		Raw:       raw,
		Payload:   payload,
		Timestamp: time.Now(),
	}
	select {
	case d.publish <- ev:
		metrics.DistributorQueueDepth.Set(float64(len(d.publish)))
	default:
		metrics.DistributorDropped.Inc()
		d.log.LogBroadcastDropped(context.Background(), "publish-channel-full")
	}
}

// EmitCustomEvent publishes a named UI-only event via the Host side-channel,
// bypassing the overlay socket entirely.
func (d *Distributor) EmitCustomEvent(name string, payload interface{}) {
	if d.host == nil {
		return
	}
	d.host.EmitCustomEvent(name, payload)
}

// Cache exposes the stream processor's match/athlete/tournament caches to
// callers that want to read aggregate state (e.g. an HTTP status endpoint).
func (d *Distributor) Cache() *streamProcessor {
	return d.proc
}

func (d *Distributor) run(ctx context.Context) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-d.publish:
			metrics.DistributorQueueDepth.Set(float64(len(d.publish)))
			d.broadcastToSocket(ev)
			d.emitPssEventToUI(ev)
			if d.proc != nil {
				d.proc.Ingest(ev)
			}
		}
	}
}

func (d *Distributor) broadcastToSocket(ev BroadcastEvent) {
	if d.server == nil {
		return
	}
	frame, err := json.Marshal(ev)
	if err != nil {
		return
	}
	d.server.Broadcast(frame)
}

func (d *Distributor) emitPssEventToUI(ev BroadcastEvent) {
	d.EmitCustomEvent("pss_event", ev)
}
