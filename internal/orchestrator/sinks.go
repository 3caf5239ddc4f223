// corevta - Taekwondo VTA scoring/broadcast event pipeline core.
// SPDX-License-Identifier: AGPL-3.0-or-later

package orchestrator

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tkdvta/corevta/internal/domain"
	"github.com/tkdvta/corevta/internal/logging"
	"github.com/tkdvta/corevta/internal/metrics"
	"github.com/tkdvta/corevta/internal/queue"
	"github.com/tkdvta/corevta/internal/recording"
	"github.com/tkdvta/corevta/internal/store"
	"github.com/tkdvta/corevta/internal/triggers"
	"github.com/tkdvta/corevta/internal/udpserver"
)

const sinkQueueDepth = 512

// openDurableQueue opens the pending-persistence queue under the store's
// data directory, in a sibling "queue" subdirectory so its Badger files
// never collide with the SQLite database or its WAL side-file.
func openDurableQueue(dataDir string) (*queue.Queue, error) {
	return queue.Open(filepath.Join(dataDir, "queue"))
}

// currentMatch tracks the external match id carried by the most recent
// MatchConfig event for the running session, so events that don't name a
// match (scores, clock, warnings, ...) are still attributed to the right
// row. It is shared by the persistence and distributor sinks.
type currentMatch struct {
	mu sync.RWMutex
	id string
}

func (c *currentMatch) observe(payload domain.PssPayload) string {
	if mc, ok := payload.(domain.MatchConfig); ok && mc.MatchID != "" {
		c.mu.Lock()
		c.id = mc.MatchID
		c.mu.Unlock()
		return mc.MatchID
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.id
}

// persistenceSink fans parsed events to the durable pending queue, the
// event store, and the recording controller. Sink.Handle must not block,
// so every received datagram is handed to a single background worker that
// processes them in arrival order.
type persistenceSink struct {
	queue     *queue.Queue
	store     *store.Store
	recorder  *recording.Controller
	sessionID int64
	match     *currentMatch
	log       *logging.PSSLogger

	jobs chan udpserver.Received
	done chan struct{}
}

func newPersistenceSink(q *queue.Queue, st *store.Store, rec *recording.Controller, sessionID int64, match *currentMatch) *persistenceSink {
	s := &persistenceSink{
		queue:     q,
		store:     st,
		recorder:  rec,
		sessionID: sessionID,
		match:     match,
		log:       logging.NewPSSLogger("orchestrator.persistence"),
		jobs:      make(chan udpserver.Received, sinkQueueDepth),
		done:      make(chan struct{}),
	}
	go s.run()
	return s
}

// Handle implements udpserver.Sink. A full queue drops the datagram rather
// than blocking the receive loop; the durable queue on disk is the
// backstop for anything that does get through.
func (s *persistenceSink) Handle(ctx context.Context, r udpserver.Received) {
	select {
	case s.jobs <- r:
	default:
		s.log.LogPersistFailure(context.Background(), fmt.Errorf("persistence queue full, dropping datagram"))
	}
}

func (s *persistenceSink) stop() {
	close(s.jobs)
	<-s.done
}

func (s *persistenceSink) run() {
	defer close(s.done)
	for r := range s.jobs {
		s.process(context.Background(), r)
	}
}

func (s *persistenceSink) process(ctx context.Context, r udpserver.Received) {
	entryID, err := s.queue.Write(ctx, r.Raw, peerString(r))
	if err != nil {
		s.log.LogPersistFailure(ctx, fmt.Errorf("queue write: %w", err))
	}

	externalMatchID := ""
	var parseErr *string
	if r.Err != nil {
		msg := r.Err.Error()
		parseErr = &msg
	} else {
		externalMatchID = s.match.observe(r.Payload)
	}

	start := time.Now()
	eventID, err := s.store.InsertEvent(ctx, s.sessionID, externalMatchID, r.Payload, r.Raw, r.Err == nil, parseErr)
	if err != nil {
		metrics.EventsPersistFailed.Inc()
		s.log.LogPersistFailure(ctx, fmt.Errorf("insert event: %w", err))
		return
	}
	metrics.EventsPersisted.Inc()
	s.log.LogPersisted(ctx, eventID, time.Since(start).Milliseconds())

	if entryID != "" {
		if err := s.queue.Confirm(ctx, entryID); err != nil {
			s.log.LogPersistFailure(ctx, fmt.Errorf("queue confirm: %w", err))
		}
	}

	if r.Err == nil && s.recorder != nil {
		if err := s.recorder.HandleEvent(ctx, externalMatchID, r.Payload); err != nil {
			s.log.LogPersistFailure(ctx, fmt.Errorf("recording controller: %w", err))
		}
	}
}

// triggerSink adapts triggers.Engine to udpserver.Sink. The engine's
// dispatch path can block on scene-controller RPCs, so each event is
// handed off to a background worker rather than evaluated inline.
type triggerSink struct {
	engine *triggers.Engine
	jobs   chan domain.PssPayload
	done   chan struct{}
}

func newTriggerSink(engine *triggers.Engine) *triggerSink {
	s := &triggerSink{
		engine: engine,
		jobs:   make(chan domain.PssPayload, sinkQueueDepth),
		done:   make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *triggerSink) Handle(ctx context.Context, r udpserver.Received) {
	if r.Err != nil || r.Payload == nil {
		return
	}
	select {
	case s.jobs <- r.Payload:
	default:
	}
}

func (s *triggerSink) stop() {
	close(s.jobs)
	<-s.done
}

func (s *triggerSink) run() {
	defer close(s.done)
	for p := range s.jobs {
		s.engine.HandleEvent(context.Background(), p)
	}
}

// distributorSink adapts the Host's BroadcastPssEvent to udpserver.Sink,
// assigning a monotone, gap-free per-session sequence number to every
// broadcast frame independent of the event store's own internal sequence
// (§5, "Ordering Guarantees"): the two paths observe the same PssEvent
// value but are not required to agree on sequencing, since the store's
// sequence is assigned inside its own transaction.
type distributorSink struct {
	host      Host
	sessionID int64
	match     *currentMatch
	sequence  atomic.Uint64
}

func newDistributorSink(host Host, sessionID int64, match *currentMatch) *distributorSink {
	return &distributorSink{host: host, sessionID: sessionID, match: match}
}

func (s *distributorSink) Handle(ctx context.Context, r udpserver.Received) {
	if r.Err != nil || r.Payload == nil {
		return
	}
	matchID := s.match.observe(r.Payload)
	seq := s.sequence.Add(1)
	s.host.BroadcastPssEvent(s.sessionID, matchID, seq, r.Payload, r.Raw)
}

func peerString(r udpserver.Received) string {
	if r.Peer == nil {
		return ""
	}
	return r.Peer.String()
}

var (
	_ udpserver.Sink = (*persistenceSink)(nil)
	_ udpserver.Sink = (*triggerSink)(nil)
	_ udpserver.Sink = (*distributorSink)(nil)
)
