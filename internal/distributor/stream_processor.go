// corevta - Taekwondo VTA scoring/broadcast event pipeline core.
// SPDX-License-Identifier: AGPL-3.0-or-later

package distributor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tkdvta/corevta/internal/cache"
	"github.com/tkdvta/corevta/internal/domain"
)

const (
	matchEventsTTL     = 3 * time.Minute
	athleteStatsTTL    = 10 * time.Minute
	tournamentEventsTTL = 5 * time.Minute

	matchEventsCapacity      = 256
	athleteStatsCapacity     = 512
	tournamentEventsCapacity = 128

	workerQueueSize = 256
)

// streamProcessor maintains the per-match, per-athlete, and per-tournament
// aggregate caches driven by the broadcast feed, processed by a small
// worker pool so cache writes never block the distributor's fan-out loop.
type streamProcessor struct {
	matchEvents      cache.Cacher
	athleteStats     cache.Cacher
	tournamentEvents cache.Cacher

	// mu serializes apply's read-modify-write cache updates across workers.
	mu sync.Mutex

	queue   chan BroadcastEvent
	workers int
	done    chan struct{}
}

func newStreamProcessor(workers int) *streamProcessor {
	if workers <= 0 {
		workers = 4
	}
	return &streamProcessor{
		matchEvents:      cache.NewLRUCache(matchEventsCapacity, matchEventsTTL),
		athleteStats:     cache.NewLRUCache(athleteStatsCapacity, athleteStatsTTL),
		tournamentEvents: cache.NewLRUCache(tournamentEventsCapacity, tournamentEventsTTL),
		queue:            make(chan BroadcastEvent, workerQueueSize),
		workers:          workers,
	}
}

// Start launches the worker pool.
func (p *streamProcessor) Start(ctx context.Context) {
	p.done = make(chan struct{})
	for i := 0; i < p.workers; i++ {
		go p.worker(ctx)
	}
}

// Stop closes the work queue and returns without waiting; workers finish
// the events already queued and exit, unless their ctx is canceled first.
func (p *streamProcessor) Stop() {
	close(p.queue)
}

// Ingest enqueues an event for cache update. If the queue is full the event
// is dropped; cache freshness is best-effort, not a delivery guarantee.
func (p *streamProcessor) Ingest(ev BroadcastEvent) {
	select {
	case p.queue <- ev:
	default:
	}
}

func (p *streamProcessor) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-p.queue:
			if !ok {
				return
			}
			p.apply(ev)
		}
	}
}

func (p *streamProcessor) apply(ev BroadcastEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if ev.MatchID != "" {
		key := matchKey(ev.MatchID)
		existing, _ := p.matchEvents.Get(key)
		list, _ := existing.([]BroadcastEvent)
		list = append(list, ev)
		p.matchEvents.SetWithTTL(key, list, matchEventsTTL)
	}

	if athlete, ok := athleteOf(ev.Payload); ok {
		key := athleteKey(ev.MatchID, athlete)
		stats, _ := p.athleteStats.Get(key)
		s, _ := stats.(athleteAggregate)
		s = updateAthleteAggregate(s, ev.Payload)
		p.athleteStats.SetWithTTL(key, s, athleteStatsTTL)
	}

	// The wire protocol carries no tournament identifier, so the session a
	// match belongs to stands in for the tournament/day grouping key.
	tKey := tournamentKey(ev.SessionID)
	existing, _ := p.tournamentEvents.Get(tKey)
	list, _ := existing.([]BroadcastEvent)
	list = append(list, ev)
	p.tournamentEvents.SetWithTTL(tKey, list, tournamentEventsTTL)
}

// athleteAggregate is the per-athlete rolling tally the UI reads back for
// scoreboard overlays.
type athleteAggregate struct {
	Points    int
	HitLevels []int
	Warnings  int
}

func updateAthleteAggregate(s athleteAggregate, payload interface{}) athleteAggregate {
	switch v := payload.(type) {
	case domain.Points:
		s.Points += v.PointType
	case domain.HitLevel:
		s.HitLevels = append(s.HitLevels, v.Level)
	case domain.Warnings:
		s.Warnings = v.N1 + v.N2
	}
	return s
}

func athleteOf(payload interface{}) (domain.MatchPosition, bool) {
	switch v := payload.(type) {
	case domain.Points:
		return v.Athlete, true
	case domain.HitLevel:
		return v.Athlete, true
	}
	return 0, false
}

// InvalidateMatch drops the match-events entry and both athletes'
// aggregates for matchID. Session-keyed tournament entries are kept.
func (p *streamProcessor) InvalidateMatch(matchID string) {
	p.matchEvents.Delete(matchKey(matchID))
	p.athleteStats.Delete(athleteKey(matchID, domain.PositionOne))
	p.athleteStats.Delete(athleteKey(matchID, domain.PositionTwo))
}

// MatchEvents returns the buffered events for matchID, if any are cached.
func (p *streamProcessor) MatchEvents(matchID string) ([]BroadcastEvent, bool) {
	v, ok := p.matchEvents.Get(matchKey(matchID))
	if !ok {
		return nil, false
	}
	list, ok := v.([]BroadcastEvent)
	return list, ok
}

// AthleteStats returns the rolling aggregate for one athlete in a match.
func (p *streamProcessor) AthleteStats(matchID string, athlete domain.MatchPosition) (athleteAggregate, bool) {
	v, ok := p.athleteStats.Get(athleteKey(matchID, athlete))
	if !ok {
		return athleteAggregate{}, false
	}
	s, ok := v.(athleteAggregate)
	return s, ok
}

// TournamentEvents returns the buffered events for the session grouping
// sessionID, if any are cached.
func (p *streamProcessor) TournamentEvents(sessionID int64) ([]BroadcastEvent, bool) {
	v, ok := p.tournamentEvents.Get(tournamentKey(sessionID))
	if !ok {
		return nil, false
	}
	list, ok := v.([]BroadcastEvent)
	return list, ok
}

func matchKey(matchID string) string {
	return fmt.Sprintf("match:%s", matchID)
}

func tournamentKey(sessionID int64) string {
	return fmt.Sprintf("tournament:%d", sessionID)
}

func athleteKey(matchID string, athlete domain.MatchPosition) string {
	return fmt.Sprintf("athlete:%s:%d", matchID, athlete)
}
