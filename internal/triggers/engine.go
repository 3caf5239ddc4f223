// corevta - Taekwondo VTA scoring/broadcast event pipeline core.
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package triggers evaluates configured rules against the PSS event stream
// and dispatches side effects to the scene controller and overlay channel.
package triggers

import (
	"context"
	"sync"
	"time"

	"github.com/tkdvta/corevta/internal/domain"
	"github.com/tkdvta/corevta/internal/logging"
	"github.com/tkdvta/corevta/internal/metrics"
)

// DefaultResumeDelay is used when a pause has no caller-supplied resume
// delay: the buffered latest FightReady event is re-injected this long
// after Resume is called.
const DefaultResumeDelay = 2000 * time.Millisecond

// SceneActor performs the scene/record/replay side effects a trigger can
// dispatch. It is satisfied by *sceneclient.Client.
type SceneActor interface {
	SetCurrentScene(ctx context.Context, name string) error
	StartRecording(ctx context.Context) error
	StopRecording(ctx context.Context) error
	SaveReplayBuffer(ctx context.Context) error
}

// OverlayEmitter publishes an overlay action to the distributor's broadcast
// channel. TargetID names the overlay template to show.
type OverlayEmitter interface {
	EmitOverlay(ctx context.Context, targetID string)
}

// AuditEntry is one row of the bounded trigger dispatch audit ring.
type AuditEntry struct {
	TriggerID  int64
	EventCode  string
	ActionKind domain.ActionKind
	Success    bool
	Error      string
	DurationMs int64
	At         time.Time
}

const auditCapacity = 100

type triggerState struct {
	lastFired   time.Time
	firedOnce   bool
	firedRound  int
}

// Engine evaluates enabled triggers against each incoming PSS event and
// dispatches the configured action for every match.
type Engine struct {
	scene   SceneActor
	overlay OverlayEmitter
	log     *logging.PSSLogger

	mu       sync.RWMutex
	triggers []domain.Trigger
	state    map[int64]*triggerState
	round    int

	auditMu sync.Mutex
	audit   []AuditEntry

	pauseMu     sync.Mutex
	paused      bool
	resumeDelay time.Duration
	buffered    *domain.FightReady
	resumeTimer *time.Timer
}

// New builds an Engine with the given rule set. Triggers are evaluated in
// the order given; callers should pre-sort by domain.Trigger.Priority.
func New(rules []domain.Trigger, scene SceneActor, overlay OverlayEmitter, log *logging.PSSLogger) *Engine {
	e := &Engine{
		scene:       scene,
		overlay:     overlay,
		log:         log,
		triggers:    rules,
		state:       make(map[int64]*triggerState, len(rules)),
		resumeDelay: DefaultResumeDelay,
	}
	for _, t := range rules {
		e.state[t.ID] = &triggerState{}
	}
	return e
}

// SetResumeDelay overrides the default buffered-FightReady resume delay.
func (e *Engine) SetResumeDelay(d time.Duration) {
	if d <= 0 {
		return
	}
	e.pauseMu.Lock()
	e.resumeDelay = d
	e.pauseMu.Unlock()
}

// HandleEvent evaluates every enabled trigger matching the event's code and
// dispatches its action kind. Scope gating (tournament/tournament_day vs
// global) is the orchestrator's responsibility via the rule set it loads;
// the engine itself only tracks once_per/debounce/cooldown.
func (e *Engine) HandleEvent(ctx context.Context, payload domain.PssPayload) {
	if fr, ok := payload.(domain.FightReady); ok {
		if e.bufferIfPaused(fr) {
			return
		}
	} else if e.isPaused() {
		return
	}

	if rnd, ok := payload.(domain.RoundEvent); ok {
		e.mu.Lock()
		e.round = rnd.Number
		e.mu.Unlock()
	}
	if _, ok := payload.(domain.FightLoaded); ok {
		e.resetOncePer(domain.OncePerMatch)
	}
	if _, ok := payload.(domain.RoundEvent); ok {
		e.resetOncePer(domain.OncePerRound)
	}

	code := payload.Code()
	e.mu.RLock()
	matches := make([]domain.Trigger, 0, 2)
	for _, t := range e.triggers {
		if t.Enabled && t.EventCode == code {
			matches = append(matches, t)
		}
	}
	e.mu.RUnlock()

	for _, t := range matches {
		e.evaluate(ctx, t)
	}
}

func (e *Engine) evaluate(ctx context.Context, t domain.Trigger) {
	e.mu.Lock()
	st := e.state[t.ID]
	if st == nil {
		st = &triggerState{}
		e.state[t.ID] = st
	}
	round := e.round
	e.mu.Unlock()

	if t.ConditionRound != nil && *t.ConditionRound != round {
		e.suppress("condition_round")
		return
	}

	now := time.Now()

	e.mu.Lock()
	switch t.OncePer {
	case domain.OncePerMatch:
		if st.firedOnce {
			e.mu.Unlock()
			e.suppress("once_per_match")
			return
		}
	case domain.OncePerRound:
		if st.firedRound == round {
			e.mu.Unlock()
			e.suppress("once_per_round")
			return
		}
	}
	if t.DebounceMs != nil && !st.lastFired.IsZero() {
		if now.Sub(st.lastFired) < time.Duration(*t.DebounceMs)*time.Millisecond {
			e.mu.Unlock()
			e.suppress("debounce")
			return
		}
	}
	if t.CooldownMs != nil && !st.lastFired.IsZero() {
		if now.Sub(st.lastFired) < time.Duration(*t.CooldownMs)*time.Millisecond {
			e.mu.Unlock()
			e.suppress("cooldown")
			return
		}
	}
	st.lastFired = now
	st.firedOnce = true
	st.firedRound = round
	e.mu.Unlock()

	start := time.Now()
	err := e.dispatch(ctx, t)
	duration := time.Since(start).Milliseconds()
	success := err == nil

	result := "ok"
	errMsg := ""
	if err != nil {
		result = "error"
		errMsg = err.Error()
	}
	metrics.TriggerDispatches.WithLabelValues(string(t.ActionKind), result).Inc()
	e.log.LogTriggerDispatch(ctx, t.ID, string(t.ActionKind), success, duration)
	e.recordAudit(AuditEntry{
		TriggerID:  t.ID,
		EventCode:  t.EventCode,
		ActionKind: t.ActionKind,
		Success:    success,
		Error:      errMsg,
		DurationMs: duration,
		At:         start,
	})
}

func (e *Engine) dispatch(ctx context.Context, t domain.Trigger) error {
	switch t.ActionKind {
	case domain.ActionScene:
		return e.scene.SetCurrentScene(ctx, t.TargetID)
	case domain.ActionOverlay:
		e.overlay.EmitOverlay(ctx, t.TargetID)
		return nil
	case domain.ActionRecordStart:
		return e.scene.StartRecording(ctx)
	case domain.ActionRecordStop:
		return e.scene.StopRecording(ctx)
	case domain.ActionReplaySave:
		return e.scene.SaveReplayBuffer(ctx)
	default:
		return nil
	}
}

func (e *Engine) suppress(reason string) {
	metrics.TriggerSuppressed.WithLabelValues(reason).Inc()
}

func (e *Engine) resetOncePer(scope domain.OncePer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, st := range e.state {
		switch scope {
		case domain.OncePerMatch:
			st.firedOnce = false
		case domain.OncePerRound:
			st.firedRound = 0
		}
	}
}

func (e *Engine) recordAudit(entry AuditEntry) {
	e.auditMu.Lock()
	defer e.auditMu.Unlock()
	e.audit = append(e.audit, entry)
	if len(e.audit) > auditCapacity {
		e.audit = e.audit[len(e.audit)-auditCapacity:]
	}
}

// Audit returns a snapshot of the most recent dispatch records, oldest first.
func (e *Engine) Audit() []AuditEntry {
	e.auditMu.Lock()
	defer e.auditMu.Unlock()
	out := make([]AuditEntry, len(e.audit))
	copy(out, e.audit)
	return out
}

// Pause suspends trigger evaluation: while paused, every event other than
// FightReady is dropped, and only the most recent FightReady is buffered.
// Resume re-injects the buffered event, if any, after the configured
// resume delay.
func (e *Engine) Pause() {
	e.pauseMu.Lock()
	defer e.pauseMu.Unlock()
	e.paused = true
}

// Resume re-enables evaluation and schedules redelivery of the buffered
// FightReady event, if one arrived while paused.
func (e *Engine) Resume(ctx context.Context) {
	e.pauseMu.Lock()
	e.paused = false
	buffered := e.buffered
	e.buffered = nil
	delay := e.resumeDelay
	e.pauseMu.Unlock()

	if buffered == nil {
		return
	}
	e.pauseMu.Lock()
	if e.resumeTimer != nil {
		e.resumeTimer.Stop()
	}
	e.resumeTimer = time.AfterFunc(delay, func() {
		e.HandleEvent(ctx, *buffered)
	})
	e.pauseMu.Unlock()
}

// isPaused reports whether the engine is currently paused.
func (e *Engine) isPaused() bool {
	e.pauseMu.Lock()
	defer e.pauseMu.Unlock()
	return e.paused
}

// bufferIfPaused stores fr as the latest buffered FightReady and reports
// true if the caller should stop processing because evaluation is paused.
func (e *Engine) bufferIfPaused(fr domain.FightReady) bool {
	e.pauseMu.Lock()
	defer e.pauseMu.Unlock()
	if !e.paused {
		return false
	}
	e.buffered = &fr
	return true
}
