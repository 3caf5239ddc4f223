// corevta - Taekwondo VTA scoring/broadcast event pipeline core.
// SPDX-License-Identifier: AGPL-3.0-or-later

package recording

import (
	"context"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/tkdvta/corevta/internal/domain"
	"github.com/tkdvta/corevta/internal/logging"
)

// SceneController is the subset of sceneclient.Client the Recording
// Controller drives; satisfied directly by *sceneclient.Client.
type SceneController interface {
	SetRecordingDirectory(ctx context.Context, dir string) error
	SetFilenameTemplate(ctx context.Context, template string) error
	StartRecording(ctx context.Context) error
	StopRecording(ctx context.Context) error
	StartReplayBuffer(ctx context.Context) error
	ReplayBufferStatus(ctx context.Context) (bool, error)
	SaveReplayBuffer(ctx context.Context) error
	LastReplayFilename(ctx context.Context) (string, error)
}

// SceneControllerResolver returns the connection the controller should
// drive, e.g. the scene-controller Manager's Recording() client.
type SceneControllerResolver func() SceneController

// MatchResolver maps an external match id (e.g. "mch:42") to the event
// store's numeric match id, creating the match row lazily.
type MatchResolver interface {
	ResolveMatchID(ctx context.Context, externalMatchID string) (int64, error)
}

// SessionPersister is the event store's recording_sessions CRUD surface.
type SessionPersister interface {
	CreateRecordingSession(ctx context.Context, rs domain.RecordingSession) (int64, error)
	UpdateRecordingSessionState(ctx context.Context, id int64, state domain.RecordingState, startAt, endAt interface{}) error
}

// EventEmitter surfaces custom UI events, mirroring the orchestrator's host
// shell side-channel.
type EventEmitter interface {
	EmitCustomEvent(name string, payload interface{})
}

// ObsPathDecisionNeeded is the payload of the custom event emitted when the
// controller finds existing tournament folders and needs the operator to
// choose between continuing the current tournament/day or starting a new
// one.
type ObsPathDecisionNeeded struct {
	Continue struct {
		Tournament int `json:"tournament"`
		Day        int `json:"day"`
	} `json:"continue"`
	New struct {
		Tournament int `json:"tournament"`
		Day        int `json:"day"`
	} `json:"new"`
}

// AutoConfig mirrors config.AutoRecordingConfig, decoupled from the config
// package so recording has no dependency on it.
type AutoConfig struct {
	Enabled                        bool
	AutoStopOnWinner                bool
	StopDelaySeconds                int
	AutoStartRecordingOnMatchBegin  bool
	AutoStartReplayOnMatchBegin     bool
}

// ReplayConfig mirrors config.ReplayConfig's fields relevant to the
// challenge-triggered instant-replay path.
type ReplayConfig struct {
	AutoOnChallenge bool
	MpvPath         string
	SecondsFromEnd  int
	MaxWaitMs       int
}

const (
	athleteRetryWindow  = 3 * time.Second
	athleteRetryCadence = 150 * time.Millisecond
	challengeDebounce   = 2 * time.Second
)

// Controller is the PSS-event-driven Recording Controller: it owns at most
// one active RecordingSession and reprograms the scene controller's
// record directory/filename as matches begin and end.
type Controller struct {
	pathCfg PathConfig
	auto    AutoConfig
	replay  ReplayConfig

	scenes SceneControllerResolver
	match  MatchResolver
	store  SessionPersister
	events EventEmitter
	log    *logging.PSSLogger

	launchPlayer func(path string, secondsFromEnd int) error

	mu sync.Mutex

	state              domain.RecordingState
	session            *domain.RecordingSession
	currentExternalID  string
	currentMatchID     int64
	athletes           domain.Athletes
	tournament         int
	tournamentDay      int
	tournamentResolved bool
	pathPromptEmitted  bool
	awaitingDecision   bool
	lastDirectory      string
	lastChallengeAt    time.Time
}

// New builds a Controller. scenes resolves the scene-controller connection
// to drive; it may return nil if none is configured, in which case
// side-effects are skipped.
func New(pathCfg PathConfig, auto AutoConfig, replay ReplayConfig, scenes SceneControllerResolver, match MatchResolver, persister SessionPersister, events EventEmitter) *Controller {
	return &Controller{
		pathCfg:      pathCfg,
		auto:         auto,
		replay:       replay,
		scenes:       scenes,
		match:        match,
		store:        persister,
		events:       events,
		log:          logging.NewPSSLogger("recording"),
		launchPlayer: defaultLaunchPlayer,
		state:        domain.RecordingStateIdle,
	}
}

func defaultLaunchPlayer(path string, secondsFromEnd int) error {
	return nil
}

// WithPlayerLauncher overrides how a saved replay file is opened, for
// testing or to point at a configured mpv binary.
func (c *Controller) WithPlayerLauncher(fn func(path string, secondsFromEnd int) error) {
	c.launchPlayer = fn
}

// State returns the controller's current lifecycle state.
func (c *Controller) State() domain.RecordingState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// HandleEvent processes one PSS event relevant to the recording lifecycle.
// It is safe to call from a single dedicated worker goroutine per the
// orchestrator's non-blocking fan-out contract; callers must not invoke it
// concurrently with itself.
func (c *Controller) HandleEvent(ctx context.Context, externalMatchID string, payload domain.PssPayload) error {
	switch v := payload.(type) {
	case domain.MatchConfig:
		return c.handleMatchConfig(ctx, fmt.Sprintf("mch:%d", v.Number))
	case domain.Athletes:
		return c.handleAthletes(ctx, v)
	case domain.FightLoaded:
		return c.handleFightLoaded(ctx, externalMatchID)
	case domain.FightReady:
		return c.handleFightReady(ctx)
	case domain.Clock:
		return c.handleClock(ctx, v)
	case domain.Winner:
		return c.handleWinner(ctx)
	case domain.Challenge:
		return c.handleChallenge(ctx, v)
	}
	return nil
}

func (c *Controller) handleMatchConfig(ctx context.Context, externalMatchID string) error {
	c.mu.Lock()
	c.currentExternalID = externalMatchID
	if c.state == domain.RecordingStateError {
		c.state = domain.RecordingStateIdle
		c.session = nil
	}
	hasSession := c.session != nil
	c.mu.Unlock()

	if !hasSession {
		return c.beginPreparing(ctx, externalMatchID)
	}
	return nil
}

func (c *Controller) beginPreparing(ctx context.Context, externalMatchID string) error {
	matchID, err := c.match.ResolveMatchID(ctx, externalMatchID)
	if err != nil {
		return c.fail(ctx, fmt.Errorf("resolve match for recording session: %w", err))
	}

	c.mu.Lock()
	c.currentMatchID = matchID
	c.mu.Unlock()

	gen, err := c.resolvePath(ctx)
	if err != nil {
		return err
	}
	if gen == nil {
		// Awaiting operator decision; FightReady side-effects are gated.
		return nil
	}

	c.mu.Lock()
	c.state = domain.RecordingStatePreparing
	sess := domain.RecordingSession{
		MatchID:       matchID,
		Directory:     gen.Directory,
		Filename:      gen.Filename,
		State:         domain.RecordingStatePreparing,
		Tournament:    gen.Tournament,
		TournamentDay: gen.TournamentDay,
	}
	c.mu.Unlock()

	id, err := c.store.CreateRecordingSession(ctx, sess)
	if err != nil {
		return c.fail(ctx, fmt.Errorf("create recording session: %w", err))
	}
	sess.ID = id

	c.mu.Lock()
	c.session = &sess
	c.mu.Unlock()
	return nil
}

// resolvePath computes directory/filename for the pending match, honoring
// the once-per-process ObsPathDecisionNeeded prompt. It returns nil, nil if
// a decision is pending.
func (c *Controller) resolvePath(ctx context.Context) (*GeneratedPath, error) {
	c.mu.Lock()
	if c.awaitingDecision {
		c.mu.Unlock()
		return nil, nil
	}

	tournament, day := c.tournament, c.tournamentDay
	resolved := c.tournamentResolved
	prompted := c.pathPromptEmitted
	athletes := c.athletes
	c.mu.Unlock()

	if !resolved {
		t, d, hasExisting := ResolveTournamentDay(c.pathCfg.VideosRoot)
		if hasExisting && !prompted {
			c.mu.Lock()
			c.awaitingDecision = true
			c.pathPromptEmitted = true
			c.mu.Unlock()

			next := NextTournamentSuggestion(t)
			var payload ObsPathDecisionNeeded
			payload.Continue.Tournament = t
			payload.Continue.Day = d
			payload.New.Tournament = next
			payload.New.Day = 1
			if c.events != nil {
				c.events.EmitCustomEvent("obs_path_decision_needed", payload)
			}
			return nil, nil
		}
		tournament, day = t, d
		c.mu.Lock()
		c.tournament, c.tournamentDay, c.tournamentResolved = tournament, day, true
		c.mu.Unlock()
	}

	in := PathInput{
		Player1: athletes.Athlete1.ShortName, Player2: athletes.Athlete2.ShortName,
		Player1Flag: athletes.Athlete1.CountryCode, Player2Flag: athletes.Athlete2.CountryCode,
		Tournament: tournament, TournamentDay: day,
	}
	gen := GeneratePath(c.pathCfg, in)
	return &gen, nil
}

// RegeneratePathWithOverrides resumes path generation after an
// ObsPathDecisionNeeded prompt, pinning the tournament/day the operator
// chose.
func (c *Controller) RegeneratePathWithOverrides(ctx context.Context, tournament, day int) error {
	c.mu.Lock()
	c.tournament, c.tournamentDay, c.tournamentResolved = tournament, day, true
	c.awaitingDecision = false
	externalID := c.currentExternalID
	c.mu.Unlock()

	if externalID == "" {
		return nil
	}
	return c.beginPreparing(ctx, externalID)
}

func (c *Controller) handleAthletes(ctx context.Context, a domain.Athletes) error {
	c.mu.Lock()
	c.athletes = a
	session := c.session
	c.mu.Unlock()

	if session == nil {
		return nil
	}

	if a.Athlete1.ShortName != "" && a.Athlete2.ShortName != "" {
		return c.applyFilename(ctx, a)
	}

	// Critical fields missing: retry for up to athleteRetryWindow without
	// holding the lock across the sleep.
	go func() {
		deadline := time.Now().Add(athleteRetryWindow)
		for time.Now().Before(deadline) {
			time.Sleep(athleteRetryCadence)
			c.mu.Lock()
			cur := c.athletes
			c.mu.Unlock()
			if cur.Athlete1.ShortName != "" && cur.Athlete2.ShortName != "" {
				_ = c.applyFilename(context.Background(), cur)
				return
			}
		}
	}()
	return nil
}

func (c *Controller) applyFilename(ctx context.Context, a domain.Athletes) error {
	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		return nil
	}
	in := PathInput{
		MatchNumber: 0,
		Player1:     a.Athlete1.ShortName, Player2: a.Athlete2.ShortName,
		Player1Flag: a.Athlete1.CountryCode, Player2Flag: a.Athlete2.CountryCode,
		Tournament: c.tournament, TournamentDay: c.tournamentDay,
	}
	c.session.Filename = BuildFilename(c.pathCfg.FilenameFormat, in)
	c.mu.Unlock()
	return nil
}

func (c *Controller) handleFightLoaded(ctx context.Context, externalMatchID string) error {
	c.mu.Lock()
	c.state = domain.RecordingStatePreparing
	if externalMatchID == "" {
		externalMatchID = c.currentExternalID
	}
	c.mu.Unlock()
	if externalMatchID == "" {
		return nil
	}
	return c.beginPreparing(ctx, externalMatchID)
}

func (c *Controller) handleFightReady(ctx context.Context) error {
	c.mu.Lock()
	if c.awaitingDecision {
		c.mu.Unlock()
		return nil
	}
	session := c.session
	lastDir := c.lastDirectory
	c.mu.Unlock()

	if session == nil {
		return nil
	}
	return c.applyReadyActions(ctx, session, lastDir)
}

func (c *Controller) applyReadyActions(ctx context.Context, session *domain.RecordingSession, lastDir string) error {
	sc := c.resolveSceneController()
	if sc == nil {
		return nil
	}

	if session.Directory != lastDir {
		if err := sc.SetRecordingDirectory(ctx, session.Directory); err != nil {
			return c.fail(ctx, fmt.Errorf("set recording directory: %w", err))
		}
		c.mu.Lock()
		c.lastDirectory = session.Directory
		c.mu.Unlock()
	}
	if err := sc.SetFilenameTemplate(ctx, session.Filename); err != nil {
		return c.fail(ctx, fmt.Errorf("set filename template: %w", err))
	}

	active, err := sc.ReplayBufferStatus(ctx)
	if err != nil {
		return c.fail(ctx, fmt.Errorf("get replay buffer status: %w", err))
	}
	if !active {
		if err := sc.StartReplayBuffer(ctx); err != nil {
			return c.fail(ctx, fmt.Errorf("start replay buffer: %w", err))
		}
	}

	if c.auto.AutoStartRecordingOnMatchBegin {
		if err := sc.StartRecording(ctx); err != nil {
			return c.fail(ctx, fmt.Errorf("start recording: %w", err))
		}
		c.transitionRecording(ctx)
	}
	return nil
}

func (c *Controller) transitionRecording(ctx context.Context) {
	c.mu.Lock()
	c.state = domain.RecordingStateRecording
	id := int64(0)
	if c.session != nil {
		id = c.session.ID
	}
	c.mu.Unlock()
	if id != 0 {
		now := time.Now().UTC()
		_ = c.store.UpdateRecordingSessionState(ctx, id, domain.RecordingStateRecording, now, nil)
	}
}

func (c *Controller) handleClock(ctx context.Context, clk domain.Clock) error {
	c.mu.Lock()
	state := c.state
	session := c.session
	lastDir := c.lastDirectory
	c.mu.Unlock()

	switch clk.Action {
	case "start":
		if state == domain.RecordingStatePreparing && session != nil {
			return c.applyReadyActions(ctx, session, lastDir)
		}
	case "stop":
		// Stopping is driven by Winner, not the clock.
	}
	return nil
}

func (c *Controller) handleWinner(ctx context.Context) error {
	if !c.auto.AutoStopOnWinner {
		return nil
	}

	c.mu.Lock()
	c.state = domain.RecordingStateStopping
	session := c.session
	c.mu.Unlock()
	if session == nil {
		return nil
	}

	delay := time.Duration(c.auto.StopDelaySeconds) * time.Second
	go func() {
		if delay > 0 {
			time.Sleep(delay)
		}
		sc := c.resolveSceneController()
		if sc == nil {
			return
		}
		stopCtx := context.Background()
		if err := sc.StopRecording(stopCtx); err != nil {
			_ = c.fail(stopCtx, fmt.Errorf("stop recording: %w", err))
			return
		}
		c.mu.Lock()
		c.state = domain.RecordingStateIdle
		id := int64(0)
		if c.session != nil {
			id = c.session.ID
		}
		c.session = nil
		c.mu.Unlock()
		if id != 0 {
			now := time.Now().UTC()
			_ = c.store.UpdateRecordingSessionState(stopCtx, id, domain.RecordingStateIdle, nil, now)
		}
	}()
	return nil
}

func (c *Controller) handleChallenge(ctx context.Context, ch domain.Challenge) error {
	if !c.replay.AutoOnChallenge {
		return nil
	}

	c.mu.Lock()
	since := time.Since(c.lastChallengeAt)
	if since < challengeDebounce {
		c.mu.Unlock()
		return nil
	}
	c.lastChallengeAt = time.Now()
	c.mu.Unlock()

	sc := c.resolveSceneController()
	if sc == nil {
		return nil
	}
	if err := sc.SaveReplayBuffer(ctx); err != nil {
		return c.fail(ctx, fmt.Errorf("save replay buffer on challenge: %w", err))
	}
	if c.replay.MpvPath == "" {
		return nil
	}

	path := c.pollLastReplayFilename(ctx, sc)
	if path == "" {
		return nil
	}
	_ = c.launchPlayer(path, c.replay.SecondsFromEnd)
	return nil
}

// pollLastReplayFilename polls GetLastReplayBufferReplay at a fixed 150 ms
// cadence until a non-empty path is returned or maxWaitMs elapses.
func (c *Controller) pollLastReplayFilename(ctx context.Context, sc SceneController) string {
	maxWait := time.Duration(c.replay.MaxWaitMs) * time.Millisecond
	if maxWait <= 0 {
		maxWait = 500 * time.Millisecond
	}
	deadline := time.Now().Add(maxWait)
	for {
		path, err := sc.LastReplayFilename(ctx)
		if err == nil && path != "" {
			return path
		}
		if time.Now().After(deadline) {
			return ""
		}
		time.Sleep(150 * time.Millisecond)
	}
}

func (c *Controller) resolveSceneController() SceneController {
	if c.scenes == nil {
		return nil
	}
	return c.scenes()
}

// fail transitions to Error(msg); the next MatchConfig returns the
// controller to Idle, so one match's RPC failure does not poison the next.
func (c *Controller) fail(ctx context.Context, err error) error {
	c.mu.Lock()
	c.state = domain.RecordingStateError
	c.mu.Unlock()
	c.log.LogPersistFailure(ctx, err)
	return err
}

// LaunchExternalPlayer opens a saved replay with the configured player
// binary, seeking to secondsFromEnd before the clip's end per
// ivr.replay.seconds_from_end. It is exported as a package-level helper so
// callers constructing a Controller can wire
// WithPlayerLauncher(recording.LaunchExternalPlayer(mpvPath)).
func LaunchExternalPlayer(playerPath string) func(path string, secondsFromEnd int) error {
	return func(path string, secondsFromEnd int) error {
		cmd := exec.Command(playerPath, fmt.Sprintf("--start=-%d", secondsFromEnd), path)
		return cmd.Start()
	}
}
