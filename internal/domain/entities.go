// corevta - Taekwondo VTA scoring/broadcast event pipeline core.
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package domain holds the persistent entity types shared across the event
// store, trigger engine, recording controller, and distributor.
package domain

import "time"

// Match is created lazily on the first MatchConfig event whose
// ExternalMatchID has not been seen before.
type Match struct {
	ID              int64     `json:"id"`
	ExternalMatchID string    `json:"external_match_id"`
	Number          *int      `json:"number,omitempty"`
	Category        *string   `json:"category,omitempty"`
	WeightClass     *string   `json:"weight_class,omitempty"`
	Division        *string   `json:"division,omitempty"`
	TotalRounds     *int      `json:"total_rounds,omitempty"`
	RoundDurationS  *int      `json:"round_duration_s,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// MatchPosition identifies an athlete's corner in a match.
type MatchPosition int

const (
	PositionOne MatchPosition = 1
	PositionTwo MatchPosition = 2
)

// Athlete is a short-lived identity resolved by code within a session.
type Athlete struct {
	ID          int64   `json:"id"`
	Code        string  `json:"code"`
	ShortName   string  `json:"short_name"`
	LongName    *string `json:"long_name,omitempty"`
	CountryCode *string `json:"country_code,omitempty"`
}

// MatchAthlete links an athlete to a match at a given position. At most one
// row exists per (MatchID, Position).
type MatchAthlete struct {
	MatchID   int64         `json:"match_id"`
	AthleteID int64         `json:"athlete_id"`
	Position  MatchPosition `json:"position"`
}

// Round is created on the first Round event observed for a given
// match+number.
type Round struct {
	ID          int64      `json:"id"`
	MatchID     int64      `json:"match_id"`
	RoundNumber int        `json:"round_number"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
}

// EventType codes are pre-populated and stable across the lifetime of a
// store.
const (
	EventTypePoints           = "POINTS"
	EventTypeHitLevel         = "HIT_LEVEL"
	EventTypeWarnings         = "WARNINGS"
	EventTypeInjury           = "INJURY"
	EventTypeChallenge        = "CHALLENGE"
	EventTypeBreak            = "BREAK"
	EventTypeWinnerRounds     = "WINNER_ROUNDS"
	EventTypeWinner           = "WINNER"
	EventTypeAthletes         = "ATHLETES"
	EventTypeMatchConfig      = "MATCH_CONFIG"
	EventTypeRoundScore       = "ROUND_SCORE"
	EventTypeCurrentScores    = "CURRENT_SCORES"
	EventTypeClock            = "CLOCK"
	EventTypeRound            = "ROUND"
	EventTypeFightLoaded      = "FIGHT_LOADED"
	EventTypeFightReady       = "FIGHT_READY"
	EventTypeAthleteVideoTime = "ATHLETE_VIDEO_TIME"
	EventTypeRaw              = "RAW"
)

// PssEvent is an immutable, append-only record of one parsed (or
// unparseable) PSS datagram.
type PssEvent struct {
	ID          int64     `json:"id"`
	SessionID   int64     `json:"session_id"`
	MatchID     *int64    `json:"match_id,omitempty"`
	RoundID     *int64    `json:"round_id,omitempty"`
	EventTypeID int64     `json:"event_type_id"`
	EventCode   string    `json:"event_code"`
	Timestamp   time.Time `json:"timestamp"`
	Raw         string    `json:"raw"`
	Parsed      []byte    `json:"parsed"`
	Sequence    uint64    `json:"sequence"`
	Valid       bool      `json:"valid"`
	Error       *string   `json:"error,omitempty"`
}

// PssEventDetail is a denormalized, append-only key/value projection of a
// PssEvent's parsed payload, never updated after insert.
type PssEventDetail struct {
	EventID int64  `json:"event_id"`
	Key     string `json:"key"`
	Value   string `json:"value,omitempty"`
	Kind    string `json:"kind"`
}

// ScoreKind distinguishes per-round snapshots from the live running total.
type ScoreKind string

const (
	ScoreKindPerRound    ScoreKind = "per_round"
	ScoreKindCurrent     ScoreKind = "current"
	ScoreKindPerRoundSum ScoreKind = "per_round_sum"
)

// Score is unique per (MatchID, RoundID, Position, Kind) where RoundID is
// non-null; current scores carry a nil RoundID.
type Score struct {
	MatchID   int64         `json:"match_id"`
	RoundID   *int64        `json:"round_id,omitempty"`
	Position  MatchPosition `json:"position"`
	Kind      ScoreKind     `json:"kind"`
	Value     int           `json:"value"`
	Timestamp time.Time     `json:"timestamp"`
}

// Warning is a running per-athlete count, re-derived from the latest
// Warnings event.
type Warning struct {
	MatchID   int64         `json:"match_id"`
	RoundID   *int64        `json:"round_id,omitempty"`
	Position  MatchPosition `json:"position"`
	Kind      string        `json:"kind"`
	Count     int           `json:"count"`
	Timestamp time.Time     `json:"timestamp"`
}

// SessionState tracks the UDP listener's lifetime for one Session row.
type SessionState string

const (
	SessionStateRunning SessionState = "running"
	SessionStateEnded   SessionState = "ended"
)

// Session exists for each continuous lifetime of the UDP listener.
type Session struct {
	ID        int64        `json:"id"`
	ConfigID  string       `json:"config_id"`
	StartedAt time.Time    `json:"started_at"`
	EndedAt   *time.Time   `json:"ended_at,omitempty"`
	State     SessionState `json:"state"`
}

// RecordingState is the Recording Controller's state machine position.
type RecordingState string

const (
	RecordingStateIdle      RecordingState = "idle"
	RecordingStatePreparing RecordingState = "preparing"
	RecordingStateRecording RecordingState = "recording"
	RecordingStateStopping  RecordingState = "stopping"
	RecordingStateError     RecordingState = "error"
)

// RecordingSession is owned by the Recording Controller; only one is active
// at a time.
type RecordingSession struct {
	ID              int64          `json:"id"`
	MatchID         int64          `json:"match_id"`
	Directory       string         `json:"directory"`
	Filename        string         `json:"filename"`
	State           RecordingState `json:"state"`
	StartAt         *time.Time     `json:"start_at,omitempty"`
	EndAt           *time.Time     `json:"end_at,omitempty"`
	ControllerName  *string        `json:"controller_name,omitempty"`
	Tournament      int            `json:"tournament"`
	TournamentDay   int            `json:"tournament_day"`
	Player1         string         `json:"player1,omitempty"`
	Player2         string         `json:"player2,omitempty"`
	Player1Flag     string         `json:"player1_flag,omitempty"`
	Player2Flag     string         `json:"player2_flag,omitempty"`
}

// TriggerScope bounds which matches a trigger rule applies to.
type TriggerScope string

const (
	ScopeGlobal         TriggerScope = "global"
	ScopeTournament     TriggerScope = "tournament"
	ScopeTournamentDay  TriggerScope = "tournament_day"
)

// ActionKind is the side-effect a trigger performs when it fires.
type ActionKind string

const (
	ActionScene       ActionKind = "scene"
	ActionOverlay     ActionKind = "overlay"
	ActionRecordStart ActionKind = "record_start"
	ActionRecordStop  ActionKind = "record_stop"
	ActionReplaySave  ActionKind = "replay_save"
)

// OncePer bounds how often a trigger with once_per set may re-fire.
type OncePer string

const (
	OncePerMatch OncePer = "match"
	OncePerRound OncePer = "round"
	OncePerNone  OncePer = "none"
)

// Trigger is a configured rule evaluated against the PSS event stream.
type Trigger struct {
	ID             int64        `json:"id" koanf:"id"`
	Scope          TriggerScope `json:"scope" koanf:"scope"`
	EventCode      string       `json:"event_code" koanf:"event_code"`
	ActionKind     ActionKind   `json:"action_kind" koanf:"action_kind"`
	TargetID       string       `json:"target_id" koanf:"target_id"`
	Enabled        bool         `json:"enabled" koanf:"enabled"`
	Priority       int          `json:"priority" koanf:"priority"`
	ConditionRound *int         `json:"condition_round,omitempty" koanf:"condition_round"`
	OncePer        OncePer      `json:"once_per" koanf:"once_per"`
	DebounceMs     *int         `json:"debounce_ms,omitempty" koanf:"debounce_ms"`
	CooldownMs     *int         `json:"cooldown_ms,omitempty" koanf:"cooldown_ms"`
}

// OverlayTemplate is an opaque overlay target identified by id and name.
type OverlayTemplate struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Scene is an opaque scene-controller target identified by id and name.
type Scene struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
