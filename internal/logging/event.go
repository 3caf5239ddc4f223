// corevta - Taekwondo VTA scoring/broadcast event pipeline core.
// SPDX-License-Identifier: AGPL-3.0-or-later

package logging

import (
	"context"

	"github.com/rs/zerolog"
)

// PSSLogger provides domain-specific logging methods for PSS ingest,
// persistence, and dispatch, keeping field names consistent across the
// listener, the store, and the trigger engine.
type PSSLogger struct {
	logger zerolog.Logger
}

// NewPSSLogger creates a logger configured for the given component name
// (e.g. "udpserver", "store", "triggers").
func NewPSSLogger(component string) *PSSLogger {
	return &PSSLogger{logger: With().Str("component", component).Logger()}
}

func (e *PSSLogger) loggerWithContext(ctx context.Context) zerolog.Logger {
	logCtx := e.logger.With()
	if sid := SessionIDFromContext(ctx); sid != "" {
		logCtx = logCtx.Str("session_id", sid)
	}
	if mid := MatchIDFromContext(ctx); mid != "" {
		logCtx = logCtx.Str("match_id", mid)
	}
	return logCtx.Logger()
}

// LogEventReceived logs a successfully parsed PSS event arriving at the listener.
func (e *PSSLogger) LogEventReceived(ctx context.Context, eventCode string, sequence uint64) {
	e.loggerWithContext(ctx).Info().
		Str("event_code", eventCode).
		Uint64("sequence", sequence).
		Msg("pss event received")
}

// LogParseFailure logs a malformed datagram that failed to parse.
func (e *PSSLogger) LogParseFailure(ctx context.Context, raw string, err error) {
	e.loggerWithContext(ctx).Warn().
		Str("raw", raw).
		Err(err).
		Msg("pss parse failure")
}

// LogPersisted logs a successful event-store insert.
func (e *PSSLogger) LogPersisted(ctx context.Context, eventID int64, durationMs int64) {
	e.loggerWithContext(ctx).Debug().
		Int64("event_id", eventID).
		Int64("duration_ms", durationMs).
		Msg("pss event persisted")
}

// LogPersistFailure logs a store error for a PSS event.
func (e *PSSLogger) LogPersistFailure(ctx context.Context, err error) {
	e.loggerWithContext(ctx).Error().Err(err).Msg("pss event persist failed")
}

// LogTriggerDispatch logs a trigger engine side-effect dispatch outcome.
func (e *PSSLogger) LogTriggerDispatch(ctx context.Context, triggerID int64, actionKind string, success bool, durationMs int64) {
	ev := e.loggerWithContext(ctx).Info()
	if !success {
		ev = e.loggerWithContext(ctx).Warn()
	}
	ev.Int64("trigger_id", triggerID).
		Str("action_kind", actionKind).
		Bool("success", success).
		Int64("duration_ms", durationMs).
		Msg("trigger dispatched")
}

// LogBroadcastDropped logs a slow overlay consumer losing events to back-pressure.
func (e *PSSLogger) LogBroadcastDropped(ctx context.Context, clientAddr string) {
	e.loggerWithContext(ctx).Warn().
		Str("client", clientAddr).
		Msg("overlay consumer dropped, queue full")
}
