// corevta - Taekwondo VTA scoring/broadcast event pipeline core.
// SPDX-License-Identifier: AGPL-3.0-or-later

package logging

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type contextKey string

const (
	sessionIDKey contextKey = "session_id"
	matchIDKey   contextKey = "match_id"
	loggerKey    contextKey = "logger"
)

// GenerateSessionID creates a new unique identifier for a listener session.
func GenerateSessionID() string {
	return uuid.New().String()
}

// ContextWithSessionID returns a new context carrying the given session ID.
func ContextWithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey, id)
}

// SessionIDFromContext retrieves the session ID from context, or "".
func SessionIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(sessionIDKey).(string); ok {
		return id
	}
	return ""
}

// ContextWithMatchID returns a new context carrying the given external match ID.
func ContextWithMatchID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, matchIDKey, id)
}

// MatchIDFromContext retrieves the external match ID from context, or "".
func MatchIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(matchIDKey).(string); ok {
		return id
	}
	return ""
}

// ContextWithLogger returns a new context carrying a pre-built logger, so
// downstream calls can fetch it back with Ctx without re-attaching fields.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func ContextWithLogger(ctx context.Context, l zerolog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// Ctx returns the logger attached to ctx (via ContextWithLogger), enriched
// with session_id/match_id fields if present, or the global logger
// otherwise.
func Ctx(ctx context.Context) *zerolog.Logger {
	l := Logger()
	if stored, ok := ctx.Value(loggerKey).(zerolog.Logger); ok {
		l = stored
	}
	with := l.With()
	if sid := SessionIDFromContext(ctx); sid != "" {
		with = with.Str("session_id", sid)
	}
	if mid := MatchIDFromContext(ctx); mid != "" {
		with = with.Str("match_id", mid)
	}
	l = with.Logger()
	return &l
}
