// Package logger provides the thin, context-scoped logging wrapper used
// throughout the session-establishment core. It exists so call sites read
// the same way the vendored libsignal session builder's logger.Debug(...)
// calls do, while actually routing through zerolog so a caller can inject
// a request-scoped logger via zerolog.Ctx(ctx).
package logger

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Debug logs a debug-level message for ctx, falling back to the global
// logger if ctx carries none.
func Debug(ctx context.Context, msg string, fields ...interface{}) {
	event(ctx).Debug().Fields(fields).Msg(msg)
}

// Warn logs a warn-level message for ctx.
func Warn(ctx context.Context, msg string, fields ...interface{}) {
	event(ctx).Warn().Fields(fields).Msg(msg)
}

// Error logs an error-level message for ctx, attaching err if non-nil.
func Error(ctx context.Context, err error, msg string, fields ...interface{}) {
	event(ctx).Error().Err(err).Fields(fields).Msg(msg)
}

func event(ctx context.Context) *zerolog.Logger {
	if ctx != nil {
		if l := zerolog.Ctx(ctx); l != nil && l.GetLevel() != zerolog.Disabled {
			return l
		}
	}
	return &log.Logger
}
