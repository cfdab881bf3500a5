// Package logging carries a zerolog logger through context so library code
// can emit diagnostics without threading a logger through every call.
package logging

import (
	"context"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

type loggerCtxKey struct{}

// NewLogger returns a service-tagged logger writing to stdout.
func NewLogger(serviceName string) zerolog.Logger {
	return zerolog.New(os.Stdout).With().
		Timestamp().
		Str("service", strings.ToLower(serviceName)).
		Logger()
}

// NewContextWithLogger stores logger in ctx.
func NewContextWithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, logger)
}

// GetFromContext returns the logger stored in ctx, or a disabled logger when
// none was stored.
func GetFromContext(ctx context.Context) zerolog.Logger {
	if logger, ok := ctx.Value(loggerCtxKey{}).(zerolog.Logger); ok {
		return logger
	}
	return zerolog.Nop()
}
