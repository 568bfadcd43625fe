package probe

import (
	"context"
	"log/slog"
	"sync/atomic"
)

type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(slog.New(nopHandler{}))
}

// SetLogger configures the probe logger. Probes are silent by default;
// nil restores that.
//
// Levels used:
//   - [slog.LevelDebug]: refresh progress and registrations
//   - [slog.LevelInfo]: baked files
//   - [slog.LevelWarn]: textures that failed to load
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(nopHandler{})
	}
	loggerPtr.Store(l)
}

// Logger returns the current probe logger.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
