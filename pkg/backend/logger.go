package backend

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler discards every record. Enabled returns false so disabled
// logging skips formatting.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(slog.New(nopHandler{}))
}

// SetLogger configures the back end logger. The back end is silent by
// default; nil restores that.
//
// Levels used:
//   - [slog.LevelDebug]: per pass diagnostics (occlusion counts, light queries)
//   - [slog.LevelWarn]: resource state warnings (oversized screenshots)
//   - [slog.LevelError]: protocol violations that abandon a frame
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(nopHandler{})
	}
	loggerPtr.Store(l)
}

// Logger returns the current back end logger.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
