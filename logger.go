package rendergraph

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler drops every record. Enabled reports false, so callers never
// pay for attribute formatting while logging is off.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr holds the active logger behind an atomic pointer, so
// SetLogger may race freely with logging on other goroutines.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	l := newNopLogger()
	loggerPtr.Store(l)
}

// SetLogger installs the logger used by rendergraph and its
// sub-packages. The package is silent until one is installed; passing
// nil reverts to silence.
//
// Levels:
//   - [slog.LevelDebug]: per-node phase traces, dirty propagation, timings
//   - [slog.LevelInfo]: graph lifecycle events (compiled, execution order)
//   - [slog.LevelWarn]: non-fatal issues such as resource release errors
//
// Example:
//
//	rendergraph.SetLogger(slog.Default())
//
// Safe for concurrent use.
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
}

// Logger returns the active logger. Sub-packages (nodes/, reflection/)
// reach logging through this accessor rather than importing a logger of
// their own. Safe for concurrent use.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
