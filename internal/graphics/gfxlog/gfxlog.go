// Package gfxlog holds the logger shared by the graphics packages. Output is
// discarded until SetLogger is called.
package gfxlog

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

// SetLogger installs l for all graphics packages. Passing nil restores the
// silent default.
//
// Levels in use:
//   - Debug: slot allocation, state cache traffic
//   - Info: display mode changes, texture reloads
//   - Warn: fallbacks, restore failures
//   - Error: unrecoverable display loss
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(nopHandler{})
	}
	loggerPtr.Store(l)
}

func Logger() *slog.Logger {
	return loggerPtr.Load()
}
