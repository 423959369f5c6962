// Package logging wires go-ethereum's structured logger to two sinks:
// a colored terminal handler on stderr for interactive use, and a
// rotated JSON file handler (via lumberjack) for the persistent
// log_dir every deployment configures. This mirrors the way the forks
// in this ecosystem (op-geth, bor, bsc) layer lumberjack under geth's
// own log package rather than replacing it.
package logging

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls the verbosity and file target for Setup.
type Options struct {
	LogDir     string
	Verbosity  slog.Level
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// DefaultOptions mirrors the built-in defaults any loop without an
// explicit --log-dir/--verbosity flag should get.
func DefaultOptions(logDir string) Options {
	return Options{
		LogDir:     logDir,
		Verbosity:  slog.LevelInfo,
		MaxSizeMB:  50,
		MaxBackups: 5,
		MaxAgeDays: 14,
	}
}

// Setup installs the combined handler as go-ethereum's default logger.
// Callers invoke this once at process startup, before anything logs.
func Setup(opts Options) error {
	terminal := log.NewTerminalHandler(os.Stderr, true)

	handlers := []slog.Handler{withLevel(terminal, opts.Verbosity)}

	if opts.LogDir != "" {
		if err := os.MkdirAll(opts.LogDir, 0o755); err != nil {
			return err
		}
		rotating := &lumberjack.Logger{
			Filename:   filepath.Join(opts.LogDir, "validator.log"),
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   true,
		}
		jsonHandler := slog.NewJSONHandler(rotating, &slog.HandlerOptions{Level: opts.Verbosity})
		handlers = append(handlers, jsonHandler)
	}

	log.SetDefault(log.NewLogger(fanout(handlers)))
	return nil
}

// levelHandler re-applies a minimum level on top of a handler that
// doesn't take HandlerOptions (log.NewTerminalHandler always runs at
// its own default).
type levelHandler struct {
	slog.Handler
	min slog.Level
}

func withLevel(h slog.Handler, min slog.Level) slog.Handler {
	return &levelHandler{Handler: h, min: min}
}

func (h *levelHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.min && h.Handler.Enabled(ctx, level)
}

// fanoutHandler dispatches every record to each wrapped handler,
// matching the subset of slog.Handler's contract the handlers here
// actually need (no grouped attrs are used anywhere in this codebase).
type fanoutHandler struct {
	handlers []slog.Handler
}

func fanout(handlers []slog.Handler) slog.Handler {
	return &fanoutHandler{handlers: handlers}
}

func (f *fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f *fanoutHandler) Handle(ctx context.Context, record slog.Record) error {
	var firstErr error
	for _, h := range f.handlers {
		if !h.Enabled(ctx, record.Level) {
			continue
		}
		if err := h.Handle(ctx, record.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (f *fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(f.handlers))
	for i, h := range f.handlers {
		next[i] = h.WithAttrs(attrs)
	}
	return &fanoutHandler{handlers: next}
}

func (f *fanoutHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(f.handlers))
	for i, h := range f.handlers {
		next[i] = h.WithGroup(name)
	}
	return &fanoutHandler{handlers: next}
}
