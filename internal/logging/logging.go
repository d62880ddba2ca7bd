package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"
)

// Format selects the wire shape of a logger's output.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Custom levels on top of the standard slog levels.
//
// LevelSuccess sits between Info and Warn so that a run's positive outcomes
// (applied steps, completed restores) survive filtering that hides plain
// informational chatter. LevelTrace sits below Debug and carries noise like
// "value absent, returning default" that is normal control flow.
const (
	// LevelTrace is for very fine-grained diagnostics, below Debug.
	LevelTrace = slog.Level(-8)

	// LevelSuccess marks a completed mutation or restore.
	LevelSuccess = slog.Level(2)
)

// LevelName returns the display name for a level, including the custom
// Trace and Success levels.
func LevelName(l slog.Level) string {
	switch {
	case l < slog.LevelDebug:
		return "TRACE"
	case l < slog.LevelInfo:
		return "DEBUG"
	case l < LevelSuccess:
		return "INFO"
	case l < slog.LevelWarn:
		return "SUCCESS"
	case l < slog.LevelError:
		return "WARN"
	default:
		return "ERROR"
	}
}

// LevelFromVerbosity maps a -v flag count to a slog level.
// 0 (default) shows warnings and errors, -v adds info and success,
// -vv adds debug, -vvv and above adds trace.
func LevelFromVerbosity(v int) slog.Level {
	switch {
	case v <= 0:
		return slog.LevelWarn
	case v == 1:
		return slog.LevelInfo
	case v == 2:
		return slog.LevelDebug
	default:
		return LevelTrace
	}
}

// replaceLevelAttr rewrites the level attribute so custom levels render with
// their names instead of slog's "DEBUG-4"/"INFO+2" notation.
func replaceLevelAttr(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		if level, ok := a.Value.Any().(slog.Level); ok {
			a.Value = slog.StringValue(LevelName(level))
		}
	}
	return a
}

// Config selects level, format, and destination for New.
type Config struct {
	Level  slog.Level
	Format Format
	Output io.Writer // stderr when nil
}

// New builds a logger from cfg. Unrecognized formats fall back to text.
func New(cfg Config) *slog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Format == FormatJSON {
		return slog.New(NewJSONHandler(out, cfg.Level))
	}
	return slog.New(NewHandler(out, &slog.HandlerOptions{Level: cfg.Level}))
}

// NewJSONHandler creates a JSON handler that renders the custom Trace and
// Success levels by name.
func NewJSONHandler(output io.Writer, level slog.Level) slog.Handler {
	return slog.NewJSONHandler(output, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: replaceLevelAttr,
	})
}

// NewDiscard returns a logger that drops everything.
func NewDiscard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// contextKey keys loggers stored in a context.
type contextKey struct{}

// NewContext returns a copy of ctx carrying logger.
func NewContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext returns the logger carried by ctx, falling back to
// slog.Default() when there is none.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(contextKey{}).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// testWriter feeds handler output to t.Log so log lines land in the
// test's own output stream.
type testWriter struct {
	t *testing.T
}

func (w *testWriter) Write(p []byte) (int, error) {
	w.t.Helper()
	// t.Log appends its own newline.
	w.t.Log(strings.TrimSuffix(string(p), "\n"))
	return len(p), nil
}

// ForTest returns a trace-level logger whose output lands in t's log, so
// it shows up only for failures and -v runs.
func ForTest(t *testing.T) *slog.Logger {
	t.Helper()
	return New(Config{
		Level:  LevelTrace,
		Format: FormatText,
		Output: &testWriter{t: t},
	})
}
