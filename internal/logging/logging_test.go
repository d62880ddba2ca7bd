package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNewTextLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{
		Level:  slog.LevelInfo,
		Format: FormatText,
		Output: &buf,
	})

	logger.Info("applying tier", "tier", "kernel", "steps", 4)

	output := buf.String()
	if output == "" {
		t.Fatal("logger wrote nothing")
	}
	for _, want := range []string{"INFO", "applying tier", "kernel", "4"} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q: %s", want, output)
		}
	}
}

func TestNewJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{
		Level:  slog.LevelInfo,
		Format: FormatJSON,
		Output: &buf,
	})

	logger.Log(context.Background(), LevelSuccess, "value written", "key", "system/cpu")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if record["level"] != "SUCCESS" {
		t.Errorf("level = %v, want SUCCESS", record["level"])
	}
	if record["msg"] != "value written" {
		t.Errorf("msg = %v, want %q", record["msg"], "value written")
	}
}

func TestNewFiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{
		Level:  slog.LevelWarn,
		Format: FormatText,
		Output: &buf,
	})

	logger.Info("hidden")
	logger.Warn("visible")

	output := buf.String()
	if strings.Contains(output, "hidden") {
		t.Error("info message should be filtered at warn level")
	}
	if !strings.Contains(output, "visible") {
		t.Error("warn message should pass the filter")
	}
}

func TestLevelName(t *testing.T) {
	tests := []struct {
		level slog.Level
		want  string
	}{
		{LevelTrace, "TRACE"},
		{slog.LevelDebug, "DEBUG"},
		{slog.LevelInfo, "INFO"},
		{LevelSuccess, "SUCCESS"},
		{slog.LevelWarn, "WARN"},
		{slog.LevelError, "ERROR"},
	}

	for _, tt := range tests {
		if got := LevelName(tt.level); got != tt.want {
			t.Errorf("LevelName(%v) = %q, want %q", tt.level, got, tt.want)
		}
	}
}

func TestLevelFromVerbosity(t *testing.T) {
	tests := []struct {
		verbosity int
		want      slog.Level
	}{
		{-1, slog.LevelWarn},
		{0, slog.LevelWarn},
		{1, slog.LevelInfo},
		{2, slog.LevelDebug},
		{3, LevelTrace},
		{4, LevelTrace},
	}

	for _, tt := range tests {
		got := LevelFromVerbosity(tt.verbosity)
		if got != tt.want {
			t.Errorf("LevelFromVerbosity(%d) = %v, want %v", tt.verbosity, got, tt.want)
		}
	}
}

func TestLevelOrdering(t *testing.T) {
	if LevelTrace >= slog.LevelDebug {
		t.Error("LevelTrace should be lower than LevelDebug")
	}
	if LevelSuccess <= slog.LevelInfo || LevelSuccess >= slog.LevelWarn {
		t.Error("LevelSuccess should sit between Info and Warn")
	}
}

func TestContextRoundTrip(t *testing.T) {
	logger := NewDiscard()
	ctx := NewContext(context.Background(), logger)

	if got := FromContext(ctx); got != logger {
		t.Error("FromContext should return the logger stored with NewContext")
	}
}

func TestFromContextMissing(t *testing.T) {
	if got := FromContext(context.Background()); got == nil {
		t.Error("FromContext on a bare context should fall back to a non-nil logger")
	}
}

func TestTestWriterReportsFullLength(t *testing.T) {
	tw := &testWriter{t: t}

	n, err := tw.Write([]byte("message with newline\n"))
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if n != len("message with newline\n") {
		t.Errorf("Write() n = %d, want %d", n, len("message with newline\n"))
	}
}
